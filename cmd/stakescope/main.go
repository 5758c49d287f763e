package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stakeScope/internal/chain"
	"stakeScope/internal/config"
	"stakeScope/internal/domain"
	"stakeScope/internal/ledger"
)

func main() {
	root := &cobra.Command{
		Use:          "stakescope",
		Short:        "Incremental event sync for the StakeBoard contract",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the contract and record every changed snapshot",
		RunE:  runWatch,
	}
	addEngineFlags(watchCmd)
	root.AddCommand(watchCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the contract and serve the latest snapshot over HTTP",
		RunE:  runServe,
	}
	addEngineFlags(serveCmd)
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().String("cors-origin", "*", "Access-Control-Allow-Origin value, empty disables CORS")
	root.AddCommand(serveCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the stake of an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalance,
	}
	addChainFlags(balanceCmd)
	root.AddCommand(balanceCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the address is the staking contract and print its aggregates",
		RunE:  runCheck,
	}
	addChainFlags(checkCmd)
	root.AddCommand(checkCmd)

	stakeCmd := &cobra.Command{
		Use:   "stake <amount-wei>",
		Short: "Deposit stake",
		Args:  cobra.ExactArgs(1),
		RunE:  runStake,
	}
	addWriteFlags(stakeCmd)
	root.AddCommand(stakeCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw <amount-wei>",
		Short: "Withdraw stake",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithdraw,
	}
	addWriteFlags(withdrawCmd)
	root.AddCommand(withdrawCmd)

	postCmd := &cobra.Command{
		Use:   "post <text>",
		Short: "Post a message on the board",
		Args:  cobra.ExactArgs(1),
		RunE:  runPost,
	}
	addWriteFlags(postCmd)
	root.AddCommand(postCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "ledger RPC URL")
	cmd.Flags().String("contract", "", "StakeBoard contract address")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per log query")
	cmd.Flags().Float64("rpc-rate", 10, "RPC requests per second, 0 disables limiting")
	cmd.Flags().Int("rpc-burst", 20, "RPC request burst")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addWriteFlags(cmd *cobra.Command) {
	addChainFlags(cmd)
	cmd.Flags().String("key-file", "", "hex ECDSA private key file of the signing account")
	cmd.Flags().Duration("tx-timeout", 2*time.Minute, "time to wait for the transaction to be mined")
}

// dial connects to the ledger and binds the contract.
func dial(ctx context.Context, cfg config.Chain, logger *zap.Logger) (*chain.Client, *domain.Client, error) {
	address, err := ledger.ParseAddress(cfg.Contract)
	if err != nil {
		return nil, nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{Rate: cfg.RPCRate, Burst: cfg.RPCBurst})
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	transport, err := ledger.NewEthTransport(chainClient, address, cfg.BatchSize, logger)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}
	return chainClient, domain.NewClient(transport, nil), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
