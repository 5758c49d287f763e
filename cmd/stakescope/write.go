package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeScope/internal/config"
	"stakeScope/internal/domain"
	"stakeScope/internal/ledger"
	"stakeScope/internal/model"
)

type writeFunc func(ctx context.Context, client *domain.Client, signer *ledger.Signer) (model.Receipt, error)

// runWrite loads the signer, performs one write and prints its receipt. A
// reverted transaction prints the receipt and still fails the command.
func runWrite(cmd *cobra.Command, operation string, write writeFunc) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWrite(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, client, err := dial(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	signer, err := ledger.NewSigner(cfg.KeyFile, chainID)
	if err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, cfg.TxTimeout)
	defer cancel()

	logger.Info("write start",
		zap.String("operation", operation),
		zap.String("from", signer.Address().Hex()),
		zap.String("contract", cfg.Contract),
	)
	receipt, err := write(txCtx, client, signer)
	if receipt.TxHash != "" {
		if perr := printJSON(cmd.OutOrStdout(), receipt); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func parseAmount(input string) (*big.Int, error) {
	amount, ok := math.ParseBig256(input)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	return amount, nil
}

func runStake(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	return runWrite(cmd, "stake", func(ctx context.Context, client *domain.Client, signer *ledger.Signer) (model.Receipt, error) {
		return client.Stake(ctx, amount, signer)
	})
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	return runWrite(cmd, "withdraw", func(ctx context.Context, client *domain.Client, signer *ledger.Signer) (model.Receipt, error) {
		return client.Withdraw(ctx, amount, signer)
	})
}

func runPost(cmd *cobra.Command, args []string) error {
	return runWrite(cmd, "post", func(ctx context.Context, client *domain.Client, signer *ledger.Signer) (model.Receipt, error) {
		return client.PostMessage(ctx, args[0], signer)
	})
}
