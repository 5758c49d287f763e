package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stakeScope/internal/config"
	"stakeScope/internal/ledger"
)

func runBalance(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := ledger.ParseAddress(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, client, err := dial(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	stake, err := client.StakeOf(ctx, account)
	if err != nil {
		return fmt.Errorf("stake of %s: %w", account.Hex(), err)
	}

	return printJSON(cmd.OutOrStdout(), struct {
		Account string `json:"account"`
		Stake   string `json:"stake"`
	}{
		Account: account.Hex(),
		Stake:   stake.String(),
	})
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
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
	head, err := chainClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}

	type result struct {
		ChainID  string            `json:"chain_id"`
		Height   uint64            `json:"height"`
		HeadHash string            `json:"head_hash"`
		Contract string            `json:"contract"`
		Valid    bool              `json:"valid"`
		Scalars  map[string]string `json:"scalars,omitempty"`
	}
	out := result{
		ChainID:  chainID.String(),
		Height:   head.Number.Uint64(),
		HeadHash: head.Hash().Hex(),
		Contract: cfg.Contract,
	}

	out.Valid, err = client.IsValid(ctx)
	if err != nil {
		return fmt.Errorf("check contract: %w", err)
	}
	if out.Valid {
		out.Scalars, err = client.Scalars(ctx)
		if err != nil {
			return fmt.Errorf("read aggregates: %w", err)
		}
	}
	return printJSON(cmd.OutOrStdout(), out)
}
