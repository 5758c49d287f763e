package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stakeScope/internal/api"
	"stakeScope/internal/cache"
	"stakeScope/internal/config"
	"stakeScope/internal/model"
	"stakeScope/internal/storage"
	"stakeScope/internal/storage/postgres"
	"stakeScope/internal/syncer"
)

func addEngineFlags(cmd *cobra.Command) {
	addChainFlags(cmd)
	cmd.Flags().Duration("poll-interval", 4*time.Second, "base poll interval (minimum 500ms)")
	cmd.Flags().Int("max-records", 500, "records kept per event kind")
	cmd.Flags().Int("failure-threshold", 3, "consecutive failures before a disconnected snapshot")
	cmd.Flags().Int("bypass-every", 5, "force a full fetch every n polls even without new blocks")
	cmd.Flags().Duration("max-backoff", 30*time.Second, "upper bound of the failure backoff")
	cmd.Flags().Duration("tick-timeout", 20*time.Second, "deadline of one poll, 0 disables")
	cmd.Flags().StringSlice("kinds", nil, "event kinds to sync (default all)")
	cmd.Flags().String("cache-file", "", "warm-start cache file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the cache mirror and snapshot log")
	cmd.Flags().String("journal", "", "JSONL file receiving every delivered snapshot")
}

type engineStack struct {
	engine  *syncer.Engine
	sinks   []storage.SnapshotSink
	cleanup []func()
}

func (r *engineStack) close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

// startEngine wires the ledger, the optional stores and a configured engine.
// The engine is idle until someone subscribes.
func startEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engineStack, error) {
	rt := &engineStack{}

	chainClient, client, err := dial(ctx, cfg.Chain, logger)
	if err != nil {
		return nil, err
	}
	rt.cleanup = append(rt.cleanup, chainClient.Close)

	valid, err := client.IsValid(ctx)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("check contract: %w", err)
	}
	if !valid {
		rt.close()
		return nil, fmt.Errorf("%s does not look like a StakeBoard contract", cfg.Contract)
	}

	var store cache.Store
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.cleanup = append(rt.cleanup, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			rt.close()
			return nil, err
		}
		store = pg
		rt.sinks = append(rt.sinks, pg)
	} else if cfg.CacheFile != "" {
		store = storage.NewFileCacheStore(cfg.CacheFile)
	}
	if cfg.Journal != "" {
		rt.sinks = append(rt.sinks, storage.NewSnapshotJournal(cfg.Journal))
	}

	engine := syncer.New(syncer.Config{
		PollInterval:      cfg.PollInterval,
		MaxRecordsPerKind: cfg.MaxRecords,
		FailureThreshold:  cfg.FailureThreshold,
		BypassEvery:       cfg.BypassEvery,
		MaxBackoff:        cfg.MaxBackoff,
		TickTimeout:       cfg.TickTimeout,
		Kinds:             cfg.Kinds,
		Store:             store,
	}, logger)
	rt.cleanup = append(rt.cleanup, engine.Close)
	rt.engine = engine

	if err := engine.Configure(ctx, cfg.RPCURL, cfg.Contract, client); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func logSnapshot(logger *zap.Logger) syncer.Callback {
	return func(snapshot model.SyncSnapshot) {
		if !snapshot.Connected {
			logger.Warn("snapshot disconnected", zap.String("endpoint", snapshot.Endpoint))
			return
		}
		logger.Info("snapshot",
			zap.Uint64("height", snapshot.Height),
			zap.Int("roster", len(snapshot.Roster)),
			zap.Int("activity", len(snapshot.RecentActivity)),
			zap.Any("scalars", snapshot.Scalars),
		)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	rt, err := startEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", cfg.Contract),
		zap.Duration("poll_interval", rt.engine.PollInterval()),
		zap.Int("sinks", len(rt.sinks)),
	)

	recorder := storage.NewRecorder(ctx, logger, rt.sinks...)
	unsubscribeLog := rt.engine.Subscribe(logSnapshot(logger))
	unsubscribeRecord := rt.engine.Subscribe(recorder.Record)

	<-ctx.Done()
	unsubscribeRecord()
	unsubscribeLog()
	logger.Info("watch stop", zap.Any("stats", rt.engine.Stats()))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	rt, err := startEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	// The server holds one subscription for its whole life so the engine keeps
	// polling while browsers read the latest snapshot.
	recorder := storage.NewRecorder(ctx, logger, rt.sinks...)
	unsubscribe := rt.engine.Subscribe(recorder.Record)
	defer unsubscribe()

	server := http.Server{
		Addr: cfg.Listen,
		Handler: api.NewMux(api.Config{
			Engine:     rt.engine,
			Logger:     logger,
			CorsOrigin: cfg.CorsOrigin,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(logger),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("serve start",
			zap.String("listen", server.Addr),
			zap.String("contract", cfg.Contract),
			zap.Duration("poll_interval", rt.engine.PollInterval()),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown started")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	}
}
