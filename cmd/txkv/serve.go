package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myuser/txkv/internal/config"
	"github.com/myuser/txkv/internal/logutil"
	"github.com/myuser/txkv/internal/metrics"
	"github.com/myuser/txkv/internal/server"
	"github.com/myuser/txkv/internal/storage"
	"github.com/myuser/txkv/internal/txn"
)

func newServeCommand() *cobra.Command {
	var (
		addr         string
		logLevel     string
		nestedCommit string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("nested-commit") {
				cfg.Txn.NestedCommit = nestedCommit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	cmd.Flags().StringVar(&nestedCommit, "nested-commit", "", "parent or root (overrides config)")
	return cmd
}

func serve(cfg *config.Config) error {
	logger, err := logutil.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	target, err := cfg.Txn.CommitTarget()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	store := storage.NewMemoryStoreDegree(cfg.Store.BTreeDegree)
	reg.TrackStoreSize(store.Len)

	mgr := txn.NewManager(store,
		txn.WithCommitTarget(target),
		txn.WithLogger(logger.Named("txn")),
		txn.WithMetrics(reg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting node",
		zap.String("addr", cfg.Server.Addr),
		zap.Stringer("nested_commit", target),
		zap.Duration("session_idle_timeout", cfg.Server.SessionIdleTimeout.Duration))

	srv := server.New(cfg.Server, mgr, reg, logger.Named("server"))
	return errors.Wrap(srv.Run(ctx), "serve")
}
