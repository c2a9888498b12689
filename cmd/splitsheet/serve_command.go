package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"splitsheet/internal/api"
	"splitsheet/internal/logging"
	"splitsheet/internal/store"
	"splitsheet/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides api.bind)")
	return cmd
}

func runServer(parent context.Context, ctx *commandContext, bindOverride string) error {
	if parent == nil {
		parent = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	lock := flock.New(cfg.Paths.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another splitsheet server is already running against this state directory")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release server lock", logging.Error(err))
		}
	}()

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	svc, cleanup, err := workflow.NewFromConfig(signalCtx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := api.NewServerFromConfig(cfg, svc, logger)
	if err != nil {
		return err
	}

	bind := cfg.API.Bind
	if bindOverride != "" {
		bind = bindOverride
	}
	logger.Info("splitsheet server starting",
		logging.String("database", st.Path()),
		logging.String("lock", cfg.Paths.LockPath),
	)
	err = server.Serve(signalCtx, bind,
		time.Duration(cfg.API.ReadTimeoutSeconds)*time.Second,
		time.Duration(cfg.API.WriteTimeoutSeconds)*time.Second,
		func(addr net.Addr) {
			logger.Info("accepting requests", logging.String("address", addr.String()))
		},
	)
	logger.Info("splitsheet server shutting down")
	return err
}
