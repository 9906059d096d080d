// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/matchday/matchday/internal/auth"
	"github.com/matchday/matchday/internal/auth/postgres"
	"github.com/matchday/matchday/internal/config"
	"github.com/matchday/matchday/internal/httpapi"
	"github.com/matchday/matchday/internal/logging"
	"github.com/matchday/matchday/internal/mail"
	"github.com/matchday/matchday/internal/observability"
	"github.com/matchday/matchday/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential service",
		Long: `Start the credential service: the public auth API plus the
metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	// Flag names mirror config keys so the flags provider can overlay them.
	cmd.Flags().String("server.addr", "", "API listen address (overrides config)")
	cmd.Flags().String("observability.addr", "", "metrics/health listen address (overrides config)")
	cmd.Flags().String("log.format", "", "log format: json or text (overrides config)")
	cmd.Flags().String("mail.mode", "", "mail mode: smtp or log (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("matchday", version, cfg.Log.Format)

	slog.Info("starting credential service",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Observability.Addr,
		"mail_mode", cfg.Mail.Mode,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	codec, err := auth.NewTokenCodec([]byte(cfg.Session.Secret), cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return err
	}

	var dispatcher auth.EmailDispatcher
	if cfg.Mail.Mode == "log" {
		dispatcher = mail.NewLogDispatcher(slog.Default())
	} else {
		dispatcher, err = mail.NewSMTPDispatcher(mail.SMTPConfig{
			Host:        cfg.Mail.Host,
			Port:        cfg.Mail.Port,
			Username:    cfg.Mail.Username,
			Password:    cfg.Mail.Password,
			From:        cfg.Mail.From,
			FrontendURL: cfg.Mail.FrontendURL,
		}, slog.Default())
		if err != nil {
			return err
		}
	}

	repo := postgres.NewAccountRepository(pool)
	service, err := auth.NewCredentialService(repo, auth.NewArgon2idHasher(), codec, dispatcher, slog.Default())
	if err != nil {
		return err
	}

	limiter := auth.NewSlidingWindowLimiter(nil)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Ready when the database answers a ping.
	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("SERVE_START_FAILED").
			With("component", "observability").
			Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

	apiServer := httpapi.NewServer(cfg.Server.Addr, service, codec, limiter, obsServer.Metrics())
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			slog.Warn("failed to stop observability server during cleanup", "error", stopErr)
		}
		return oops.Code("SERVE_START_FAILED").
			With("component", "api").
			Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Credential service started")
	slog.Info("credential service ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a server reports a fatal
// error, so one failed listener brings the whole process down cleanly. It
// exits when an error arrives, the channel closes, or the context ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
