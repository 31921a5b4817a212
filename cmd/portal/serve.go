package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/commons-portal/app"
	"github.com/upb/commons-portal/config"
	"github.com/upb/commons-portal/routes"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API on SERVER_HOST:PORT.

The server drains in-flight requests for up to SERVER_SHUTDOWN_TIMEOUT
when it receives SIGTERM or SIGINT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	logger.Info("starting server",
		zap.String("address", srv.Addr),
		zap.String("environment", cfg.Environment),
		zap.String("auth_mode", deps.AuthMode()),
		zap.Bool("tls", cfg.Server.TLS.Enabled))

	var tls *tlsFiles
	if cfg.Server.TLS.Enabled {
		tls = &tlsFiles{cert: cfg.Server.TLS.CertFile, key: cfg.Server.TLS.KeyFile}
	}
	return serveUntilDone(ctx, srv, ln, tls, cfg.Server.ShutdownTimeout, logger)
}

type tlsFiles struct {
	cert, key string
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts srv down gracefully
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, tls *tlsFiles, shutdownTimeout time.Duration, logger *zap.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		var err error
		if tls != nil {
			err = srv.ServeTLS(ln, tls.cert, tls.key)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
