package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/api"
	"github.com/HerbHall/rackledger/internal/auth"
	"github.com/HerbHall/rackledger/internal/metrics"
	"github.com/HerbHall/rackledger/internal/server"
	"github.com/HerbHall/rackledger/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the RackLedger API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP listen port")
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if settings.Auth.Secret == "" {
		return errors.New("auth.secret is required (set RACKLEDGER_AUTH_SECRET)")
	}

	logger, err := newLogger(settings.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("RackLedger server starting", zap.String("version", version.Short()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	provider, conn, err := openProvider(ctx, settings, logger, rec)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if err := provider.Groups().EnsureDefaults(ctx); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(settings.Auth.Secret, settings.Auth.TokenTTL)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Addr:      settings.Server.Addr(),
		RateLimit: settings.Server.RateLimit,
		RateBurst: settings.Server.RateBurst,
	}, logger, rec, api.NewHandler(provider, issuer, logger.Named("api")))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("RackLedger server ready",
		zap.String("addr", settings.Server.Addr()),
		zap.String("backend", settings.Database.Backend),
		zap.String("mode", settings.Database.Mode))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("RackLedger server stopped")
	return nil
}
