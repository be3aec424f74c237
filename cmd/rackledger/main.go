package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/rackledger/internal/config"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/managers"
	"github.com/HerbHall/rackledger/internal/metrics"
	"github.com/HerbHall/rackledger/internal/store"
)

var (
	configPath string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "rackledger",
	Short:         "RackLedger configuration management database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().String("database-backend", "", "storage backend: mongo or sqlite")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = v.BindPFlag("database.backend", rootCmd.PersistentFlags().Lookup("database-backend"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func printSuccess(format string, args ...any) {
	fmt.Println(color.GreenString("✓ ")+fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Println(color.CyanString("→ ")+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString("✗ ")+fmt.Sprintf(format, args...))
}

// loadSettings reads the configuration file, environment and flags.
func loadSettings() (config.Settings, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return config.Settings{}, err
	}
	return cfg.Settings()
}

// newLogger builds the zap logger described by s.
func newLogger(s config.LogSettings) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if s.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openConnector connects the configured storage backend.
func openConnector(ctx context.Context, s config.DatabaseSettings, logger *zap.Logger) (database.Connector, error) {
	switch s.Backend {
	case "mongo":
		conn, err := database.NewMongoConnector(ctx, database.MongoConfig{
			URI:            s.URI,
			MaxPoolSize:    s.MaxPoolSize,
			ConnectRetries: 5,
			ConnectTimeout: s.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "sqlite":
		st, err := store.New(s.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", s.Backend)
	}
}

// openProvider connects storage and returns the manager provider on it.
func openProvider(ctx context.Context, s config.Settings, logger *zap.Logger, rec *metrics.Recorder) (*managers.Provider, database.Connector, error) {
	conn, err := openConnector(ctx, s.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	provider, err := managers.NewProvider(managers.Mode(s.Database.Mode), conn, s.Database.Name,
		managers.Deps{Logger: logger, Metrics: rec})
	if err != nil {
		_ = conn.Close(ctx)
		return nil, nil, err
	}
	return provider, conn, nil
}
