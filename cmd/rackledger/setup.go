package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HerbHall/rackledger/internal/managers"
	"github.com/HerbHall/rackledger/pkg/models"
)

var (
	setupUser     string
	setupPassword string
	setupTenant   string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the default groups and the administrator account",
	Long: `Create the default admin and user groups and an administrator account.

Running setup again is safe: existing groups are kept and an existing
administrator is reported, not replaced.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupUser, "admin-user", "admin", "administrator user name")
	setupCmd.Flags().StringVar(&setupPassword, "admin-password", "", "administrator password (required)")
	setupCmd.Flags().StringVar(&setupTenant, "tenant", "", "tenant database of the administrator (cloud mode)")
	_ = setupCmd.MarkFlagRequired("admin-password")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger(settings.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if managers.Mode(settings.Database.Mode) == managers.ModeCloud && setupTenant == "" {
		return errors.New("--tenant is required in cloud mode")
	}

	ctx := cmd.Context()
	printInfo("Connecting to %s database %q", settings.Database.Backend, settings.Database.Name)
	provider, conn, err := openProvider(ctx, settings, logger, nil)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close(ctx)

	if err := provider.Groups().EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("create default groups: %w", err)
	}
	printSuccess("Default groups ready")

	admin := models.User{
		UserName: setupUser,
		Password: setupPassword,
		GroupID:  models.AdminGroupID,
		Database: setupTenant,
	}
	id, err := provider.Users().Insert(ctx, &admin)
	switch {
	case errors.Is(err, managers.ErrAlreadyExists):
		printInfo("User %q already exists", setupUser)
	case err != nil:
		return fmt.Errorf("create administrator: %w", err)
	default:
		printSuccess("Created administrator %q (id %d)", setupUser, id)
	}
	return nil
}
