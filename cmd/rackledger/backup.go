package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/rackledger/internal/backup"
)

var (
	backupOutput  string
	restoreInput  string
	restoreDir    string
	restoreForced bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the embedded SQLite database and config file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if settings.Database.Backend != "sqlite" {
			return errors.New("backup supports the sqlite backend only; use mongodump for MongoDB")
		}
		if backupOutput == "" {
			backupOutput = fmt.Sprintf("rackledger-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
		}
		m, err := backup.Backup(cmd.Context(), settings.Database.Path, v.ConfigFileUsed(), backupOutput)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		printSuccess("Backup created: %s (database %s)", backupOutput, m.Database)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup archive into a data directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := filepath.Abs(restoreDir)
		if err != nil {
			return err
		}
		m, err := backup.Restore(cmd.Context(), restoreInput, dir, restoreForced)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		printSuccess("Restored %s from RackLedger %s backup of %s",
			m.Database, m.Version, m.CreatedAt.Format(time.RFC3339))
		printInfo("Files restored to %s", dir)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "output file (default: rackledger-backup-{timestamp}.tar.gz)")
	restoreCmd.Flags().StringVarP(&restoreInput, "input", "i", "", "backup archive to restore (required)")
	restoreCmd.Flags().StringVar(&restoreDir, "data-dir", ".", "target directory for restored files")
	restoreCmd.Flags().BoolVar(&restoreForced, "force", false, "overwrite existing files")
	_ = restoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(backupCmd, restoreCmd)
}
