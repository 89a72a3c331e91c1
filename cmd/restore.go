package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pg-lifecycle/internal/backup"
)

var (
	restoreFile       string
	restoreDrop       bool
	restoreTable      string
	restoreDecrypt    string
	restoreUnverified bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup onto an environment",
	Long: `Verifies the backup against its .sha256 sidecar before anything touches
the database; a checksum mismatch aborts with the target untouched.

With --drop the existing public schema is dropped and recreated first.
Without it the dump is applied onto the existing schema, which only
works when the schemas are compatible; a conflicting restore leaves the
target in whatever partial state the apply reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}
		if restoreFile == "" {
			return fmt.Errorf("--file is required")
		}
		if err := a.confirmDestructive(env, "Restore"); err != nil {
			return err
		}

		report, err := a.restores.Restore(cmd.Context(), env, restoreFile, backup.RestoreOptions{
			Drop:            restoreDrop,
			Table:           restoreTable,
			Passphrase:      restoreDecrypt,
			AllowUnverified: restoreUnverified,
		})
		if err != nil {
			return err
		}

		a.display.Success("Restored %s onto %s in %s", report.Path, report.Environment, report.Duration.Round(timeRound))
		if !report.Verified {
			a.display.Warning("Backup had no checksum sidecar; restored unverified")
		}
		if done, err := writeReport(report); done || err != nil {
			return err
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreFile, "file", "", "backup file to restore")
	restoreCmd.Flags().BoolVar(&restoreDrop, "drop", false, "drop and recreate the public schema before applying")
	restoreCmd.Flags().StringVar(&restoreTable, "table", "", "restore only this table (custom-format backups)")
	restoreCmd.Flags().StringVar(&restoreDecrypt, "decrypt", "", "passphrase for an encrypted backup")
	restoreCmd.Flags().BoolVar(&restoreUnverified, "allow-unverified", false, "permit restoring a backup without a checksum sidecar")

	rootCmd.AddCommand(restoreCmd)
}
