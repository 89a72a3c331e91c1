package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cleanupDays    int
	cleanupMinKeep int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired backups from the backup directory",
	Long: `Deletes backups older than the retention window, never going below the
minimum number of backups to keep. A backup and its checksum sidecar
are always deleted together.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		deleted, err := a.retention.Cleanup(a.backupDir(), cleanupDays, cleanupMinKeep)
		if err != nil {
			return err
		}
		if deleted == 0 {
			a.display.Info("No backups eligible for deletion")
			return nil
		}
		a.display.Success("Deleted %d expired backup(s)", deleted)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "delete backups older than this many days")
	cleanupCmd.Flags().IntVar(&cleanupMinKeep, "min-keep", 5, "never delete below this many backups")

	rootCmd.AddCommand(cleanupCmd)
}
