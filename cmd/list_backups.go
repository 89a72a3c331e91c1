package cmd

import (
	"github.com/spf13/cobra"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/backup/archive"
)

var listRemote bool

var listBackupsCmd = &cobra.Command{
	Use:   "list-backups",
	Short: "List the backups in the backup directory",
	Long: `Lists backups newest first, with their environment, scope, size and
checksum verification state. With --remote the configured archive is
listed instead of the local backup directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if listRemote {
			provider, err := archive.NewProvider(cmd.Context(), a.settings.Archive)
			if err != nil {
				return err
			}
			objects, err := provider.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(objects) == 0 {
				a.display.Info("No archived backups in %s", a.settings.Archive.Backend)
				return nil
			}
			for _, obj := range objects {
				a.display.Info("%s  %d bytes  %s", obj.Key, obj.Size, obj.Modified.Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		records, err := backup.List(a.backupDir())
		if err != nil {
			return err
		}
		if done, err := writeReport(records); done || err != nil {
			return err
		}
		if len(records) == 0 {
			a.display.Info("No backups in %s", a.backupDir())
			return nil
		}
		a.display.PrintBackups(records)
		return nil
	},
}

func init() {
	listBackupsCmd.Flags().BoolVar(&listRemote, "remote", false, "list the configured remote archive instead")
	listBackupsCmd.Flags().StringVar(&outputMode, "output", "", "print the list as yaml or json instead of a table")

	rootCmd.AddCommand(listBackupsCmd)
}
