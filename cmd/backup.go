package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/backup/archive"
)

var (
	backupFormat   string
	backupScope    string
	backupCompress string
	backupEncrypt  string
	backupArchive  bool
	backupOutput   string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a checksummed backup of an environment",
	Long: `Dumps the environment into the backup directory with a deterministic
name, writes a .sha256 sidecar next to it, and never leaves a partial
file behind on failure.

The scope selects what gets dumped: full (default), data-only,
schema-only, or table:<name>. Plain-format dumps can be compressed with
gzip or lz4; custom-format dumps are already compressed by pg_dump.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}

		format, err := backup.ParseFormat(backupFormat)
		if err != nil {
			return err
		}
		scope, err := backup.ParseScope(backupScope)
		if err != nil {
			return err
		}
		compression, err := backup.ParseCompression(backupCompress)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		record, err := a.backups.Backup(ctx, env, backup.Options{
			Format:      format,
			Scope:       scope,
			Compression: compression,
			Passphrase:  backupEncrypt,
			OutputPath:  backupOutput,
		})
		if err != nil {
			return err
		}

		a.display.Success("Backup written: %s (%d bytes, sha256 %s)",
			record.Path, record.Size, record.Checksum[:12])

		if backupArchive {
			if err := uploadToArchive(ctx, a, record); err != nil {
				return err
			}
		}

		if done, err := writeReport(record); done || err != nil {
			return err
		}
		return nil
	},
}

func uploadToArchive(ctx context.Context, a *app, record *backup.Record) error {
	provider, err := archive.NewProvider(ctx, a.settings.Archive)
	if err != nil {
		return err
	}

	key := filepath.Base(record.Path)
	if err := provider.Put(ctx, key, record.Path); err != nil {
		return err
	}
	a.display.Success("Archived to %s: %s", a.settings.Archive.Backend, key)

	sidecar := backup.SidecarPath(record.Path)
	if err := provider.Put(ctx, filepath.Base(sidecar), sidecar); err != nil {
		return err
	}
	return nil
}

func init() {
	backupCmd.Flags().StringVar(&backupFormat, "format", "custom", "dump format: custom or plain")
	backupCmd.Flags().StringVar(&backupScope, "scope", "full", "backup scope: full, data-only, schema-only, or table:<name>")
	backupCmd.Flags().StringVar(&backupCompress, "compress", "none", "compression for plain dumps: none, gzip, or lz4")
	backupCmd.Flags().StringVar(&backupEncrypt, "encrypt", "", "encrypt the backup with this passphrase")
	backupCmd.Flags().BoolVar(&backupArchive, "archive", false, "upload the finished backup to the configured remote archive")
	backupCmd.Flags().StringVar(&backupOutput, "output", "", "write the backup to this path instead of the backup directory")
	backupCmd.Flags().StringVarP(&outputMode, "report", "o", "", "print a machine-readable report (yaml or json)")

	rootCmd.AddCommand(backupCmd)
}
