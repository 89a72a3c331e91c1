package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/display"
	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/orchestrator"
	"pg-lifecycle/internal/schema"
)

var updateRef string

var updateProdCmd = &cobra.Command{
	Use:   "update-prod",
	Short: "Run a guarded production update",
	Long: `Runs the guarded update sequence against the target environment:

  BACKUP    full custom-format backup of the target
  COMPARE   schema diff between the target and the reference environment
  CONFIRM   operator reviews the diff and confirms
  MIGRATE   apply pending migrations up to head
  VALIDATE  revision check plus critical-table checks

A failure during MIGRATE or VALIDATE automatically restores the backup
taken in the first step. The process exits 3 when the update was rolled
back, so schedulers can tell a reverted production from a partially
failed one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		target, err := a.resolveEnv()
		if err != nil {
			return err
		}
		if updateRef == "" {
			return fmt.Errorf("--ref is required")
		}
		reference, err := a.resolver.Resolve(updateRef)
		if err != nil {
			return err
		}
		if target.Name == reference.Name {
			return fmt.Errorf("--ref must name a different environment than --env")
		}

		// The orchestrator holds the environment lock for the whole
		// session, so its engines run lock-free.
		nop := database.NopLocker{}
		backups := backup.NewEngine(a.backupDir(), backup.NewPgDumpProvider(), nop, a.logger)
		restores := backup.NewRestoreEngine(backup.NewPgRestoreProvider(), nop, a.logger)
		migrator := migration.NewRunner(a.tool, a.connections, nop, a.logger)

		confirm := func(diff *schema.DiffResult) (bool, error) {
			if diff.Empty() {
				a.display.Info("No schema differences between %s and %s", target.Name, reference.Name)
			} else {
				a.display.PrintDiff(diff)
			}
			if target.IsProd() {
				return a.confirmer.ConfirmPhrase(
					fmt.Sprintf("Migrate PRODUCTION environment %q to head", target.Name),
					display.ProdConfirmPhrase)
			}
			return a.confirmer.Confirm(fmt.Sprintf("Migrate environment %q to head", target.Name))
		}

		orch := orchestrator.New(backups, restores, migrator, a.schemas, a.locker, confirm, a.logger)
		report, runErr := orch.Run(cmd.Context(), reference, target)

		if report != nil {
			a.display.Step(string(report.Phase), "session %s finished in %s", report.SessionID, report.Duration.Round(timeRound))
			if report.BackupPath != "" {
				a.display.Info("Pre-update backup: %s", report.BackupPath)
			}
		}
		if runErr != nil {
			if report != nil && report.RolledBack {
				a.display.Warning("Update failed; environment %s was rolled back to revision %d",
					target.Name, report.PreRevision)
			}
			return runErr
		}
		a.display.Success("Environment %s updated to revision %d", target.Name, report.TargetRevision)
		return nil
	},
}

func init() {
	updateProdCmd.Flags().StringVar(&updateRef, "ref", "", "reference environment whose schema the target is compared against")

	rootCmd.AddCommand(updateProdCmd)
}
