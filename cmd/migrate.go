package cmd

import (
	"github.com/spf13/cobra"
)

var migrateTarget string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations to an environment",
	Long: `Applies migrations from the environment's migrations directory until the
target revision is reached. The default target is head, the newest
available revision. On failure the error reports the last revision that
was actually applied, so the interrupted position is never guesswork.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}
		if err := a.confirmDestructive(env, "Migration"); err != nil {
			return err
		}

		result, err := a.migrations.Upgrade(cmd.Context(), env, migrateTarget)
		if err != nil {
			return err
		}
		if result.FromRevision == result.ToRevision {
			a.display.Info("%s is already at revision %d", env.Name, result.ToRevision)
			return nil
		}
		a.display.Success("Migrated %s from revision %d to %d in %s",
			env.Name, result.FromRevision, result.ToRevision, result.Duration.Round(timeRound))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the migration history of an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}
		entries, err := a.migrations.History(cmd.Context(), env)
		if err != nil {
			return err
		}
		a.display.PrintHistory(env.Name, entries)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "head", "target revision, or head for the newest")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(historyCmd)
}
