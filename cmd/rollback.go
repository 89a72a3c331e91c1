package cmd

import (
	"github.com/spf13/cobra"
)

var rollbackSteps int

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert applied migrations step by step",
	Long: `Reverts the given number of migration steps, newest first. Each step
must carry an inverse; hitting a migration without one stops the
rollback at that point and reports how many steps completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}
		if err := a.confirmDestructive(env, "Rollback"); err != nil {
			return err
		}

		result, err := a.migrations.Downgrade(cmd.Context(), env, rollbackSteps)
		if err != nil {
			return err
		}
		a.display.Success("Rolled %s back from revision %d to %d in %s",
			env.Name, result.FromRevision, result.ToRevision, result.Duration.Round(timeRound))
		return nil
	},
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migration steps to revert")

	rootCmd.AddCommand(rollbackCmd)
}
