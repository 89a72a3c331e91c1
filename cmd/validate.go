package cmd

import (
	"github.com/spf13/cobra"

	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/orchestrator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that an environment is healthy",
	Long: `Runs the read-only health checks against an environment: the applied
migration revision matches the newest available one, and every
configured critical table still exists. Exits with status 2 when a
check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		env, err := a.resolveEnv()
		if err != nil {
			return err
		}

		head, err := a.migrations.ResolveTarget(env, migration.RevisionHead)
		if err != nil {
			return err
		}

		validator := orchestrator.NewValidator(a.migrations, a.schemas)
		if err := validator.Validate(cmd.Context(), env, head, nil); err != nil {
			return err
		}
		a.display.Success("Environment %s is at revision %d and all critical tables are present", env.Name, head)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
