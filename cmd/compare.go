package cmd

import (
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <source-env> <target-env>",
	Short: "Compare the schemas of two environments",
	Long: `Extracts a structural snapshot of each environment and prints the
differences from the source's point of view: tables and columns added
in the target, removed from it, and changed between the two.

Comparison is read-only and never blocks on the environment locks.
Constraints and indexes are matched structurally, so a renamed
constraint over the same columns is not a difference.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		source, err := a.resolver.Resolve(args[0])
		if err != nil {
			return err
		}
		target, err := a.resolver.Resolve(args[1])
		if err != nil {
			return err
		}

		diff, err := a.schemas.CompareEnvironments(cmd.Context(), source, target)
		if err != nil {
			return err
		}

		if done, err := writeReport(diff); done || err != nil {
			return err
		}
		if diff.Empty() {
			a.display.Success("Schemas of %s and %s are identical", source.Name, target.Name)
			return nil
		}
		a.display.PrintDiff(diff)
		a.display.Info("%d schema difference(s) between %s and %s",
			diff.ChangeCount(), source.Name, target.Name)
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&outputMode, "output", "", "print the diff as yaml or json instead of a table")

	rootCmd.AddCommand(compareCmd)
}
