package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backplane",
	Short: "Type-safe backend definitions",
	Long: `Backplane turns declarative backend definitions into deployable
CloudFormation templates.

It provides:
  • Lazy, memoized resource factories with cross-factory references
  • Schema-validated output storage wired into the deploy template
  • Client configuration generation from deployed stack outputs`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(versionCmd)
}
