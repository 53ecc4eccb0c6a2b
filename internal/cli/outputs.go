package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backplane-io/backplane/internal/clientconfig"
	"github.com/backplane-io/backplane/internal/deploy"
)

var (
	outputsRegion  string
	outputsProfile string
	outputsOutFile string
)

var outputsCmd = &cobra.Command{
	Use:   "outputs <stack-name>",
	Short: "Generate client configuration from a deployed stack",
	Long: `Reads the deployed stack's resolved outputs and output-group metadata,
reconstructs each group's payload in its original key order, and prints
the client configuration document.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutputs,
}

func init() {
	outputsCmd.Flags().StringVar(&outputsRegion, "region", "", "AWS region of the stack")
	outputsCmd.Flags().StringVar(&outputsProfile, "profile", "", "AWS shared config profile")
	outputsCmd.Flags().StringVarP(&outputsOutFile, "out", "o", "", "Write the document to a file instead of stdout")
}

func runOutputs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadAWSConfig(ctx, outputsRegion, outputsProfile)
	if err != nil {
		return err
	}

	deployer := deploy.NewDeployer(cfg)
	result, err := deployer.FetchStack(ctx, args[0])
	if err != nil {
		return err
	}

	doc, err := clientconfig.Build(result.Outputs, result.Metadata)
	if err != nil {
		return err
	}

	rendered, err := doc.RenderJSON()
	if err != nil {
		return err
	}

	if outputsOutFile != "" {
		if err := os.WriteFile(outputsOutFile, rendered, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outputsOutFile, err)
		}
		return nil
	}
	fmt.Print(string(rendered))
	return nil
}
