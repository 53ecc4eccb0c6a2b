package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backplane-io/backplane/internal/deploy"
)

var (
	destroyAutoApprove bool
	destroyRegion      string
	destroyProfile     string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <stack-name>",
	Short: "Delete a deployed backend stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive confirmation")
	destroyCmd.Flags().StringVar(&destroyRegion, "region", "", "AWS region of the stack")
	destroyCmd.Flags().StringVar(&destroyProfile, "profile", "", "AWS shared config profile")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	stackName := args[0]

	if !destroyAutoApprove {
		fmt.Printf("This will delete stack %q and all of its resources.\n", stackName)
		fmt.Print("Type the stack name to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(answer) != stackName {
			return fmt.Errorf("confirmation did not match; aborting")
		}
	}

	ctx := cmd.Context()
	cfg, err := loadAWSConfig(ctx, destroyRegion, destroyProfile)
	if err != nil {
		return err
	}

	deployer := deploy.NewDeployer(cfg)
	if err := deployer.Destroy(ctx, stackName); err != nil {
		return err
	}
	fmt.Printf("Stack %s deleted.\n", stackName)
	return nil
}
