package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/backplane-io/backplane/internal/deploy"
	"github.com/backplane-io/backplane/internal/manifest"
)

var (
	deployProperties  map[string]string
	deployRegion      string
	deployProfile     string
	deployStoreBucket string
	deployStoreRegion string
)

var deployCmd = &cobra.Command{
	Use:   "deploy [path]",
	Short: "Synthesize and deploy the backend",
	Long: `Evaluates the backend manifest, synthesizes the deploy template,
persists it to the template store, and creates or updates the
CloudFormation stack.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringToStringVarP(&deployProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	deployCmd.Flags().StringVar(&deployRegion, "region", "", "AWS region to deploy into")
	deployCmd.Flags().StringVar(&deployProfile, "profile", "", "AWS shared config profile")
	deployCmd.Flags().StringVar(&deployStoreBucket, "store-bucket", "", "Persist the template to this S3 bucket instead of .backplane/")
	deployCmd.Flags().StringVar(&deployStoreRegion, "store-region", "us-east-1", "Region of the S3 template store")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	evaluator := manifest.NewEvaluator(wd)
	m, err := evaluator.Load(ctx, entryPoint, deployProperties)
	if err != nil {
		return err
	}

	b, err := manifest.Assemble(m)
	if err != nil {
		return err
	}

	fmt.Print("Synthesizing backend... ")
	tpl, err := b.Synthesize(ctx)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	st, err := projectStore(wd, deployStoreBucket, deployStoreRegion)
	if err != nil {
		return err
	}
	if err := st.Lock(ctx); err != nil {
		return err
	}
	defer st.Unlock(ctx)

	if err := st.Write(ctx, tpl); err != nil {
		return err
	}

	cfg, err := loadAWSConfig(ctx, deployRegion, deployProfile)
	if err != nil {
		return err
	}

	deployer := deploy.NewDeployer(cfg)
	result, err := deployer.Deploy(ctx, stackNameFor(m.Name), tpl)
	if err != nil {
		return err
	}

	fmt.Printf("\nStack %s: %s\n", result.StackID, result.Status)
	for key, value := range result.Outputs {
		fmt.Printf("  %s = %s\n", key, value)
	}
	return nil
}

// loadAWSConfig loads the default AWS config with the optional region and
// profile overrides shared by deploy, outputs, and destroy.
func loadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return cfg, nil
}
