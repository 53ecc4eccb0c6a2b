package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backplane-io/backplane/internal/backend"
	"github.com/backplane-io/backplane/internal/manifest"
	"github.com/backplane-io/backplane/internal/secrets"
)

var (
	synthProperties     map[string]string
	synthYAML           bool
	synthResolveSecrets bool
	synthStoreBucket    string
	synthStoreRegion    string
)

var synthCmd = &cobra.Command{
	Use:   "synth [path]",
	Short: "Synthesize the deploy template",
	Long: `Evaluates the backend manifest, materializes every declared factory,
and writes the validated CloudFormation template to the template store.`,
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().StringToStringVarP(&synthProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	synthCmd.Flags().BoolVar(&synthYAML, "yaml", false, "Print the template as YAML instead of JSON")
	synthCmd.Flags().BoolVar(&synthResolveSecrets, "resolve-secrets", false, "Resolve secret references against AWS instead of deferring them")
	synthCmd.Flags().StringVar(&synthStoreBucket, "store-bucket", "", "Persist the template to this S3 bucket instead of .backplane/")
	synthCmd.Flags().StringVar(&synthStoreRegion, "store-region", "us-east-1", "Region of the S3 template store")
}

func runSynth(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveProject(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	evaluator := manifest.NewEvaluator(wd)
	m, err := evaluator.Load(ctx, entryPoint, synthProperties)
	if err != nil {
		return err
	}

	// Secret references stay deferred by default: the platform resolves them
	// at deploy time, so synth does not need AWS credentials unless asked to
	// resolve live.
	var opts []backend.Option
	if synthResolveSecrets {
		cfg, err := loadAWSConfig(ctx, "", "")
		if err != nil {
			return err
		}
		opts = append(opts, backend.WithSecretResolver(secrets.NewAWS(cfg)))
	}

	b, err := manifest.Assemble(m, opts...)
	if err != nil {
		return err
	}

	tpl, err := b.Synthesize(ctx)
	if err != nil {
		return err
	}

	st, err := projectStore(wd, synthStoreBucket, synthStoreRegion)
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

	var rendered []byte
	if synthYAML {
		rendered, err = tpl.RenderYAML()
	} else {
		rendered, err = tpl.RenderJSON()
	}
	if err != nil {
		return err
	}
	fmt.Print(string(rendered))
	return nil
}
