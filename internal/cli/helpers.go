package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/backplane-io/backplane/internal/manifest"
	"github.com/backplane-io/backplane/internal/store"
)

// resolveProject resolves the optional positional path argument into a
// project directory and manifest entry point.
func resolveProject(args []string) (wd, entryPoint string, err error) {
	wd, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint = manifest.DefaultEntryPoint

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}

		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return wd, entryPoint, nil
}

// projectStore opens the template store for a project: S3 when a bucket flag
// is set, the local .backplane directory otherwise.
func projectStore(wd, bucket, region string) (store.Store, error) {
	if bucket != "" {
		return store.New(&store.Config{
			Type: "s3",
			Config: map[string]string{
				"bucket": bucket,
				"region": region,
			},
		})
	}
	return store.NewLocal(filepath.Join(wd, store.DefaultLocalPath)), nil
}

// stackNameFor derives the CloudFormation stack name from the backend name.
func stackNameFor(backendName string) string {
	return "backplane-" + backendName
}
