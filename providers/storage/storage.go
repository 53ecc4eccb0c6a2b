// Package storage defines the storage resource factory: an S3 bucket with
// public access blocked and optional versioning.
package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/backplane-io/backplane/internal/container"
	"github.com/backplane-io/backplane/internal/ir"
)

// OutputName is the output-group name storage writes its client-facing
// values under.
const OutputName = "Backplane::Storage"

// Bucket name prefixes follow the S3 naming rules: lowercase alphanumerics
// and hyphens, starting and ending with an alphanumeric.
var bucketPrefixPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// Props declares a storage factory.
type Props struct {
	// Name is the bucket name prefix. The deploy target leaves the final name
	// to the platform, so the prefix only seeds tagging.
	Name string
	// Versioned enables bucket versioning.
	Versioned bool
}

// Resources is the materialized resource record.
type Resources struct {
	BucketLogicalID string
	Bucket          *ir.Resource
}

// Factory materializes the storage resource group exactly once per container.
type Factory struct {
	props Props
}

// New declares a storage factory.
func New(props Props) *Factory {
	return &Factory{props: props}
}

// ResourceGroupName implements container.Generator.
func (f *Factory) ResourceGroupName() string { return "storage" }

// GenerateContainerEntry implements container.Generator.
func (f *Factory) GenerateContainerEntry(ctx context.Context, scope *container.Scope) (any, error) {
	name := f.props.Name
	if name == "" {
		name = "storage"
	}
	if !bucketPrefixPattern.MatchString(name) {
		return nil, fmt.Errorf("storage: name %q must be lowercase alphanumerics and hyphens", name)
	}

	bucketID := ir.LogicalID("storage", name, "Bucket")
	bucket := &ir.Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]any{
			"PublicAccessBlockConfiguration": map[string]any{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
			"Tags": []any{
				map[string]any{"Key": "backplane:storage-name", "Value": name},
			},
		},
	}
	if f.props.Versioned {
		bucket.Properties["VersioningConfiguration"] = map[string]any{"Status": "Enabled"}
	}
	if err := scope.Template.AddResource(bucketID, bucket); err != nil {
		return nil, err
	}

	payload := ir.NewOutputPayload().
		Set("bucketName", ir.Ref(bucketID)).
		Set("storageRegion", ir.Ref("AWS::Region"))
	entry := ir.BackendOutputEntry{Version: "1", Payload: payload}
	if err := scope.Outputs.AddBackendOutputEntry(OutputName, entry); err != nil {
		return nil, err
	}

	return &Resources{BucketLogicalID: bucketID, Bucket: bucket}, nil
}

// Resources resolves this factory through the container and returns the
// typed resource record.
func (f *Factory) Resources(ctx context.Context, c *container.ConstructContainer) (*Resources, error) {
	entry, err := c.GetOrCompute(ctx, f)
	if err != nil {
		return nil, err
	}
	res, ok := entry.(*Resources)
	if !ok {
		return nil, fmt.Errorf("unexpected container entry type %T for storage factory", entry)
	}
	return res, nil
}
