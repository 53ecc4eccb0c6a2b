// Package function defines the function resource factory: a Lambda function
// with its execution role and log group, a build-time banner assembled from
// runtime shims, and environment secrets resolved through the backend's
// secret resolver.
package function

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backplane-io/backplane/internal/container"
	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/secrets"
)

// OutputNamePrefix prefixes the per-function output-group name in the deploy
// target metadata.
const OutputNamePrefix = "Backplane::Function"

// Runtime is a supported Lambda runtime identifier.
type Runtime string

const (
	RuntimeNode18 Runtime = "nodejs18.x"
	RuntimeNode20 Runtime = "nodejs20.x"
	RuntimeNode22 Runtime = "nodejs22.x"
)

// Validity ranges for hydrated numeric properties.
const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 900
	MinMemoryMB       = 128
	MaxMemoryMB       = 10240

	defaultTimeoutSeconds = 3
	defaultMemoryMB       = 512
	defaultEntry          = "./handler.ts"
	defaultRuntime        = RuntimeNode22
)

// Props declares a function factory. Zero-value (nil) numeric properties get
// defaults at hydrate time; explicitly supplied values are validated against
// the ranges above.
type Props struct {
	// Name identifies the function. Defaults to the entry file's directory
	// name.
	Name string
	// Entry is the path to the handler source file.
	Entry string
	// TimeoutSeconds is the function timeout. Whole number, 1-900.
	TimeoutSeconds *float64
	// MemoryMB is the function memory size. Whole number, 128-10240.
	MemoryMB *float64
	// Runtime selects the Lambda runtime.
	Runtime Runtime
	// Environment sets plain environment variables.
	Environment map[string]string
	// Secrets maps environment variable names to secret references, resolved
	// through the backend's secret resolver at synthesis time.
	Secrets map[string]secrets.Ref
	// Shims are paths to runtime shim snippets concatenated into the
	// build-time banner.
	Shims []string
}

// Resources is the materialized resource record other generators consume.
type Resources struct {
	Name              string
	FunctionLogicalID string
	Function          *ir.Resource
	Role              *ir.Resource
	LogGroup          *ir.Resource
	Banner            string
}

// Factory materializes one function resource group. Create one Factory per
// function; the container memoizes by factory identity, so the same instance
// always yields the same resources.
type Factory struct {
	props Props
	hyd   *hydrated
}

// New declares a function factory. No validation happens here; hydration is
// lazy and runs on first access.
func New(props Props) *Factory {
	return &Factory{props: props}
}

// ResourceGroupName implements container.Generator.
func (f *Factory) ResourceGroupName() string { return "function" }

type hydrated struct {
	name           string
	entry          string
	timeoutSeconds int
	memoryMB       int
	runtime        Runtime
}

// hydrate resolves optional configuration against the validity ranges.
// Deterministic given the declared properties: defaults derive from the entry
// path only, never from randomness or the environment.
func (f *Factory) hydrate() (*hydrated, error) {
	if f.hyd != nil {
		return f.hyd, nil
	}

	h := &hydrated{entry: f.props.Entry}
	if h.entry == "" {
		h.entry = defaultEntry
	}

	h.name = f.props.Name
	if h.name == "" {
		h.name = nameFromEntry(h.entry)
	}

	timeout, err := wholeNumberInRange("timeoutSeconds", f.props.TimeoutSeconds, defaultTimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", h.name, err)
	}
	h.timeoutSeconds = timeout

	memory, err := wholeNumberInRange("memoryMB", f.props.MemoryMB, defaultMemoryMB, MinMemoryMB, MaxMemoryMB)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", h.name, err)
	}
	h.memoryMB = memory

	h.runtime = f.props.Runtime
	if h.runtime == "" {
		h.runtime = defaultRuntime
	}
	switch h.runtime {
	case RuntimeNode18, RuntimeNode20, RuntimeNode22:
	default:
		return nil, fmt.Errorf("function %q: runtime %q is not supported (supported: %s, %s, %s)",
			h.name, h.runtime, RuntimeNode18, RuntimeNode20, RuntimeNode22)
	}

	f.hyd = h
	return h, nil
}

func wholeNumberInRange(property string, value *float64, def, min, max int) (int, error) {
	if value == nil {
		return def, nil
	}
	v := *value
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%s must be a whole number, got %v", property, v)
	}
	n := int(v)
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", property, min, max, n)
	}
	return n, nil
}

// nameFromEntry derives a function name from the entry path: the containing
// directory's name, falling back to the file name without extension when the
// entry sits at the top of the project.
func nameFromEntry(entry string) string {
	dir := filepath.Base(filepath.Dir(entry))
	if dir != "." && dir != string(filepath.Separator) {
		return dir
	}
	base := filepath.Base(entry)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GenerateContainerEntry implements container.Generator.
func (f *Factory) GenerateContainerEntry(ctx context.Context, scope *container.Scope) (any, error) {
	h, err := f.hydrate()
	if err != nil {
		return nil, err
	}

	banner, err := AssembleBanner(f.props.Shims)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", h.name, err)
	}

	env := make(map[string]any, len(f.props.Environment)+len(f.props.Secrets))
	for k, v := range f.props.Environment {
		env[k] = v
	}
	secretNames := make([]string, 0, len(f.props.Secrets))
	for k := range f.props.Secrets {
		secretNames = append(secretNames, k)
	}
	sort.Strings(secretNames)
	for _, k := range secretNames {
		value, err := scope.Secrets.Resolve(ctx, f.props.Secrets[k])
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", h.name, err)
		}
		env[k] = value
	}

	roleID := ir.LogicalID("function", h.name, "Role")
	role := &ir.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]any{
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{
					map[string]any{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": "lambda.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					},
				},
			},
			"ManagedPolicyArns": []any{
				"arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
			},
		},
	}
	if err := scope.Template.AddResource(roleID, role); err != nil {
		return nil, err
	}

	fnID := ir.LogicalID("function", h.name)
	fn := &ir.Resource{
		Type: "AWS::Lambda::Function",
		Properties: map[string]any{
			"Handler":    "index.handler",
			"Runtime":    string(h.runtime),
			"Timeout":    h.timeoutSeconds,
			"MemorySize": h.memoryMB,
			"Role":       ir.GetAtt(roleID, "Arn"),
			"Code": map[string]any{
				"ZipFile": "// placeholder replaced by the function bundler at deploy time",
			},
		},
		Metadata: map[string]any{
			"Backplane::Build": map[string]any{
				"entry":  h.entry,
				"banner": banner,
			},
		},
	}
	if len(env) > 0 {
		fn.Properties["Environment"] = map[string]any{"Variables": env}
	}
	if err := scope.Template.AddResource(fnID, fn); err != nil {
		return nil, err
	}

	logGroupID := ir.LogicalID("function", h.name, "LogGroup")
	logGroup := &ir.Resource{
		Type: "AWS::Logs::LogGroup",
		Properties: map[string]any{
			"LogGroupName":    ir.Sub(fmt.Sprintf("/aws/lambda/${%s}", fnID)),
			"RetentionInDays": 30,
		},
		DependsOn: []string{fnID},
	}
	if err := scope.Template.AddResource(logGroupID, logGroup); err != nil {
		return nil, err
	}

	payload := ir.NewOutputPayload().
		Set(h.name+"FunctionName", ir.Ref(fnID)).
		Set(h.name+"FunctionArn", ir.GetAtt(fnID, "Arn"))
	entry := ir.BackendOutputEntry{Version: "1", Payload: payload}
	if err := scope.Outputs.AddBackendOutputEntry(OutputNamePrefix+"::"+h.name, entry); err != nil {
		return nil, err
	}

	return &Resources{
		Name:              h.name,
		FunctionLogicalID: fnID,
		Function:          fn,
		Role:              role,
		LogGroup:          logGroup,
		Banner:            banner,
	}, nil
}

// Resources resolves this factory through the container, materializing it on
// first use, and returns the typed resource record.
func (f *Factory) Resources(ctx context.Context, c *container.ConstructContainer) (*Resources, error) {
	entry, err := c.GetOrCompute(ctx, f)
	if err != nil {
		return nil, err
	}
	res, ok := entry.(*Resources)
	if !ok {
		return nil, fmt.Errorf("unexpected container entry type %T for function factory", entry)
	}
	return res, nil
}
