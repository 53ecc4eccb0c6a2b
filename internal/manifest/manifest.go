// Package manifest evaluates the project's backend.pkl into factory
// declarations and assembles them into a backend.
package manifest

import (
	"context"
	"fmt"

	"github.com/apple/pkl-go/pkl"

	"github.com/backplane-io/backplane/internal/backend"
	"github.com/backplane-io/backplane/internal/secrets"
	"github.com/backplane-io/backplane/providers/auth"
	"github.com/backplane-io/backplane/providers/data"
	"github.com/backplane-io/backplane/providers/function"
	"github.com/backplane-io/backplane/providers/storage"
)

// DefaultEntryPoint is the manifest file evaluated when none is given.
const DefaultEntryPoint = "backend.pkl"

// Manifest is the evaluated backend declaration.
type Manifest struct {
	Name        string          `pkl:"name"`
	Description string          `pkl:"description"`
	Auth        *AuthSpec       `pkl:"auth"`
	Data        *DataSpec       `pkl:"data"`
	Storage     []*StorageSpec  `pkl:"storage"`
	Functions   []*FunctionSpec `pkl:"functions"`
}

// FunctionSpec declares one function factory.
type FunctionSpec struct {
	Name           string                 `pkl:"name"`
	Entry          string                 `pkl:"entry"`
	TimeoutSeconds *float64               `pkl:"timeoutSeconds"`
	MemoryMB       *float64               `pkl:"memoryMB"`
	Runtime        string                 `pkl:"runtime"`
	Environment    map[string]string      `pkl:"environment"`
	Secrets        map[string]secrets.Ref `pkl:"secrets"`
	Shims          []string               `pkl:"shims"`
}

// AuthSpec declares the auth factory. Triggers reference functions by their
// declared name.
type AuthSpec struct {
	SelfSignUpEnabled      bool              `pkl:"selfSignUpEnabled"`
	PasswordMinLength      *float64          `pkl:"passwordMinLength"`
	MfaConfiguration       string            `pkl:"mfaConfiguration"`
	AutoVerifiedAttributes []string          `pkl:"autoVerifiedAttributes"`
	Triggers               map[string]string `pkl:"triggers"`
}

// DataSpec declares the data factory.
type DataSpec struct {
	Schema            string       `pkl:"schema"`
	SchemaFile        string       `pkl:"schemaFile"`
	AuthorizationMode string       `pkl:"authorizationMode"`
	Models            []*ModelSpec `pkl:"models"`
}

// ModelSpec declares one model and its table keys.
type ModelSpec struct {
	Name         string   `pkl:"name"`
	PartitionKey *KeySpec `pkl:"partitionKey"`
	SortKey      *KeySpec `pkl:"sortKey"`
}

// KeySpec declares a table key attribute.
type KeySpec struct {
	Name string `pkl:"name"`
	Type string `pkl:"type"`
}

// StorageSpec declares one storage factory.
type StorageSpec struct {
	Name      string `pkl:"name"`
	Versioned bool   `pkl:"versioned"`
}

// Evaluator evaluates manifest files relative to a project directory.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{projectDir: projectDir}
}

// Load evaluates the manifest entry point and returns the declaration.
func (e *Evaluator) Load(ctx context.Context, entryPoint string, properties map[string]string) (*Manifest, error) {
	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewProjectEvaluator(ctx, e.projectDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var m Manifest
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(entryPoint), &m); err != nil {
		return nil, fmt.Errorf("failed to evaluate manifest: %w", err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest must declare a backend name")
	}
	return &m, nil
}

// Assemble turns the declaration into a backend with one factory per
// declared resource group. Trigger references are resolved to the function
// factory instances declared in the same manifest, so shared functions keep
// a single identity.
func Assemble(m *Manifest, opts ...backend.Option) (*backend.Backend, error) {
	if m.Description != "" {
		opts = append(opts, backend.WithDescription(m.Description))
	}
	b := backend.New(m.Name, opts...)

	functions := make(map[string]*function.Factory, len(m.Functions))
	for _, spec := range m.Functions {
		if spec.Name == "" {
			return nil, fmt.Errorf("manifest: function name must not be empty")
		}
		if _, dup := functions[spec.Name]; dup {
			return nil, fmt.Errorf("manifest: function %q is declared twice", spec.Name)
		}
		fac := function.New(function.Props{
			Name:           spec.Name,
			Entry:          spec.Entry,
			TimeoutSeconds: spec.TimeoutSeconds,
			MemoryMB:       spec.MemoryMB,
			Runtime:        function.Runtime(spec.Runtime),
			Environment:    spec.Environment,
			Secrets:        spec.Secrets,
			Shims:          spec.Shims,
		})
		functions[spec.Name] = fac
		if err := b.Add("function:"+spec.Name, fac); err != nil {
			return nil, err
		}
	}

	var authFactory *auth.Factory
	if m.Auth != nil {
		triggers := make(map[string]*function.Factory, len(m.Auth.Triggers))
		for trigger, fnName := range m.Auth.Triggers {
			fac, ok := functions[fnName]
			if !ok {
				return nil, fmt.Errorf("manifest: auth trigger %q references unknown function %q", trigger, fnName)
			}
			triggers[trigger] = fac
		}
		authFactory = auth.New(auth.Props{
			SelfSignUpEnabled:      m.Auth.SelfSignUpEnabled,
			PasswordMinLength:      m.Auth.PasswordMinLength,
			MfaConfiguration:       m.Auth.MfaConfiguration,
			AutoVerifiedAttributes: m.Auth.AutoVerifiedAttributes,
			Triggers:               triggers,
		})
		if err := b.Add("auth", authFactory); err != nil {
			return nil, err
		}
	}

	if m.Data != nil {
		models := make([]data.Model, 0, len(m.Data.Models))
		for _, spec := range m.Data.Models {
			if spec.PartitionKey == nil {
				return nil, fmt.Errorf("manifest: model %q must declare a partition key", spec.Name)
			}
			model := data.Model{
				Name:         spec.Name,
				PartitionKey: data.KeyAttribute{Name: spec.PartitionKey.Name, Type: spec.PartitionKey.Type},
			}
			if spec.SortKey != nil {
				model.SortKey = &data.KeyAttribute{Name: spec.SortKey.Name, Type: spec.SortKey.Type}
			}
			models = append(models, model)
		}
		mode := data.AuthorizationMode(m.Data.AuthorizationMode)
		if mode == data.AuthUserPool && authFactory == nil {
			return nil, fmt.Errorf("manifest: data requires an auth block for %s authorization", data.AuthUserPool)
		}
		if err := b.Add("data", data.New(data.Props{
			Schema:            m.Data.Schema,
			SchemaFile:        m.Data.SchemaFile,
			Models:            models,
			AuthorizationMode: mode,
			Auth:              authFactory,
		})); err != nil {
			return nil, err
		}
	}

	for _, spec := range m.Storage {
		name := spec.Name
		if name == "" {
			name = "storage"
		}
		if err := b.Add("storage:"+name, storage.New(storage.Props{
			Name:      spec.Name,
			Versioned: spec.Versioned,
		})); err != nil {
			return nil, err
		}
	}

	return b, nil
}
