package ir

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// FormatVersion is the CloudFormation template format version emitted
	// for every deploy target.
	FormatVersion = "2010-09-09"

	// MetadataOutputsKey is the template metadata key under which backend
	// output records are stored, keyed by output-group name.
	MetadataOutputsKey = "Backplane::Outputs"

	// MetadataSynthesisKey is the template metadata key holding synthesis
	// lineage information.
	MetadataSynthesisKey = "Backplane::Synthesis"
)

// Resource is a single resource in the deploy target.
type Resource struct {
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty"`
	Metadata   map[string]any `json:"Metadata,omitempty"`
}

// Template is the deploy target: the CloudFormation template produced by one
// backend synthesis pass. All mutation happens through the Add/Set methods so
// logical ID and output key collisions are caught at registration time.
type Template struct {
	Description string
	Lineage     string
	Resources   map[string]*Resource
	Outputs     map[string]any
	Metadata    map[string]any
}

// NewTemplate creates an empty deploy target with a fresh synthesis lineage.
func NewTemplate(description string) *Template {
	return &Template{
		Description: description,
		Lineage:     uuid.NewString(),
		Resources:   make(map[string]*Resource),
		Outputs:     make(map[string]any),
		Metadata:    make(map[string]any),
	}
}

// AddResource registers a resource under a logical ID. Logical IDs are unique
// across the whole template.
func (t *Template) AddResource(logicalID string, res *Resource) error {
	if logicalID == "" {
		return fmt.Errorf("resource logical ID must not be empty")
	}
	if res == nil || res.Type == "" {
		return fmt.Errorf("resource %s must declare a type", logicalID)
	}
	if _, exists := t.Resources[logicalID]; exists {
		return fmt.Errorf("resource logical ID %q is already registered", logicalID)
	}
	t.Resources[logicalID] = res
	return nil
}

// AddOutput registers an output value. Output keys are unique across the
// whole template; the value is stored as-is, composites included.
func (t *Template) AddOutput(key string, value any) error {
	if key == "" {
		return fmt.Errorf("output key must not be empty")
	}
	if _, exists := t.Outputs[key]; exists {
		return fmt.Errorf("output key %q is already registered", key)
	}
	t.Outputs[key] = value
	return nil
}

// OutputRecords returns the output-group metadata records, creating the
// section if it does not exist yet.
func (t *Template) OutputRecords() map[string]any {
	records, ok := t.Metadata[MetadataOutputsKey].(map[string]any)
	if !ok {
		records = make(map[string]any)
		t.Metadata[MetadataOutputsKey] = records
	}
	return records
}

// templateDocument is the on-disk CloudFormation layout.
type templateDocument struct {
	FormatVersion string               `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description   string               `json:"Description,omitempty" yaml:"Description,omitempty"`
	Metadata      map[string]any       `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
	Resources     map[string]*Resource `json:"Resources" yaml:"Resources"`
	Outputs       map[string]outputDoc `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

type outputDoc struct {
	Value any `json:"Value" yaml:"Value"`
}

func (t *Template) document() *templateDocument {
	doc := &templateDocument{
		FormatVersion: FormatVersion,
		Description:   t.Description,
		Metadata:      make(map[string]any, len(t.Metadata)+1),
		Resources:     t.Resources,
		Outputs:       make(map[string]outputDoc, len(t.Outputs)),
	}
	for k, v := range t.Metadata {
		doc.Metadata[k] = v
	}
	doc.Metadata[MetadataSynthesisKey] = map[string]any{"lineage": t.Lineage}
	for k, v := range t.Outputs {
		doc.Outputs[k] = outputDoc{Value: v}
	}
	return doc
}

// RenderJSON serializes the template in CloudFormation JSON layout.
func (t *Template) RenderJSON() ([]byte, error) {
	data, err := json.MarshalIndent(t.document(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderYAML serializes the template in CloudFormation YAML layout.
func (t *Template) RenderYAML() ([]byte, error) {
	data, err := yaml.Marshal(t.document())
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return data, nil
}

// ParseTemplate loads a template previously rendered with RenderJSON.
func ParseTemplate(data []byte) (*Template, error) {
	var doc templateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	t := &Template{
		Description: doc.Description,
		Resources:   doc.Resources,
		Outputs:     make(map[string]any, len(doc.Outputs)),
		Metadata:    make(map[string]any, len(doc.Metadata)),
	}
	if t.Resources == nil {
		t.Resources = make(map[string]*Resource)
	}
	for k, v := range doc.Outputs {
		t.Outputs[k] = v.Value
	}
	for k, v := range doc.Metadata {
		if k == MetadataSynthesisKey {
			if synth, ok := v.(map[string]any); ok {
				if lineage, ok := synth["lineage"].(string); ok {
					t.Lineage = lineage
				}
			}
			continue
		}
		t.Metadata[k] = v
	}
	return t, nil
}
