// Package clientconfig reconstructs per-group output payloads from deployed
// stack outputs and renders them as the client configuration document
// frontend tooling consumes.
package clientconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/outputs"
)

// Group is one reconstructed output group: its entry version and its payload
// with keys in the order the generator originally set them.
type Group struct {
	Name    string
	Version string
	Payload *ir.OutputPayload
}

// Document is the full client configuration: one group per output-group
// name, ordered by name for reproducible rendering.
type Document struct {
	Groups []Group
}

// Build reconstructs the document from a deployed stack's resolved outputs
// and its output-group metadata records. Every stackOutputs key must be
// present in the resolved outputs; a gap means the stack and its metadata
// come from different synthesis passes.
func Build(stackOutputs map[string]string, records map[string]outputs.MetadataRecord) (*Document, error) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := &Document{Groups: make([]Group, 0, len(names))}
	for _, name := range names {
		record := records[name]
		payload := ir.NewOutputPayload()
		for _, key := range record.StackOutputs {
			value, ok := stackOutputs[key]
			if !ok {
				return nil, fmt.Errorf("group %q references output %q which the stack did not resolve", name, key)
			}
			payload.Set(key, value)
		}
		doc.Groups = append(doc.Groups, Group{Name: name, Version: record.Version, Payload: payload})
	}
	return doc, nil
}

// RenderJSON serializes the document with groups and payload keys in stable
// order.
func (d *Document) RenderJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, group := range d.Groups {
		if i > 0 {
			buf.WriteString(",\n")
		}
		name, err := json.Marshal(group.Name)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(group.Payload)
		if err != nil {
			return nil, err
		}
		version, err := json.Marshal(group.Version)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "  %s: {\"version\": %s, \"payload\": %s}", name, version, payload)
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}
