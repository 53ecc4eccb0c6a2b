package ir

import (
	"bytes"
	"encoding/json"
)

// BackendOutputEntry is a named, versioned bundle of output values destined
// for the deploy target's outputs and metadata sections.
type BackendOutputEntry struct {
	Version string
	Payload *OutputPayload
}

// OutputPayload is an insertion-ordered set of output key/value pairs. The
// order keys were first set in is the order they appear in the metadata
// record's stackOutputs list, which downstream consumers rely on when
// reconstructing composite payloads.
type OutputPayload struct {
	keys   []string
	values map[string]any
}

// NewOutputPayload creates an empty payload.
func NewOutputPayload() *OutputPayload {
	return &OutputPayload{values: make(map[string]any)}
}

// Set adds or replaces a key. Replacing keeps the key's original position.
// Returns the payload for chaining.
func (p *OutputPayload) Set(key string, value any) *OutputPayload {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value for a key.
func (p *OutputPayload) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *OutputPayload) Keys() []string {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Len returns the number of keys.
func (p *OutputPayload) Len() int {
	return len(p.keys)
}

// MarshalJSON emits the payload as a JSON object with keys in insertion
// order.
func (p *OutputPayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
