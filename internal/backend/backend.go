// Package backend assembles a declared set of resource factories into a
// finished deploy target. It walks the factories through the construct
// container, validates the resulting template, and exposes the materialized
// resource providers to downstream consumers.
package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/backplane-io/backplane/internal/container"
	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/logging"
	"github.com/backplane-io/backplane/internal/outputs"
	"github.com/backplane-io/backplane/internal/secrets"
)

// Option configures a Backend at construction time.
type Option func(*Backend)

// WithSecretResolver overrides the default deferred-reference resolver.
func WithSecretResolver(r secrets.Resolver) Option {
	return func(b *Backend) { b.resolver = r }
}

// WithDescription sets the deploy target description.
func WithDescription(d string) Option {
	return func(b *Backend) { b.description = d }
}

// Backend is the top-level orchestrator of one synthesis pass. Factories are
// declared with Add, materialized by Synthesize, and discarded with the
// backend once the deploy target is finalized.
type Backend struct {
	name        string
	description string
	resolver    secrets.Resolver

	factories map[string]container.Generator
	container *container.ConstructContainer
	template  *ir.Template
	providers map[string]any

	synthesized bool
}

// New creates a backend named after the application being defined.
func New(name string, opts ...Option) *Backend {
	b := &Backend{
		name:      name,
		resolver:  secrets.Deferred{},
		factories: make(map[string]container.Generator),
		providers: make(map[string]any),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.description == "" {
		b.description = fmt.Sprintf("Backplane backend for %s", name)
	}
	b.template = ir.NewTemplate(b.description)
	b.container = container.NewConstructContainer(b.template, b.resolver)
	return b
}

// Add declares a factory under a name. Names are unique within a backend and
// determine the deterministic walk order during synthesis.
func (b *Backend) Add(name string, g container.Generator) error {
	if b.synthesized {
		return fmt.Errorf("backend %q is already synthesized; declare factories before synthesis", b.name)
	}
	if name == "" {
		return fmt.Errorf("factory name must not be empty")
	}
	if g == nil {
		return fmt.Errorf("factory %q must not be nil", name)
	}
	if _, exists := b.factories[name]; exists {
		return fmt.Errorf("factory %q is already declared", name)
	}
	b.factories[name] = g
	return nil
}

// Synthesize resolves every declared factory through the container, then
// validates the finished deploy target. The pass is fail-fast: the first
// error aborts synthesis and no outputs are committed for consumption.
// Calling Synthesize again returns the already-finished template.
func (b *Backend) Synthesize(ctx context.Context) (*ir.Template, error) {
	if b.synthesized {
		return b.template, nil
	}

	names := make([]string, 0, len(b.factories))
	for name := range b.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	logging.Info("synthesizing backend", "name", b.name, "factories", len(names), "lineage", b.template.Lineage)

	for _, name := range names {
		entry, err := b.container.GetOrCompute(ctx, b.factories[name])
		if err != nil {
			return nil, fmt.Errorf("synthesis of %q failed: %w", name, err)
		}
		b.providers[name] = entry
	}

	if _, err := buildDAG(b.template); err != nil {
		return nil, fmt.Errorf("synthesis of backend %q failed: %w", b.name, err)
	}

	if err := outputs.ValidateTemplate(b.template); err != nil {
		return nil, fmt.Errorf("synthesis of backend %q failed: %w", b.name, err)
	}

	b.synthesized = true
	logging.Info("synthesis complete", "name", b.name, "resources", len(b.template.Resources), "outputs", len(b.template.Outputs))
	return b.template, nil
}

// Resource returns the materialized resource provider declared under name.
// Only available after a successful synthesis.
func (b *Backend) Resource(name string) (any, bool) {
	p, ok := b.providers[name]
	if !ok || !b.synthesized {
		return nil, false
	}
	return p, true
}

// Template returns the deploy target. Before synthesis it is the in-progress
// template; downstream consumers must only read it after Synthesize returns.
func (b *Backend) Template() *ir.Template {
	return b.template
}

// Scope returns the synthesis scope, for e2e harnesses that drive
// generators directly.
func (b *Backend) Scope() *container.Scope {
	return b.container.Scope()
}
