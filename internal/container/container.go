// Package container implements the construct container: a keyed store of
// already-materialized resource groups with get-or-create semantics, keyed by
// generator identity.
package container

import (
	"context"
	"fmt"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/logging"
	"github.com/backplane-io/backplane/internal/outputs"
	"github.com/backplane-io/backplane/internal/secrets"
)

// Generator materializes exactly one resource group when asked. Generators
// are compared by object identity, never by configuration contents: two
// factories with identical configuration still produce two distinct resource
// groups. Implementations must use pointer receivers so identity is stable.
//
// The container caches only successful results. A generator whose
// GenerateContainerEntry fails may be invoked again on a later call, so
// generators must be safe to retry.
type Generator interface {
	// ResourceGroupName tags the generator for diagnostics and for logical
	// ID prefixes in the deploy target.
	ResourceGroupName() string

	// GenerateContainerEntry materializes the generator's resources into the
	// scope's deploy target and returns the group's resource record. The
	// context is passed through to secret resolution and any other awaited
	// collaborator.
	GenerateContainerEntry(ctx context.Context, scope *Scope) (any, error)
}

// Scope is everything a generator sees during synthesis: the deploy target,
// the output storage strategy (the sole writer of outputs and metadata), the
// secret resolver, and the container itself so generators can resolve the
// factories they depend on.
type Scope struct {
	Template  *ir.Template
	Outputs   *outputs.StorageStrategy
	Secrets   secrets.Resolver
	Container *ConstructContainer
}

// ConstructContainer maps generator identity to the materialized resource
// group. Materialization is at-most-once per generator instance per
// synthesis: a generator never requested is never created.
//
// Synthesis is single-threaded; the container does no locking.
type ConstructContainer struct {
	scope   *Scope
	entries map[Generator]any
}

// NewConstructContainer creates a container scoped to one synthesis pass.
func NewConstructContainer(tpl *ir.Template, resolver secrets.Resolver) *ConstructContainer {
	c := &ConstructContainer{entries: make(map[Generator]any)}
	c.scope = &Scope{
		Template:  tpl,
		Outputs:   outputs.NewStorageStrategy(tpl),
		Secrets:   resolver,
		Container: c,
	}
	return c
}

// Scope returns the synthesis scope shared by all generators.
func (c *ConstructContainer) Scope() *Scope {
	return c.scope
}

// GetOrCompute returns the materialized entry for a generator, invoking
// GenerateContainerEntry exactly once on first request. Repeated calls with
// the same generator instance return the stored entry without re-invoking
// the generator. A failed generation leaves no cache entry.
func (c *ConstructContainer) GetOrCompute(ctx context.Context, g Generator) (any, error) {
	if g == nil {
		return nil, fmt.Errorf("generator must not be nil")
	}

	if entry, ok := c.entries[g]; ok {
		return entry, nil
	}

	logging.Debug("materializing resource group", "group", g.ResourceGroupName())
	entry, err := g.GenerateContainerEntry(ctx, c.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to generate resources for group %q: %w", g.ResourceGroupName(), err)
	}

	c.entries[g] = entry
	return entry, nil
}

// Len returns the number of materialized entries. Diagnostics only.
func (c *ConstructContainer) Len() int {
	return len(c.entries)
}
