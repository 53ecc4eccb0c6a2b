package container

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/secrets"
)

// countingGenerator records how many times it was invoked and can be told to
// fail a number of times before succeeding.
type countingGenerator struct {
	name      string
	calls     int
	failFirst int
	result    any
}

func (g *countingGenerator) ResourceGroupName() string { return g.name }

func (g *countingGenerator) GenerateContainerEntry(_ context.Context, _ *Scope) (any, error) {
	g.calls++
	if g.calls <= g.failFirst {
		return nil, fmt.Errorf("simulated failure %d", g.calls)
	}
	if g.result != nil {
		return g.result, nil
	}
	return fmt.Sprintf("%s-entry-%d", g.name, g.calls), nil
}

func newTestContainer() *ConstructContainer {
	return NewConstructContainer(ir.NewTemplate("test"), secrets.Deferred{})
}

func TestGetOrCompute_InvokesExactlyOnce(t *testing.T) {
	c := newTestContainer()
	gen := &countingGenerator{name: "auth"}

	first, err := c.GetOrCompute(context.Background(), gen)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), gen)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCompute_DistinctInstancesDistinctEntries(t *testing.T) {
	c := newTestContainer()
	// Identical configuration, different identity.
	a := &countingGenerator{name: "function", result: "a"}
	b := &countingGenerator{name: "function", result: "b"}

	entryA, err := c.GetOrCompute(context.Background(), a)
	require.NoError(t, err)
	entryB, err := c.GetOrCompute(context.Background(), b)
	require.NoError(t, err)

	assert.NotEqual(t, entryA, entryB)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestGetOrCompute_FailureIsNotCached(t *testing.T) {
	c := newTestContainer()
	gen := &countingGenerator{name: "data", failFirst: 1}

	_, err := c.GetOrCompute(context.Background(), gen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to generate resources for group "data"`)
	assert.Equal(t, 0, c.Len())

	// The failed generator may be retried, and a later success is cached.
	entry, err := c.GetOrCompute(context.Background(), gen)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 1, c.Len())

	again, err := c.GetOrCompute(context.Background(), gen)
	require.NoError(t, err)
	assert.Equal(t, entry, again)
	assert.Equal(t, 2, gen.calls)
}

func TestGetOrCompute_NilGenerator(t *testing.T) {
	c := newTestContainer()
	_, err := c.GetOrCompute(context.Background(), nil)
	assert.Error(t, err)
}

func TestGetOrCompute_LazyNeverRequestedNeverCreated(t *testing.T) {
	c := newTestContainer()
	requested := &countingGenerator{name: "storage"}
	ignored := &countingGenerator{name: "auth"}

	_, err := c.GetOrCompute(context.Background(), requested)
	require.NoError(t, err)

	assert.Equal(t, 0, ignored.calls)
	assert.Equal(t, 1, c.Len())
}

// crossGenerator resolves another generator through the scope's container.
type crossGenerator struct {
	dep Generator
}

func (g *crossGenerator) ResourceGroupName() string { return "cross" }

func (g *crossGenerator) GenerateContainerEntry(ctx context.Context, scope *Scope) (any, error) {
	return scope.Container.GetOrCompute(ctx, g.dep)
}

func TestGetOrCompute_CrossGeneratorSharesInstance(t *testing.T) {
	c := newTestContainer()
	shared := &countingGenerator{name: "function"}
	consumerA := &crossGenerator{dep: shared}
	consumerB := &crossGenerator{dep: shared}

	entryA, err := c.GetOrCompute(context.Background(), consumerA)
	require.NoError(t, err)
	entryB, err := c.GetOrCompute(context.Background(), consumerB)
	require.NoError(t, err)

	assert.Equal(t, 1, shared.calls)
	assert.Equal(t, entryA, entryB)
}
