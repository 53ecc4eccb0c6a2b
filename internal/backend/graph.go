package backend

import (
	"fmt"
	"sort"

	"github.com/backplane-io/backplane/internal/ir"
)

// dag is a dependency graph over the deploy target's resources, built from
// explicit DependsOn declarations and implicit intrinsic references
// (Ref / Fn::GetAtt) inside resource properties.
type dag struct {
	nodes map[string]*dagNode
	order []string // topological order
}

type dagNode struct {
	logicalID string
	edges     []string // resources this node depends on
	revEdges  []string // resources that depend on this node
}

// buildDAG constructs the resource dependency graph for a template and
// topologically sorts it. A cycle is a synthesis error.
func buildDAG(tpl *ir.Template) (*dag, error) {
	d := &dag{nodes: make(map[string]*dagNode)}

	for id := range tpl.Resources {
		d.nodes[id] = &dagNode{logicalID: id}
	}

	ids := make([]string, 0, len(tpl.Resources))
	for id := range tpl.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := tpl.Resources[id]
		node := d.nodes[id]

		for _, dep := range res.DependsOn {
			if _, ok := d.nodes[dep]; !ok {
				return nil, fmt.Errorf("resource %q depends on %q which is not part of this synthesis", id, dep)
			}
			node.edges = append(node.edges, dep)
		}

		for _, dep := range extractIntrinsicRefs(res.Properties) {
			if _, ok := d.nodes[dep]; ok && dep != id {
				node.edges = append(node.edges, dep)
			}
		}
	}

	for id, node := range d.nodes {
		for _, dep := range node.edges {
			d.nodes[dep].revEdges = append(d.nodes[dep].revEdges, id)
		}
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order

	return d, nil
}

// topoSort performs Kahn's algorithm over the resource nodes.
func (d *dag) topoSort() ([]string, error) {
	inDegree := make(map[string]int)
	for id := range d.nodes {
		inDegree[id] = len(d.nodes[id].edges)
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var sorted []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		for _, dependent := range d.nodes[node].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}

	return sorted, nil
}

// extractIntrinsicRefs walks a property value and collects the logical IDs
// referenced by intrinsics anywhere inside it.
func extractIntrinsicRefs(v any) []string {
	var refs []string
	if targets := ir.IntrinsicTargets(v); targets != nil {
		return targets
	}
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			refs = append(refs, extractIntrinsicRefs(val[k])...)
		}
	case []any:
		for _, item := range val {
			refs = append(refs, extractIntrinsicRefs(item)...)
		}
	}
	return refs
}
