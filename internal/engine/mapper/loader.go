package mapper

import (
	"sort"

	"treeline/internal/engine/graph"
	"treeline/internal/engine/layout"
)

// FileContent is one file gathered by a cold-start scan.
type FileContent struct {
	Path    string
	Content []byte
}

// Load folds a set of files into the graph one at a time, through the
// same MapEvent/Apply path used at runtime. Files are sorted first for
// reproducibility, but healing guarantees the final graph is the same for
// any permutation of the input.
func (m *Mapper) Load(g *graph.Graph, files []FileContent) []graph.Delta {
	sorted := append([]FileContent(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var deltas []graph.Delta
	for _, f := range sorted {
		d := m.MapEvent(g, Event{Path: f.Path, Kind: Added, Content: f.Content})
		if d.Empty() {
			continue
		}
		g.Apply(d)
		deltas = append(deltas, d)
	}
	return deltas
}

// AssignPositions places every node that still lacks a position after a
// cold-start load: roots fan out around the origin, children around their
// parent inside its spawn cone. The walk is deterministic (sorted roots,
// edge order for children) so the placement does not depend on load
// order. The returned delta has not been applied.
func AssignPositions(g *graph.Graph, radius float64) graph.Delta {
	positions := make(map[string]graph.Position)
	for _, id := range g.IDs() {
		n, _ := g.Get(id)
		if n.Position != nil {
			positions[id] = *n.Position
		}
	}

	parentOf := make(map[string]string)
	visited := make(map[string]bool)
	var changes []graph.NodeDelta

	placeChildren := func(queue []string) {
		for len(queue) > 0 {
			parent := queue[0]
			queue = queue[1:]
			node, ok := g.Get(parent)
			if !ok {
				continue
			}
			// Every qualifying child claims a sibling slot, including ones
			// already reached through another parent, so the nth child sits
			// in the nth quartering slot no matter how the walk got here.
			slot := 0
			counted := make(map[string]bool)
			for _, e := range node.Edges {
				child := e.TargetID
				if child == parent || !g.Has(child) || counted[child] {
					continue
				}
				counted[child] = true
				idx := slot
				slot++
				if visited[child] {
					continue
				}
				visited[child] = true
				parentOf[child] = parent

				if _, placed := positions[child]; !placed {
					parentPos := positions[parent]
					var grandparent *graph.Position
					if gp, hasGP := parentOf[parent]; hasGP {
						gpPos := positions[gp]
						grandparent = &gpPos
					}
					pos := layout.ChildPosition(parentPos, grandparent, idx, radius)
					positions[child] = pos

					prev, _ := g.Get(child)
					next := prev.Clone()
					next.Position = &pos
					changes = append(changes, graph.Upsert{Node: *next, Prev: prev})
				}
				queue = append(queue, child)
			}
		}
	}

	rootIndex := 0
	var roots []string
	for _, id := range g.IDs() {
		if len(g.Incoming(id)) == 0 {
			roots = append(roots, id)
		}
	}
	for _, root := range roots {
		visited[root] = true
		if _, placed := positions[root]; !placed {
			pos := layout.ChildPosition(graph.Position{}, nil, rootIndex, radius)
			positions[root] = pos

			prev, _ := g.Get(root)
			next := prev.Clone()
			next.Position = &pos
			changes = append(changes, graph.Upsert{Node: *next, Prev: prev})
		}
		rootIndex++
	}
	placeChildren(roots)

	// Cycle components have no root; seed them from their sorted ids.
	for _, id := range g.IDs() {
		if visited[id] {
			continue
		}
		visited[id] = true
		if _, placed := positions[id]; !placed {
			pos := layout.ChildPosition(graph.Position{}, nil, rootIndex, radius)
			positions[id] = pos

			prev, _ := g.Get(id)
			next := prev.Clone()
			next.Position = &pos
			changes = append(changes, graph.Upsert{Node: *next, Prev: prev})
		}
		rootIndex++
		placeChildren([]string{id})
	}

	return graph.NewDelta(changes...)
}
