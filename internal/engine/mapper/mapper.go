// Package mapper turns raw filesystem events into graph deltas. It owns
// the path→id mapping, wikilink resolution against the current graph, and
// the order-independent healing of links whose target did not exist when
// their source was first seen.
package mapper

import (
	"treeline/internal/engine/codec"
	"treeline/internal/engine/graph"
	"treeline/internal/engine/resolver"
	"treeline/internal/shared/util"
)

type EventKind int

const (
	Added EventKind = iota
	Changed
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one observed filesystem change. Content is nil for deletions.
type Event struct {
	Path    string
	Kind    EventKind
	Content []byte
}

type Mapper struct {
	root string
}

func New(root string) *Mapper {
	return &Mapper{root: root}
}

// NodeID derives the node id for an absolute file path.
func (m *Mapper) NodeID(absPath string) string {
	return util.RelNodeID(m.root, absPath)
}

// MapEvent maps a filesystem event to a delta against the current graph.
// The delta is not applied here; the caller folds it through Graph.Apply.
// An event that changes nothing (unknown deletion, byte-identical content)
// yields an empty delta.
func (m *Mapper) MapEvent(g *graph.Graph, ev Event) graph.Delta {
	id := m.NodeID(ev.Path)

	switch ev.Kind {
	case Deleted:
		prev, ok := g.Get(id)
		if !ok {
			return graph.Delta{}
		}
		return graph.NewDelta(graph.Delete{ID: id, Deleted: prev})

	case Added, Changed:
		node := m.buildNode(g, id, ev.Content)
		prev, _ := g.Get(id)
		if prev != nil {
			// External edits that do not touch frontmatter keep the
			// in-memory canvas placement.
			if node.Position == nil {
				node.Position = prev.Position
			}
			if node.Equal(prev) {
				return graph.Delta{}
			}
		}

		changes := []graph.NodeDelta{graph.Upsert{Node: node, Prev: prev}}
		if prev == nil {
			// Only a new id can change what any link resolves to.
			changes = append(changes, m.healChanges(g, id)...)
		}
		return graph.NewDelta(changes...)

	default:
		panic("mapper: unhandled event kind")
	}
}

func (m *Mapper) buildNode(g *graph.Graph, id string, content []byte) graph.Node {
	doc := codec.Decode(content)

	candidates := g.IDs()
	if !g.Has(id) {
		candidates = append(candidates, id)
	}

	node := graph.Node{
		ID:         id,
		Title:      doc.Title,
		Body:       doc.Body,
		Color:      doc.Color,
		Position:   doc.Position,
		Extra:      doc.Extra,
		IsContext:  doc.IsContext,
		ParseError: doc.ParseError,
	}

	seen := make(map[graph.Edge]bool)
	for _, link := range doc.Links {
		target, ok := resolver.Resolve(link.Text, candidates)
		if !ok {
			node.Unresolved = append(node.Unresolved, link)
			continue
		}
		edge := graph.Edge{TargetID: target, Label: link.Label, Text: link.Text}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		node.Edges = append(node.Edges, edge)
	}

	return node
}

// healChanges re-resolves every other node's links against the candidate
// set including the node being created, and emits one coalesced upsert
// per source that changes: pending links whose text now matches become
// edges, and resolved edges whose text now picks a different winner are
// re-pointed. Re-resolving against the full candidate set is what makes
// the final graph independent of the order files were processed in.
func (m *Mapper) healChanges(g *graph.Graph, newID string) []graph.NodeDelta {
	candidates := g.IDs()
	if !g.Has(newID) {
		candidates = append(candidates, newID)
	}

	var changes []graph.NodeDelta
	for _, source := range g.IDs() {
		if source == newID {
			// The primary upsert already resolved its own links.
			continue
		}
		prev, _ := g.Get(source)
		next := prev.Clone()
		if !rehealNode(next, candidates) {
			continue
		}
		changes = append(changes, graph.Upsert{Node: *next, Prev: prev})
	}
	return changes
}

// rehealNode recomputes every link on the node against candidates.
// Reports whether the node changed.
func rehealNode(n *graph.Node, candidates []string) bool {
	changed := false

	for i := range n.Edges {
		if n.Edges[i].Text == "" {
			continue
		}
		target, ok := resolver.Resolve(n.Edges[i].Text, candidates)
		if ok && target != n.Edges[i].TargetID {
			n.Edges[i].TargetID = target
			changed = true
		}
	}

	remaining := n.Unresolved[:0]
	for _, link := range n.Unresolved {
		target, ok := resolver.Resolve(link.Text, candidates)
		if !ok {
			remaining = append(remaining, link)
			continue
		}
		edge := graph.Edge{TargetID: target, Label: link.Label, Text: link.Text}
		exists := false
		for _, e := range n.Edges {
			if e == edge {
				exists = true
				break
			}
		}
		if !exists {
			n.Edges = append(n.Edges, edge)
		}
		changed = true
	}
	n.Unresolved = remaining
	if len(n.Unresolved) == 0 {
		n.Unresolved = nil
	}

	return changed
}
