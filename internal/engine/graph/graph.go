package graph

import (
	"sort"
)

// Graph holds every known node plus two derived indices: the reverse
// adjacency (incoming) index and the unresolved-link index. Both are
// maintained incrementally by Apply; a full rebuild never happens during
// normal operation. The graph is owned exclusively by the engine: all
// reads hand out copies, all mutation goes through Apply.
type Graph struct {
	nodes map[string]*Node

	// incoming maps a target id to the ids of nodes whose outgoing edges
	// currently point at it. Entries with empty lists are dropped.
	incoming map[string][]string

	// unresolved maps raw link text to the ids of source nodes whose link
	// could not be resolved yet.
	unresolved map[string]map[string]bool
}

func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		incoming:   make(map[string][]string),
		unresolved: make(map[string]map[string]bool),
	}
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.Edges)
	}
	return total
}

func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Get returns a copy of the node, never a reference into the graph.
func (g *Graph) Get(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// IDs returns every node id in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Incoming returns the ids of nodes currently pointing at target.
func (g *Graph) Incoming(target string) []string {
	return append([]string(nil), g.incoming[target]...)
}

// UnresolvedTexts returns every pending link text in sorted order.
func (g *Graph) UnresolvedTexts() []string {
	texts := make([]string, 0, len(g.unresolved))
	for t := range g.unresolved {
		texts = append(texts, t)
	}
	sort.Strings(texts)
	return texts
}

// UnresolvedSources returns the ids of nodes whose link with the given
// text is pending, in sorted order.
func (g *Graph) UnresolvedSources(text string) []string {
	set, ok := g.unresolved[text]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) UnresolvedCount() int {
	return len(g.unresolved)
}

// Apply folds a delta into the graph. It is total and deterministic:
// an Upsert for an unknown id is a creation, a Delete for a missing id is
// a no-op. Indices are adjusted from the diff between the stored node and
// the incoming one, never rebuilt wholesale.
func (g *Graph) Apply(d Delta) {
	for _, change := range d.Changes {
		switch c := change.(type) {
		case Upsert:
			g.applyUpsert(c)
		case Delete:
			g.applyDelete(c)
		default:
			panic("graph: unhandled node delta variant")
		}
	}
}

func (g *Graph) applyUpsert(c Upsert) {
	id := c.Node.ID
	old := g.nodes[id]

	oldTargets := edgeTargetSet(old)
	newTargets := edgeTargetSet(&c.Node)
	for t := range oldTargets {
		if !newTargets[t] {
			g.removeIncoming(t, id)
		}
	}
	for t := range newTargets {
		if !oldTargets[t] {
			g.addIncoming(t, id)
		}
	}

	oldTexts := linkTextSet(old)
	newTexts := linkTextSet(&c.Node)
	for t := range oldTexts {
		if !newTexts[t] {
			g.removeUnresolved(t, id)
		}
	}
	for t := range newTexts {
		if !oldTexts[t] {
			g.addUnresolved(t, id)
		}
	}

	g.nodes[id] = c.Node.Clone()

	// A brand-new id may be the target of dangling edges left behind by an
	// earlier delete; pick those sources back up so I1 holds again.
	if old == nil {
		g.rebuildIncomingFor(id)
	}
}

func (g *Graph) applyDelete(c Delete) {
	old, ok := g.nodes[c.ID]
	if !ok {
		return
	}
	for t := range edgeTargetSet(old) {
		g.removeIncoming(t, c.ID)
	}
	for t := range linkTextSet(old) {
		g.removeUnresolved(t, c.ID)
	}
	// Surviving nodes keep their (now dangling) edges to this id; only the
	// id's own incoming entry is dropped.
	delete(g.incoming, c.ID)
	delete(g.nodes, c.ID)
}

func (g *Graph) addIncoming(target, source string) {
	for _, s := range g.incoming[target] {
		if s == source {
			return
		}
	}
	g.incoming[target] = append(g.incoming[target], source)
}

func (g *Graph) removeIncoming(target, source string) {
	list, ok := g.incoming[target]
	if !ok {
		return
	}
	for i, s := range list {
		if s == source {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(g.incoming, target)
	} else {
		g.incoming[target] = list
	}
}

func (g *Graph) rebuildIncomingFor(target string) {
	sources := make([]string, 0)
	for _, id := range g.IDs() {
		for _, e := range g.nodes[id].Edges {
			if e.TargetID == target {
				sources = append(sources, id)
				break
			}
		}
	}
	if len(sources) == 0 {
		delete(g.incoming, target)
		return
	}
	g.incoming[target] = sources
}

func (g *Graph) addUnresolved(text, source string) {
	set, ok := g.unresolved[text]
	if !ok {
		set = make(map[string]bool)
		g.unresolved[text] = set
	}
	set[source] = true
}

func (g *Graph) removeUnresolved(text, source string) {
	set, ok := g.unresolved[text]
	if !ok {
		return
	}
	delete(set, source)
	if len(set) == 0 {
		delete(g.unresolved, text)
	}
}

// Clone returns a deep copy of the graph, indices included.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	for target, sources := range g.incoming {
		c.incoming[target] = append([]string(nil), sources...)
	}
	for text, set := range g.unresolved {
		cp := make(map[string]bool, len(set))
		for id := range set {
			cp[id] = true
		}
		c.unresolved[text] = cp
	}
	return c
}

// Equal compares nodes and resolved edges. Incoming lists are compared as
// sets since their order depends on arrival order.
func (g *Graph) Equal(o *Graph) bool {
	if len(g.nodes) != len(o.nodes) {
		return false
	}
	for id, n := range g.nodes {
		on, ok := o.nodes[id]
		if !ok || !n.Equal(on) {
			return false
		}
	}
	if len(g.incoming) != len(o.incoming) {
		return false
	}
	for target := range g.incoming {
		a := g.Incoming(target)
		b := o.Incoming(target)
		if len(a) != len(b) {
			return false
		}
		sort.Strings(a)
		sort.Strings(b)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

func edgeTargetSet(n *Node) map[string]bool {
	if n == nil {
		return nil
	}
	set := make(map[string]bool, len(n.Edges))
	for _, e := range n.Edges {
		set[e.TargetID] = true
	}
	return set
}

func linkTextSet(n *Node) map[string]bool {
	if n == nil {
		return nil
	}
	set := make(map[string]bool, len(n.Unresolved))
	for _, l := range n.Unresolved {
		set[l.Text] = true
	}
	return set
}
