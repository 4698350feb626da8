package graph

// Position is a node's canvas placement.
type Position struct {
	X float64
	Y float64
}

// Edge is a resolved outgoing link to another node. Label carries the free
// text of a leading list-item marker ("- relates_to [[x]]"); empty for bare
// links. Text keeps the raw wikilink the edge was resolved from, so the
// resolution can be revisited when a better-matching node appears later;
// it is empty for edges created directly by the engine.
type Edge struct {
	TargetID string
	Label    string
	Text     string
}

// Link is a wikilink that has not (yet) been resolved to a node id. The raw
// text is kept so the link can heal once a matching node appears.
type Link struct {
	Text  string
	Label string
}

// Field is an opaque frontmatter key/value pair preserved verbatim for
// round-tripping. Order matters.
type Field struct {
	Key   string
	Value string
}

// Node is the in-memory value for one note file. Nodes are owned by the
// Graph they live in; deltas and query results carry copies.
type Node struct {
	ID         string
	Title      string
	Body       string
	Edges      []Edge
	Unresolved []Link
	Color      string
	Position   *Position
	Extra      []Field
	IsContext  bool
	ParseError string
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Edges = append([]Edge(nil), n.Edges...)
	c.Unresolved = append([]Link(nil), n.Unresolved...)
	c.Extra = append([]Field(nil), n.Extra...)
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	return &c
}

// Equal reports whether two nodes are identical in every field, including
// edge order and passthrough frontmatter order.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.ID != o.ID || n.Title != o.Title || n.Body != o.Body ||
		n.Color != o.Color || n.IsContext != o.IsContext || n.ParseError != o.ParseError {
		return false
	}
	if (n.Position == nil) != (o.Position == nil) {
		return false
	}
	if n.Position != nil && *n.Position != *o.Position {
		return false
	}
	if len(n.Edges) != len(o.Edges) || len(n.Unresolved) != len(o.Unresolved) || len(n.Extra) != len(o.Extra) {
		return false
	}
	for i := range n.Edges {
		if n.Edges[i] != o.Edges[i] {
			return false
		}
	}
	for i := range n.Unresolved {
		if n.Unresolved[i] != o.Unresolved[i] {
			return false
		}
	}
	for i := range n.Extra {
		if n.Extra[i] != o.Extra[i] {
			return false
		}
	}
	return true
}
