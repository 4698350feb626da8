package graph

import "github.com/google/uuid"

// NodeDelta is one atomic change to a single node. It is a closed union:
// the reducer matches exhaustively so a new variant cannot fall through
// silently.
type NodeDelta interface {
	isNodeDelta()
}

// Upsert inserts or replaces a node. Prev is the pre-image (nil on
// creation); it drives both reversal and incremental index maintenance.
type Upsert struct {
	Node Node
	Prev *Node
}

// Delete removes a node. Deleted is the pre-image needed for reversal.
type Delete struct {
	ID      string
	Deleted *Node
}

func (Upsert) isNodeDelta() {}
func (Delete) isNodeDelta() {}

// Delta is an ordered batch of node changes describing one state
// transition. The ID correlates log lines and collaborator notifications.
type Delta struct {
	ID      string
	Changes []NodeDelta
}

func NewDelta(changes ...NodeDelta) Delta {
	return Delta{ID: uuid.NewString(), Changes: changes}
}

func (d Delta) Empty() bool {
	return len(d.Changes) == 0
}

// Reverse computes the inverse delta: applying d then Reverse(d) restores
// the original graph, provided every change carries its pre-image. Changes
// are reversed in opposite order. A Delete without a pre-image cannot be
// reversed and contributes nothing.
func Reverse(d Delta) Delta {
	changes := make([]NodeDelta, 0, len(d.Changes))
	for i := len(d.Changes) - 1; i >= 0; i-- {
		switch c := d.Changes[i].(type) {
		case Upsert:
			if c.Prev != nil {
				changes = append(changes, Upsert{Node: *c.Prev.Clone(), Prev: c.Node.Clone()})
			} else {
				changes = append(changes, Delete{ID: c.Node.ID, Deleted: c.Node.Clone()})
			}
		case Delete:
			if c.Deleted != nil {
				changes = append(changes, Upsert{Node: *c.Deleted.Clone()})
			}
		default:
			panic("graph: unhandled node delta variant")
		}
	}
	return NewDelta(changes...)
}
