// Package history keeps a bounded window of applied deltas for undo/redo.
// The stack stores the deltas as committed; computing and applying the
// reverse is the engine's job so undone deltas go back through the normal
// write path.
package history

import (
	"treeline/internal/engine/graph"
	"treeline/internal/shared/observability"
)

type Stack struct {
	capacity int
	undo     []graph.Delta // index 0 = most recent
	redo     []graph.Delta
}

func NewStack(capacity int) *Stack {
	if capacity <= 0 {
		capacity = 100
	}
	return &Stack{capacity: capacity}
}

// Push records a freshly committed delta. The redo stack is cleared; the
// oldest entry is dropped when the window is full.
func (s *Stack) Push(d graph.Delta) {
	s.undo = append([]graph.Delta{d}, s.undo...)
	if len(s.undo) > s.capacity {
		s.undo = s.undo[:s.capacity]
	}
	s.redo = nil
	observability.UndoDepth.Set(float64(len(s.undo)))
}

// Undo pops the most recent delta and moves it to the redo stack. The
// caller applies graph.Reverse of the returned delta.
func (s *Stack) Undo() (graph.Delta, bool) {
	if len(s.undo) == 0 {
		return graph.Delta{}, false
	}
	d := s.undo[0]
	s.undo = s.undo[1:]
	s.redo = append([]graph.Delta{d}, s.redo...)
	observability.UndoDepth.Set(float64(len(s.undo)))
	return d, true
}

// Redo moves the most recently undone delta back to the undo stack. The
// caller re-applies the returned delta as-is.
func (s *Stack) Redo() (graph.Delta, bool) {
	if len(s.redo) == 0 {
		return graph.Delta{}, false
	}
	d := s.redo[0]
	s.redo = s.redo[1:]
	s.undo = append([]graph.Delta{d}, s.undo...)
	observability.UndoDepth.Set(float64(len(s.undo)))
	return d, true
}

func (s *Stack) UndoDepth() int { return len(s.undo) }
func (s *Stack) RedoDepth() int { return len(s.redo) }
