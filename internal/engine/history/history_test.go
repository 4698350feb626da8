package history

import (
	"testing"

	"treeline/internal/engine/graph"
)

func deltaFor(id string) graph.Delta {
	return graph.NewDelta(graph.Upsert{Node: graph.Node{ID: id}})
}

func TestStack_PushUndoRedo(t *testing.T) {
	s := NewStack(10)
	s.Push(deltaFor("a"))
	s.Push(deltaFor("b"))

	d, ok := s.Undo()
	if !ok {
		t.Fatal("expected undo to succeed")
	}
	if up := d.Changes[0].(graph.Upsert); up.Node.ID != "b" {
		t.Errorf("expected most recent delta first, got %s", up.Node.ID)
	}
	if s.UndoDepth() != 1 || s.RedoDepth() != 1 {
		t.Errorf("unexpected depths: undo=%d redo=%d", s.UndoDepth(), s.RedoDepth())
	}

	d, ok = s.Redo()
	if !ok {
		t.Fatal("expected redo to succeed")
	}
	if up := d.Changes[0].(graph.Upsert); up.Node.ID != "b" {
		t.Errorf("redo returned wrong delta: %s", up.Node.ID)
	}
	if s.RedoDepth() != 0 {
		t.Errorf("expected empty redo stack, got %d", s.RedoDepth())
	}
}

func TestStack_EmptyPops(t *testing.T) {
	s := NewStack(10)
	if _, ok := s.Undo(); ok {
		t.Error("undo on empty stack should fail")
	}
	if _, ok := s.Redo(); ok {
		t.Error("redo on empty stack should fail")
	}
}

func TestStack_PushClearsRedo(t *testing.T) {
	s := NewStack(10)
	s.Push(deltaFor("a"))
	s.Undo()
	s.Push(deltaFor("b"))
	if s.RedoDepth() != 0 {
		t.Errorf("push must clear the redo stack, got depth %d", s.RedoDepth())
	}
}

func TestStack_CapacityDropsOldest(t *testing.T) {
	s := NewStack(2)
	s.Push(deltaFor("a"))
	s.Push(deltaFor("b"))
	s.Push(deltaFor("c"))
	if s.UndoDepth() != 2 {
		t.Fatalf("expected capped depth 2, got %d", s.UndoDepth())
	}
	s.Undo()
	d, _ := s.Undo()
	if up := d.Changes[0].(graph.Upsert); up.Node.ID != "b" {
		t.Errorf("oldest entry should have been dropped, got %s", up.Node.ID)
	}
	if _, ok := s.Undo(); ok {
		t.Error("stack should be exhausted")
	}
}
