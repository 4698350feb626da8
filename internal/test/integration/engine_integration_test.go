package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"treeline/internal/app"
	"treeline/internal/core/config"
	"treeline/internal/engine/graph"
	"treeline/internal/engine/mapper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestVault(t *testing.T, tmpDir string) {
	write := func(rel, content string) {
		path := filepath.Join(tmpDir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("index.md", `---
color: #ff0000
---
# Index

[[projects/alpha]]
[[inbox]]
`)
	write("projects/alpha.md", `# Alpha

- blocked_by [[beta]]
`)
	write("projects/beta.md", "# Beta\n")
	write("inbox.md", "# Inbox\n\n[[missing-note]]\n")
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestVault(t, tmpDir)

	cfg := config.Default(tmpDir)
	engine, err := app.New(cfg)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.InitialScan(ctx))

	g := engine.Snapshot()
	assert.Equal(t, 4, g.NodeCount())

	// Cross-folder suffix resolution.
	index, ok := g.Get("index")
	require.True(t, ok)
	targets := make(map[string]bool)
	for _, e := range index.Edges {
		targets[e.TargetID] = true
	}
	assert.True(t, targets["projects/alpha"])
	assert.True(t, targets["inbox"])
	assert.Equal(t, "#ff0000", index.Color)

	alpha, ok := g.Get("projects/alpha")
	require.True(t, ok)
	require.Len(t, alpha.Edges, 1)
	assert.Equal(t, "projects/beta", alpha.Edges[0].TargetID)
	assert.Equal(t, "blocked_by", alpha.Edges[0].Label)

	// The dangling link stays pending.
	assert.Equal(t, []string{"inbox"}, g.UnresolvedSources("missing-note"))

	// Every node got a canvas position.
	for _, id := range g.IDs() {
		n, _ := g.Get(id)
		assert.NotNil(t, n.Position, "node %s should be placed", id)
	}
}

func TestCommitUndoEchoIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestVault(t, tmpDir)

	cfg := config.Default(tmpDir)
	engine, err := app.New(cfg)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.InitialScan(ctx))

	var updates []app.Update
	engine.SetUpdateHandler(func(u app.Update) { updates = append(updates, u) })

	// Interactive creation is persisted to disk.
	childID, err := engine.CreateChild(ctx, "index", "New Thought")
	require.NoError(t, err)
	childPath := filepath.Join(tmpDir, childID+".md")
	_, statErr := os.Stat(childPath)
	require.NoError(t, statErr, "child note should be written")
	require.NotEmpty(t, updates)
	assert.Equal(t, "commit", updates[len(updates)-1].Origin)

	// Replaying our own write as a watcher event is suppressed.
	before := len(updates)
	written, err := os.ReadFile(childPath)
	require.NoError(t, err)
	engine.HandleEvents(ctx, []mapper.Event{
		{Path: childPath, Kind: mapper.Changed, Content: written},
	})
	assert.Equal(t, before, len(updates), "echo must not notify")

	// A genuinely external edit is applied and notified.
	engine.HandleEvents(ctx, []mapper.Event{
		{Path: childPath, Kind: mapper.Changed, Content: []byte("# New Thought\n\nedited outside\n")},
	})
	require.Greater(t, len(updates), before)
	assert.Equal(t, "watcher", updates[len(updates)-1].Origin)
	node, ok := engine.Snapshot().Get(childID)
	require.True(t, ok)
	assert.Contains(t, node.Body, "edited outside")

	// Watcher changes never enter the undo window, so the most recent
	// commit is still the child creation; undoing it removes both the
	// file and the parent edge.
	require.True(t, engine.Undo(ctx))
	_, statErr = os.Stat(childPath)
	assert.True(t, os.IsNotExist(statErr), "undo should delete the created note")

	g := engine.Snapshot()
	assert.False(t, g.Has(childID))
	index, _ := g.Get("index")
	for _, e := range index.Edges {
		assert.NotEqual(t, childID, e.TargetID, "undo should drop the parent edge")
	}

	// Redo restores it.
	require.True(t, engine.Redo(ctx))
	assert.True(t, engine.Snapshot().Has(childID))
	_, statErr = os.Stat(childPath)
	assert.NoError(t, statErr)
}

func TestHealingAcrossEventsIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.Default(tmpDir)
	engine, err := app.New(cfg)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.InitialScan(ctx))

	// Source first, target missing.
	engine.HandleEvents(ctx, []mapper.Event{
		{Path: filepath.Join(tmpDir, "a.md"), Kind: mapper.Changed, Content: []byte("- relates_to [[tasks/b]]\n")},
	})
	g := engine.Snapshot()
	a, ok := g.Get("a")
	require.True(t, ok)
	assert.Empty(t, a.Edges)
	assert.Len(t, a.Unresolved, 1)

	// Target arrives; the edge heals with its label intact.
	engine.HandleEvents(ctx, []mapper.Event{
		{Path: filepath.Join(tmpDir, "tasks", "b.md"), Kind: mapper.Changed, Content: []byte("# B\n")},
	})
	g = engine.Snapshot()
	a, _ = g.Get("a")
	require.Len(t, a.Edges, 1)
	assert.Equal(t, graph.Edge{TargetID: "tasks/b", Label: "relates_to", Text: "tasks/b"}, a.Edges[0])
	assert.Empty(t, a.Unresolved)
	assert.Zero(t, g.UnresolvedCount())
}
