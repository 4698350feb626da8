// Package app wires the vault, watcher, mapper and graph into the
// running synchronization engine. All graph mutations funnel through one
// mutex-guarded reducer; self-writes are announced to the echo ledger
// before they hit disk so the watcher can drop their events.
package app

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"treeline/internal/core/config"
	"treeline/internal/core/errors"
	"treeline/internal/core/vault"
	"treeline/internal/core/watcher"
	"treeline/internal/engine/codec"
	"treeline/internal/engine/graph"
	"treeline/internal/engine/history"
	"treeline/internal/engine/layout"
	"treeline/internal/engine/ledger"
	"treeline/internal/engine/mapper"
	"treeline/internal/shared/observability"
	"treeline/internal/shared/util"
)

// Update notifies a collaborator that the graph changed.
type Update struct {
	DeltaID   string
	Origin    string
	NodeCount int
	EdgeCount int
}

type Engine struct {
	cfg     *config.Config
	vault   *vault.Vault
	mapper  *mapper.Mapper
	ledger  *ledger.Ledger
	history *history.Stack
	limiter *util.Limiter
	watcher *watcher.Watcher

	mu       sync.Mutex
	graph    *graph.Graph
	onUpdate func(Update)

	posMu      sync.Mutex
	posPending map[string]bool
	posTimer   *time.Timer
}

func New(cfg *config.Config) (*Engine, error) {
	v, err := vault.New(cfg.Vault.Root, cfg.Vault.Extension, cfg.Exclude.Dirs, cfg.Exclude.Files)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		vault:      v,
		mapper:     mapper.New(v.Root()),
		ledger:     ledger.New(cfg.Ledger.MaxEntries, cfg.Ledger.MaxAge),
		history:    history.NewStack(cfg.History.Capacity),
		limiter:    util.NewLimiter(cfg.Intake.Rate, cfg.Intake.Burst),
		graph:      graph.NewGraph(),
		posPending: make(map[string]bool),
	}, nil
}

// SetUpdateHandler registers the callback invoked after every applied
// delta. Must be called before Start.
func (e *Engine) SetUpdateHandler(fn func(Update)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// InitialScan builds the graph from the vault contents. Positions for
// nodes that lack one are assigned in memory only; they reach disk the
// next time the node itself is committed or moved.
func (e *Engine) InitialScan(ctx context.Context) error {
	_, span := observability.Tracer.Start(ctx, "engine.initial_scan")
	defer span.End()

	paths, err := e.vault.Scan()
	if err != nil {
		return err
	}

	files := make([]mapper.FileContent, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable note", "path", path, "error", err)
			continue
		}
		files = append(files, mapper.FileContent{Path: path, Content: data})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	deltas := e.mapper.Load(e.graph, files)
	for range deltas {
		observability.DeltasAppliedTotal.WithLabelValues("scan").Inc()
	}

	if d := mapper.AssignPositions(e.graph, e.cfg.Layout.Radius); !d.Empty() {
		e.graph.Apply(d)
	}

	e.updateMetricsLocked()
	slog.Info("initial scan complete",
		"notes", len(files),
		"nodes", e.graph.NodeCount(),
		"edges", e.graph.EdgeCount(),
		"unresolved", e.graph.UnresolvedCount())
	return nil
}

// Start begins watching the vault for external changes.
func (e *Engine) Start() error {
	w, err := watcher.New(e.cfg.Watch.Debounce, e.cfg.Vault.Extension,
		e.cfg.Exclude.Dirs, e.cfg.Exclude.Files, e.handleChangedPaths)
	if err != nil {
		return err
	}
	e.watcher = w
	return w.Watch(e.vault.Root())
}

func (e *Engine) Close() error {
	e.posMu.Lock()
	if e.posTimer != nil {
		e.posTimer.Stop()
	}
	e.posMu.Unlock()
	e.flushPositions()

	if e.watcher != nil {
		return e.watcher.Close()
	}
	return nil
}

// Commit applies an interactive delta, records it for undo and persists
// every touched note. On a write failure the in-memory state is kept and
// the error surfaces with code WRITE_FAILED; disk catches up on the next
// successful write of the same note.
func (e *Engine) Commit(ctx context.Context, d graph.Delta) error {
	_, span := observability.Tracer.Start(ctx, "engine.commit")
	defer span.End()

	if d.Empty() {
		return nil
	}
	start := time.Now()
	defer func() { observability.CommitDuration.Observe(time.Since(start).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph.Apply(d)
	e.history.Push(d)
	observability.DeltasAppliedTotal.WithLabelValues("commit").Inc()

	err := e.persistLocked(d)
	e.updateMetricsLocked()
	e.notifyLocked(d, "commit")
	return err
}

// Undo reverses the most recent commit. The reversal goes through the
// same ledgered write path as a commit but is not re-pushed onto the
// undo stack. Returns false when there is nothing to undo.
func (e *Engine) Undo(ctx context.Context) bool {
	_, span := observability.Tracer.Start(ctx, "engine.undo")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.history.Undo()
	if !ok {
		return false
	}
	rev := graph.Reverse(d)
	e.graph.Apply(rev)
	observability.DeltasAppliedTotal.WithLabelValues("undo").Inc()

	if err := e.persistLocked(rev); err != nil {
		slog.Warn("undo persisted partially", "delta", rev.ID, "error", err)
	}
	e.updateMetricsLocked()
	e.notifyLocked(rev, "undo")
	return true
}

// Redo re-applies the most recently undone commit.
func (e *Engine) Redo(ctx context.Context) bool {
	_, span := observability.Tracer.Start(ctx, "engine.redo")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.graph.Apply(d)
	observability.DeltasAppliedTotal.WithLabelValues("redo").Inc()

	if err := e.persistLocked(d); err != nil {
		slog.Warn("redo persisted partially", "delta", d.ID, "error", err)
	}
	e.updateMetricsLocked()
	e.notifyLocked(d, "redo")
	return true
}

// HandleEvents folds a batch of filesystem events into the graph. Echoes
// of our own writes are consumed by the ledger and dropped without a
// notification.
func (e *Engine) HandleEvents(ctx context.Context, events []mapper.Event) {
	ctx, span := observability.Tracer.Start(ctx, "engine.handle_events")
	defer span.End()

	if err := e.limiter.Wait(ctx, min(len(events), e.cfg.Intake.Burst)); err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range events {
		if e.ledger.Match(ev.Path, ev.Content) {
			observability.SuppressedEchoesTotal.Inc()
			slog.Debug("suppressed echo", "path", ev.Path, "kind", ev.Kind.String())
			continue
		}

		d := e.mapper.MapEvent(e.graph, ev)
		if d.Empty() {
			continue
		}
		e.graph.Apply(d)
		observability.DeltasAppliedTotal.WithLabelValues("watcher").Inc()
		slog.Debug("external change applied",
			"path", ev.Path, "kind", ev.Kind.String(), "delta", d.ID, "changes", len(d.Changes))
		e.notifyLocked(d, "watcher")
	}
	e.updateMetricsLocked()
}

// Snapshot returns a deep copy of the current graph.
func (e *Engine) Snapshot() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// ProposeChildPosition computes where the next child of parentID would
// be placed, without creating anything.
func (e *Engine) ProposeChildPosition(parentID string) (graph.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.childPositionLocked(parentID)
}

func (e *Engine) childPositionLocked(parentID string) (graph.Position, error) {
	parent, ok := e.graph.Get(parentID)
	if !ok {
		return graph.Position{}, errors.AddContext(
			errors.New(errors.CodeNotFound, "parent node missing"),
			errors.CtxNodeID, parentID)
	}

	parentPos := graph.Position{}
	if parent.Position != nil {
		parentPos = *parent.Position
	}

	var grandparent *graph.Position
	if in := e.graph.Incoming(parentID); len(in) > 0 {
		if gp, ok := e.graph.Get(in[0]); ok && gp.Position != nil {
			grandparent = gp.Position
		}
	}

	return layout.ChildPosition(parentPos, grandparent, len(parent.Edges), e.cfg.Layout.Radius), nil
}

// CreateChild creates a new note linked from parentID and returns its
// id. The child id is derived from the title; collisions get a numeric
// stem suffix.
func (e *Engine) CreateChild(ctx context.Context, parentID, title string) (string, error) {
	e.mu.Lock()
	pos, err := e.childPositionLocked(parentID)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}

	parent, _ := e.graph.Get(parentID)
	dir := ""
	if idx := strings.LastIndex(parentID, "/"); idx >= 0 {
		dir = parentID[:idx+1]
	}
	id := vault.UniqueID(dir+titleStem(title), func(candidate string) bool {
		return e.graph.Has(candidate) || e.vault.Exists(candidate)
	})

	child := graph.Node{ID: id, Position: &pos}
	if t := strings.TrimSpace(title); t != "" {
		// The heading both displays the title and survives the codec
		// round trip.
		child.Title = t
		child.Body = "# " + t
	}
	next := parent.Clone()
	next.Edges = append(next.Edges, graph.Edge{TargetID: id})

	d := graph.NewDelta(
		graph.Upsert{Node: child},
		graph.Upsert{Node: *next, Prev: parent},
	)
	e.mu.Unlock()

	if err := e.Commit(ctx, d); err != nil {
		return id, err
	}
	return id, nil
}

// DeleteNote removes a note. Edges pointing at it stay on their sources
// and heal automatically if the note comes back.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	e.mu.Lock()
	prev, ok := e.graph.Get(id)
	e.mu.Unlock()
	if !ok {
		return errors.AddContext(
			errors.New(errors.CodeNotFound, "node missing"),
			errors.CtxNodeID, id)
	}
	return e.Commit(ctx, graph.NewDelta(graph.Delete{ID: id, Deleted: prev}))
}

// SetPosition moves a node on the canvas. The move is applied to the
// graph immediately; the frontmatter write is debounced so a drag storm
// collapses into one write per node. Moves are not recorded for undo.
func (e *Engine) SetPosition(id string, pos graph.Position) error {
	e.mu.Lock()
	prev, ok := e.graph.Get(id)
	if !ok {
		e.mu.Unlock()
		return errors.AddContext(
			errors.New(errors.CodeNotFound, "node missing"),
			errors.CtxNodeID, id)
	}
	next := prev.Clone()
	next.Position = &graph.Position{X: pos.X, Y: pos.Y}
	d := graph.NewDelta(graph.Upsert{Node: *next, Prev: prev})
	e.graph.Apply(d)
	observability.DeltasAppliedTotal.WithLabelValues("position").Inc()
	e.notifyLocked(d, "position")
	e.mu.Unlock()

	e.posMu.Lock()
	defer e.posMu.Unlock()
	e.posPending[id] = true
	if e.posTimer != nil {
		e.posTimer.Stop()
	}
	e.posTimer = time.AfterFunc(e.cfg.Watch.PositionDebounce, e.flushPositions)
	return nil
}

func (e *Engine) flushPositions() {
	e.posMu.Lock()
	ids := util.SortedStringKeys(e.posPending)
	e.posPending = make(map[string]bool)
	e.posMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		node, ok := e.graph.Get(id)
		if !ok {
			continue
		}
		if err := e.writeNodeLocked(node); err != nil {
			slog.Warn("position write failed", "node", id, "error", err)
		}
	}
}

// handleChangedPaths is the watcher callback: it reads each changed file
// at flush time and hands the batch to HandleEvents.
func (e *Engine) handleChangedPaths(paths []string) {
	sort.Strings(paths)
	events := make([]mapper.Event, 0, len(paths))
	for _, path := range paths {
		if !e.vault.Contains(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				events = append(events, mapper.Event{Path: path, Kind: mapper.Deleted})
			} else {
				slog.Warn("unreadable changed file", "path", path, "error", err)
			}
			continue
		}
		events = append(events, mapper.Event{Path: path, Kind: mapper.Changed, Content: data})
	}
	if len(events) > 0 {
		e.HandleEvents(context.Background(), events)
	}
}

// persistLocked writes every change of an applied delta back to the
// vault. Each write is registered with the ledger first; on failure the
// stale entry is consumed again so it cannot suppress a later genuine
// event.
func (e *Engine) persistLocked(d graph.Delta) error {
	var firstErr error
	for _, c := range d.Changes {
		switch ch := c.(type) {
		case graph.Upsert:
			node := ch.Node
			if err := e.writeNodeLocked(&node); err != nil {
				slog.Error("note write failed", "node", node.ID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		case graph.Delete:
			path := e.vault.PathFor(ch.ID)
			e.ledger.Register(path, nil)
			if err := e.vault.Remove(ch.ID); err != nil {
				e.ledger.Match(path, nil)
				slog.Error("note remove failed", "node", ch.ID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		default:
			panic("app: unhandled node delta")
		}
	}
	return firstErr
}

func (e *Engine) writeNodeLocked(node *graph.Node) error {
	data := codec.Encode(node)
	path := e.vault.PathFor(node.ID)
	e.ledger.Register(path, data)
	if err := e.vault.Write(node.ID, data); err != nil {
		e.ledger.Match(path, data)
		return err
	}
	return nil
}

func (e *Engine) notifyLocked(d graph.Delta, origin string) {
	if e.onUpdate == nil {
		return
	}
	e.onUpdate(Update{
		DeltaID:   d.ID,
		Origin:    origin,
		NodeCount: e.graph.NodeCount(),
		EdgeCount: e.graph.EdgeCount(),
	})
}

func (e *Engine) updateMetricsLocked() {
	observability.GraphNodes.Set(float64(e.graph.NodeCount()))
	observability.GraphEdges.Set(float64(e.graph.EdgeCount()))
	observability.UnresolvedLinks.Set(float64(e.graph.UnresolvedCount()))
}

// titleStem converts a display title into a filename stem.
func titleStem(title string) string {
	stem := strings.TrimSpace(title)
	stem = strings.ReplaceAll(stem, "/", "-")
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		stem = "untitled"
	}
	return stem
}
