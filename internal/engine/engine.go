package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/event"
	"github.com/gyaneshwarpardhi/skilltree/internal/metrics"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
	"github.com/gyaneshwarpardhi/skilltree/internal/store"
)

var (
	ErrSessionNotFound = errors.New("engine: session not found")
	ErrUnknownTree     = errors.New("engine: unknown tree")
)

// Store persists session snapshots. *store.DB satisfies it.
type Store interface {
	Save(ctx context.Context, rec store.Record) error
	Load(ctx context.Context, sessionID string) (*store.Record, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]store.Summary, error)
}

// Session is one live skill graph. All access to graph goes through mu,
// which gives each session a single writer.
type Session struct {
	ID     string
	TreeID string

	mu      sync.Mutex
	graph   *skill.Graph
	deleted bool

	persistMu sync.Mutex  // serializes snapshot writes for this session
	pending   atomic.Bool // a snapshot write is queued
}

// Engine owns the template catalog and the live sessions.
type Engine struct {
	catalog atomic.Pointer[Catalog]
	store   Store // nil = memory only
	conf    config.EngineConf

	mu       sync.RWMutex
	sessions map[string]*Session
	loads    singleflight.Group

	persistPool *workerPool[*Session]

	listenersMu sync.RWMutex
	listeners   []func(event.Event)
}

// New creates an Engine and starts the snapshot writers. st may be nil.
func New(ctx context.Context, cat *Catalog, st Store, conf config.EngineConf) *Engine {
	e := &Engine{
		store:    st,
		conf:     conf,
		sessions: make(map[string]*Session),
	}
	e.SwapCatalog(cat)
	if st != nil {
		// Writes outlive ctx cancellation so Shutdown can flush the queue.
		persistCtx := context.WithoutCancel(ctx)
		e.persistPool = newWorkerPool(persistCtx, max(conf.PersistWorkers, 1), max(conf.PersistQueueDepth, 1), e.persist)
	}
	return e
}

// SwapCatalog atomically replaces the templates (used on hot-reload).
// Existing sessions keep their graphs.
func (e *Engine) SwapCatalog(c *Catalog) {
	e.catalog.Store(c)
	metrics.TemplatesLoaded.Set(float64(c.Len()))
}

// Catalog returns the active templates.
func (e *Engine) Catalog() *Catalog { return e.catalog.Load() }

// OnEvent registers a listener for skill events. Listeners run on the
// caller's goroutine after the session lock is released.
func (e *Engine) OnEvent(fn func(event.Event)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(ev event.Event) {
	ev.ID = uuid.New().String()
	ev.OccurredAt = time.Now()
	e.listenersMu.RLock()
	listeners := make([]func(event.Event), len(e.listeners))
	copy(listeners, e.listeners)
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// CreateSession starts a session. An empty treeID gives an empty graph for
// authoring; otherwise the session gets its own copy of the template.
func (e *Engine) CreateSession(ctx context.Context, treeID string) (*Session, error) {
	g := skill.NewGraph()
	if treeID != "" {
		var ok bool
		if g, ok = e.Catalog().instantiate(treeID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTree, treeID)
		}
	}
	s := &Session{ID: uuid.New().String(), TreeID: treeID, graph: g}

	e.mu.Lock()
	e.sessions[s.ID] = s
	metrics.SessionsActive.Set(float64(len(e.sessions)))
	e.mu.Unlock()

	e.schedulePersist(s)
	slog.Debug("session created", "session", s.ID, "tree", treeID, "nodes", g.Len())
	return s, nil
}

// Session returns a live session, loading it from the store when it is not
// in memory. Concurrent loads of the same id share one store read.
func (e *Engine) Session(ctx context.Context, id string) (*Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return s, nil
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	v, err, _ := e.loads.Do(id, func() (interface{}, error) {
		return e.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (e *Engine) load(ctx context.Context, id string) (*Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return s, nil
	}

	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	rec, err := e.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		metrics.SessionLoads.WithLabelValues("miss").Inc()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		metrics.SessionLoads.WithLabelValues("error").Inc()
		return nil, err
	}
	g, err := skill.Restore(rec.Snapshot)
	if err != nil {
		metrics.SessionLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	metrics.SessionLoads.WithLabelValues("hit").Inc()

	s = &Session{ID: id, TreeID: rec.TreeID, graph: g}
	e.mu.Lock()
	if existing, ok := e.sessions[id]; ok {
		s = existing
	} else {
		e.sessions[id] = s
	}
	metrics.SessionsActive.Set(float64(len(e.sessions)))
	e.mu.Unlock()
	return s, nil
}

// DropSession forgets a session and deletes its snapshot.
func (e *Engine) DropSession(ctx context.Context, id string) error {
	s, err := e.Session(ctx, id)
	if err != nil {
		return err
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.deleted = true
	s.mu.Unlock()

	e.mu.Lock()
	delete(e.sessions, id)
	metrics.SessionsActive.Set(float64(len(e.sessions)))
	e.mu.Unlock()

	if e.store != nil {
		ctx, cancel := e.storeContext(ctx)
		defer cancel()
		if err := e.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListSessions returns the stored sessions, or the in-memory ones when the
// engine has no store.
func (e *Engine) ListSessions(ctx context.Context) ([]store.Summary, error) {
	if e.store != nil {
		ctx, cancel := e.storeContext(ctx)
		defer cancel()
		return e.store.List(ctx)
	}
	e.mu.RLock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	out := make([]store.Summary, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, store.Summary{SessionID: s.ID, TreeID: s.TreeID, TotalPoints: s.graph.TotalPointsGiven()})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// View runs fn with the session's graph under its lock. fn must not keep
// the graph after returning.
func (e *Engine) View(ctx context.Context, id string, fn func(*Session, *skill.Graph) error) error {
	return e.run(ctx, id, "view", false, fn)
}

// Update is View for commands that change the graph. A snapshot write is
// scheduled when fn succeeds.
func (e *Engine) Update(ctx context.Context, id, command string, fn func(*Session, *skill.Graph) error) error {
	return e.run(ctx, id, command, true, fn)
}

func (e *Engine) run(ctx context.Context, id, command string, mutates bool, fn func(*Session, *skill.Graph) error) error {
	s, err := e.Session(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	start := time.Now()
	err = fn(s, s.graph)
	metrics.CommandDuration.WithLabelValues(command).Observe(float64(time.Since(start).Microseconds()) / 1000)
	s.mu.Unlock()

	if err == nil && mutates {
		e.schedulePersist(s)
	}
	return err
}

// schedulePersist queues at most one pending snapshot write per session.
// The writer snapshots at write time, so later changes are picked up.
func (e *Engine) schedulePersist(s *Session) {
	if e.persistPool == nil {
		return
	}
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	if !e.persistPool.Submit(s) {
		s.pending.Store(false)
		metrics.SnapshotsSaved.WithLabelValues("dropped").Inc()
		slog.Warn("snapshot queue full, write dropped", "session", s.ID, "capacity", e.persistPool.QueueCap())
	}
	metrics.PersistQueueUtilization.Set(e.QueueUtilization())
}

func (e *Engine) persist(ctx context.Context, s *Session) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.pending.Store(false)
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return
	}
	rec := store.Record{SessionID: s.ID, TreeID: s.TreeID, Snapshot: s.graph.Snapshot(), UpdatedAt: time.Now()}
	s.mu.Unlock()

	ctx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.store.Save(ctx, rec); err != nil {
		metrics.SnapshotsSaved.WithLabelValues("error").Inc()
		slog.Error("snapshot write failed", "session", s.ID, "err", err)
		return
	}
	metrics.SnapshotsSaved.WithLabelValues("ok").Inc()
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(e.conf.CommandTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// QueueUtilization returns snapshot queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.persistPool == nil || e.persistPool.QueueCap() == 0 {
		return 0
	}
	return float64(e.persistPool.QueueLen()) / float64(e.persistPool.QueueCap())
}

// SessionCount returns the number of sessions held in memory.
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown flushes queued snapshot writes.
func (e *Engine) Shutdown() {
	if e.persistPool != nil {
		e.persistPool.Drain()
	}
}
