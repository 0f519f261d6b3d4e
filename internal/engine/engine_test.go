package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/event"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
	"github.com/gyaneshwarpardhi/skilltree/internal/store"
)

const testTrees = `
version: "t1"
trees:
  - id: warrior
    name: Warrior
    nodes:
      - id: R
        point_cap: 3
      - id: C
        point_cap: 2
        points_required: 1
        parents: [R]
      - id: D
        parents: [C]
  - id: archer
    nodes:
      - id: aim
`

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cfg, err := config.Parse([]byte(testTrees))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cat, err := NewCatalog(cfg)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

func testConf() config.EngineConf {
	return config.EngineConf{PersistWorkers: 2, PersistQueueDepth: 64, CommandTimeoutMs: 2000}
}

func newTestEngine(t *testing.T, st Store) *Engine {
	t.Helper()
	e := New(context.Background(), testCatalog(t), st, testConf())
	t.Cleanup(e.Shutdown)
	return e
}

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) record(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func spend(t *testing.T, e *Engine, sid string, id skill.NodeID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok, _, err := e.Spend(context.Background(), sid, id)
		if err != nil {
			t.Fatalf("Spend(%s): %v", id, err)
		}
		if !ok {
			t.Fatalf("Spend(%s) #%d rejected", id, i+1)
		}
	}
}

func TestCatalog(t *testing.T) {
	cat := testCatalog(t)
	if cat.Version() != "t1" || cat.Len() != 2 {
		t.Fatalf("version=%s len=%d", cat.Version(), cat.Len())
	}
	trees := cat.Trees()
	if trees[0].ID != "archer" || trees[1].ID != "warrior" {
		t.Errorf("trees not sorted: %+v", trees)
	}
	if trees[1].Nodes != 3 || trees[1].Roots != 1 || trees[1].Name != "Warrior" {
		t.Errorf("warrior info: %+v", trees[1])
	}

	a, _ := cat.instantiate("warrior")
	b, _ := cat.instantiate("warrior")
	if ok, _ := skill.Spend(a, "R"); !ok {
		t.Fatal("spend on instance rejected")
	}
	if b.TotalPointsGiven() != 0 {
		t.Error("instances share state")
	}
	if _, ok := cat.instantiate("mage"); ok {
		t.Error("unknown tree instantiated")
	}
}

func TestCreateSession(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	s, err := e.CreateSession(ctx, "warrior")
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Describe(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.TreeID != "warrior" || len(v.Nodes) != 3 || !slices.Equal(v.Roots, []skill.NodeID{"R"}) {
		t.Errorf("view: %+v", v)
	}
	if v.Nodes[2].Depth != 2 || v.Nodes[0].Status.Text != "0/3" {
		t.Errorf("node views: %+v", v.Nodes)
	}

	if _, err := e.CreateSession(ctx, "mage"); !errors.Is(err, ErrUnknownTree) {
		t.Errorf("expected ErrUnknownTree, got %v", err)
	}
	empty, err := e.CreateSession(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := e.Describe(ctx, empty.ID); len(v.Nodes) != 0 || v.Roots == nil {
		t.Errorf("empty session view: %+v", v)
	}
	if _, err := e.Describe(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if e.SessionCount() != 2 {
		t.Errorf("session count: %d", e.SessionCount())
	}
}

func TestSpendRefundEvents(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	rec := &recorder{}
	e.OnEvent(rec.record)

	s, _ := e.CreateSession(ctx, "warrior")
	ok, _, err := e.Spend(ctx, s.ID, "C")
	if err != nil || ok {
		t.Fatalf("C should be locked: ok=%v err=%v", ok, err)
	}
	spend(t, e, s.ID, "R", 3)
	spend(t, e, s.ID, "C", 2)
	spend(t, e, s.ID, "D", 1)

	out, err := e.Refund(ctx, s.ID, "R")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Refunded || !slices.Equal(out.Reset, []skill.NodeID{"C", "D"}) {
		t.Errorf("refund outcome: %+v", out)
	}
	if out.Node.PointsGiven != 2 || out.Node.Maxed || out.Node.Status.Text != "2/3" {
		t.Errorf("R after refund: %+v", out.Node)
	}

	types := rec.types()
	if len(types) != 7 || types[6] != event.Unleveled {
		t.Fatalf("events: %v", types)
	}
	last := rec.events[6]
	if last.SessionID != s.ID || last.TreeID != "warrior" || last.NodeID != "R" || last.ID == "" {
		t.Errorf("unleveled event: %+v", last)
	}
	if last.TotalPoints != 5 || !slices.Equal(last.Reset, []string{"C", "D"}) {
		t.Errorf("unleveled totals: %+v", last)
	}

	if err := e.View(ctx, s.ID, func(_ *Session, g *skill.Graph) error { return g.CheckInvariants() }); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestEditingOperations(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	rec := &recorder{}
	e.OnEvent(rec.record)
	s, _ := e.CreateSession(ctx, "")

	a, err := e.AddNode(ctx, s.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.AddNode(ctx, s.ID, &skill.Attributes{Name: "Dash", PointCap: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddNode(ctx, s.ID, &skill.Attributes{Name: "bad"}); !errors.Is(err, skill.ErrInvalidAttribute) {
		t.Errorf("expected ErrInvalidAttribute, got %v", err)
	}

	if ok, err := e.Link(ctx, s.ID, a, b); err != nil || !ok {
		t.Fatalf("Link: ok=%v err=%v", ok, err)
	}
	if ok, _ := e.Link(ctx, s.ID, b, a); ok {
		t.Error("cycle accepted")
	}
	if _, err := e.Link(ctx, s.ID, a, "ghost"); !errors.Is(err, skill.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	v, err := e.SetAttributes(ctx, s.ID, b, skill.Attributes{Name: "Blink", PointCap: 1, PointsRequired: 1})
	if err != nil {
		t.Fatal(err)
	}
	if v.Name != "Blink" || v.Status.Availability != skill.NeedsPoints || !slices.Equal(v.Parents, []skill.NodeID{a}) {
		t.Errorf("after SetAttributes: %+v", v)
	}

	if n, err := e.UnlinkAmong(ctx, s.ID, []skill.NodeID{a, b}); err != nil || n != 1 {
		t.Errorf("UnlinkAmong: n=%d err=%v", n, err)
	}
	if ok, _ := e.Unlink(ctx, s.ID, a, b); ok {
		t.Error("edge should already be gone")
	}

	if n, err := e.RemoveNodes(ctx, s.ID, []skill.NodeID{a, b}); err != nil || n != 2 {
		t.Errorf("RemoveNodes: n=%d err=%v", n, err)
	}
	if got := rec.types(); !slices.Equal(got, []event.Type{event.Removed, event.Removed}) {
		t.Errorf("events: %v", got)
	}
	if err := e.RemoveNode(ctx, s.ID, a); !errors.Is(err, skill.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentSpendsRespectCap(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	s, _ := e.CreateSession(ctx, "warrior")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := e.Spend(ctx, s.ID, "R")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 3 {
		t.Errorf("accepted spends: got %d, want 3", accepted)
	}
	n, err := e.DescribeNode(ctx, s.ID, "R")
	if err != nil {
		t.Fatal(err)
	}
	if n.PointsGiven != 3 || !n.Maxed {
		t.Errorf("R: %+v", n)
	}
}

func TestPersistAndReload(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	e1 := New(ctx, testCatalog(t), db, testConf())
	s, err := e1.CreateSession(ctx, "warrior")
	if err != nil {
		t.Fatal(err)
	}
	spend(t, e1, s.ID, "R", 3)
	spend(t, e1, s.ID, "C", 1)
	if _, err := e1.Refund(ctx, s.ID, "R"); err != nil {
		t.Fatal(err)
	}
	e1.Shutdown()

	e2 := newTestEngine(t, db)
	v, err := e2.Describe(ctx, s.ID)
	if err != nil {
		t.Fatalf("Describe after reload: %v", err)
	}
	if v.TreeID != "warrior" || v.TotalPointsGiven != 3 {
		t.Errorf("reloaded view: tree=%s total=%d", v.TreeID, v.TotalPointsGiven)
	}
	byID := make(map[skill.NodeID]NodeView)
	for _, n := range v.Nodes {
		byID[n.ID] = n
	}
	if byID["R"].PointsGiven != 2 || byID["C"].PointsGiven != 0 {
		t.Errorf("reloaded points: R=%d C=%d", byID["R"].PointsGiven, byID["C"].PointsGiven)
	}
	if err := e2.View(ctx, s.ID, func(_ *Session, g *skill.Graph) error { return g.CheckInvariants() }); err != nil {
		t.Errorf("reloaded invariants: %v", err)
	}

	list, err := e2.ListSessions(ctx)
	if err != nil || len(list) != 1 || list[0].SessionID != s.ID {
		t.Errorf("ListSessions: %+v err=%v", list, err)
	}
}

func TestConcurrentLoadsShareSession(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	e1 := New(ctx, testCatalog(t), db, testConf())
	s, _ := e1.CreateSession(ctx, "archer")
	e1.Shutdown()

	e2 := newTestEngine(t, db)
	var wg sync.WaitGroup
	got := make([]*Session, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = e2.Session(ctx, s.ID)
		}(i)
	}
	wg.Wait()
	for i, g := range got {
		if g == nil || g != got[0] {
			t.Fatalf("load %d returned a different session", i)
		}
	}
	if e2.SessionCount() != 1 {
		t.Errorf("session count: %d", e2.SessionCount())
	}
}

func TestDropSession(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	e := newTestEngine(t, db)

	s, _ := e.CreateSession(ctx, "warrior")
	spend(t, e, s.ID, "R", 1)
	if err := e.DropSession(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	e.Shutdown()

	if _, err := db.Load(ctx, s.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot survived drop: %v", err)
	}
	if _, err := e.Describe(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := e.DropSession(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second drop: %v", err)
	}
}

func TestSwapCatalogKeepsSessions(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	s, _ := e.CreateSession(ctx, "warrior")

	cfg, err := config.Parse([]byte("version: t2\ntrees:\n  - id: rogue\n    nodes:\n      - id: stab\n"))
	if err != nil {
		t.Fatal(err)
	}
	cat, err := NewCatalog(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.SwapCatalog(cat)

	if e.Catalog().Version() != "t2" {
		t.Errorf("catalog not swapped")
	}
	if _, err := e.Describe(ctx, s.ID); err != nil {
		t.Errorf("existing session lost: %v", err)
	}
	if _, err := e.CreateSession(ctx, "warrior"); !errors.Is(err, ErrUnknownTree) {
		t.Errorf("old template still available: %v", err)
	}
	if _, err := e.CreateSession(ctx, "rogue"); err != nil {
		t.Errorf("new template: %v", err)
	}
}
