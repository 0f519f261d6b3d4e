package skill_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

func setCap(t *testing.T, g *skill.Graph, id skill.NodeID, pointCap, required int) {
	t.Helper()
	if err := g.SetAttributes(id, skill.Attributes{Name: string(id), PointCap: pointCap, PointsRequired: required}); err != nil {
		t.Fatalf("SetAttributes(%s): %v", id, err)
	}
}

func spendN(t *testing.T, g *skill.Graph, id skill.NodeID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok, err := skill.Spend(g, id)
		if err != nil {
			t.Fatalf("Spend(%s): %v", id, err)
		}
		if !ok {
			t.Fatalf("Spend(%s) #%d rejected", id, i+1)
		}
	}
}

func canSpend(t *testing.T, g *skill.Graph, id skill.NodeID) bool {
	t.Helper()
	ok, err := skill.CanSpend(g, id)
	if err != nil {
		t.Fatalf("CanSpend(%s): %v", id, err)
	}
	return ok
}

func TestRootWithoutRequirementCanSpend(t *testing.T) {
	for pc := 1; pc <= 4; pc++ {
		g := newGraph(t, "r")
		setCap(t, g, "r", pc, 0)
		for given := 0; given < pc; given++ {
			if !canSpend(t, g, "r") {
				t.Fatalf("cap %d given %d: expected spendable", pc, given)
			}
			spendN(t, g, "r", 1)
		}
	}
}

func TestSpendToCap(t *testing.T) {
	g := newGraph(t, "r")
	setCap(t, g, "r", 3, 0)
	spendN(t, g, "r", 3)

	n := mustNode(t, g, "r")
	if !n.Maxed() || n.State() != skill.StateMaxed {
		t.Fatalf("expected maxed, got maxed=%v state=%s", n.Maxed(), n.State())
	}
	ok, err := skill.Spend(g, "r")
	if err != nil || ok {
		t.Fatalf("spend past cap: ok=%v err=%v", ok, err)
	}
	if n.PointsGiven() != 3 || g.TotalPointsGiven() != 3 {
		t.Errorf("spend past cap changed points: given=%d total=%d", n.PointsGiven(), g.TotalPointsGiven())
	}
}

func TestSpendUnknownNode(t *testing.T) {
	g := skill.NewGraph()
	if _, err := skill.Spend(g, "nope"); !errors.Is(err, skill.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := skill.Refund(g, "nope"); !errors.Is(err, skill.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSpendNeedsEveryParentMaxed(t *testing.T) {
	g := newGraph(t, "a", "b", "c")
	mustLink(t, g, "a", "c")
	mustLink(t, g, "b", "c")

	spendN(t, g, "a", 1)
	if canSpend(t, g, "c") {
		t.Fatal("c spendable with only one parent maxed")
	}
	st, _ := skill.StatusOf(g, "c")
	if st.Availability != skill.NeedsParents || st.Text != "Must unlock parent skills." {
		t.Errorf("status: %+v", st)
	}
	spendN(t, g, "b", 1)
	if !canSpend(t, g, "c") {
		t.Fatal("c should be spendable once both parents are maxed")
	}
}

func TestPointsRequired(t *testing.T) {
	g := newGraph(t, "a", "b")
	setCap(t, g, "b", 1, 2)

	st, _ := skill.StatusOf(g, "b")
	if st.Availability != skill.NeedsPoints || st.PointsMissing != 2 || st.Text != "Must spend 2 more points." {
		t.Errorf("status before: %+v", st)
	}
	spendN(t, g, "a", 1)
	st, _ = skill.StatusOf(g, "b")
	if st.Text != "Must spend 1 more point." {
		t.Errorf("singular text: %q", st.Text)
	}
	if canSpend(t, g, "b") {
		t.Error("b spendable with total below requirement")
	}
}

func TestRefundCascadesThroughAllDescendants(t *testing.T) {
	g := newGraph(t, "a", "b", "c", "side")
	mustLink(t, g, "a", "b")
	mustLink(t, g, "b", "c")
	spendN(t, g, "a", 1)
	spendN(t, g, "b", 1)
	spendN(t, g, "c", 1)
	spendN(t, g, "side", 1)

	res, err := skill.Refund(g, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Refunded {
		t.Error("expected the node itself to be refunded")
	}
	if !slices.Equal(res.Reset, []skill.NodeID{"b", "c"}) {
		t.Errorf("reset: got %v", res.Reset)
	}
	for _, id := range []skill.NodeID{"a", "b", "c"} {
		n := mustNode(t, g, id)
		if n.PointsGiven() != 0 || n.Maxed() {
			t.Errorf("%s: given=%d maxed=%v", id, n.PointsGiven(), n.Maxed())
		}
	}
	if mustNode(t, g, "side").PointsGiven() != 1 {
		t.Error("unrelated node was reset")
	}
	// Only the refunded node's point leaves the total.
	if g.TotalPointsGiven() != 3 {
		t.Errorf("total: got %d, want 3", g.TotalPointsGiven())
	}
	checkInvariants(t, g)
}

func TestRefundEmptyNodeClampsAtZero(t *testing.T) {
	g := newGraph(t, "a")
	res, err := skill.Refund(g, "a")
	if err != nil {
		t.Fatal(err)
	}
	if res.Refunded || len(res.Reset) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if g.TotalPointsGiven() != 0 || mustNode(t, g, "a").PointsGiven() != 0 {
		t.Error("points went negative")
	}
	checkInvariants(t, g)
}

// Root R (cap 3) with child C (cap 2, requires 1).
func TestRootChildProgression(t *testing.T) {
	g := newGraph(t, "R", "C")
	setCap(t, g, "R", 3, 0)
	setCap(t, g, "C", 2, 1)
	mustLink(t, g, "R", "C")

	for i := 0; i < 3; i++ {
		if canSpend(t, g, "C") {
			t.Fatalf("C spendable after %d spends on R", i)
		}
		spendN(t, g, "R", 1)
	}
	if !mustNode(t, g, "R").Maxed() || g.TotalPointsGiven() < 1 {
		t.Fatal("R should be maxed with total >= 1")
	}
	if !canSpend(t, g, "C") {
		t.Fatal("C should be spendable once R is maxed")
	}
	spendN(t, g, "C", 2)
	if !mustNode(t, g, "C").Maxed() {
		t.Fatal("two spends should max C")
	}

	if _, err := skill.Refund(g, "R"); err != nil {
		t.Fatal(err)
	}
	r, c := mustNode(t, g, "R"), mustNode(t, g, "C")
	if r.PointsGiven() != 2 || r.Maxed() {
		t.Errorf("R: %d/3 maxed=%v, want 2/3", r.PointsGiven(), r.Maxed())
	}
	if c.PointsGiven() != 0 || c.Maxed() {
		t.Errorf("C: %d/2 maxed=%v, want 0/2", c.PointsGiven(), c.Maxed())
	}
	if g.TotalPointsGiven() != 4 || g.Drift() != 2 {
		t.Errorf("total=%d drift=%d, want 4 and 2", g.TotalPointsGiven(), g.Drift())
	}
	checkInvariants(t, g)
}

func TestStatusAvailable(t *testing.T) {
	g := newGraph(t, "a")
	setCap(t, g, "a", 5, 0)
	spendN(t, g, "a", 2)

	st, err := skill.StatusOf(g, "a")
	if err != nil {
		t.Fatal(err)
	}
	if st.Availability != skill.Available || st.Text != "2/5" {
		t.Errorf("status: %+v", st)
	}
	spendN(t, g, "a", 3)
	st, _ = skill.StatusOf(g, "a")
	if st.Availability != skill.Maxed || st.Text != "5/5" {
		t.Errorf("maxed status: %+v", st)
	}
}
