package skill_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

func TestSnapshotRestore(t *testing.T) {
	g := newGraph(t, "R", "C", "D")
	setCap(t, g, "R", 3, 0)
	setCap(t, g, "C", 2, 1)
	mustLink(t, g, "R", "C")
	mustLink(t, g, "C", "D")
	spendN(t, g, "R", 3)
	spendN(t, g, "C", 2)
	spendN(t, g, "D", 1)
	if _, err := skill.Refund(g, "R"); err != nil {
		t.Fatal(err)
	}

	r, err := skill.Restore(g.Snapshot())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	checkInvariants(t, r)
	if r.TotalPointsGiven() != g.TotalPointsGiven() || r.Drift() != g.Drift() {
		t.Errorf("total/drift: got %d/%d, want %d/%d", r.TotalPointsGiven(), r.Drift(), g.TotalPointsGiven(), g.Drift())
	}
	for _, n := range g.Nodes() {
		rn := mustNode(t, r, n.ID())
		if rn.Attributes() != n.Attributes() || rn.PointsGiven() != n.PointsGiven() || rn.Maxed() != n.Maxed() {
			t.Errorf("%s differs after restore", n.ID())
		}
		if !slices.Equal(rn.Children(), n.Children()) || !slices.Equal(rn.Parents(), n.Parents()) {
			t.Errorf("%s adjacency differs after restore", n.ID())
		}
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	attrs := skill.Attributes{Name: "x", PointCap: 1}
	node := func(id skill.NodeID) skill.NodeSnapshot {
		return skill.NodeSnapshot{ID: id, Attributes: attrs}
	}
	cases := []struct {
		name string
		snap skill.Snapshot
	}{
		{"duplicate id", skill.Snapshot{Nodes: []skill.NodeSnapshot{node("a"), node("a")}}},
		{"bad cap", skill.Snapshot{Nodes: []skill.NodeSnapshot{{ID: "a", Attributes: skill.Attributes{PointCap: 0}}}}},
		{"points over cap", skill.Snapshot{Nodes: []skill.NodeSnapshot{{ID: "a", Attributes: attrs, PointsGiven: 2}}}},
		{"dangling edge", skill.Snapshot{
			Nodes: []skill.NodeSnapshot{node("a")},
			Edges: []skill.Edge{{Parent: "a", Child: "b"}},
		}},
		{"cycle", skill.Snapshot{
			Nodes: []skill.NodeSnapshot{node("a"), node("b")},
			Edges: []skill.Edge{{Parent: "a", Child: "b"}, {Parent: "b", Child: "a"}},
		}},
		{"negative total", skill.Snapshot{Nodes: []skill.NodeSnapshot{node("a")}, TotalPointsGiven: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := skill.Restore(tc.snap); !errors.Is(err, skill.ErrInvalidSnapshot) {
				t.Errorf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}
