package skill

import "fmt"

// Snapshot is a serialisable copy of a graph with its progress. It carries
// everything needed to rebuild an identical graph: ids, caps, requirements,
// invested points and the ordered adjacency.
type Snapshot struct {
	Nodes            []NodeSnapshot `json:"nodes"`
	Edges            []Edge         `json:"edges"`
	TotalPointsGiven int            `json:"total_points_given"`
}

// NodeSnapshot is one node inside a Snapshot.
type NodeSnapshot struct {
	ID          NodeID     `json:"id"`
	Attributes  Attributes `json:"attributes"`
	PointsGiven int        `json:"points_given"`
	Maxed       bool       `json:"maxed"`
}

// Edge is a parent→child link.
type Edge struct {
	Parent NodeID `json:"parent"`
	Child  NodeID `json:"child"`
}

// Snapshot captures the graph. Nodes are in creation order; edges are listed
// per parent in child insertion order.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes:            make([]NodeSnapshot, 0, len(g.order)),
		TotalPointsGiven: g.totalPointsGiven,
	}
	for _, id := range g.order {
		n := g.nodes[id]
		s.Nodes = append(s.Nodes, NodeSnapshot{
			ID:          id,
			Attributes:  n.attrs,
			PointsGiven: n.pointsGiven,
			Maxed:       n.maxed,
		})
		for _, c := range n.children {
			s.Edges = append(s.Edges, Edge{Parent: id, Child: c})
		}
	}
	return s
}

// Restore rebuilds a graph from a snapshot. Every edge goes through Link, so
// a snapshot containing a cycle, a duplicate edge or a dangling id is
// rejected with ErrInvalidSnapshot.
func Restore(s Snapshot) (*Graph, error) {
	g := NewGraph()
	sum := 0
	for _, ns := range s.Nodes {
		if err := g.AddNodeWithID(ns.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		if err := g.SetAttributes(ns.ID, ns.Attributes); err != nil {
			return nil, fmt.Errorf("%w: node %s: %w", ErrInvalidSnapshot, ns.ID, err)
		}
		if ns.PointsGiven < 0 || ns.PointsGiven > ns.Attributes.PointCap {
			return nil, fmt.Errorf("%w: node %s: points %d out of [0,%d]",
				ErrInvalidSnapshot, ns.ID, ns.PointsGiven, ns.Attributes.PointCap)
		}
		n := g.nodes[ns.ID]
		n.pointsGiven = ns.PointsGiven
		n.maxed = ns.Maxed
		sum += ns.PointsGiven
	}
	for _, e := range s.Edges {
		ok, err := g.Link(e.Parent, e.Child)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %s→%s: %w", ErrInvalidSnapshot, e.Parent, e.Child, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: edge %s→%s rejected", ErrInvalidSnapshot, e.Parent, e.Child)
		}
	}
	if s.TotalPointsGiven < 0 {
		return nil, fmt.Errorf("%w: negative total %d", ErrInvalidSnapshot, s.TotalPointsGiven)
	}
	g.totalPointsGiven = s.TotalPointsGiven
	g.drift = s.TotalPointsGiven - sum
	return g, nil
}
