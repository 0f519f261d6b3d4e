package skill

import (
	"fmt"

	"github.com/google/uuid"
)

// Graph owns the nodes of one skill tree and their parent→child edges.
// The relation is kept acyclic and mirrored by construction.
//
// Graph is not safe for concurrent use; callers serialize access.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID // creation order

	totalPointsGiven int
	// drift is totalPointsGiven minus the sum of node points. Refund cascades
	// and removals move the total differently from node points.
	drift int
}

// NewGraph allocates an empty Graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode creates a node with default attributes and a fresh id.
func (g *Graph) AddNode() NodeID {
	id := NodeID(uuid.New().String())
	g.insert(newNode(id))
	return id
}

// AddNodeWithID creates a node under a caller-chosen id. Used when loading
// templates and snapshots, where id stability matters.
func (g *Graph) AddNodeWithID(id NodeID) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidAttribute)
	}
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	g.insert(newNode(id))
	return nil
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.id] = n
	g.order = append(g.order, n.id)
}

// Node returns a node by id.
func (g *Graph) Node(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// Has reports whether id is in the graph.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TotalPointsGiven is the tree-wide point budget already spent.
func (g *Graph) TotalPointsGiven() int { return g.totalPointsGiven }

// Drift is how far TotalPointsGiven is from the sum of every node's points.
// It is non-zero once a refund cascade has reset descendants or a refund hit
// an empty node.
func (g *Graph) Drift() int { return g.drift }

// shrinkTotal lowers the total by nodeDelta points that left a node, clamped
// at zero, and records any difference as drift.
func (g *Graph) shrinkTotal(nodeDelta, totalDelta int) {
	totalDelta = min(totalDelta, g.totalPointsGiven)
	g.totalPointsGiven -= totalDelta
	g.drift += nodeDelta - totalDelta
}

// Roots returns every node without parents, in creation order.
func (g *Graph) Roots() []NodeID {
	var roots []NodeID
	for _, id := range g.order {
		if g.nodes[id].IsRoot() {
			roots = append(roots, id)
		}
	}
	return roots
}

// SetAttributes replaces a node's author-editable fields. Lowering the cap
// below the invested points clamps them and shrinks the total accordingly.
func (g *Graph) SetAttributes(id NodeID, a Attributes) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	n.attrs = a
	if over := n.pointsGiven - a.PointCap; over > 0 {
		n.pointsGiven = a.PointCap
		g.shrinkTotal(over, over)
	}
	n.maxed = n.pointsGiven == a.PointCap
	return nil
}

// RemoveNode detaches id from every parent and child and deletes it. The
// node's invested points leave the total without any refund.
func (g *Graph) RemoveNode(id NodeID) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	for _, p := range n.parents {
		pn := g.nodes[p]
		pn.children, _ = removeID(pn.children, id)
	}
	for _, c := range n.children {
		cn := g.nodes[c]
		cn.parents, _ = removeID(cn.parents, id)
	}
	g.shrinkTotal(n.pointsGiven, n.pointsGiven)
	delete(g.nodes, id)
	g.order, _ = removeID(g.order, id)
	return nil
}

// RemoveNodes removes every listed node and returns how many were removed.
// Unknown ids abort with ErrNotFound before anything is removed.
func (g *Graph) RemoveNodes(ids []NodeID) (int, error) {
	for _, id := range ids {
		if !g.Has(id) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	removed := 0
	for _, id := range ids {
		if !g.Has(id) {
			continue // listed twice
		}
		if err := g.RemoveNode(id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Link adds the edge parent→child. It returns false without mutating when
// the ids are equal, the edge already exists, or child is already an
// ancestor of parent (the edge would close a cycle).
func (g *Graph) Link(parent, child NodeID) (bool, error) {
	pn, err := g.Node(parent)
	if err != nil {
		return false, err
	}
	cn, err := g.Node(child)
	if err != nil {
		return false, err
	}
	if parent == child {
		return false, nil
	}
	if cn.hasParent(parent) {
		return false, nil
	}
	if g.isAncestor(child, parent) {
		return false, nil
	}
	pn.children = append(pn.children, child)
	cn.parents = append(cn.parents, parent)
	return true, nil
}

// Unlink removes the edge parent→child in both directions if it exists.
func (g *Graph) Unlink(parent, child NodeID) (bool, error) {
	pn, err := g.Node(parent)
	if err != nil {
		return false, err
	}
	cn, err := g.Node(child)
	if err != nil {
		return false, err
	}
	var ok bool
	if pn.children, ok = removeID(pn.children, child); !ok {
		return false, nil
	}
	cn.parents, _ = removeID(cn.parents, parent)
	return true, nil
}

// UnlinkAmong removes every edge whose endpoints are both in ids and returns
// the number of edges removed. Unknown ids are ignored.
func (g *Graph) UnlinkAmong(ids []NodeID) int {
	selected := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	removed := 0
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for _, c := range n.Children() {
			if _, in := selected[c]; !in {
				continue
			}
			if ok, _ := g.Unlink(id, c); ok {
				removed++
			}
		}
	}
	return removed
}

// IsAncestor reports whether candidate is a strict ancestor of of.
func (g *Graph) IsAncestor(candidate, of NodeID) (bool, error) {
	if _, err := g.Node(candidate); err != nil {
		return false, err
	}
	if _, err := g.Node(of); err != nil {
		return false, err
	}
	return g.isAncestor(candidate, of), nil
}

// Clone returns a deep copy including progress.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:            make(map[NodeID]*Node, len(g.nodes)),
		order:            append([]NodeID(nil), g.order...),
		totalPointsGiven: g.totalPointsGiven,
		drift:            g.drift,
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	return c
}

// CheckInvariants recomputes everything the graph tracks incrementally and
// returns the first violation found. A non-nil result is a programming
// defect, not a runtime condition.
func (g *Graph) CheckInvariants() error {
	if len(g.order) != len(g.nodes) {
		return fmt.Errorf("order has %d ids, map has %d nodes", len(g.order), len(g.nodes))
	}
	sum := 0
	for _, id := range g.order {
		n, ok := g.nodes[id]
		if !ok {
			return fmt.Errorf("order lists missing node %s", id)
		}
		if n.pointsGiven < 0 || n.pointsGiven > n.attrs.PointCap {
			return fmt.Errorf("node %s: points %d out of [0,%d]", id, n.pointsGiven, n.attrs.PointCap)
		}
		sum += n.pointsGiven
		for _, c := range n.children {
			cn, ok := g.nodes[c]
			if !ok {
				return fmt.Errorf("node %s: dangling child %s", id, c)
			}
			if !cn.hasParent(id) {
				return fmt.Errorf("edge %s→%s not mirrored in child", id, c)
			}
		}
		for _, p := range n.parents {
			pn, ok := g.nodes[p]
			if !ok {
				return fmt.Errorf("node %s: dangling parent %s", id, p)
			}
			if !pn.hasChild(id) {
				return fmt.Errorf("edge %s→%s not mirrored in parent", p, id)
			}
		}
	}
	if sum+g.drift != g.totalPointsGiven {
		return fmt.Errorf("total points %d, recomputed %d with drift %d", g.totalPointsGiven, sum, g.drift)
	}
	if _, err := TopoOrder(g); err != nil {
		return err
	}
	return nil
}
