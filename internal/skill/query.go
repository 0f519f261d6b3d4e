package skill

import "fmt"

// Traversals are iterative with visited sets so they terminate even if the
// acyclic invariant were ever broken.

// isAncestor reports whether candidate is reachable from of by following
// parent edges one or more times. Link calls it before inserting an edge.
func (g *Graph) isAncestor(candidate, of NodeID) bool {
	found := false
	g.walk(of, (*Node).parentIDs, func(id NodeID) bool {
		if id == candidate {
			found = true
			return false
		}
		return true
	})
	return found
}

// walk visits every node reachable from start through next, breadth first,
// excluding start itself. visit returning false stops the walk.
func (g *Graph) walk(start NodeID, next func(*Node) []NodeID, visit func(NodeID) bool) {
	n, ok := g.nodes[start]
	if !ok {
		return
	}
	seen := map[NodeID]struct{}{start: {}}
	queue := append([]NodeID(nil), next(n)...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if !visit(id) {
			return
		}
		if nn, ok := g.nodes[id]; ok {
			queue = append(queue, next(nn)...)
		}
	}
}

func (n *Node) parentIDs() []NodeID { return n.parents }
func (n *Node) childIDs() []NodeID  { return n.children }

// Ancestors returns every strict ancestor of id in breadth-first order.
func Ancestors(g *Graph, id NodeID) ([]NodeID, error) {
	if _, err := g.Node(id); err != nil {
		return nil, err
	}
	var out []NodeID
	g.walk(id, (*Node).parentIDs, func(a NodeID) bool {
		out = append(out, a)
		return true
	})
	return out, nil
}

// Descendants returns every node reachable from id through child edges, in
// breadth-first order. The refund cascade resets exactly this set.
func Descendants(g *Graph, id NodeID) ([]NodeID, error) {
	if _, err := g.Node(id); err != nil {
		return nil, err
	}
	var out []NodeID
	g.walk(id, (*Node).childIDs, func(d NodeID) bool {
		out = append(out, d)
		return true
	})
	return out, nil
}

// Depth is the length of the longest parent chain from id to a root.
// Roots have depth 0.
func Depth(g *Graph, id NodeID) (int, error) {
	if _, err := g.Node(id); err != nil {
		return 0, err
	}
	depths, err := Depths(g)
	if err != nil {
		return 0, err
	}
	return depths[id], nil
}

// Depths computes the depth of every node in one pass.
func Depths(g *Graph) (map[NodeID]int, error) {
	order, err := TopoOrder(g)
	if err != nil {
		return nil, err
	}
	depth := make(map[NodeID]int, len(order))
	for _, nid := range order {
		d := 0
		for _, p := range g.nodes[nid].parents {
			d = max(d, depth[p]+1)
		}
		depth[nid] = d
	}
	return depth, nil
}

// TopoOrder returns the nodes parents-first (Kahn's algorithm seeded in
// creation order, so the result is deterministic). A cycle yields an error.
func TopoOrder(g *Graph) ([]NodeID, error) {
	indeg := make(map[NodeID]int, len(g.nodes))
	for _, id := range g.order {
		indeg[id] = len(g.nodes[id].parents)
	}
	var ready []NodeID
	for _, id := range g.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	out := make([]NodeID, 0, len(g.order))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, c := range g.nodes[id].children {
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(out) != len(g.order) {
		return nil, fmt.Errorf("skill: cycle detected among %d nodes", len(g.order)-len(out))
	}
	return out, nil
}
