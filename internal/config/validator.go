package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Required fields and point bounds
//   - Duplicate tree ids, and duplicate node ids within a tree
//   - Parents that are unknown, repeated, or the node itself
//   - Cycles through parent references
func Validate(cfg *TreeConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string
	if cfg.Engine.PersistWorkers < 0 {
		errs = append(errs, "engine: persist_workers must be >= 0")
	}
	if cfg.Engine.PersistQueueDepth < 0 {
		errs = append(errs, "engine: persist_queue_depth must be >= 0")
	}

	trees := make(map[string]int) // id → index
	for i, t := range cfg.Trees {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("trees[%d]: id is required", i))
			continue
		}
		if prev, ok := trees[t.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate tree id %q (trees[%d] and trees[%d])", t.ID, prev, i))
			continue
		}
		trees[t.ID] = i
		validateNodes(t, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateNodes(t TreeDef, errs *[]string) {
	loc := fmt.Sprintf("tree %s", t.ID)
	ids := make(map[string]int)
	for j, n := range t.Nodes {
		if n.ID == "" {
			*errs = append(*errs, fmt.Sprintf("%s.nodes[%d]: id is required", loc, j))
			continue
		}
		if prev, ok := ids[n.ID]; ok {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate node id %q (nodes[%d] and nodes[%d])", loc, n.ID, prev, j))
			continue
		}
		ids[n.ID] = j
	}

	parents := make(map[string][]string, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.ID == "" {
			continue
		}
		nloc := fmt.Sprintf("%s node %s", loc, n.ID)
		if n.PointCap < 1 {
			*errs = append(*errs, fmt.Sprintf("%s: point_cap must be >= 1, got %d", nloc, n.PointCap))
		}
		if n.PointsRequired < 0 {
			*errs = append(*errs, fmt.Sprintf("%s: points_required must be >= 0, got %d", nloc, n.PointsRequired))
		}
		seen := make(map[string]bool, len(n.Parents))
		for _, p := range n.Parents {
			switch {
			case p == n.ID:
				*errs = append(*errs, fmt.Sprintf("%s: lists itself as parent", nloc))
			case seen[p]:
				*errs = append(*errs, fmt.Sprintf("%s: parent %q listed twice", nloc, p))
			default:
				if _, ok := ids[p]; !ok {
					*errs = append(*errs, fmt.Sprintf("%s: unknown parent %q", nloc, p))
					continue
				}
				parents[n.ID] = append(parents[n.ID], p)
			}
			seen[p] = true
		}
	}

	if cyc := findCycle(t.Nodes, parents); cyc != "" {
		*errs = append(*errs, fmt.Sprintf("%s: parent cycle through node %q", loc, cyc))
	}
}

// findCycle walks parent references iteratively and returns a node on a
// cycle, or "" if there is none.
func findCycle(nodes []NodeDef, parents map[string][]string) string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(nodes))
	type frame struct {
		id   string
		next int
	}
	for _, root := range nodes {
		if root.ID == "" || state[root.ID] != unvisited {
			continue
		}
		stack := []frame{{id: root.ID}}
		state[root.ID] = active
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ps := parents[top.id]
			if top.next == len(ps) {
				state[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}
			p := ps[top.next]
			top.next++
			switch state[p] {
			case active:
				return p
			case unvisited:
				state[p] = active
				stack = append(stack, frame{id: p})
			}
		}
	}
	return ""
}
