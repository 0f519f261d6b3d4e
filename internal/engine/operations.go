package engine

import (
	"context"

	"github.com/gyaneshwarpardhi/skilltree/internal/event"
	"github.com/gyaneshwarpardhi/skilltree/internal/metrics"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

// NodeView is a read model of one node for clients.
type NodeView struct {
	ID             skill.NodeID   `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Icon           string         `json:"icon"`
	PointCap       int            `json:"point_cap"`
	PointsRequired int            `json:"points_required"`
	PointsGiven    int            `json:"points_given"`
	Maxed          bool           `json:"maxed"`
	State          skill.State    `json:"state"`
	IsRoot         bool           `json:"is_root"`
	Parents        []skill.NodeID `json:"parents"`
	Children       []skill.NodeID `json:"children"`
	Depth          int            `json:"depth"`
	CanSpend       bool           `json:"can_spend"`
	Status         skill.Status   `json:"status"`
}

// SessionView is a read model of a whole session.
type SessionView struct {
	SessionID        string         `json:"session_id"`
	TreeID           string         `json:"tree_id,omitempty"`
	TotalPointsGiven int            `json:"total_points_given"`
	Roots            []skill.NodeID `json:"roots"`
	Nodes            []NodeView     `json:"nodes"`
}

// RefundOutcome is the result of a refund plus the node afterwards.
type RefundOutcome struct {
	skill.RefundResult
	Node NodeView `json:"node"`
}

func nodeView(g *skill.Graph, n *skill.Node, depth int) NodeView {
	can, _ := skill.CanSpend(g, n.ID())
	st, _ := skill.StatusOf(g, n.ID())
	a := n.Attributes()
	parents, children := n.Parents(), n.Children()
	if parents == nil {
		parents = []skill.NodeID{}
	}
	if children == nil {
		children = []skill.NodeID{}
	}
	return NodeView{
		ID:             n.ID(),
		Name:           a.Name,
		Description:    a.Description,
		Icon:           a.Icon,
		PointCap:       a.PointCap,
		PointsRequired: a.PointsRequired,
		PointsGiven:    n.PointsGiven(),
		Maxed:          n.Maxed(),
		State:          n.State(),
		IsRoot:         n.IsRoot(),
		Parents:        parents,
		Children:       children,
		Depth:          depth,
		CanSpend:       can,
		Status:         st,
	}
}

func viewNode(g *skill.Graph, id skill.NodeID) (NodeView, error) {
	n, err := g.Node(id)
	if err != nil {
		return NodeView{}, err
	}
	depth, err := skill.Depth(g, id)
	if err != nil {
		return NodeView{}, err
	}
	return nodeView(g, n, depth), nil
}

// Describe returns the full session view.
func (e *Engine) Describe(ctx context.Context, sid string) (*SessionView, error) {
	var out *SessionView
	err := e.View(ctx, sid, func(s *Session, g *skill.Graph) error {
		depths, err := skill.Depths(g)
		if err != nil {
			return err
		}
		v := &SessionView{
			SessionID:        s.ID,
			TreeID:           s.TreeID,
			TotalPointsGiven: g.TotalPointsGiven(),
			Roots:            g.Roots(),
			Nodes:            make([]NodeView, 0, g.Len()),
		}
		if v.Roots == nil {
			v.Roots = []skill.NodeID{}
		}
		for _, n := range g.Nodes() {
			v.Nodes = append(v.Nodes, nodeView(g, n, depths[n.ID()]))
		}
		out = v
		return nil
	})
	return out, err
}

// DescribeNode returns one node.
func (e *Engine) DescribeNode(ctx context.Context, sid string, id skill.NodeID) (NodeView, error) {
	var out NodeView
	err := e.View(ctx, sid, func(_ *Session, g *skill.Graph) (err error) {
		out, err = viewNode(g, id)
		return err
	})
	return out, err
}

// AddNode creates a node in the session. attrs may be nil for defaults.
func (e *Engine) AddNode(ctx context.Context, sid string, attrs *skill.Attributes) (skill.NodeID, error) {
	var id skill.NodeID
	err := e.Update(ctx, sid, "add_node", func(_ *Session, g *skill.Graph) error {
		if attrs != nil {
			if err := attrs.Validate(); err != nil {
				return err
			}
		}
		id = g.AddNode()
		if attrs != nil {
			return g.SetAttributes(id, *attrs)
		}
		return nil
	})
	return id, err
}

// SetAttributes edits a node.
func (e *Engine) SetAttributes(ctx context.Context, sid string, id skill.NodeID, attrs skill.Attributes) (NodeView, error) {
	var out NodeView
	err := e.Update(ctx, sid, "set_attributes", func(_ *Session, g *skill.Graph) error {
		if err := g.SetAttributes(id, attrs); err != nil {
			return err
		}
		var err error
		out, err = viewNode(g, id)
		return err
	})
	return out, err
}

// RemoveNode deletes a node and its edges.
func (e *Engine) RemoveNode(ctx context.Context, sid string, id skill.NodeID) error {
	var ev event.Event
	err := e.Update(ctx, sid, "remove_node", func(s *Session, g *skill.Graph) error {
		if err := g.RemoveNode(id); err != nil {
			return err
		}
		ev = event.Event{Type: event.Removed, SessionID: s.ID, TreeID: s.TreeID, NodeID: string(id), TotalPoints: g.TotalPointsGiven()}
		return nil
	})
	if err == nil {
		e.emit(ev)
	}
	return err
}

// RemoveNodes deletes a selection of nodes.
func (e *Engine) RemoveNodes(ctx context.Context, sid string, ids []skill.NodeID) (int, error) {
	var (
		removed int
		evs     []event.Event
	)
	err := e.Update(ctx, sid, "remove_nodes", func(s *Session, g *skill.Graph) (err error) {
		removed, err = g.RemoveNodes(ids)
		if err != nil {
			return err
		}
		seen := make(map[skill.NodeID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			evs = append(evs, event.Event{Type: event.Removed, SessionID: s.ID, TreeID: s.TreeID, NodeID: string(id), TotalPoints: g.TotalPointsGiven()})
		}
		return nil
	})
	for _, ev := range evs {
		e.emit(ev)
	}
	return removed, err
}

// Link adds parent→child. false means the edge was rejected.
func (e *Engine) Link(ctx context.Context, sid string, parent, child skill.NodeID) (bool, error) {
	var ok bool
	err := e.Update(ctx, sid, "link", func(_ *Session, g *skill.Graph) (err error) {
		ok, err = g.Link(parent, child)
		return err
	})
	if err == nil && !ok {
		metrics.LinksRejected.Inc()
	}
	return ok, err
}

// Unlink removes parent→child. false means there was no such edge.
func (e *Engine) Unlink(ctx context.Context, sid string, parent, child skill.NodeID) (bool, error) {
	var ok bool
	err := e.Update(ctx, sid, "unlink", func(_ *Session, g *skill.Graph) (err error) {
		ok, err = g.Unlink(parent, child)
		return err
	})
	return ok, err
}

// UnlinkAmong removes every edge inside a selection.
func (e *Engine) UnlinkAmong(ctx context.Context, sid string, ids []skill.NodeID) (int, error) {
	var n int
	err := e.Update(ctx, sid, "unlink_among", func(_ *Session, g *skill.Graph) error {
		n = g.UnlinkAmong(ids)
		return nil
	})
	return n, err
}

// CanSpend reports spend eligibility.
func (e *Engine) CanSpend(ctx context.Context, sid string, id skill.NodeID) (bool, error) {
	var ok bool
	err := e.View(ctx, sid, func(_ *Session, g *skill.Graph) (err error) {
		ok, err = skill.CanSpend(g, id)
		return err
	})
	return ok, err
}

// Spend invests a point if the node is eligible. The check and the spend
// happen under one lock.
func (e *Engine) Spend(ctx context.Context, sid string, id skill.NodeID) (bool, NodeView, error) {
	var (
		ok   bool
		view NodeView
		ev   event.Event
	)
	err := e.Update(ctx, sid, "spend", func(s *Session, g *skill.Graph) (err error) {
		if ok, err = skill.Spend(g, id); err != nil {
			return err
		}
		if view, err = viewNode(g, id); err != nil {
			return err
		}
		if ok {
			metrics.PointsSpent.WithLabelValues(s.TreeID).Inc()
			ev = event.Event{Type: event.Leveled, SessionID: s.ID, TreeID: s.TreeID, NodeID: string(id),
				PointsGiven: view.PointsGiven, TotalPoints: g.TotalPointsGiven()}
		} else {
			metrics.SpendsRejected.WithLabelValues(s.TreeID).Inc()
		}
		return nil
	})
	if err == nil && ok {
		e.emit(ev)
	}
	return ok, view, err
}

// Refund removes a point and resets all descendants.
func (e *Engine) Refund(ctx context.Context, sid string, id skill.NodeID) (RefundOutcome, error) {
	var (
		out RefundOutcome
		ev  event.Event
	)
	err := e.Update(ctx, sid, "refund", func(s *Session, g *skill.Graph) (err error) {
		if out.RefundResult, err = skill.Refund(g, id); err != nil {
			return err
		}
		if out.Node, err = viewNode(g, id); err != nil {
			return err
		}
		metrics.PointsRefunded.WithLabelValues(s.TreeID).Inc()
		metrics.CascadeResets.WithLabelValues(s.TreeID).Add(float64(len(out.Reset)))
		reset := make([]string, 0, len(out.Reset))
		for _, r := range out.Reset {
			reset = append(reset, string(r))
		}
		ev = event.Event{Type: event.Unleveled, SessionID: s.ID, TreeID: s.TreeID, NodeID: string(id),
			PointsGiven: out.Node.PointsGiven, TotalPoints: g.TotalPointsGiven(), Reset: reset}
		return nil
	})
	if err == nil {
		e.emit(ev)
	}
	if out.Reset == nil {
		out.Reset = []skill.NodeID{}
	}
	return out, err
}
