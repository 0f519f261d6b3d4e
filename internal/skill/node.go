package skill

import (
	"fmt"
	"slices"
)

// NodeID identifies a skill within its owning graph. It is opaque and stable;
// display names are kept separately.
type NodeID string

// Default attributes for a freshly created node.
const (
	DefaultName     = "New Skill"
	DefaultPointCap = 1
)

// State is the progress state of a single node.
type State string

const (
	StateEmpty   State = "empty"
	StatePartial State = "partial"
	StateMaxed   State = "maxed"
)

// Attributes are the author-editable fields of a node.
type Attributes struct {
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description" yaml:"description"`
	Icon           string `json:"icon" yaml:"icon"` // opaque handle, never interpreted
	PointCap       int    `json:"point_cap" yaml:"point_cap"`
	PointsRequired int    `json:"points_required" yaml:"points_required"`
}

// Validate checks the point bounds.
func (a Attributes) Validate() error {
	if a.PointCap < 1 {
		return fmt.Errorf("%w: point_cap must be >= 1, got %d", ErrInvalidAttribute, a.PointCap)
	}
	if a.PointsRequired < 0 {
		return fmt.Errorf("%w: points_required must be >= 0, got %d", ErrInvalidAttribute, a.PointsRequired)
	}
	return nil
}

// Node is a single skill. Adjacency is id-based; the owning Graph keeps
// parents and children mirrored.
type Node struct {
	id    NodeID
	attrs Attributes

	pointsGiven int
	maxed       bool

	parents  []NodeID // insertion order
	children []NodeID // insertion order
}

func newNode(id NodeID) *Node {
	return &Node{
		id: id,
		attrs: Attributes{
			Name:     DefaultName,
			PointCap: DefaultPointCap,
		},
	}
}

func (n *Node) ID() NodeID              { return n.id }
func (n *Node) Attributes() Attributes  { return n.attrs }
func (n *Node) Name() string            { return n.attrs.Name }
func (n *Node) Description() string     { return n.attrs.Description }
func (n *Node) Icon() string            { return n.attrs.Icon }
func (n *Node) PointCap() int           { return n.attrs.PointCap }
func (n *Node) PointsRequired() int     { return n.attrs.PointsRequired }
func (n *Node) PointsGiven() int        { return n.pointsGiven }
func (n *Node) Maxed() bool             { return n.maxed }
func (n *Node) Parents() []NodeID       { return slices.Clone(n.parents) }
func (n *Node) Children() []NodeID      { return slices.Clone(n.children) }
func (n *Node) IsRoot() bool            { return len(n.parents) == 0 }
func (n *Node) IsMaxed() bool           { return n.pointsGiven == n.attrs.PointCap }
func (n *Node) hasParent(id NodeID) bool { return slices.Contains(n.parents, id) }
func (n *Node) hasChild(id NodeID) bool  { return slices.Contains(n.children, id) }

// State reports Empty, Partial or Maxed from the invested points.
func (n *Node) State() State {
	switch {
	case n.pointsGiven == 0:
		return StateEmpty
	case n.pointsGiven >= n.attrs.PointCap:
		return StateMaxed
	default:
		return StatePartial
	}
}

// reset force-clears progress. Used by the refund cascade.
func (n *Node) reset() {
	n.pointsGiven = 0
	n.maxed = false
}

func (n *Node) clone() *Node {
	c := *n
	c.parents = slices.Clone(n.parents)
	c.children = slices.Clone(n.children)
	return &c
}

func removeID(ids []NodeID, id NodeID) ([]NodeID, bool) {
	i := slices.Index(ids, id)
	if i < 0 {
		return ids, false
	}
	return slices.Delete(ids, i, i+1), true
}
