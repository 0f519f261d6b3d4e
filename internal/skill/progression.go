package skill

import "fmt"

// Availability explains why a node can or cannot take another point.
type Availability string

const (
	Available    Availability = "available"
	Maxed        Availability = "maxed"
	NeedsPoints  Availability = "needs_points"
	NeedsParents Availability = "needs_parents"
)

// Status is the display-ready eligibility of a node.
type Status struct {
	Availability Availability `json:"availability"`
	PointsGiven  int          `json:"points_given"`
	PointCap     int          `json:"point_cap"`
	// PointsMissing is how many more tree points must be spent before the
	// node's requirement is met.
	PointsMissing int    `json:"points_missing"`
	Text          string `json:"text"`
}

// RefundResult reports what a Refund changed.
type RefundResult struct {
	Refunded bool     `json:"refunded"` // the node itself lost a point
	Reset    []NodeID `json:"reset"`    // descendants that had points and were zeroed
}

// CanSpend reports whether id may take one more point: it is not maxed,
// every parent is maxed, and the tree total meets its requirement.
func CanSpend(g *Graph, id NodeID) (bool, error) {
	n, err := g.Node(id)
	if err != nil {
		return false, err
	}
	return canSpend(g, n), nil
}

func canSpend(g *Graph, n *Node) bool {
	if n.pointsGiven >= n.attrs.PointCap {
		return false
	}
	if !parentsMaxed(g, n) {
		return false
	}
	return g.totalPointsGiven >= n.attrs.PointsRequired
}

func parentsMaxed(g *Graph, n *Node) bool {
	for _, p := range n.parents {
		pn := g.nodes[p]
		if pn.pointsGiven != pn.attrs.PointCap {
			return false
		}
	}
	return true
}

// Spend invests one point in id. It returns false and changes nothing when
// CanSpend does not hold.
func Spend(g *Graph, id NodeID) (bool, error) {
	n, err := g.Node(id)
	if err != nil {
		return false, err
	}
	if !canSpend(g, n) {
		return false, nil
	}
	n.pointsGiven++
	g.totalPointsGiven++
	if n.pointsGiven >= n.attrs.PointCap {
		n.pointsGiven = n.attrs.PointCap
		n.maxed = true
	}
	return true, nil
}

// Refund removes one point from id (never below zero) and one from the tree
// total (never below zero), then zeroes every descendant. Points wiped from
// descendants are not returned to the total.
func Refund(g *Graph, id NodeID) (RefundResult, error) {
	n, err := g.Node(id)
	if err != nil {
		return RefundResult{}, err
	}
	var res RefundResult
	nodeDelta := 0
	if n.pointsGiven > 0 {
		n.pointsGiven--
		nodeDelta = 1
		res.Refunded = true
	}
	n.maxed = false
	g.shrinkTotal(nodeDelta, 1)

	g.walk(id, (*Node).childIDs, func(d NodeID) bool {
		dn := g.nodes[d]
		if dn.pointsGiven > 0 {
			res.Reset = append(res.Reset, d)
		}
		g.shrinkTotal(dn.pointsGiven, 0)
		dn.reset()
		return true
	})
	return res, nil
}

// StatusOf describes id the way a tooltip would: "2/5" when a point can be
// spent, otherwise why not.
func StatusOf(g *Graph, id NodeID) (Status, error) {
	n, err := g.Node(id)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		PointsGiven: n.pointsGiven,
		PointCap:    n.attrs.PointCap,
		Text:        fmt.Sprintf("%d/%d", n.pointsGiven, n.attrs.PointCap),
	}
	if missing := n.attrs.PointsRequired - g.totalPointsGiven; missing > 0 {
		st.PointsMissing = missing
	}
	switch {
	case n.pointsGiven >= n.attrs.PointCap:
		st.Availability = Maxed
	case st.PointsMissing > 0:
		st.Availability = NeedsPoints
		st.Text = fmt.Sprintf("Must spend %d more %s.", st.PointsMissing, plural(st.PointsMissing, "point", "points"))
	case !parentsMaxed(g, n):
		st.Availability = NeedsParents
		st.Text = "Must unlock parent skills."
	default:
		st.Availability = Available
	}
	return st, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
