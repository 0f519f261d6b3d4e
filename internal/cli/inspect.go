package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
	"github.com/spf13/cobra"
)

type inspectRow struct {
	ID             skill.NodeID   `json:"id"`
	Name           string         `json:"name"`
	Depth          int            `json:"depth"`
	PointCap       int            `json:"point_cap"`
	PointsRequired int            `json:"points_required"`
	Parents        []skill.NodeID `json:"parents"`
	Root           bool           `json:"root"`
}

// inspectRows lists the tree in topological order.
func inspectRows(g *skill.Graph) ([]inspectRow, error) {
	order, err := skill.TopoOrder(g)
	if err != nil {
		return nil, err
	}
	depths, err := skill.Depths(g)
	if err != nil {
		return nil, err
	}
	rows := make([]inspectRow, 0, len(order))
	for _, id := range order {
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		parents := n.Parents()
		if parents == nil {
			parents = []skill.NodeID{}
		}
		rows = append(rows, inspectRow{
			ID:             id,
			Name:           n.Name(),
			Depth:          depths[id],
			PointCap:       n.PointCap(),
			PointsRequired: n.PointsRequired(),
			Parents:        parents,
			Root:           n.IsRoot(),
		})
	}
	return rows, nil
}

func RunInspect(cmd *cobra.Command, args []string) error {
	treeID, err := stringFlag(cmd, "tree")
	if err != nil {
		return err
	}
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}
	g, err := loadTree(args[0], treeID)
	if err != nil {
		return err
	}
	rows, err := inspectRows(g)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, rows)
	}
	fmt.Fprintf(out, "tree %s: %d nodes, roots %s\n", treeID, g.Len(), joinIDs(g.Roots()))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tID\tNAME\tCAP\tREQUIRES\tPARENTS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", r.Depth, r.ID, r.Name, r.PointCap, r.PointsRequired, joinIDs(r.Parents))
	}
	return tw.Flush()
}
