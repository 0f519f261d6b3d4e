package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
	"github.com/spf13/cobra"
)

type stepKind string

const (
	stepSpend  stepKind = "spend"
	stepRefund stepKind = "refund"
)

type step struct {
	kind stepKind
	node skill.NodeID
}

func parseSteps(args []string) ([]step, error) {
	steps := make([]step, 0, len(args))
	for _, arg := range args {
		kind, node, ok := strings.Cut(arg, ":")
		if !ok || node == "" {
			return nil, fmt.Errorf("invalid step %q: want spend:<node> or refund:<node>", arg)
		}
		switch stepKind(kind) {
		case stepSpend, stepRefund:
		default:
			return nil, fmt.Errorf("invalid step %q: unknown action %q", arg, kind)
		}
		steps = append(steps, step{kind: stepKind(kind), node: skill.NodeID(node)})
	}
	return steps, nil
}

// applyStep runs one step and describes what happened.
func applyStep(g *skill.Graph, s step) (string, error) {
	switch s.kind {
	case stepSpend:
		ok, err := skill.Spend(g, s.node)
		if err != nil {
			return "", err
		}
		if !ok {
			st, err := skill.StatusOf(g, s.node)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("spend %s: rejected (%s)", s.node, st.Text), nil
		}
		n, err := g.Node(s.node)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("spend %s: %d/%d, total %d", s.node, n.PointsGiven(), n.PointCap(), g.TotalPointsGiven()), nil
	default:
		res, err := skill.Refund(g, s.node)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("refund %s: total %d", s.node, g.TotalPointsGiven())
		if !res.Refunded {
			line += " (node had no points)"
		}
		if len(res.Reset) > 0 {
			line += ", reset " + joinIDs(res.Reset)
		}
		return line, nil
	}
}

func RunSimulate(cmd *cobra.Command, args []string) error {
	treeID, err := stringFlag(cmd, "tree")
	if err != nil {
		return err
	}
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}
	steps, err := parseSteps(args[1:])
	if err != nil {
		return err
	}
	g, err := loadTree(args[0], treeID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range steps {
		line, err := applyStep(g, s)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.kind, s.node, err)
		}
		if !asJSON {
			fmt.Fprintln(out, line)
		}
	}
	if asJSON {
		return writeJSON(out, g.Snapshot())
	}

	fmt.Fprintf(out, "\ntotal points: %d\n", g.TotalPointsGiven())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPOINTS\tSTATUS")
	for _, n := range g.Nodes() {
		st, err := skill.StatusOf(g, n.ID())
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\n", n.ID(), n.PointsGiven(), n.PointCap(), st.Availability)
	}
	return tw.Flush()
}
