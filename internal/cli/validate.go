package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type validateResult struct {
	Path    string         `json:"path"`
	Version string         `json:"version"`
	Trees   map[string]int `json:"trees"`
}

func RunValidate(cmd *cobra.Command, args []string) error {
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}
	cfg, graphs, err := loadTrees(args[0])
	if err != nil {
		return err
	}

	res := validateResult{Path: args[0], Version: cfg.Version, Trees: make(map[string]int, len(graphs))}
	for id, g := range graphs {
		res.Trees[id] = g.Len()
	}
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, res)
	}

	ids := make([]string, 0, len(res.Trees))
	for id := range res.Trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(out, "%s: ok (version %s, %d trees)\n", res.Path, res.Version, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %-20s %d nodes\n", id, res.Trees[id])
	}
	return nil
}
