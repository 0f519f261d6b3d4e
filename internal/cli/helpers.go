package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
	"github.com/spf13/cobra"
)

// loadTrees reads, validates and builds every tree in path.
func loadTrees(path string) (*config.TreeConfig, map[string]*skill.Graph, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	graphs, err := skill.BuildAll(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build trees: %w", err)
	}
	return cfg, graphs, nil
}

func loadTree(path, treeID string) (*skill.Graph, error) {
	_, graphs, err := loadTrees(path)
	if err != nil {
		return nil, err
	}
	g, ok := graphs[treeID]
	if !ok {
		return nil, fmt.Errorf("tree %q not found in %s", treeID, path)
	}
	return g, nil
}

func boolFlag(cmd *cobra.Command, name string) (bool, error) {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return v, nil
}

func stringFlag(cmd *cobra.Command, name string) (string, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(v), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinIDs(ids []skill.NodeID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
