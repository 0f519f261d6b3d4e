package skill

import (
	"fmt"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
)

// Build constructs a graph from a tree template. Node ids are kept, and every
// parent reference goes through Link so the result is a valid DAG or an error.
func Build(def config.TreeDef) (*Graph, error) {
	g := NewGraph()
	for _, nd := range def.Nodes {
		id := NodeID(nd.ID)
		if err := g.AddNodeWithID(id); err != nil {
			return nil, fmt.Errorf("tree %s: %w", def.ID, err)
		}
		attrs := Attributes{
			Name:           nd.Name,
			Description:    nd.Description,
			Icon:           nd.Icon,
			PointCap:       nd.PointCap,
			PointsRequired: nd.PointsRequired,
		}
		if attrs.Name == "" {
			attrs.Name = nd.ID
		}
		if attrs.PointCap == 0 {
			attrs.PointCap = DefaultPointCap
		}
		if err := g.SetAttributes(id, attrs); err != nil {
			return nil, fmt.Errorf("tree %s: node %s: %w", def.ID, nd.ID, err)
		}
	}
	for _, nd := range def.Nodes {
		for _, p := range nd.Parents {
			ok, err := g.Link(NodeID(p), NodeID(nd.ID))
			if err != nil {
				return nil, fmt.Errorf("tree %s: node %s: parent %s: %w", def.ID, nd.ID, p, err)
			}
			if !ok {
				return nil, fmt.Errorf("tree %s: node %s: parent %s rejected (self, duplicate or cycle)", def.ID, nd.ID, p)
			}
		}
	}
	return g, nil
}

// BuildAll builds every template in cfg, keyed by tree id.
func BuildAll(cfg *config.TreeConfig) (map[string]*Graph, error) {
	out := make(map[string]*Graph, len(cfg.Trees))
	for _, def := range cfg.Trees {
		g, err := Build(def)
		if err != nil {
			return nil, err
		}
		out[def.ID] = g
	}
	return out, nil
}
