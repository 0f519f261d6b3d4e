package engine

import (
	"sort"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

// TreeInfo describes a template for listings.
type TreeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Nodes       int    `json:"nodes"`
	Roots       int    `json:"roots"`
}

// Catalog holds the built tree templates. It is immutable once built;
// hot-reload builds a new Catalog and swaps it in.
type Catalog struct {
	version string
	trees   map[string]*skill.Graph
	infos   []TreeInfo
}

// NewCatalog builds every tree in cfg.
func NewCatalog(cfg *config.TreeConfig) (*Catalog, error) {
	graphs, err := skill.BuildAll(cfg)
	if err != nil {
		return nil, err
	}
	c := &Catalog{version: cfg.Version, trees: graphs}
	for _, def := range cfg.Trees {
		g := graphs[def.ID]
		c.infos = append(c.infos, TreeInfo{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Nodes:       g.Len(),
			Roots:       len(g.Roots()),
		})
	}
	sort.Slice(c.infos, func(i, j int) bool { return c.infos[i].ID < c.infos[j].ID })
	return c, nil
}

// Version is the config version the catalog was built from.
func (c *Catalog) Version() string { return c.version }

// Trees lists the templates sorted by id.
func (c *Catalog) Trees() []TreeInfo { return c.infos }

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.trees) }

// instantiate returns a private copy of a template.
func (c *Catalog) instantiate(treeID string) (*skill.Graph, bool) {
	g, ok := c.trees[treeID]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}
