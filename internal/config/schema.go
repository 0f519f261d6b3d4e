package config

// TreeConfig is the top-level YAML structure.
type TreeConfig struct {
	Version string     `yaml:"version"`
	Engine  EngineConf `yaml:"engine"`
	Store   StoreConf  `yaml:"store"`
	Trees   []TreeDef  `yaml:"trees"`
}

// EngineConf holds session and persistence tuning.
type EngineConf struct {
	PersistWorkers    int `yaml:"persist_workers"`
	PersistQueueDepth int `yaml:"persist_queue_depth"`
	CommandTimeoutMs  int `yaml:"command_timeout_ms"`
}

// StoreConf locates the snapshot database. An empty path keeps sessions in
// memory only.
type StoreConf struct {
	Path string `yaml:"path"`
}

// TreeDef is one skill tree template.
type TreeDef struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Nodes       []NodeDef `yaml:"nodes"`
}

// NodeDef is one skill. Parents refer to other node ids in the same tree.
type NodeDef struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Icon           string   `yaml:"icon"`
	PointCap       int      `yaml:"point_cap"` // 0 = 1
	PointsRequired int      `yaml:"points_required"`
	Parents        []string `yaml:"parents"`
}

// Tree returns the template with the given id.
func (c *TreeConfig) Tree(id string) (*TreeDef, bool) {
	for i := range c.Trees {
		if c.Trees[i].ID == id {
			return &c.Trees[i], true
		}
	}
	return nil, false
}
