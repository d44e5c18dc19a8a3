package tagindexmodule

// Record is one layer's tags for one asset
type Record struct {
	Tags []string               `json:"tags"`
	Meta map[string]interface{} `json:"meta"`
}

// Query selects assets by per-layer tag predicates. All clause families and all
// layers within a family must hold.
type Query struct {
	// IncludeAny requires at least one listed tag in the layer. Layers with an
	// empty tag list impose no constraint.
	IncludeAny map[string][]string `json:"include_any,omitempty" yaml:"include_any,omitempty"`
	// IncludeAll requires every listed tag in the layer
	IncludeAll map[string][]string `json:"include_all,omitempty" yaml:"include_all,omitempty"`
	// Exclude forbids every listed tag in the layer
	Exclude map[string][]string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// IsEmpty reports whether the query has no clauses at all
func (q Query) IsEmpty() bool {
	return len(q.IncludeAny) == 0 && len(q.IncludeAll) == 0 && len(q.Exclude) == 0
}

// Stats summarises the index contents
type Stats struct {
	Assets       int            `json:"assets"`
	LayerRecords map[string]int `json:"layer_records"`
	DocumentPath string         `json:"document_path"`
}

// document is the persisted shape: asset id -> layer id -> record
type document map[string]map[string]*Record
