package generatormodule

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
)

//go:embed default_model.json
var defaultModelJSON []byte

// EmbeddedModelPath is reported as the model path when the embedded model is used
const EmbeddedModelPath = "embedded:default_model.json"

// modelSchema constrains the model description document
const modelSchema = `
features!: [...string]
labels!: [...{
	id!:     string
	tag!:    string
	extras?: [...string]
}]
weights!: {[string]: {
	weights!: [...number]
	bias?:    number
}}
name?:    string
version?: string
`

var requiredModelKeys = []string{"features", "labels", "weights"}

// Label is one class the classifier can predict
type Label struct {
	ID     string   `json:"id"`
	Tag    string   `json:"tag"`
	Extras []string `json:"extras,omitempty"`
}

// LabelWeights is the linear scorer of one label
type LabelWeights struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Model is a curated linear classifier description
type Model struct {
	Name     string                  `json:"name,omitempty"`
	Version  string                  `json:"version,omitempty"`
	Features []string                `json:"features"`
	Labels   []Label                 `json:"labels"`
	Weights  map[string]LabelWeights `json:"weights"`

	// Path is where the description was loaded from
	Path string `json:"-"`
}

// LoadModel reads and validates the model description at path. An empty path
// loads the embedded default model.
func LoadModel(path string) (*Model, error) {
	if path == "" {
		return ParseModel(defaultModelJSON, EmbeddedModelPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tagerrors.NewModelError("failed to read model description", err)
	}
	return ParseModel(data, path)
}

// ParseModel validates data against the model schema and decodes it
func ParseModel(data []byte, path string) (*Model, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, tagerrors.NewModelError("model description is not a JSON object", err)
	}
	for _, key := range requiredModelKeys {
		if _, ok := raw[key]; !ok {
			return nil, tagerrors.NewModelError(fmt.Sprintf("model description missing required key %q", key), nil)
		}
	}

	if err := validateModelDocument(data); err != nil {
		return nil, tagerrors.NewModelError("model description failed schema validation", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, tagerrors.NewModelError("failed to decode model description", err)
	}
	m.Path = path

	if len(m.Labels) == 0 {
		return nil, tagerrors.NewModelError("model has no labels", nil)
	}
	for _, name := range m.Features {
		if _, ok := featureExtractors[name]; !ok {
			return nil, tagerrors.NewModelError(fmt.Sprintf("unsupported feature %q", name), nil)
		}
	}
	return &m, nil
}

func validateModelDocument(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(modelSchema, cue.Filename("model_schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename("model.json"))
	if err := doc.Err(); err != nil {
		return err
	}

	return schema.Unify(doc).Validate(cue.Concrete(true))
}

// Score returns the per-label scores bias + w·x in label order
func (m *Model) Score(vector []float64) ([]float64, error) {
	scores := make([]float64, len(m.Labels))
	for i, label := range m.Labels {
		w, ok := m.Weights[label.ID]
		if !ok {
			return nil, tagerrors.NewModelError(fmt.Sprintf("missing weights for label %q", label.ID), nil)
		}
		if len(w.Weights) != len(vector) {
			return nil, tagerrors.NewModelError(fmt.Sprintf(
				"label %q has %d weights for %d features", label.ID, len(w.Weights), len(vector)), nil)
		}
		s := w.Bias
		for j, x := range vector {
			s += w.Weights[j] * x
		}
		scores[i] = s
	}
	return scores, nil
}
