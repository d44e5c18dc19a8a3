package generatormodule

import (
	"context"
	"testing"

	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopGenerator struct{}

func (noopGenerator) ProcessAsset(context.Context, string) error { return nil }

func TestDefaultFactories(t *testing.T) {
	r := DefaultFactories()
	assert.Equal(t, []string{KeyClassifier, KeyHeuristic}, r.Keys())

	gen, err := r.Build(layermodule.Descriptor{ID: LayerBasic, Generator: KeyHeuristic}, Dependencies{Index: newIndex(t)})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicGenerator{}, gen)

	gen, err = r.Build(layermodule.Descriptor{ID: LayerAIDeep, Generator: KeyClassifier}, Dependencies{Index: newIndex(t)})
	require.NoError(t, err)
	assert.IsType(t, &ClassifierGenerator{}, gen)
}

func TestBuild_Errors(t *testing.T) {
	r := NewFactoryRegistry()
	r.Register("panics", func(layermodule.Descriptor, Dependencies) (Generator, error) {
		panic("boom")
	})
	r.Register("nil", func(layermodule.Descriptor, Dependencies) (Generator, error) {
		return nil, nil
	})
	r.Register("ok", func(layermodule.Descriptor, Dependencies) (Generator, error) {
		return noopGenerator{}, nil
	})

	_, err := r.Build(layermodule.Descriptor{ID: "x", Generator: "missing"}, Dependencies{})
	assert.ErrorContains(t, err, "no generator registered")

	_, err = r.Build(layermodule.Descriptor{ID: "x", Generator: "panics"}, Dependencies{})
	assert.ErrorContains(t, err, "panicked")

	_, err = r.Build(layermodule.Descriptor{ID: "x", Generator: "nil"}, Dependencies{})
	assert.ErrorContains(t, err, "returned nil")

	gen, err := r.Build(layermodule.Descriptor{ID: "x", Generator: "ok"}, Dependencies{})
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = DefaultFactories().Build(layermodule.Descriptor{ID: "basic", Generator: KeyHeuristic}, Dependencies{})
	assert.Error(t, err, "heuristic without an index")
}
