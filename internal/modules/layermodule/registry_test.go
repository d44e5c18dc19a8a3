package layermodule

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLayer_DefaultsIDAndOverwrites(t *testing.T) {
	r := NewRegistry(hclog.NewNullLogger())

	r.RegisterLayer("ai_quick", Descriptor{Name: "Quick", Generator: "heuristic"})
	desc, ok := r.GetLayer("ai_quick")
	require.True(t, ok)
	assert.Equal(t, "ai_quick", desc.ID)
	assert.Equal(t, "heuristic", desc.Generator)

	r.RegisterLayer("ai_quick", Descriptor{Name: "Quick v2", Generator: "classifier"})
	desc, _ = r.GetLayer("ai_quick")
	assert.Equal(t, "Quick v2", desc.Name)
	assert.Equal(t, "classifier", desc.Generator)
}

func TestRegisterLayer_EmptyIDRejected(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterLayer("", Descriptor{Name: "nameless"})
	assert.Empty(t, r.ListLayers())
}

func TestListLayers_ReturnsCopy(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterLayer("basic", Descriptor{Generator: "heuristic"})

	layers := r.ListLayers()
	delete(layers, "basic")

	_, ok := r.GetLayer("basic")
	assert.True(t, ok)
}

func TestClearByPlugin(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterLayer("basic", Descriptor{Generator: "heuristic"})
	r.RegisterLayer("faces", Descriptor{Generator: "heuristic", PluginID: "vision"})
	r.RegisterLayer("pets", Descriptor{Generator: "heuristic", PluginID: "vision"})

	assert.Equal(t, 2, r.ClearByPlugin("vision"))
	assert.Equal(t, 0, r.ClearByPlugin(""))
	assert.Equal(t, []string{"basic"}, r.LayerIDs())

	r.Clear()
	assert.Empty(t, r.LayerIDs())
}
