// Package layermodule holds the in-memory registry of tag layers.
package layermodule

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
)

// Descriptor describes a tag layer and the generator that fills it
type Descriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Generator string `json:"generator"`
	PluginID  string `json:"plugin_id,omitempty"`
}

// Registry maps layer ids to descriptors. Re-registering an id replaces the
// previous descriptor. Nothing is persisted.
type Registry struct {
	layers map[string]Descriptor
	logger hclog.Logger
	mu     sync.RWMutex
}

// NewRegistry creates an empty layer registry
func NewRegistry(log hclog.Logger) *Registry {
	return &Registry{
		layers: make(map[string]Descriptor),
		logger: logger.OrNull(log),
	}
}

// RegisterLayer registers desc under layerID. An empty layerID is rejected with
// an error log. The descriptor's ID defaults to layerID.
func (r *Registry) RegisterLayer(layerID string, desc Descriptor) {
	if layerID == "" {
		r.logger.Error("cannot register tag layer without id", "name", desc.Name)
		return
	}
	if desc.ID == "" {
		desc.ID = layerID
	}

	r.mu.Lock()
	r.layers[layerID] = desc
	r.mu.Unlock()

	if desc.PluginID != "" {
		r.logger.Info("registered tag layer", "layer", layerID, "generator", desc.Generator, "plugin", desc.PluginID)
	} else {
		r.logger.Info("registered tag layer", "layer", layerID, "generator", desc.Generator)
	}
}

// GetLayer returns the descriptor registered under layerID
func (r *Registry) GetLayer(layerID string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.layers[layerID]
	return desc, ok
}

// ListLayers returns a copy of all registered descriptors
func (r *Registry) ListLayers() map[string]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Descriptor, len(r.layers))
	for id, desc := range r.layers {
		result[id] = desc
	}
	return result
}

// LayerIDs returns the registered layer ids in sorted order
func (r *Registry) LayerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.layers))
	for id := range r.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearByPlugin removes every layer contributed by pluginID and returns how many were removed
func (r *Registry) ClearByPlugin(pluginID string) int {
	if pluginID == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, desc := range r.layers {
		if desc.PluginID == pluginID {
			delete(r.layers, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("removed plugin layers", "plugin", pluginID, "count", removed)
	}
	return removed
}

// Clear removes all layers
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers = make(map[string]Descriptor)
}
