package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
)

// TagsHandler serves the layer registry and tag index
type TagsHandler struct {
	registry *layermodule.Registry
	index    *tagindexmodule.Store
	paths    PathResolver
	bus      *events.Bus
}

// PathResolver maps asset ids to paths. Optional.
type PathResolver interface {
	GetPathByID(assetID string) (string, bool)
}

// NewTagsHandler creates the tag index handlers. paths and bus may be nil.
func NewTagsHandler(registry *layermodule.Registry, index *tagindexmodule.Store, paths PathResolver, bus *events.Bus) *TagsHandler {
	return &TagsHandler{registry: registry, index: index, paths: paths, bus: bus}
}

// ListLayers returns the registered layers
func (h *TagsHandler) ListLayers(c *gin.Context) {
	ids := h.registry.LayerIDs()
	layers := make([]layermodule.Descriptor, 0, len(ids))
	for _, id := range ids {
		if desc, ok := h.registry.GetLayer(id); ok {
			layers = append(layers, desc)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"layers": layers,
		"count":  len(layers),
	})
}

// GetAssetTags returns every layer record of one asset. ?layer= narrows to a single layer.
func (h *TagsHandler) GetAssetTags(c *gin.Context) {
	assetID := c.Param("id")
	layers := h.index.GetLayersForAsset(assetID)

	if layerID := strings.TrimSpace(c.Query("layer")); layerID != "" {
		rec, ok := layers[layerID]
		if !ok {
			tagerrors.HandleNotFound(c, "layer record", assetID+"/"+layerID)
			return
		}
		layers = map[string]tagindexmodule.Record{layerID: rec}
	}
	if len(layers) == 0 {
		tagerrors.HandleNotFound(c, "asset", assetID)
		return
	}

	response := gin.H{
		"asset_id": assetID,
		"layers":   layers,
	}
	if h.paths != nil {
		if path, ok := h.paths.GetPathByID(assetID); ok {
			response["path"] = path
		}
	}
	c.JSON(http.StatusOK, response)
}

// QueryTags returns the assets matching a tag query
func (h *TagsHandler) QueryTags(c *gin.Context) {
	var q tagindexmodule.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		tagerrors.HandleValidationError(c, "invalid query body: "+err.Error(), "body")
		return
	}

	assets := h.index.QueryAssets(q)
	c.JSON(http.StatusOK, gin.H{
		"assets": assets,
		"count":  len(assets),
	})
}

// ClearLayer drops one layer from every asset
func (h *TagsHandler) ClearLayer(c *gin.Context) {
	layerID := strings.TrimSpace(c.Param("id"))
	if layerID == "" {
		tagerrors.HandleValidationError(c, "layer id is required", "id")
		return
	}

	h.index.ClearLayer(layerID)
	if h.bus != nil {
		h.bus.Publish(events.Event{
			Type:    events.EventLayerCleared,
			Source:  "http",
			Message: "tag layer cleared",
			Data:    map[string]interface{}{"layer": layerID},
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"layer":   layerID,
		"cleared": true,
	})
}

// RemoveAsset deletes an asset's entry from the index
func (h *TagsHandler) RemoveAsset(c *gin.Context) {
	assetID := c.Param("id")
	if !h.index.RemoveAsset(assetID) {
		tagerrors.HandleNotFound(c, "asset", assetID)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats summarises the index
func (h *TagsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.index.Stats())
}
