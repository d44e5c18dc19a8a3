package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/modules/catalogmodule"
	"github.com/mantonx/mediatags/internal/utils"
)

// AddAssetRequest names a file or directory to catalog
type AddAssetRequest struct {
	Path string `json:"path" binding:"required"`
}

// CatalogHandler serves the asset catalog
type CatalogHandler struct {
	catalog *catalogmodule.Catalog
}

func NewCatalogHandler(catalog *catalogmodule.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListAssets returns a page of catalogued assets (?limit=&offset=)
func (h *CatalogHandler) ListAssets(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		tagerrors.HandleValidationError(c, "limit must be a non-negative integer", "limit")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		tagerrors.HandleValidationError(c, "offset must be a non-negative integer", "offset")
		return
	}

	assets, err := h.catalog.ListAssets(c.Request.Context(), limit, offset)
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	total, err := h.catalog.Count(c.Request.Context())
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assets": assets,
		"count":  len(assets),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *CatalogHandler) GetAsset(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsValidUUID(id) {
		tagerrors.HandleValidationError(c, "asset id must be a UUID", "id")
		return
	}

	asset, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// AddAsset catalogs a single media file
func (h *CatalogHandler) AddAsset(c *gin.Context) {
	var req AddAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		tagerrors.HandleValidationError(c, "path is required", "path")
		return
	}

	asset, err := h.catalog.AddPath(c.Request.Context(), req.Path)
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// ImportDirectory catalogs every media file below a directory
func (h *CatalogHandler) ImportDirectory(c *gin.Context) {
	var req AddAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		tagerrors.HandleValidationError(c, "path is required", "path")
		return
	}

	result, err := h.catalog.ImportDirectory(c.Request.Context(), req.Path)
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *CatalogHandler) RemoveAsset(c *gin.Context) {
	if err := h.catalog.Remove(c.Request.Context(), c.Param("id")); err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
