package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/modules/scanprofilemodule"
)

// RunProfileRequest selects explicit targets for a profile run
type RunProfileRequest struct {
	AssetIDs []string `json:"asset_ids,omitempty"`
}

// ProfilesHandler serves scan profiles and starts profile runs
type ProfilesHandler struct {
	service *scanprofilemodule.Service
	jobs    *scanprofilemodule.JobManager
}

func NewProfilesHandler(service *scanprofilemodule.Service, jobs *scanprofilemodule.JobManager) *ProfilesHandler {
	return &ProfilesHandler{service: service, jobs: jobs}
}

// ListProfiles returns all profiles keyed by id
func (h *ProfilesHandler) ListProfiles(c *gin.Context) {
	profiles := h.service.ListProfiles()
	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (h *ProfilesHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	profile, ok := h.service.GetProfile(id)
	if !ok {
		tagerrors.HandleNotFound(c, "profile", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"profile": profile,
	})
}

// SaveProfile creates or replaces a profile
func (h *ProfilesHandler) SaveProfile(c *gin.Context) {
	id := c.Param("id")

	var profile scanprofilemodule.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		tagerrors.HandleValidationError(c, "invalid profile body: "+err.Error(), "body")
		return
	}
	if err := h.service.SaveProfile(id, profile); err != nil {
		tagerrors.HandleError(c, err)
		return
	}

	saved, _ := h.service.GetProfile(id)
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"profile": saved,
	})
}

func (h *ProfilesHandler) DeleteProfile(c *gin.Context) {
	if err := h.service.DeleteProfile(c.Param("id")); err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunProfile queues a background job. An empty body selects targets by the profile filter.
func (h *ProfilesHandler) RunProfile(c *gin.Context) {
	var req RunProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		tagerrors.HandleValidationError(c, "invalid run body: "+err.Error(), "body")
		return
	}

	job, err := h.jobs.Start(c.Param("id"), req.AssetIDs)
	if err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// Reload re-reads the profiles document from disk
func (h *ProfilesHandler) Reload(c *gin.Context) {
	if err := h.service.Reload(); err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": h.service.ProfileIDs()})
}
