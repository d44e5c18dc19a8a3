package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/mediatags/internal/server/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	r := s.router
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tags := handlers.NewTagsHandler(s.app.Registry, s.app.Index, s.app.Catalog, s.app.Bus)
	profiles := handlers.NewProfilesHandler(s.app.Profiles, s.app.Jobs)
	jobs := handlers.NewJobsHandler(s.app.Jobs, s.app.Bus, s.logger)
	catalog := handlers.NewCatalogHandler(s.app.Catalog)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Layers and the tag index
		api.GET("/layers", tags.ListLayers)
		api.DELETE("/layers/:id/tags", tags.ClearLayer)
		api.GET("/assets/:id/tags", tags.GetAssetTags)
		api.DELETE("/assets/:id/tags", tags.RemoveAsset)
		api.POST("/tags/query", tags.QueryTags)
		api.GET("/tags/stats", tags.Stats)

		// Scan profiles
		profileGroup := api.Group("/profiles")
		{
			profileGroup.GET("", profiles.ListProfiles)
			profileGroup.POST("/reload", profiles.Reload)
			profileGroup.GET("/:id", profiles.GetProfile)
			profileGroup.PUT("/:id", profiles.SaveProfile)
			profileGroup.DELETE("/:id", profiles.DeleteProfile)
			profileGroup.POST("/:id/run", profiles.RunProfile)
		}

		// Scan jobs
		jobGroup := api.Group("/jobs")
		{
			jobGroup.GET("", jobs.ListJobs)
			jobGroup.GET("/stream", jobs.Stream)
			jobGroup.GET("/:id", jobs.GetJob)
			jobGroup.DELETE("/:id", jobs.CancelJob)
		}

		// Asset catalog
		catalogGroup := api.Group("/catalog")
		{
			catalogGroup.GET("/assets", catalog.ListAssets)
			catalogGroup.POST("/assets", catalog.AddAsset)
			catalogGroup.GET("/assets/:id", catalog.GetAsset)
			catalogGroup.DELETE("/assets/:id", catalog.RemoveAsset)
			catalogGroup.POST("/import", catalog.ImportDirectory)
		}
	}
}
