package endpoints

import (
	"clipcast/internal/config"
	"clipcast/internal/jobs"
	"clipcast/internal/storage"

	_ "clipcast/docs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, sched Scheduler, store jobs.Store, videos storage.Storage) {
	// Prometheus scrape endpoint, outside the /api group
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group with common middleware
	api := r.Group("/api")
	{
		// Swagger endpoint
		api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

		// Health check endpoint
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "healthy",
				"service": "clipcast",
			})
		})

		// Video job routes
		api.POST("/create-video", HandleCreateVideo(sched))
		api.GET("/video-status/:jobId", HandleVideoStatus(sched))
		api.GET("/download-video/:jobId", HandleDownloadVideo(store, videos))

		// Legacy on-device caption path; shares the provider credential
		proxy := NewTranscriptProxy(config.AssemblyAIKey, config.AssemblyAIBaseURL)
		api.POST("/transcript", proxy.HandleCreate)
		api.GET("/transcript/:id", proxy.HandleGet)
	}
}
