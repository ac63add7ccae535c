package api

import (
	"kb-research-report/internal/middleware"
	"kb-research-report/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers, jwtSecret string) *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(corsMiddleware())

	auth := middleware.AuthenticateUser(jwtSecret)

	// API routes
	api := router.Group("/api")
	{
		reports := api.Group("/reports")
		reports.Use(auth)
		{
			reports.POST("/generate", handlers.GenerateReportHandler)
			reports.GET("", handlers.ListReportsHandler)
			reports.GET("/pending", handlers.ListReportsByStatusHandler(models.ReportStatusPending))
			reports.GET("/failed", handlers.ListReportsByStatusHandler(models.ReportStatusFailure))
			reports.GET("/quota", handlers.GetQuotaHandler)
			reports.GET("/:reportId", handlers.GetReportHandler)
			reports.DELETE("/:reportId", handlers.DeleteReportHandler)
		}
	}

	// Live progress websocket; token arrives as a query parameter
	router.GET("/ws", auth, handlers.ProgressHandler)

	// Health check endpoint
	router.GET("/health", handlers.HealthHandler)

	return router
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
