package router

import (
	"net/http"

	"github.com/cuongbtq/courtbot/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		checks := make(map[string]string, len(deps.HealthChecks))
		for name, check := range deps.HealthChecks {
			if err := check(c.Request.Context()); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":  status,
			"service": "courtbot",
			"queue":   len(deps.Queue.Snapshot()),
			"checks":  checks,
		})
	})

	renderHandler := handler.NewRenderHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/renders - Queue a render request
		v1.POST("/renders", renderHandler.CreateRender)

		// GET /api/v1/queue - Live queue in order
		v1.GET("/queue", renderHandler.GetQueue)

		// GET /api/v1/music - Available music tracks
		v1.GET("/music", renderHandler.ListMusic)

		// GET /api/v1/history - Recently finished jobs
		v1.GET("/history", renderHandler.ListHistory)
	}

	return r
}
