package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"vizinsight/logging"
	"vizinsight/session"
)

// NewRouter wires every route. An empty origin list allows all origins.
func NewRouter(h *Handlers, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With", "X-User-ID", "X-User-Email", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(session.Middleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", h.HealthHandler)
	r.GET("/ws", h.EventsHandler)

	api := r.Group("/api")
	api.POST("/surfaces", h.CreateSurfaceHandler)
	api.POST("/surfaces/:id/query", h.QueryHandler)
	api.GET("/surfaces/:id/result", h.GetResultHandler)
	api.DELETE("/surfaces/:id/result", h.ClearResultHandler)
	api.PUT("/surfaces/:id/tab", h.SetTabHandler)
	api.GET("/surfaces/:id/page", h.PageHandler)
	api.DELETE("/surfaces/:id", h.CloseSurfaceHandler)
	api.GET("/limit", h.LimitHandler)
	api.GET("/queries", h.ListQueriesHandler)
	api.GET("/queries/:id/export", h.ExportQueryHandler)

	return r
}
