package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor.io/mes/internal/api/handlers"
	"shopfloor.io/mes/internal/api/middleware"
	"shopfloor.io/mes/internal/app/modules"
	"shopfloor.io/mes/internal/pkg/logger"
)

func newRouter(infra *modules.Infrastructure) *gin.Engine {
	return buildRouter(handlers.NewServer(newServerDeps(infra)), infra.Metrics.Handler())
}

// buildRouter mounts the API handlers plus the metrics and log level
// endpoints.
func buildRouter(server *handlers.Server, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())

	server.Register(router)
	router.GET("/metrics", gin.WrapH(metricsHandler))

	level := gin.WrapH(logger.LevelHandler())
	router.GET("/log/level", level)
	router.PUT("/log/level", level)
	return router
}
