package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/kandev/agui-gateway/internal/bridge"
	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/events/bus"
	"github.com/kandev/agui-gateway/internal/runlog"
	"github.com/kandev/agui-gateway/internal/threads"
)

// SetupRoutes configures the gateway API routes
func SetupRoutes(router *gin.RouterGroup, runner *bridge.Runner, store threads.Store, runLog *runlog.Log, eventBus bus.EventBus, log *logger.Logger) {
	handler := NewHandler(runner, store, runLog, eventBus, log)

	// Run routes
	router.POST("/runs", handler.CreateRun)

	// Thread routes
	threadRoutes := router.Group("/threads")
	{
		threadRoutes.GET("", handler.ListThreads)
		threadRoutes.GET("/:threadId", handler.GetThread)
		threadRoutes.DELETE("/:threadId", handler.DeleteThread)
		threadRoutes.GET("/:threadId/events", handler.ListThreadEvents)
	}
}
