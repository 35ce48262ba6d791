package http

import (
	"github.com/gin-gonic/gin"

	"github.com/JustinD79/diaguard/internal/database"
	"github.com/JustinD79/diaguard/internal/database/connections"
	"github.com/JustinD79/diaguard/internal/database/history"
	"github.com/JustinD79/diaguard/internal/database/meals"
	"github.com/JustinD79/diaguard/internal/syncer"
	"github.com/JustinD79/diaguard/internal/tasks"
	"github.com/JustinD79/diaguard/internal/tokenstore"
)

// RouterConfig carries every dependency the router needs, so tests can wire
// a subset without touching the entrypoint.
type RouterConfig struct {
	Database    *database.Database
	Connections *connections.Repository
	Meals       *meals.Repository
	History     *history.Repository
	Syncer      *syncer.Service
	Tokens      *tokenstore.TokenStore
	TaskClient  *tasks.Client // nil disables async sync
	Version     string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	connectionsController := NewConnectionsController(cfg.Connections, cfg.Tokens)
	syncController := NewSyncController(cfg.Syncer, cfg.TaskClient)
	mealsController := NewMealsController(cfg.Meals, cfg.Syncer)
	conflictsController := NewConflictsController(cfg.Syncer)
	historyController := NewHistoryController(cfg.History)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Connection management
	router.POST("/api/connections", connectionsController.Connect)
	router.GET("/api/connections", connectionsController.List)
	router.DELETE("/api/connections/:provider", connectionsController.Disconnect)
	router.PUT("/api/connections/:provider/config", connectionsController.UpdateConfig)

	// Sync operations
	router.POST("/api/sync/:provider", syncController.Enqueue)
	router.POST("/api/sync/:provider/run", syncController.Run)

	// Meal log
	router.GET("/api/meals", mealsController.List)
	router.POST("/api/meals", mealsController.Create)
	router.POST("/api/meals/:id/export/:provider", mealsController.Export)

	// Conflict resolution
	router.GET("/api/conflicts", conflictsController.List)
	router.POST("/api/conflicts/:id/resolve", conflictsController.Resolve)

	// Sync history
	router.GET("/api/history", historyController.List)

	return router
}
