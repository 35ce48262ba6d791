// Package entrypoint wires the application together and runs the HTTP
// server with graceful shutdown.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JustinD79/diaguard/internal/cli"
	"github.com/JustinD79/diaguard/internal/config"
	"github.com/JustinD79/diaguard/internal/database"
	"github.com/JustinD79/diaguard/internal/database/conflicts"
	"github.com/JustinD79/diaguard/internal/database/connections"
	"github.com/JustinD79/diaguard/internal/database/history"
	"github.com/JustinD79/diaguard/internal/database/meals"
	"github.com/JustinD79/diaguard/internal/database/syncrecords"
	http_controllers "github.com/JustinD79/diaguard/internal/http"
	"github.com/JustinD79/diaguard/internal/scheduler"
	"github.com/JustinD79/diaguard/internal/syncer"
	"github.com/JustinD79/diaguard/internal/tasks"
	"github.com/JustinD79/diaguard/internal/tokenstore"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains it within
// the configured shutdown timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before draining in-flight HTTP requests.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run builds every component from configuration and serves until shutdown.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Diaguard sync service v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	tokens, err := tokenstore.New(cfg.Crypto.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token store: %v", err)
	}

	connectionsRepo := connections.NewRepository(db.DB)
	mealsRepo := meals.NewRepository(db.DB)
	recordsRepo := syncrecords.NewRepository(db.DB)
	conflictsRepo := conflicts.NewRepository(db.DB)
	historyRepo := history.NewRepository(db.DB)

	registry := cli.NewProviderRegistry(cfg.Providers)

	syncService := syncer.NewService(
		connectionsRepo,
		mealsRepo,
		recordsRepo,
		conflictsRepo,
		historyRepo,
		registry,
		tokens,
		syncer.Settings{
			DefaultWindow:  cfg.Sync.DefaultWindow,
			ConflictWindow: cfg.Sync.ConflictWindow,
		},
	)

	// Task queue for API-triggered background syncs.
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewSyncConnectionQueue(syncService),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Periodic due-connection scan.
	var syncScheduler *scheduler.NutritionSyncScheduler
	if cfg.Scheduler.Enabled {
		syncScheduler = scheduler.NewNutritionSyncScheduler(connectionsRepo, syncService, cfg.Scheduler.Schedule)
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start sync scheduler: %v", err)
		}
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:    db,
		Connections: connectionsRepo,
		Meals:       mealsRepo,
		History:     historyRepo,
		Syncer:      syncService,
		Tokens:      tokens,
		TaskClient:  taskClient,
		Version:     version,
	})

	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
