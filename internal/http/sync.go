package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
	"github.com/JustinD79/diaguard/internal/tasks"
)

// SyncRunner triggers one synchronous sync pass.
type SyncRunner interface {
	SyncNutritionData(ctx context.Context, userID uint, p entities.Provider, opts syncer.Options) syncer.Result
}

type SyncController struct {
	runner SyncRunner
	tasks  *tasks.Client // nil when the task queue is disabled
}

func NewSyncController(runner SyncRunner, taskClient *tasks.Client) *SyncController {
	return &SyncController{runner: runner, tasks: taskClient}
}

type syncRequest struct {
	Direction string     `json:"direction"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

func (r *syncRequest) options() (syncer.Options, bool) {
	opts := syncer.Options{SyncType: entities.SyncTypeManual}
	switch r.Direction {
	case "":
	case string(syncer.DirectionExport), string(syncer.DirectionImport), string(syncer.DirectionBoth):
		opts.Direction = syncer.Direction(r.Direction)
	default:
		return opts, false
	}
	if r.StartDate != nil {
		opts.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		opts.EndDate = *r.EndDate
	}
	return opts, true
}

// Enqueue schedules a background sync pass and returns immediately.
// POST /api/sync/:provider
func (sc *SyncController) Enqueue(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, ok := parseProviderParam(c)
	if !ok {
		return
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, "invalid sync payload")
		return
	}
	opts, valid := req.options()
	if !valid {
		respondBadRequest(c, "invalid direction: "+req.Direction)
		return
	}

	if sc.tasks == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue disabled, use /api/sync/"+string(p)+"/run")
		return
	}

	task := tasks.SyncConnectionTask{
		UserID:    userID,
		Provider:  p,
		Direction: opts.Direction,
	}
	if req.StartDate != nil {
		task.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		task.EndDate = *req.EndDate
	}

	ids, err := sc.tasks.Add(task).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue sync task")
		return
	}

	var taskID string
	if len(ids) > 0 {
		taskID = ids[0]
	}
	respondAccepted(c, "sync scheduled", gin.H{"task_id": taskID, "provider": p})
}

// Run executes a sync pass synchronously and returns its full result.
// POST /api/sync/:provider/run
func (sc *SyncController) Run(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	p, ok := parseProviderParam(c)
	if !ok {
		return
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, "invalid sync payload")
		return
	}
	opts, valid := req.options()
	if !valid {
		respondBadRequest(c, "invalid direction: "+req.Direction)
		return
	}

	result := sc.runner.SyncNutritionData(c.Request.Context(), userID, p, opts)
	c.JSON(http.StatusOK, result)
}
