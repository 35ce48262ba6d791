package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/database/conflicts"
	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
)

// ConflictResolver lists and resolves pending sync conflicts.
type ConflictResolver interface {
	PendingConflicts(userID uint) ([]conflicts.PendingConflict, error)
	ResolveConflict(conflictID uint, resolution entities.Resolution, resolvedBy string, applyToLog bool) (*syncer.ResolvedConflict, error)
}

type ConflictsController struct {
	resolver ConflictResolver
}

func NewConflictsController(resolver ConflictResolver) *ConflictsController {
	return &ConflictsController{resolver: resolver}
}

// List returns the user's unresolved conflicts, newest first.
// GET /api/conflicts
func (cc *ConflictsController) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	pending, err := cc.resolver.PendingConflicts(userID)
	if err != nil {
		respondInternalError(c, err, "list conflicts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conflicts": pending, "total": len(pending)})
}

type resolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	ResolvedBy string `json:"resolved_by"`
	ApplyToLog bool   `json:"apply_to_log"`
}

// Resolve applies a manual resolution choice to a pending conflict.
// POST /api/conflicts/:id/resolve
func (cc *ConflictsController) Resolve(c *gin.Context) {
	conflictID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "resolution is required")
		return
	}

	resolvedBy := req.ResolvedBy
	if resolvedBy == "" {
		resolvedBy = "api"
	}

	resolved, err := cc.resolver.ResolveConflict(conflictID, entities.Resolution(req.Resolution), resolvedBy, req.ApplyToLog)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resolved)
	case errors.Is(err, syncer.ErrInvalidResolution):
		respondBadRequest(c, err.Error())
	case errors.Is(err, syncer.ErrConflictResolved):
		respondConflict(c, "conflict already resolved")
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondNotFound(c, "conflict")
	default:
		respondInternalError(c, err, "resolve conflict")
	}
}
