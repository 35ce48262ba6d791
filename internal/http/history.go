package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JustinD79/diaguard/internal/entities"
)

// HistoryStore provides read access to the append-only sync history.
type HistoryStore interface {
	ListRecent(userID uint, provider *entities.Provider, limit int) ([]entities.SyncHistory, error)
}

type HistoryController struct {
	store HistoryStore
}

func NewHistoryController(store HistoryStore) *HistoryController {
	return &HistoryController{store: store}
}

// List returns the user's recent sync history, newest first, optionally
// filtered by provider.
// GET /api/history
func (hc *HistoryController) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var provider *entities.Provider
	if providerStr := c.Query("provider"); providerStr != "" {
		p := entities.Provider(providerStr)
		if !p.IsValid() {
			respondBadRequest(c, "unsupported provider: "+providerStr)
			return
		}
		provider = &p
	}

	limit := parseLimitQuery(c, 50, 200)
	entries, err := hc.store.ListRecent(userID, provider, limit)
	if err != nil {
		respondInternalError(c, err, "list sync history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "total": len(entries)})
}
