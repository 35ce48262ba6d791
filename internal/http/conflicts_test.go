package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinD79/diaguard/internal/database/conflicts"
	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
)

type stubResolver struct {
	pending  []conflicts.PendingConflict
	resolved *syncer.ResolvedConflict
	err      error

	lastResolution entities.Resolution
	lastApply      bool
}

func (s *stubResolver) PendingConflicts(userID uint) ([]conflicts.PendingConflict, error) {
	return s.pending, s.err
}

func (s *stubResolver) ResolveConflict(conflictID uint, resolution entities.Resolution, resolvedBy string, applyToLog bool) (*syncer.ResolvedConflict, error) {
	s.lastResolution = resolution
	s.lastApply = applyToLog
	if s.err != nil {
		return nil, s.err
	}
	return s.resolved, nil
}

func setupConflictsTest(resolver *stubResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	controller := NewConflictsController(resolver)

	router := gin.New()
	router.GET("/api/conflicts", controller.List)
	router.POST("/api/conflicts/:id/resolve", controller.Resolve)
	return router
}

func TestConflictsController_List(t *testing.T) {
	resolver := &stubResolver{
		pending: []conflicts.PendingConflict{
			{
				SyncConflict: entities.SyncConflict{ID: 7, ConflictType: entities.ConflictTypeDuplicateMeal},
				Provider:     entities.ProviderMyFitnessPal,
			},
		},
	}
	router := setupConflictsTest(resolver)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/conflicts", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conflicts []map[string]any `json:"conflicts"`
		Total     int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "myfitnesspal", resp.Conflicts[0]["provider"])
	assert.Equal(t, "duplicate_meal", resp.Conflicts[0]["conflict_type"])
}

func TestConflictsController_Resolve(t *testing.T) {
	t.Run("applies resolution", func(t *testing.T) {
		resolver := &stubResolver{
			resolved: &syncer.ResolvedConflict{
				Entry:   entities.NutritionEntry{FoodName: "Chicken Salad", Calories: 210},
				Merged:  true,
				Applied: true,
			},
		}
		router := setupConflictsTest(resolver)

		body, _ := json.Marshal(map[string]any{
			"resolution":   "merge",
			"apply_to_log": true,
		})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/conflicts/7/resolve", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entities.ResolutionMerge, resolver.lastResolution)
		assert.True(t, resolver.lastApply)

		var resp syncer.ResolvedConflict
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Merged)
		assert.Equal(t, float64(210), resp.Entry.Calories)
	})

	t.Run("400 on invalid resolution", func(t *testing.T) {
		router := setupConflictsTest(&stubResolver{err: syncer.ErrInvalidResolution})

		body, _ := json.Marshal(map[string]string{"resolution": "discard"})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/conflicts/7/resolve", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("409 when already resolved", func(t *testing.T) {
		router := setupConflictsTest(&stubResolver{err: syncer.ErrConflictResolved})

		body, _ := json.Marshal(map[string]string{"resolution": "use_local"})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/conflicts/7/resolve", bytes.NewReader(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("requires resolution field", func(t *testing.T) {
		router := setupConflictsTest(&stubResolver{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/conflicts/7/resolve", bytes.NewReader([]byte("{}")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
