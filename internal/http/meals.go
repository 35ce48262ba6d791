package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/syncer"
)

// MealStore defines database operations for meal logs.
type MealStore interface {
	Create(meal *entities.MealLog) error
	ListForUser(userID uint, limit int) ([]entities.MealLog, error)
	ListInWindow(userID uint, start, end time.Time) ([]entities.MealLog, error)
}

// MealExporter sends a single meal to a connected provider.
type MealExporter interface {
	ExportMealToProvider(ctx context.Context, userID uint, p entities.Provider, mealID uint) error
}

type MealsController struct {
	store    MealStore
	exporter MealExporter
}

func NewMealsController(store MealStore, exporter MealExporter) *MealsController {
	return &MealsController{store: store, exporter: exporter}
}

// List returns the user's meals, newest first. An optional start/end pair
// narrows the range.
// GET /api/meals
func (mc *MealsController) List(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr != "" && endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			respondBadRequest(c, "invalid start, expected RFC3339")
			return
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			respondBadRequest(c, "invalid end, expected RFC3339")
			return
		}
		logged, err := mc.store.ListInWindow(userID, start, end)
		if err != nil {
			respondInternalError(c, err, "list meals in window")
			return
		}
		c.JSON(http.StatusOK, gin.H{"meals": logged, "total": len(logged)})
		return
	}

	limit := parseLimitQuery(c, 50, 200)
	logged, err := mc.store.ListForUser(userID, limit)
	if err != nil {
		respondInternalError(c, err, "list meals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": logged, "total": len(logged)})
}

type createMealRequest struct {
	FoodName    string     `json:"food_name" binding:"required"`
	MealType    string     `json:"meal_type"`
	Calories    float64    `json:"calories"`
	Carbs       float64    `json:"carbs"`
	Protein     float64    `json:"protein"`
	Fat         float64    `json:"fat"`
	Fiber       float64    `json:"fiber"`
	Sugar       float64    `json:"sugar"`
	Sodium      float64    `json:"sodium"`
	ServingSize string     `json:"serving_size"`
	Servings    float64    `json:"servings"`
	ConsumedAt  *time.Time `json:"consumed_at"`
}

// Create logs a meal. Timestamp defaults to now.
// POST /api/meals
func (mc *MealsController) Create(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}

	var req createMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "food_name is required")
		return
	}

	consumedAt := time.Now()
	if req.ConsumedAt != nil {
		consumedAt = *req.ConsumedAt
	}

	meal := entities.MealLog{
		UserID:      userID,
		FoodName:    req.FoodName,
		MealType:    entities.MealType(req.MealType),
		Calories:    req.Calories,
		Carbs:       req.Carbs,
		Protein:     req.Protein,
		Fat:         req.Fat,
		Fiber:       req.Fiber,
		Sugar:       req.Sugar,
		Sodium:      req.Sodium,
		ServingSize: req.ServingSize,
		Servings:    req.Servings,
		ConsumedAt:  consumedAt,
		Source:      entities.EntrySourceLocal,
	}

	if err := mc.store.Create(&meal); err != nil {
		respondInternalError(c, err, "create meal")
		return
	}

	respondCreated(c, meal)
}

// Export sends one meal to a connected provider.
// POST /api/meals/:id/export/:provider
func (mc *MealsController) Export(c *gin.Context) {
	userID, ok := requestUserID(c)
	if !ok {
		return
	}
	mealID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, ok := parseProviderParam(c)
	if !ok {
		return
	}

	err := mc.exporter.ExportMealToProvider(c.Request.Context(), userID, p, mealID)
	switch {
	case err == nil:
		respondSuccess(c, "meal exported to "+string(p))
	case errors.Is(err, syncer.ErrAlreadyExported):
		respondConflict(c, "meal already exported to "+string(p))
	case errors.Is(err, syncer.ErrNoActiveConnection):
		respondNotFound(c, string(p)+" connection")
	default:
		respondInternalError(c, err, "export meal")
	}
}
