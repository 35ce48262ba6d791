package syncer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
)

// ConflictWindow is the default for how far apart two timestamps may be
// while still plausibly describing the same meal.
const ConflictWindow = 30 * time.Minute

// findConflictingMeal returns the local meal that plausibly duplicates the
// incoming external entry: a fuzzy food-name match whose consumed-at lies
// within the conflict window. Returns nil when the entry can import cleanly.
func (s *Service) findConflictingMeal(userID uint, entry entities.NutritionEntry) (*entities.MealLog, error) {
	nearby, err := s.meals.FindNearby(userID, entry.Timestamp, s.conflictWindow)
	if err != nil {
		return nil, err
	}

	for i := range nearby {
		if foodNamesMatch(nearby[i].FoodName, entry.FoodName) {
			return &nearby[i], nil
		}
	}
	return nil, nil
}

// recordConflict snapshots the local/external pair for manual resolution.
// The external record is not imported while the conflict is open.
func (s *Service) recordConflict(conn *entities.ProviderConnection, historyID uint, local *entities.MealLog, external entities.NutritionEntry) error {
	localData, err := json.Marshal(entities.FromMealLog(local))
	if err != nil {
		return err
	}
	externalData, err := json.Marshal(external)
	if err != nil {
		return err
	}

	return s.conflicts.Create(&entities.SyncConflict{
		UserID:           conn.UserID,
		ConnectionID:     conn.ID,
		SyncHistoryID:    historyID,
		LocalRecordID:    local.ID,
		ExternalRecordID: external.ExternalID,
		DataType:         entities.DataTypeNutrition,
		LocalData:        string(localData),
		ExternalData:     string(externalData),
		ConflictType:     entities.ConflictTypeDuplicateMeal,
	})
}

// foodNamesMatch reports whether two food names plausibly refer to the same
// food: equal after normalization, or one contains the other ("Oatmeal" vs
// "Oatmeal with berries").
func foodNamesMatch(a, b string) bool {
	na, nb := normalizeFoodName(a), normalizeFoodName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalizeFoodName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
