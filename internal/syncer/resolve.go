package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JustinD79/diaguard/internal/database/conflicts"
	"github.com/JustinD79/diaguard/internal/entities"
)

// ErrConflictResolved indicates the conflict was already resolved.
var ErrConflictResolved = errors.New("conflict already resolved")

// ErrInvalidResolution indicates an unsupported resolution choice.
var ErrInvalidResolution = errors.New("invalid resolution")

// ResolvedConflict describes the outcome of a resolution: the data that won
// and whether it was written back to the meal log.
type ResolvedConflict struct {
	Entry   entities.NutritionEntry `json:"entry"`
	Merged  bool                    `json:"merged,omitempty"`
	Applied bool                    `json:"applied"`
}

// resolutionPayload is what gets stored in the conflict's resolution_data
// column.
type resolutionPayload struct {
	entities.NutritionEntry
	Merged bool `json:"merged,omitempty"`
}

// ResolveConflict applies a manual resolution to a pending conflict.
// With use_local the local record stands; use_external takes the provider's
// data; merge averages calories/carbs/protein/fat between the two.
//
// When applyToLog is set, the winning data is written back to the local meal
// log; otherwise the conflict is only marked resolved and the caller owns
// any follow-up write. In both cases an import marker is recorded for the
// external record so later sync passes do not raise the same conflict again.
func (s *Service) ResolveConflict(conflictID uint, resolution entities.Resolution, resolvedBy string, applyToLog bool) (*ResolvedConflict, error) {
	if !resolution.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolution, resolution)
	}

	conflict, err := s.conflicts.GetByID(conflictID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflict %d: %w", conflictID, err)
	}
	if conflict.IsResolved {
		return nil, ErrConflictResolved
	}

	var local, external entities.NutritionEntry
	if err := json.Unmarshal([]byte(conflict.LocalData), &local); err != nil {
		return nil, fmt.Errorf("failed to decode local conflict data: %w", err)
	}
	if err := json.Unmarshal([]byte(conflict.ExternalData), &external); err != nil {
		return nil, fmt.Errorf("failed to decode external conflict data: %w", err)
	}

	payload := resolutionPayload{}
	switch resolution {
	case entities.ResolutionUseLocal:
		payload.NutritionEntry = local
	case entities.ResolutionUseExternal:
		payload.NutritionEntry = external
	case entities.ResolutionMerge:
		payload.NutritionEntry = mergeEntries(local, external)
		payload.Merged = true
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolution data: %w", err)
	}

	// Mark the external record imported before flipping the conflict, so
	// the next sync pass cannot raise it again whichever side won. If this
	// write fails the conflict stays pending and can be resolved again.
	if external.ExternalID != "" {
		if _, err := s.records.MarkImported(&entities.ImportedRecord{
			ExternalRecordID: external.ExternalID,
			ConnectionID:     conflict.ConnectionID,
			SyncHistoryID:    conflict.SyncHistoryID,
			DataType:         conflict.DataType,
			LocalRecordID:    conflict.LocalRecordID,
			ImportedData:     conflict.ExternalData,
			Status:           entities.RecordStatusConfirmed,
			ImportedAt:       time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("failed to mark resolved record %s imported: %w", external.ExternalID, err)
		}
	}

	if err := s.conflicts.Resolve(conflictID, resolvedBy, string(encoded)); err != nil {
		return nil, fmt.Errorf("failed to resolve conflict %d: %w", conflictID, err)
	}

	resolved := &ResolvedConflict{Entry: payload.NutritionEntry, Merged: payload.Merged}

	if applyToLog && resolution != entities.ResolutionUseLocal {
		if err := s.applyResolution(conflict, payload.NutritionEntry); err != nil {
			return resolved, fmt.Errorf("conflict resolved but not applied to meal log: %w", err)
		}
		resolved.Applied = true
	}

	return resolved, nil
}

// applyResolution writes the winning data onto the conflicting meal log row.
func (s *Service) applyResolution(conflict *entities.SyncConflict, winner entities.NutritionEntry) error {
	if conflict.LocalRecordID == 0 {
		return errors.New("conflict has no local record reference")
	}

	meal, err := s.meals.GetByID(conflict.LocalRecordID)
	if err != nil {
		return fmt.Errorf("failed to load meal %d: %w", conflict.LocalRecordID, err)
	}

	meal.FoodName = winner.FoodName
	meal.Calories = winner.Calories
	meal.Carbs = winner.Carbs
	meal.Protein = winner.Protein
	meal.Fat = winner.Fat
	meal.Fiber = winner.Fiber
	meal.Sugar = winner.Sugar
	meal.Sodium = winner.Sodium
	if winner.ExternalID != "" {
		meal.ExternalID = winner.ExternalID
	}

	return s.meals.Update(meal)
}

// PendingConflicts returns all unresolved conflicts for a user joined with
// their provider names, newest first.
func (s *Service) PendingConflicts(userID uint) ([]conflicts.PendingConflict, error) {
	return s.conflicts.ListPending(userID)
}

// mergeEntries numerically averages the macro fields of the two sides,
// integer-rounded, keeping the local entry's identity fields.
func mergeEntries(local, external entities.NutritionEntry) entities.NutritionEntry {
	merged := local
	merged.Calories = roundedMean(local.Calories, external.Calories)
	merged.Carbs = roundedMean(local.Carbs, external.Carbs)
	merged.Protein = roundedMean(local.Protein, external.Protein)
	merged.Fat = roundedMean(local.Fat, external.Fat)
	merged.ExternalID = external.ExternalID
	return merged
}

func roundedMean(a, b float64) float64 {
	return math.Round((a + b) / 2)
}
