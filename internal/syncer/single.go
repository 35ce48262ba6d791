package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/JustinD79/diaguard/internal/entities"
)

// ErrNoActiveConnection indicates the user has no active connection to the
// requested provider.
var ErrNoActiveConnection = errors.New("no active connection for provider")

// ErrAlreadyExported indicates the meal already has an export marker for
// this connection.
var ErrAlreadyExported = errors.New("meal already exported to provider")

// ExportMealToProvider sends a single meal to the provider, independent of
// the batch orchestrator. It opens its own one-record history entry for
// traceability. Used by "export now" UI actions.
func (s *Service) ExportMealToProvider(ctx context.Context, userID uint, p entities.Provider, mealID uint) error {
	conn, err := s.conns.GetActive(userID, p)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNoActiveConnection, p)
		}
		return fmt.Errorf("failed to load %s connection: %w", p, err)
	}

	meal, err := s.meals.GetByID(mealID)
	if err != nil {
		return fmt.Errorf("failed to load meal %d: %w", mealID, err)
	}
	if meal.UserID != userID {
		return fmt.Errorf("meal %d does not belong to user %d", mealID, userID)
	}

	exported, err := s.records.HasExported(conn.ID, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to check export marker: %w", err)
	}
	if exported {
		return ErrAlreadyExported
	}

	entry, err := s.history.Open(userID, conn.ID, entities.SyncTypeSingle, string(DirectionExport))
	if err != nil {
		return fmt.Errorf("failed to open sync history: %w", err)
	}

	sendErr := s.sendSingleMeal(ctx, conn, entry.ID, meal)

	status := entities.HistoryStatusCompleted
	succeeded := 1
	if sendErr != nil {
		status = entities.HistoryStatusFailed
		succeeded = 0
		_ = s.conns.RecordError(conn.ID, sendErr.Error())
	}
	if err := s.history.Close(entry.ID, status, 1, succeeded); err != nil {
		return fmt.Errorf("failed to close sync history: %w", err)
	}

	return sendErr
}

func (s *Service) sendSingleMeal(ctx context.Context, conn *entities.ProviderConnection, historyID uint, meal *entities.MealLog) error {
	adapter, err := s.registry.Get(conn.Provider)
	if err != nil {
		return err
	}
	creds, err := s.openCredentials(conn)
	if err != nil {
		return err
	}

	nutritionEntry := entities.FromMealLog(meal)
	externalID, err := adapter.SendMeal(ctx, creds, nutritionEntry)
	if err != nil {
		return fmt.Errorf("failed to export meal %q: %w", meal.FoodName, err)
	}

	payload, _ := json.Marshal(nutritionEntry)
	if _, err := s.records.MarkExported(&entities.ExportedRecord{
		LocalRecordID:    meal.ID,
		ConnectionID:     conn.ID,
		SyncHistoryID:    historyID,
		ExternalRecordID: externalID,
		ExportedData:     string(payload),
		Status:           entities.RecordStatusConfirmed,
		ExportedAt:       time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// ImportMealsFromProvider pulls and persists the provider's records for
// [start, end], skipping duplicates and conflicts exactly as the batch path
// does, and returns the newly imported entries for UI display.
func (s *Service) ImportMealsFromProvider(ctx context.Context, userID uint, p entities.Provider, start, end time.Time) ([]entities.NutritionEntry, error) {
	conn, err := s.conns.GetActive(userID, p)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoActiveConnection, p)
		}
		return nil, fmt.Errorf("failed to load %s connection: %w", p, err)
	}

	adapter, err := s.registry.Get(conn.Provider)
	if err != nil {
		return nil, err
	}
	creds, err := s.openCredentials(conn)
	if err != nil {
		return nil, err
	}

	entry, err := s.history.Open(userID, conn.ID, entities.SyncTypeManual, string(DirectionImport))
	if err != nil {
		return nil, fmt.Errorf("failed to open sync history: %w", err)
	}

	result := Result{Errors: []string{}}
	opts := Options{StartDate: start, EndDate: end, Direction: DirectionImport}

	imported, processed, succeeded := s.importPhase(ctx, adapter, creds, conn, entry.ID, opts, &result)

	status := statusFor(len(result.Errors), succeeded)
	if err := s.history.Close(entry.ID, status, processed, succeeded); err != nil {
		return imported, fmt.Errorf("failed to close sync history: %w", err)
	}

	if len(result.Errors) > 0 {
		return imported, fmt.Errorf("import finished with %d errors, first: %s", len(result.Errors), result.Errors[0])
	}
	return imported, nil
}
