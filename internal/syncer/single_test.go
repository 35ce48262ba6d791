package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

func TestExportMealToProvider(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	conn := env.connect(t, 1, entities.ProviderFatSecret)
	meal := env.logMeal(t, 1, "Protein Bar", entities.MealTypeSnack, 220, time.Now().Add(-time.Hour))

	err := env.service.ExportMealToProvider(context.Background(), 1, entities.ProviderFatSecret, meal.ID)
	require.NoError(t, err)

	exported, err := env.records.HasExported(conn.ID, meal.ID)
	require.NoError(t, err)
	assert.True(t, exported)

	entry := env.latestHistory(t, 1)
	assert.Equal(t, entities.SyncTypeSingle, entry.SyncType)
	assert.Equal(t, string(DirectionExport), entry.Direction)
	assert.Equal(t, entities.HistoryStatusCompleted, entry.Status)
	assert.Equal(t, 1, entry.RecordsProcessed)
	assert.Equal(t, 1, entry.RecordsSucceeded)
}

func TestExportMealToProvider_AlreadyExported(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	env.connect(t, 1, entities.ProviderFatSecret)
	meal := env.logMeal(t, 1, "Protein Bar", entities.MealTypeSnack, 220, time.Now().Add(-time.Hour))

	require.NoError(t, env.service.ExportMealToProvider(context.Background(), 1, entities.ProviderFatSecret, meal.ID))

	err := env.service.ExportMealToProvider(context.Background(), 1, entities.ProviderFatSecret, meal.ID)
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Len(t, env.adapter.sent, 1)
}

func TestExportMealToProvider_NoConnection(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	meal := env.logMeal(t, 1, "Protein Bar", entities.MealTypeSnack, 220, time.Now())

	err := env.service.ExportMealToProvider(context.Background(), 1, entities.ProviderLoseIt, meal.ID)
	assert.ErrorIs(t, err, ErrNoActiveConnection)
}

func TestExportMealToProvider_WrongOwner(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	env.connect(t, 2, entities.ProviderFatSecret)
	meal := env.logMeal(t, 1, "Protein Bar", entities.MealTypeSnack, 220, time.Now())

	err := env.service.ExportMealToProvider(context.Background(), 2, entities.ProviderFatSecret, meal.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to user 2")
	assert.Empty(t, env.adapter.sent)
}

func TestExportMealToProvider_SendFailureRecordsFailedHistory(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	conn := env.connect(t, 1, entities.ProviderFatSecret)
	meal := env.logMeal(t, 1, "Mystery Dish", entities.MealTypeDinner, 600, time.Now().Add(-time.Hour))
	env.adapter.failFoods["Mystery Dish"] = true

	err := env.service.ExportMealToProvider(context.Background(), 1, entities.ProviderFatSecret, meal.ID)
	require.Error(t, err)

	entry := env.latestHistory(t, 1)
	assert.Equal(t, entities.HistoryStatusFailed, entry.Status)
	assert.Equal(t, 0, entry.RecordsSucceeded)

	refreshed, err := env.conns.GetByID(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.ErrorCount)

	exported, err := env.records.HasExported(conn.ID, meal.ID)
	require.NoError(t, err)
	assert.False(t, exported)
}

func TestImportMealsFromProvider(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	env.connect(t, 1, entities.ProviderCronometer)
	now := time.Now()
	env.adapter.records = []provider.Record{
		{ExternalID: "cm-1", FoodName: "Lentil Soup", MealType: entities.MealTypeDinner, Calories: 340, Timestamp: now.Add(-2 * time.Hour)},
		{ExternalID: "cm-2", FoodName: "Rye Bread", MealType: entities.MealTypeDinner, Calories: 160, Timestamp: now.Add(-2 * time.Hour)},
	}

	imported, err := env.service.ImportMealsFromProvider(context.Background(), 1, entities.ProviderCronometer, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, "Lentil Soup", imported[0].FoodName)

	logged, err := env.meals.ListForUser(1, 10)
	require.NoError(t, err)
	assert.Len(t, logged, 2)

	entry := env.latestHistory(t, 1)
	assert.Equal(t, entities.SyncTypeManual, entry.SyncType)
	assert.Equal(t, string(DirectionImport), entry.Direction)
	assert.Equal(t, entities.HistoryStatusCompleted, entry.Status)
}

func TestImportMealsFromProvider_FetchFailure(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	env.connect(t, 1, entities.ProviderCronometer)
	env.adapter.fetchErr = &provider.ServerError{Provider: entities.ProviderCronometer, StatusCode: 503}

	now := time.Now()
	imported, err := env.service.ImportMealsFromProvider(context.Background(), 1, entities.ProviderCronometer, now.Add(-24*time.Hour), now)
	require.Error(t, err)
	assert.Empty(t, imported)

	entry := env.latestHistory(t, 1)
	assert.Equal(t, entities.HistoryStatusFailed, entry.Status)
}
