package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

// seedConflict runs an import pass that collides with a local meal and
// returns the local meal and the resulting pending conflict.
func seedConflict(t *testing.T, env *testEnv) (*entities.MealLog, *entities.SyncConflict) {
	t.Helper()

	env.connect(t, 1, entities.ProviderMyFitnessPal)
	base := time.Now().Add(-4 * time.Hour)
	local := env.logMeal(t, 1, "Chicken Salad", entities.MealTypeLunch, 200, base)
	local.Carbs = 40
	local.Protein = 30
	local.Fat = 10
	require.NoError(t, env.meals.Update(local))

	env.adapter.records = []provider.Record{{
		ExternalID: "mfp-501",
		FoodName:   "Chicken Salad",
		MealType:   entities.MealTypeLunch,
		Calories:   220,
		Carbs:      44,
		Protein:    32,
		Fat:        12,
		Timestamp:  base.Add(20 * time.Minute),
	}}

	result := env.service.SyncNutritionData(context.Background(), 1, entities.ProviderMyFitnessPal, Options{
		Direction: DirectionImport,
	})
	require.Equal(t, 1, result.Conflicts)

	pending, err := env.conflicts.ListPending(1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	return local, &pending[0].SyncConflict
}

func TestResolveConflict_Merge(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	local, conflict := seedConflict(t, env)

	resolved, err := env.service.ResolveConflict(conflict.ID, entities.ResolutionMerge, "user:1", true)
	require.NoError(t, err)

	assert.True(t, resolved.Merged)
	assert.True(t, resolved.Applied)
	assert.Equal(t, float64(210), resolved.Entry.Calories)
	assert.Equal(t, float64(42), resolved.Entry.Carbs)
	assert.Equal(t, float64(31), resolved.Entry.Protein)
	assert.Equal(t, float64(11), resolved.Entry.Fat)

	// The merged macros landed on the meal log row.
	meal, err := env.meals.GetByID(local.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(210), meal.Calories)
	assert.Equal(t, float64(42), meal.Carbs)
	assert.Equal(t, "mfp-501", meal.ExternalID)

	stored, err := env.conflicts.GetByID(conflict.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	assert.Equal(t, "user:1", stored.ResolvedBy)
	assert.NotNil(t, stored.ResolvedAt)
	assert.Contains(t, stored.ResolutionData, `"merged":true`)
}

func TestResolveConflict_UseLocalKeepsMeal(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	local, conflict := seedConflict(t, env)

	resolved, err := env.service.ResolveConflict(conflict.ID, entities.ResolutionUseLocal, "user:1", true)
	require.NoError(t, err)

	assert.False(t, resolved.Merged)
	assert.False(t, resolved.Applied)
	assert.Equal(t, float64(200), resolved.Entry.Calories)

	meal, err := env.meals.GetByID(local.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(200), meal.Calories)
	assert.Equal(t, float64(40), meal.Carbs)
}

func TestResolveConflict_UseExternalOverwritesMeal(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	local, conflict := seedConflict(t, env)

	resolved, err := env.service.ResolveConflict(conflict.ID, entities.ResolutionUseExternal, "user:1", true)
	require.NoError(t, err)

	assert.True(t, resolved.Applied)
	meal, err := env.meals.GetByID(local.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(220), meal.Calories)
	assert.Equal(t, float64(44), meal.Carbs)
}

func TestResolveConflict_StopsReconflicting(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	_, conflict := seedConflict(t, env)

	_, err := env.service.ResolveConflict(conflict.ID, entities.ResolutionUseLocal, "user:1", false)
	require.NoError(t, err)

	// The external record now carries an import marker, so the next pass
	// skips it instead of raising the same conflict again.
	result := env.service.SyncNutritionData(context.Background(), 1, entities.ProviderMyFitnessPal, Options{
		Direction: DirectionImport,
	})
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Conflicts)
	assert.Equal(t, 0, result.Imported)

	count, err := env.conflicts.CountPending(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestResolveConflict_AlreadyResolved(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	_, conflict := seedConflict(t, env)

	_, err := env.service.ResolveConflict(conflict.ID, entities.ResolutionUseLocal, "user:1", false)
	require.NoError(t, err)

	_, err = env.service.ResolveConflict(conflict.ID, entities.ResolutionMerge, "user:1", false)
	assert.ErrorIs(t, err, ErrConflictResolved)
}

func TestResolveConflict_InvalidResolution(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	_, err := env.service.ResolveConflict(1, entities.Resolution("discard"), "user:1", false)
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestPendingConflicts(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	_, conflict := seedConflict(t, env)

	pending, err := env.service.PendingConflicts(1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, conflict.ID, pending[0].ID)
	assert.Equal(t, entities.ProviderMyFitnessPal, pending[0].Provider)

	none, err := env.service.PendingConflicts(2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// failingRecordStore delegates to the real store but rejects marker writes.
type failingRecordStore struct {
	RecordStore
	err error
}

func (f *failingRecordStore) MarkImported(*entities.ImportedRecord) (bool, error) {
	return false, f.err
}

func TestResolveConflict_MarkerWriteFailureKeepsConflictPending(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()
	_, conflict := seedConflict(t, env)

	registry := provider.NewRegistry()
	for _, p := range entities.KnownProviders {
		registry.Register(p, env.adapter)
	}
	broken := NewService(env.conns, env.meals,
		&failingRecordStore{RecordStore: env.records, err: errors.New("disk full")},
		env.conflicts, env.history, registry, env.tokens, Settings{})

	_, err := broken.ResolveConflict(conflict.ID, entities.ResolutionUseExternal, "api", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mark resolved record")

	// The conflict stays pending, so the resolution can be retried once
	// the marker write succeeds.
	stored, err := env.conflicts.GetByID(conflict.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsResolved)

	_, err = env.service.ResolveConflict(conflict.ID, entities.ResolutionUseExternal, "api", false)
	require.NoError(t, err)
}
