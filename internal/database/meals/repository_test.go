package meals

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JustinD79/diaguard/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_meals_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.MealLog{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func mustCreate(t *testing.T, repo *Repository, userID uint, food string, consumedAt time.Time) *entities.MealLog {
	t.Helper()
	meal := &entities.MealLog{
		UserID:     userID,
		FoodName:   food,
		MealType:   entities.MealTypeLunch,
		Calories:   400,
		Carbs:      50,
		Protein:    20,
		Fat:        12,
		ConsumedAt: consumedAt,
		Source:     entities.EntrySourceLocal,
	}
	require.NoError(t, repo.Create(meal))
	return meal
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	meal := mustCreate(t, repo, 1, "Oatmeal", time.Now())
	require.NotZero(t, meal.ID)

	stored, err := repo.GetByID(meal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oatmeal", stored.FoodName)
	assert.Equal(t, entities.EntrySourceLocal, stored.Source)
}

func TestRepository_ListInWindow(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mustCreate(t, repo, 1, "Old", now.Add(-48*time.Hour))
	recent := mustCreate(t, repo, 1, "Recent", now.Add(-2*time.Hour))
	latest := mustCreate(t, repo, 1, "Latest", now.Add(-10*time.Minute))
	mustCreate(t, repo, 2, "OtherUser", now.Add(-1*time.Hour))

	window, err := repo.ListInWindow(1, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, window, 2)
	// Oldest first inside the window.
	assert.Equal(t, recent.ID, window[0].ID)
	assert.Equal(t, latest.ID, window[1].ID)
}

func TestRepository_ListForUser_Limit(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	for i := 0; i < 5; i++ {
		mustCreate(t, repo, 1, "Meal", now.Add(-time.Duration(i)*time.Hour))
	}

	listed, err := repo.ListForUser(1, 3)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	// Newest first.
	assert.True(t, listed[0].ConsumedAt.After(listed[1].ConsumedAt))
}

func TestRepository_FindNearby(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	inside := mustCreate(t, repo, 1, "Chicken Salad", at.Add(20*time.Minute))
	mustCreate(t, repo, 1, "Chicken Salad", at.Add(45*time.Minute))
	mustCreate(t, repo, 2, "Chicken Salad", at.Add(5*time.Minute))

	nearby, err := repo.FindNearby(1, at, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, inside.ID, nearby[0].ID)
}

func TestRepository_Update(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	meal := mustCreate(t, repo, 1, "Burrito", time.Now())
	meal.Calories = 750
	meal.ExternalID = "mfp-42"
	require.NoError(t, repo.Update(meal))

	stored, err := repo.GetByID(meal.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(750), stored.Calories)
	assert.Equal(t, "mfp-42", stored.ExternalID)
}

func TestRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	meal := mustCreate(t, repo, 1, "Toast", time.Now())
	require.NoError(t, repo.Delete(meal.ID))

	_, err := repo.GetByID(meal.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
