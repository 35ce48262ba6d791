package conflicts

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JustinD79/diaguard/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB, func()) {
	dbPath := "./test_conflicts_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.SyncConflict{}, &entities.ProviderConnection{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, db, cleanup
}

func seedConnection(t *testing.T, db *gorm.DB, userID uint, provider entities.Provider) *entities.ProviderConnection {
	t.Helper()
	conn := &entities.ProviderConnection{UserID: userID, Provider: provider, IsActive: true}
	require.NoError(t, db.Create(conn).Error)
	return conn
}

func seedConflict(t *testing.T, repo *Repository, userID, connectionID uint) *entities.SyncConflict {
	t.Helper()
	conflict := &entities.SyncConflict{
		UserID:           userID,
		ConnectionID:     connectionID,
		LocalRecordID:    7,
		ExternalRecordID: "mfp-9",
		DataType:         entities.DataTypeNutrition,
		LocalData:        `{"food_name":"Pasta"}`,
		ExternalData:     `{"food_name":"pasta","external_id":"mfp-9"}`,
		ConflictType:     entities.ConflictTypeDuplicateMeal,
	}
	require.NoError(t, repo.Create(conflict))
	return conflict
}

func TestRepository_ListPending(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	conn := seedConnection(t, db, 1, entities.ProviderMyFitnessPal)
	seedConflict(t, repo, 1, conn.ID)
	seedConflict(t, repo, 1, conn.ID)

	otherConn := seedConnection(t, db, 2, entities.ProviderLoseIt)
	seedConflict(t, repo, 2, otherConn.ID)

	pending, err := repo.ListPending(1)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, entities.ProviderMyFitnessPal, pending[0].Provider)
	assert.Equal(t, uint(7), pending[0].LocalRecordID)
}

func TestRepository_Resolve(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	conn := seedConnection(t, db, 1, entities.ProviderCronometer)
	conflict := seedConflict(t, repo, 1, conn.ID)

	err := repo.Resolve(conflict.ID, "alice", `{"food_name":"Pasta","merged":true}`)
	require.NoError(t, err)

	stored, err := repo.GetByID(conflict.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	assert.Equal(t, "alice", stored.ResolvedBy)
	assert.NotNil(t, stored.ResolvedAt)
	assert.Contains(t, stored.ResolutionData, "merged")

	// Resolved conflicts drop out of the pending list.
	pending, err := repo.ListPending(1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRepository_CountPending(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	conn := seedConnection(t, db, 1, entities.ProviderFatSecret)
	first := seedConflict(t, repo, 1, conn.ID)
	seedConflict(t, repo, 1, conn.ID)

	count, err := repo.CountPending(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.Resolve(first.ID, "api", "{}"))

	count, err = repo.CountPending(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_PendingExists(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	conn := seedConnection(t, db, 1, entities.ProviderMyFitnessPal)
	conflict := seedConflict(t, repo, 1, conn.ID)

	exists, err := repo.PendingExists(conn.ID, "mfp-9")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.PendingExists(conn.ID, "mfp-other")
	require.NoError(t, err)
	assert.False(t, exists)

	// A different connection's conflict does not count.
	exists, err = repo.PendingExists(conn.ID+1, "mfp-9")
	require.NoError(t, err)
	assert.False(t, exists)

	// Resolution clears the pending marker for the external record.
	require.NoError(t, repo.Resolve(conflict.ID, "api", "{}"))
	exists, err = repo.PendingExists(conn.ID, "mfp-9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetByID(999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
