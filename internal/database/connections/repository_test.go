package connections

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
	dbPath := "./test_connections_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.ProviderConnection{}, &entities.SyncConfig{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func TestRepository_Connect(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	conn, err := repo.Connect(1, entities.ProviderMyFitnessPal, AuthData{AccessToken: "tok-1"})
	require.NoError(t, err)
	assert.True(t, conn.IsActive)
	assert.Equal(t, entities.ProviderMyFitnessPal, conn.Provider)

	// Connecting creates the default nutrition sync config.
	cfg, err := repo.GetConfig(conn.ID, entities.DataTypeNutrition)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncDirectionBidirectional, cfg.Direction)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.FrequencyMinutes)
}

func TestRepository_Connect_Reconnect(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	first, err := repo.Connect(1, entities.ProviderCronometer, AuthData{AccessToken: "old"})
	require.NoError(t, err)

	err = repo.RecordError(first.ID, "token expired")
	require.NoError(t, err)

	err = repo.Disconnect(1, entities.ProviderCronometer)
	require.NoError(t, err)

	second, err := repo.Connect(1, entities.ProviderCronometer, AuthData{AccessToken: "new"})
	require.NoError(t, err)

	// Reconnecting reuses the row and resets the error state.
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
	assert.Equal(t, "new", second.AccessToken)
	assert.Equal(t, 0, second.ErrorCount)
	assert.Equal(t, "", second.LastError)
}

func TestRepository_Disconnect_ClearsTokens(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	conn, err := repo.Connect(1, entities.ProviderLoseIt, AuthData{AccessToken: "tok", RefreshToken: "ref"})
	require.NoError(t, err)

	err = repo.Disconnect(1, entities.ProviderLoseIt)
	require.NoError(t, err)

	_, err = repo.GetActive(1, entities.ProviderLoseIt)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stored, err := repo.GetByID(conn.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "", stored.AccessToken)
	assert.Equal(t, "", stored.RefreshToken)
}

func TestRepository_GetActive_IgnoresOtherUsers(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Connect(1, entities.ProviderFatSecret, AuthData{AccessToken: "tok"})
	require.NoError(t, err)

	_, err = repo.GetActive(2, entities.ProviderFatSecret)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_ListForUser(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Connect(1, entities.ProviderMyFitnessPal, AuthData{AccessToken: "a"})
	require.NoError(t, err)
	_, err = repo.Connect(1, entities.ProviderCronometer, AuthData{AccessToken: "b"})
	require.NoError(t, err)
	require.NoError(t, repo.Disconnect(1, entities.ProviderCronometer))
	_, err = repo.Connect(2, entities.ProviderLoseIt, AuthData{AccessToken: "c"})
	require.NoError(t, err)

	conns, err := repo.ListForUser(1)
	require.NoError(t, err)
	// Inactive connections still show up in the listing.
	assert.Len(t, conns, 2)
	assert.Equal(t, entities.ProviderCronometer, conns[0].Provider)
	assert.Equal(t, entities.ProviderMyFitnessPal, conns[1].Provider)
}

func TestRepository_TouchLastSync(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	conn, err := repo.Connect(1, entities.ProviderMyFitnessPal, AuthData{AccessToken: "tok"})
	require.NoError(t, err)
	assert.Nil(t, conn.LastSyncAt)

	at := time.Now().Truncate(time.Second)
	err = repo.TouchLastSync(conn.ID, at)
	require.NoError(t, err)

	stored, err := repo.GetByID(conn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncAt)
	assert.WithinDuration(t, at, *stored.LastSyncAt, time.Second)
}

func TestRepository_RecordError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	conn, err := repo.Connect(1, entities.ProviderMyFitnessPal, AuthData{AccessToken: "tok"})
	require.NoError(t, err)

	require.NoError(t, repo.RecordError(conn.ID, "rate limited"))
	require.NoError(t, repo.RecordError(conn.ID, "server error"))

	stored, err := repo.GetByID(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ErrorCount)
	assert.Equal(t, "server error", stored.LastError)
}

func TestRepository_UpdateConfig(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	conn, err := repo.Connect(1, entities.ProviderCronometer, AuthData{AccessToken: "tok"})
	require.NoError(t, err)

	direction := entities.SyncDirectionExportOnly
	frequency := 15
	cfg, err := repo.UpdateConfig(conn.ID, entities.DataTypeNutrition, ConfigUpdate{
		Direction:        &direction,
		FrequencyMinutes: &frequency,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.SyncDirectionExportOnly, cfg.Direction)
	assert.Equal(t, 15, cfg.FrequencyMinutes)
	// Fields not present in the update keep their values.
	assert.True(t, cfg.Enabled)
	assert.Equal(t, entities.ConflictPolicyNewestWins, cfg.ConflictResolution)
}

func TestRepository_ListEnabledConfigs(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	active, err := repo.Connect(1, entities.ProviderMyFitnessPal, AuthData{AccessToken: "a"})
	require.NoError(t, err)

	disabled, err := repo.Connect(1, entities.ProviderCronometer, AuthData{AccessToken: "b"})
	require.NoError(t, err)
	off := false
	_, err = repo.UpdateConfig(disabled.ID, entities.DataTypeNutrition, ConfigUpdate{Enabled: &off})
	require.NoError(t, err)

	_, err = repo.Connect(2, entities.ProviderLoseIt, AuthData{AccessToken: "c"})
	require.NoError(t, err)
	require.NoError(t, repo.Disconnect(2, entities.ProviderLoseIt))

	configs, err := repo.ListEnabledConfigs(entities.DataTypeNutrition)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, active.ID, configs[0].ConnectionID)
}
