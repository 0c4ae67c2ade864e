package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/olayemidamola/medsync/internal/config"
	"github.com/olayemidamola/medsync/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *StoreManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Tracker.Store.MedicationsKey = "medsync:medications"
	cfg.Tracker.Store.CaregiversKey = "medsync:caregivers"

	logger := zap.NewNop()
	store := NewStoreManager(cfg, redisClient, logger)

	return mr, redisClient, store
}

func TestStoreManager_GetMedications_FirstRun(t *testing.T) {
	_, _, store := setupTestStore(t)

	// 键不存在 → 空列表，不报错（首次运行）
	meds, err := store.GetMedications(context.Background())

	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestStoreManager_SaveAndGetMedications(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	meds := []models.Medication{
		{
			ID:     "med-1",
			Name:   "Metformin",
			Dosage: "500mg",
			Schedule: []models.DoseSchedule{
				models.NewDoseSchedule("09:00"),
				models.NewDoseSchedule("21:00"),
			},
			CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	require.NoError(t, store.SaveMedications(ctx, meds))

	loaded, err := store.GetMedications(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "med-1", loaded[0].ID)
	assert.Equal(t, "Metformin", loaded[0].Name)
	require.Len(t, loaded[0].Schedule, 2)
	assert.Equal(t, models.DoseStatusPending, loaded[0].Schedule[0].Status)
	assert.Nil(t, loaded[0].Schedule[0].SnoozeUntil)
}

func TestStoreManager_GetMedications_CorruptBlob(t *testing.T) {
	mr, _, store := setupTestStore(t)

	require.NoError(t, mr.Set("medsync:medications", "{not json"))

	_, err := store.GetMedications(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal medications")
}

func TestStoreManager_SaveAndGetCaregivers(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()

	caregivers := []models.Caregiver{
		{ID: "cg-1", Name: "Ada", Email: "ada@example.com"},
		{ID: "cg-2", Name: "Sam", Email: "sam@example.com"},
	}

	require.NoError(t, store.SaveCaregivers(ctx, caregivers))

	loaded, err := store.GetCaregivers(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "ada@example.com", loaded[0].Email)
}

func TestStoreManager_GetCaregivers_FirstRun(t *testing.T) {
	_, _, store := setupTestStore(t)

	caregivers, err := store.GetCaregivers(context.Background())

	require.NoError(t, err)
	assert.Empty(t, caregivers)
}

func TestStoreManager_BlobRoundTripsOpaque(t *testing.T) {
	// Store 层只关心 blob 是否能往返数据模型
	mr, _, store := setupTestStore(t)
	ctx := context.Background()

	snoozeUntil := time.Date(2025, 3, 14, 9, 6, 0, 0, time.UTC)
	meds := []models.Medication{
		{
			ID:   "med-1",
			Name: "Metformin",
			Schedule: []models.DoseSchedule{
				{Time: "09:00", Status: models.DoseStatusSnoozed, SnoozeUntil: &snoozeUntil},
			},
		},
	}
	require.NoError(t, store.SaveMedications(ctx, meds))

	raw, err := mr.Get("medsync:medications")
	require.NoError(t, err)

	var parsed []models.Medication
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	require.NotNil(t, parsed[0].Schedule[0].SnoozeUntil)
	assert.True(t, snoozeUntil.Equal(*parsed[0].Schedule[0].SnoozeUntil))
}
