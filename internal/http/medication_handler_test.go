package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/olayemidamola/medsync/internal/config"
	"github.com/olayemidamola/medsync/internal/consumer"
	"github.com/olayemidamola/medsync/internal/evaluator"
	"github.com/olayemidamola/medsync/internal/models"
	"github.com/olayemidamola/medsync/internal/notify"
	"github.com/olayemidamola/medsync/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nullDispatcher struct{}

func (nullDispatcher) Dispatch(_ context.Context, _ models.DoseTransition) {}

type nullHistoryRecorder struct{}

func (nullHistoryRecorder) Create(_ context.Context, _ *models.DoseHistoryRecord) error {
	return nil
}

type handlerFixture struct {
	router *Router
	store  *consumer.StoreManager
}

func setupHandlers(t *testing.T) *handlerFixture {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Tracker.Store.MedicationsKey = "medsync:medications"
	cfg.Tracker.Store.CaregiversKey = "medsync:caregivers"

	logger := zap.NewNop()
	store := consumer.NewStoreManager(cfg, redisClient, logger)
	medicationService := service.NewMedicationService(
		store, nullDispatcher{}, nullHistoryRecorder{},
		evaluator.DefaultWindows(), &sync.Mutex{}, logger,
	)

	router := NewRouter(logger)
	router.RegisterMedicationRoutes(NewMedicationHandler(medicationService, logger))
	router.RegisterCaregiverRoutes(NewCaregiverHandler(medicationService, logger))
	router.RegisterAlertRoutes(NewAlertsHandler(notify.NewDispatcher(notify.NewLogNotifier(logger), logger), logger))

	return &handlerFixture{router: router, store: store}
}

func doRequest(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var result Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

// ============================================
// 药物路由测试
// ============================================

func TestAddAndListMedications(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/medications", AddMedicationRequest{
		Name:   "Metformin",
		Dosage: "500mg",
		Times:  []string{"09:00", "21:00"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)

	var med models.Medication
	require.NoError(t, json.Unmarshal(result.Result, &med))
	assert.NotEmpty(t, med.ID)
	assert.Len(t, med.Schedule, 2)

	rec = doRequest(t, f.router, http.MethodGet, "/api/v1/medications", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Contains(t, string(result.Result), `"total":1`)
}

func TestAddMedication_InvalidTime(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/medications", AddMedicationRequest{
		Name:   "Metformin",
		Dosage: "500mg",
		Times:  []string{"9am"},
	})

	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Contains(t, result.Message, "invalid dose time")
}

func TestDeleteMedication_NotFoundEnvelope(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodDelete, "/api/v1/medications/no-such-id", nil)

	result := decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Equal(t, "medication not found", result.Message)
}

func TestConfirmDose_RouteAndGuard(t *testing.T) {
	f := setupHandlers(t)
	ctx := context.Background()

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/medications", AddMedicationRequest{
		Name:   "Metformin",
		Dosage: "500mg",
		Times:  []string{"09:00"},
	})
	result := decodeResult(t, rec)
	var med models.Medication
	require.NoError(t, json.Unmarshal(result.Result, &med))

	// pending 状态下确认被状态守卫拒绝
	rec = doRequest(t, f.router, http.MethodPost, "/api/v1/medications/"+med.ID+"/doses/0/confirm", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultError, result.Code)
	assert.Contains(t, result.Message, "does not allow")

	// 置为 due 后确认成功
	meds, err := f.store.GetMedications(ctx)
	require.NoError(t, err)
	meds[0].Schedule[0].Status = models.DoseStatusDue
	require.NoError(t, f.store.SaveMedications(ctx, meds))

	rec = doRequest(t, f.router, http.MethodPost, "/api/v1/medications/"+med.ID+"/doses/0/confirm", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)

	var updated models.Medication
	require.NoError(t, json.Unmarshal(result.Result, &updated))
	assert.Equal(t, models.DoseStatusTaken, updated.Schedule[0].Status)
}

func TestSnoozeDose_Route(t *testing.T) {
	f := setupHandlers(t)
	ctx := context.Background()

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/medications", AddMedicationRequest{
		Name:   "Metformin",
		Dosage: "500mg",
		Times:  []string{"09:00"},
	})
	result := decodeResult(t, rec)
	var med models.Medication
	require.NoError(t, json.Unmarshal(result.Result, &med))

	meds, err := f.store.GetMedications(ctx)
	require.NoError(t, err)
	meds[0].Schedule[0].Status = models.DoseStatusDue
	require.NoError(t, f.store.SaveMedications(ctx, meds))

	rec = doRequest(t, f.router, http.MethodPost, "/api/v1/medications/"+med.ID+"/doses/0/snooze", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)

	var updated models.Medication
	require.NoError(t, json.Unmarshal(result.Result, &updated))
	assert.Equal(t, models.DoseStatusSnoozed, updated.Schedule[0].Status)
	assert.NotNil(t, updated.Schedule[0].SnoozeUntil)
}

func TestDoseRoutes_BadPaths(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/medications/med-1/doses/abc/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, f.router, http.MethodPost, "/api/v1/medications/med-1/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, f.router, http.MethodPut, "/api/v1/medications", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// 监护人路由测试
// ============================================

func TestCaregiverRoutes(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodPost, "/api/v1/caregivers", AddCaregiverRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	result := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, result.Code)

	var caregiver models.Caregiver
	require.NoError(t, json.Unmarshal(result.Result, &caregiver))
	assert.NotEmpty(t, caregiver.ID)

	rec = doRequest(t, f.router, http.MethodGet, "/api/v1/caregivers", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Contains(t, string(result.Result), "ada@example.com")

	rec = doRequest(t, f.router, http.MethodDelete, "/api/v1/caregivers/"+caregiver.ID, nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
}

// ============================================
// 通知开关路由测试
// ============================================

func TestAlertRoutes(t *testing.T) {
	f := setupHandlers(t)

	rec := doRequest(t, f.router, http.MethodGet, "/api/v1/alerts/status", nil)
	result := decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Contains(t, string(result.Result), `"enabled":false`)

	rec = doRequest(t, f.router, http.MethodPost, "/api/v1/alerts/enable", nil)
	result = decodeResult(t, rec)
	assert.Equal(t, ResultSuccess, result.Code)
	assert.Contains(t, string(result.Result), `"enabled":true`)

	rec = doRequest(t, f.router, http.MethodGet, "/api/v1/alerts/status", nil)
	result = decodeResult(t, rec)
	assert.Contains(t, string(result.Result), `"enabled":true`)
}
