package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/olayemidamola/medsync/internal/repository"
)

func setupHistoryService(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *HistoryService) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := repository.NewDoseHistoryRepository(db, logger)
	svc := NewHistoryService(repo, logger)

	return db, mock, svc
}

func TestListDoseHistory_ClampsPageSize(t *testing.T) {
	db, mock, svc := setupHistoryService(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// size 超过上限被压到 100
	mock.ExpectQuery(`SELECT`).
		WithArgs(100, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"record_id", "medication_id", "medication_name", "dosage",
			"dose_index", "scheduled_time", "from_status", "to_status",
			"occurred_at", "notified_caregivers", "details", "created_at",
		}))

	records, total, err := svc.ListDoseHistory(context.Background(), repository.DoseHistoryFilters{}, 1, 500)

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, records)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportDoseHistory_BypassesPageSizeClamp(t *testing.T) {
	db, mock, svc := setupHistoryService(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(150))

	// 导出路径按 1000 条上限查询，不受列表接口的 100 条限制
	mock.ExpectQuery(`SELECT`).
		WithArgs(1000, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"record_id", "medication_id", "medication_name", "dosage",
			"dose_index", "scheduled_time", "from_status", "to_status",
			"occurred_at", "notified_caregivers", "details", "created_at",
		}))

	records, err := svc.ExportDoseHistory(context.Background(), repository.DoseHistoryFilters{})

	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdherenceSummary(t *testing.T) {
	db, mock, svc := setupHistoryService(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"to_status", "count"}).
		AddRow("taken", 8).
		AddRow("missed", 2)

	mock.ExpectQuery(`SELECT to_status, COUNT`).
		WithArgs("taken", "missed").
		WillReturnRows(rows)

	summary, err := svc.GetAdherenceSummary(context.Background(), repository.DoseHistoryFilters{})

	require.NoError(t, err)
	assert.Equal(t, 8, summary.Taken)
	assert.Equal(t, 2, summary.Missed)
	assert.Equal(t, 10, summary.Total)

	require.NoError(t, mock.ExpectationsWereMet())
}
