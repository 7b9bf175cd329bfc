package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hq/crestline-api/internal/models"
)

func TestCreateProgressIdempotentOnDuplicateReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	mock.ExpectExec("INSERT INTO target_progress").WillReturnResult(sqlmock.NewResult(1, 1))

	p := &models.TargetProgress{TargetID: "t1", ReportID: "r1", Amount: decimal.NewFromInt(100)}
	inserted, err := repo.CreateProgress(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, inserted)

	mock.ExpectExec("INSERT INTO target_progress").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "target_progress_report_id_key"`))

	again := &models.TargetProgress{TargetID: "t1", ReportID: "r1", Amount: decimal.NewFromInt(100)}
	inserted, err = repo.CreateProgress(context.Background(), again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasActiveByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTargetRepository(db)

	mock.ExpectQuery("SELECT id, user_id, title, amount, status, created_at, updated_at FROM targets").
		WithArgs("u1", string(models.TargetActive)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	active, err := repo.HasActiveByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}
