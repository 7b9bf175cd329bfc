package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hq/crestline-api/internal/models"
)

func TestUpdateApprovalBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec("UPDATE petty_cash_ledgers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ledger := &models.PettyCashLedger{ID: "l1"}
	ledger.DeptHeadStatus = models.StageApproved
	ledger.AdminStatus = models.StagePending
	ledger.ApprovalStatus = models.ApprovalPendingAdmin

	err := repo.UpdateApproval(context.Background(), ledger, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ledger.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateApprovalStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec("UPDATE petty_cash_ledgers").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ledger := &models.PettyCashLedger{ID: "l1"}
	err := repo.UpdateApproval(context.Background(), ledger, 3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextSeq(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	rows := sqlmock.NewRows([]string{"seq"}).AddRow(6)
	mock.ExpectQuery("SELECT COALESCE").WithArgs("l1").WillReturnRows(rows)

	seq, err := repo.NextSeq(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransactionUpdatesClosingBalance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO petty_cash_transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE petty_cash_ledgers SET closing_balance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ledger := &models.PettyCashLedger{ID: "l1", ClosingBalance: decimal.NewFromInt(120)}
	line := &models.PettyCashTransaction{
		ID:       "t1",
		LedgerID: "l1",
		Kind:     models.TransactionDeposit,
		Amount:   decimal.NewFromInt(50),
		Balance:  decimal.NewFromInt(120),
		Seq:      2,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), line, ledger))
	assert.NoError(t, mock.ExpectationsWereMet())
}
