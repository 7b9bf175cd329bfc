package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubLedgerRepo struct {
	ledgers map[string]*models.PettyCashLedger
	lines   map[string][]models.PettyCashTransaction
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{
		ledgers: make(map[string]*models.PettyCashLedger),
		lines:   make(map[string][]models.PettyCashTransaction),
	}
}

func (s *stubLedgerRepo) Create(ctx context.Context, ledger *models.PettyCashLedger) error {
	if ledger.ID == "" {
		ledger.ID = uuid.NewString()
	}
	s.ledgers[ledger.ID] = ledger
	return nil
}

func (s *stubLedgerRepo) GetByID(ctx context.Context, id string) (*models.PettyCashLedger, error) {
	if l, ok := s.ledgers[id]; ok {
		copy := *l
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubLedgerRepo) List(ctx context.Context, filter models.LedgerFilter) ([]models.PettyCashLedger, int, error) {
	var out []models.PettyCashLedger
	for _, l := range s.ledgers {
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (s *stubLedgerRepo) NextSeq(ctx context.Context, ledgerID string) (int64, error) {
	return int64(len(s.lines[ledgerID]) + 1), nil
}

func (s *stubLedgerRepo) CreateTransaction(ctx context.Context, line *models.PettyCashTransaction, ledger *models.PettyCashLedger) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	s.lines[ledger.ID] = append(s.lines[ledger.ID], *line)
	s.ledgers[ledger.ID] = ledger
	return nil
}

func (s *stubLedgerRepo) ListTransactions(ctx context.Context, ledgerID string) ([]models.PettyCashTransaction, error) {
	return s.lines[ledgerID], nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRunningBalanceAcrossLines(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := NewLedgerService(repo, nil, zap.NewNop())

	ledger, err := svc.Create(context.Background(), "staff-1", CreateLedgerRequest{
		DepartmentID:    "dept-1",
		Title:           "Office float",
		StartingBalance: decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, ledger.ClosingBalance.IsZero())
	assert.Equal(t, models.ApprovalPendingDeptHead, ledger.ApprovalStatus)

	first, err := svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionDeposit, Amount: dec("100"), Description: "seed",
	})
	require.NoError(t, err)
	assert.True(t, first.Balance.Equal(dec("100")), "balance = %s", first.Balance)
	assert.Equal(t, int64(1), first.Seq)

	second, err := svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionDeposit, Amount: dec("50"),
	})
	require.NoError(t, err)
	assert.True(t, second.Balance.Equal(dec("150")), "balance = %s", second.Balance)

	third, err := svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionWithdrawal, Amount: dec("30"), Description: "stationery",
	})
	require.NoError(t, err)
	assert.True(t, third.Balance.Equal(dec("120")), "balance = %s", third.Balance)
	assert.Equal(t, int64(3), third.Seq)

	stored, err := svc.Get(context.Background(), ledger.ID)
	require.NoError(t, err)
	assert.True(t, stored.ClosingBalance.Equal(dec("120")), "closing = %s", stored.ClosingBalance)
}

func TestLockedLedgerRefusesLines(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := NewLedgerService(repo, nil, zap.NewNop())

	ledger, err := svc.Create(context.Background(), "staff-1", CreateLedgerRequest{
		DepartmentID: "dept-1", Title: "Closed book",
	})
	require.NoError(t, err)

	repo.ledgers[ledger.ID].Locked = true

	_, err = svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionDeposit, Amount: dec("10"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRecordLocked.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.lines[ledger.ID])
}

func TestNegativeStartingBalanceRejected(t *testing.T) {
	svc := NewLedgerService(newStubLedgerRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "staff-1", CreateLedgerRequest{
		DepartmentID: "dept-1", Title: "Bad", StartingBalance: dec("-5"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNonPositiveAmountRejected(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := NewLedgerService(repo, nil, zap.NewNop())

	ledger, err := svc.Create(context.Background(), "staff-1", CreateLedgerRequest{
		DepartmentID: "dept-1", Title: "Float",
	})
	require.NoError(t, err)

	_, err = svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionWithdrawal, Amount: decimal.Zero,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWithdrawalMayOverdraw(t *testing.T) {
	repo := newStubLedgerRepo()
	svc := NewLedgerService(repo, nil, zap.NewNop())

	ledger, err := svc.Create(context.Background(), "staff-1", CreateLedgerRequest{
		DepartmentID: "dept-1", Title: "Float", StartingBalance: dec("20"),
	})
	require.NoError(t, err)

	line, err := svc.AddTransaction(context.Background(), ledger.ID, "staff-1", AddTransactionRequest{
		Kind: models.TransactionWithdrawal, Amount: dec("50"),
	})
	require.NoError(t, err)
	assert.True(t, line.Balance.Equal(dec("-30")), "balance = %s", line.Balance)
}
