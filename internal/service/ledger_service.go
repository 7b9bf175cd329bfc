package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type ledgerRepository interface {
	Create(ctx context.Context, ledger *models.PettyCashLedger) error
	GetByID(ctx context.Context, id string) (*models.PettyCashLedger, error)
	List(ctx context.Context, filter models.LedgerFilter) ([]models.PettyCashLedger, int, error)
	NextSeq(ctx context.Context, ledgerID string) (int64, error)
	CreateTransaction(ctx context.Context, line *models.PettyCashTransaction, ledger *models.PettyCashLedger) error
	ListTransactions(ctx context.Context, ledgerID string) ([]models.PettyCashTransaction, error)
}

// CreateLedgerRequest opens a new petty-cash book for a department.
type CreateLedgerRequest struct {
	DepartmentID    string          `json:"department_id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
}

// AddTransactionRequest appends one deposit or withdrawal line.
type AddTransactionRequest struct {
	Kind        models.TransactionKind `json:"kind" validate:"required,oneof=DEPOSIT WITHDRAWAL"`
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
}

// LedgerService manages petty-cash ledgers and their transaction lines.
type LedgerService struct {
	repo      ledgerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(repo ledgerRepository, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LedgerService{repo: repo, validator: validate, logger: logger}
}

// Create opens a ledger in the initial approval state.
func (s *LedgerService) Create(ctx context.Context, creatorID string, req CreateLedgerRequest) (*models.PettyCashLedger, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ledger payload")
	}
	if req.StartingBalance.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "starting balance cannot be negative")
	}

	ledger := &models.PettyCashLedger{
		DepartmentID:    req.DepartmentID,
		CreatedBy:       creatorID,
		Title:           req.Title,
		StartingBalance: req.StartingBalance,
		ClosingBalance:  req.StartingBalance,
		Approvable:      models.NewApprovable(),
	}
	if err := s.repo.Create(ctx, ledger); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create ledger")
	}
	return ledger, nil
}

// Get returns one ledger.
func (s *LedgerService) Get(ctx context.Context, id string) (*models.PettyCashLedger, error) {
	ledger, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	return ledger, nil
}

// List returns ledgers matching the filter.
func (s *LedgerService) List(ctx context.Context, filter models.LedgerFilter) ([]models.PettyCashLedger, *models.Pagination, error) {
	ledgers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledgers")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return ledgers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// AddTransaction appends a line and recomputes the closing balance. Locked
// ledgers refuse new lines.
func (s *LedgerService) AddTransaction(ctx context.Context, ledgerID, actorID string, req AddTransactionRequest) (*models.PettyCashTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transaction payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	ledger, err := s.repo.GetByID(ctx, ledgerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	if ledger.Locked {
		return nil, appErrors.Clone(appErrors.ErrRecordLocked, "ledger is locked")
	}

	seq, err := s.repo.NextSeq(ctx, ledgerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate sequence")
	}

	balance := ledger.ClosingBalance
	switch req.Kind {
	case models.TransactionDeposit:
		balance = balance.Add(req.Amount)
	case models.TransactionWithdrawal:
		balance = balance.Sub(req.Amount)
	}

	line := &models.PettyCashTransaction{
		LedgerID:    ledgerID,
		Kind:        req.Kind,
		Amount:      req.Amount,
		Balance:     balance,
		Description: req.Description,
		Seq:         seq,
		CreatedBy:   actorID,
	}
	ledger.ClosingBalance = balance

	if err := s.repo.CreateTransaction(ctx, line, ledger); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record transaction")
	}
	return line, nil
}

// Transactions returns a ledger's lines in insertion order.
func (s *LedgerService) Transactions(ctx context.Context, ledgerID string) ([]models.PettyCashTransaction, error) {
	if _, err := s.Get(ctx, ledgerID); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListTransactions(ctx, ledgerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return lines, nil
}
