package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/export"
)

type stubLedgerSource struct {
	ledger *models.PettyCashLedger
	lines  []models.PettyCashTransaction
}

func (s *stubLedgerSource) Get(_ context.Context, id string) (*models.PettyCashLedger, error) {
	if s.ledger == nil || s.ledger.ID != id {
		return nil, appErrors.ErrNotFound
	}
	return s.ledger, nil
}

func (s *stubLedgerSource) Transactions(_ context.Context, _ string) ([]models.PettyCashTransaction, error) {
	return s.lines, nil
}

type stubReportSource struct {
	lastActor Actor
	reports   []models.ProgressReport
}

func (s *stubReportSource) ListReports(_ context.Context, actor Actor, _ string, _, _ int) ([]models.ProgressReport, *models.Pagination, error) {
	s.lastActor = actor
	return s.reports, nil, nil
}

func newExportService(ledgers ledgerExportSource, targets reportExportSource) *ExportService {
	return NewExportService(ledgers, targets, export.NewCSVExporter(), export.NewPDFExporter(), zap.NewNop())
}

func TestLedgerStatementCSVCarriesRunningBalances(t *testing.T) {
	ledgers := &stubLedgerSource{
		ledger: &models.PettyCashLedger{ID: "led-1", Title: "Q3 Office"},
		lines: []models.PettyCashTransaction{
			{Seq: 1, Kind: models.TransactionDeposit, Amount: dec("100"), Balance: dec("100"), Description: "float", CreatedAt: time.Now()},
			{Seq: 2, Kind: models.TransactionWithdrawal, Amount: dec("30"), Balance: dec("70"), Description: "stationery", CreatedAt: time.Now()},
		},
	}
	svc := newExportService(ledgers, &stubReportSource{})

	file, err := svc.LedgerStatement(context.Background(), "led-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, file.Name, "led-1")

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Seq", "Date", "Kind", "Amount", "Balance", "Description"}, records[0])
	assert.Equal(t, "70.00", records[2][4])
	assert.Equal(t, "stationery", records[2][5])
}

func TestLedgerStatementPDFRenders(t *testing.T) {
	ledgers := &stubLedgerSource{
		ledger: &models.PettyCashLedger{ID: "led-1", Title: "Q3 Office"},
		lines: []models.PettyCashTransaction{
			{Seq: 1, Kind: models.TransactionDeposit, Amount: dec("100"), Balance: dec("100"), CreatedAt: time.Now()},
		},
	}
	svc := newExportService(ledgers, &stubReportSource{})

	file, err := svc.LedgerStatement(context.Background(), "led-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestLedgerStatementUnknownLedger(t *testing.T) {
	svc := newExportService(&stubLedgerSource{}, &stubReportSource{})

	_, err := svc.LedgerStatement(context.Background(), "missing", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	ledgers := &stubLedgerSource{ledger: &models.PettyCashLedger{ID: "led-1"}}
	svc := newExportService(ledgers, &stubReportSource{})

	_, err := svc.LedgerStatement(context.Background(), "led-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProgressReportSheetPassesActorThrough(t *testing.T) {
	reports := &stubReportSource{
		reports: []models.ProgressReport{
			{ID: "rep-1", ClientID: "cli-1", AuthorID: "staff-1", Summary: "kickoff done", Amount: dec("250"), CreatedAt: time.Now()},
		},
	}
	svc := newExportService(&stubLedgerSource{}, reports)
	actor := Actor{UserID: "staff-1", Role: models.RoleStaff}

	file, err := svc.ProgressReportSheet(context.Background(), actor, "cli-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, actor, reports.lastActor)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "250.00", records[1][2])
}
