package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/export"
)

// Export formats accepted by the statement endpoints.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type ledgerExportSource interface {
	Get(ctx context.Context, id string) (*models.PettyCashLedger, error)
	Transactions(ctx context.Context, ledgerID string) ([]models.PettyCashTransaction, error)
}

type reportExportSource interface {
	ListReports(ctx context.Context, actor Actor, clientID string, page, pageSize int) ([]models.ProgressReport, *models.Pagination, error)
}

// ExportFile is a rendered document ready to be written to the response.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportService renders ledgers and progress reports as downloadable
// CSV or PDF documents.
type ExportService struct {
	ledgers ledgerExportSource
	targets reportExportSource
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService wires an export service.
func NewExportService(ledgers ledgerExportSource, targets reportExportSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	return &ExportService{
		ledgers: ledgers,
		targets: targets,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
	}
}

// LedgerStatement renders the full transaction history of a ledger,
// one row per line with its running balance.
func (s *ExportService) LedgerStatement(ctx context.Context, ledgerID, format string) (*ExportFile, error) {
	ledger, err := s.ledgers.Get(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	lines, err := s.ledgers.Transactions(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Headers: []string{"Seq", "Date", "Kind", "Amount", "Balance", "Description"},
		Rows:    make([]map[string]string, 0, len(lines)),
	}
	for _, line := range lines {
		data.Rows = append(data.Rows, map[string]string{
			"Seq":         fmt.Sprintf("%d", line.Seq),
			"Date":        line.CreatedAt.Format("2006-01-02 15:04"),
			"Kind":        string(line.Kind),
			"Amount":      line.Amount.StringFixed(2),
			"Balance":     line.Balance.StringFixed(2),
			"Description": line.Description,
		})
	}

	title := fmt.Sprintf("Petty Cash Statement - %s", ledger.Title)
	name := fmt.Sprintf("ledger-%s-%s", ledger.ID, time.Now().UTC().Format("20060102"))
	return s.render(data, title, name, format)
}

// ProgressReportSheet renders a client's progress reports, scoped to
// what the acting user may see.
func (s *ExportService) ProgressReportSheet(ctx context.Context, actor Actor, clientID, format string) (*ExportFile, error) {
	reports, _, err := s.targets.ListReports(ctx, actor, clientID, 1, exportPageSize)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Headers: []string{"Date", "Author", "Amount", "Summary"},
		Rows:    make([]map[string]string, 0, len(reports)),
	}
	for _, report := range reports {
		data.Rows = append(data.Rows, map[string]string{
			"Date":    report.CreatedAt.Format("2006-01-02"),
			"Author":  report.AuthorID,
			"Amount":  report.Amount.StringFixed(2),
			"Summary": report.Summary,
		})
	}

	name := fmt.Sprintf("progress-reports-%s-%s", clientID, time.Now().UTC().Format("20060102"))
	return s.render(data, "Progress Reports", name, format)
}

// exportPageSize caps statement exports to a single oversized page.
const exportPageSize = 10000

func (s *ExportService) render(data export.Dataset, title, name, format string) (*ExportFile, error) {
	switch format {
	case ExportFormatCSV:
		raw, err := s.csv.Render(data)
		if err != nil {
			s.logger.Error("render csv export", zap.String("name", name), zap.Error(err))
			return nil, appErrors.ErrInternal
		}
		return &ExportFile{Name: name + ".csv", ContentType: "text/csv", Data: raw}, nil
	case ExportFormatPDF:
		raw, err := s.pdf.Render(data, title)
		if err != nil {
			s.logger.Error("render pdf export", zap.String("name", name), zap.Error(err))
			return nil, appErrors.ErrInternal
		}
		return &ExportFile{Name: name + ".pdf", ContentType: "application/pdf", Data: raw}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
