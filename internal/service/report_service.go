package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/models"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
	"github.com/telsite/fieldops-api/pkg/export"
)

// ReportFormat selects the export encoding.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Report is a rendered history export ready to stream to the client.
type Report struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ReportService renders a site's archived visit and key custody history into
// downloadable documents.
type ReportService struct {
	sites  siteReader
	audit  auditRecorder
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService constructs the export service.
func NewReportService(sites siteReader, audit auditRecorder, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		sites:  sites,
		audit:  audit,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// VisitHistory exports the site's archived visits, newest first.
func (s *ReportService) VisitHistory(ctx context.Context, siteID string, format ReportFormat, actor *models.JWTClaims, ip string) (*Report, error) {
	site, err := s.loadSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	headers := []string{"Session", "Lead", "Company", "Personnel", "Activity", "Check In", "Check Out", "ROC Login", "ROC Logout"}
	rows := make([]map[string]string, 0, len(site.VisitorHistory))
	for _, visit := range site.VisitorHistory {
		rows = append(rows, map[string]string{
			"Session":    visit.ID,
			"Lead":       visit.LeadName,
			"Company":    visit.Company,
			"Personnel":  strings.Join(visit.Personnel, ", "),
			"Activity":   visit.Activity,
			"Check In":   formatTime(&visit.CheckInTime),
			"Check Out":  formatTime(visit.CheckOutTime),
			"ROC Login":  visit.RocName,
			"ROC Logout": deref(visit.RocLogoutName),
		})
	}

	report, err := s.render(export.Dataset{Headers: headers, Rows: rows}, format, "visit history "+site.Name, siteID+"-visits")
	if err != nil {
		return nil, err
	}
	s.recordExport(actor, siteID, "visits", format, ip)
	return report, nil
}

// KeyHistory exports the site's archived key custody cycles, newest first.
func (s *ReportService) KeyHistory(ctx context.Context, siteID string, format ReportFormat, actor *models.JWTClaims, ip string) (*Report, error) {
	site, err := s.loadSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	headers := []string{"Custody", "Borrower", "Company", "Reason", "Borrowed", "Returned"}
	rows := make([]map[string]string, 0, len(site.KeyHistory))
	for _, log := range site.KeyHistory {
		rows = append(rows, map[string]string{
			"Custody":  log.ID,
			"Borrower": log.BorrowerName,
			"Company":  log.Company,
			"Reason":   log.Reason,
			"Borrowed": formatTime(&log.BorrowTime),
			"Returned": formatTime(log.ReturnTime),
		})
	}

	report, err := s.render(export.Dataset{Headers: headers, Rows: rows}, format, "key history "+site.Name, siteID+"-keys")
	if err != nil {
		return nil, err
	}
	s.recordExport(actor, siteID, "keys", format, ip)
	return report, nil
}

func (s *ReportService) loadSite(ctx context.Context, siteID string) (*models.Site, error) {
	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, storeError(err, "failed to load site")
	}
	return site, nil
}

func (s *ReportService) render(data export.Dataset, format ReportFormat, title, baseName string) (*Report, error) {
	switch format {
	case ReportFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &Report{FileName: baseName + ".csv", ContentType: "text/csv", Content: content}, nil
	case ReportFormatPDF:
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &Report{FileName: baseName + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}

func (s *ReportService) recordExport(actor *models.JWTClaims, siteID, kind string, format ReportFormat, ip string) {
	if s.audit == nil || actor == nil {
		return
	}
	s.audit.Record(&actor.UserID, models.AuditActionHistoryExport, "site", &siteID, map[string]interface{}{
		"kind":   kind,
		"format": string(format),
	}, ip)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
