package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/models"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
)

func reportTestSite() *models.Site {
	checkOut := time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)
	returned := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	logoutName := "ROC Duty"
	return &models.Site{
		ID:   "S1",
		Name: "North Tower",
		VisitorHistory: []models.SiteVisitor{{
			ID:            "VIS-1",
			LeadName:      "Ava Chen",
			Company:       "Acme Telecom",
			Personnel:     []string{"Ava Chen", "Rigger One"},
			Activity:      "antenna swap",
			RocName:       "ROC Duty",
			RocLogoutName: &logoutName,
			CheckInTime:   time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
			CheckOutTime:  &checkOut,
			State:         models.RecordStateArchived,
		}},
		KeyHistory: []models.KeyLog{{
			ID:           "KEY-1",
			BorrowerName: "Ava Chen",
			Company:      "Acme Telecom",
			Reason:       "generator maintenance",
			BorrowTime:   time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC),
			ReturnTime:   &returned,
			State:        models.RecordStateArchived,
		}},
	}
}

func TestReportVisitHistoryCSV(t *testing.T) {
	reader := &fakeSiteReader{sites: []models.Site{*reportTestSite()}}
	audit := &auditSpy{}
	svc := NewReportService(reader, audit, zap.NewNop())

	report, err := svc.VisitHistory(context.Background(), "S1", ReportFormatCSV, officerClaims(), "10.0.0.4")
	require.NoError(t, err)

	assert.Equal(t, "S1-visits.csv", report.FileName)
	assert.Equal(t, "text/csv", report.ContentType)
	body := string(report.Content)
	assert.Contains(t, body, "VIS-1")
	assert.Contains(t, body, "Ava Chen, Rigger One")
	assert.Contains(t, body, "2026-03-14T17:00:00Z")
	assert.Contains(t, audit.actions, models.AuditActionHistoryExport)
}

func TestReportKeyHistoryPDF(t *testing.T) {
	reader := &fakeSiteReader{sites: []models.Site{*reportTestSite()}}
	svc := NewReportService(reader, nil, zap.NewNop())

	report, err := svc.KeyHistory(context.Background(), "S1", ReportFormatPDF, officerClaims(), "")
	require.NoError(t, err)

	assert.Equal(t, "S1-keys.pdf", report.FileName)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, strings.HasPrefix(string(report.Content), "%PDF"))
}

func TestReportUnknownSite(t *testing.T) {
	svc := NewReportService(&fakeSiteReader{}, nil, zap.NewNop())

	_, err := svc.VisitHistory(context.Background(), "missing", ReportFormatCSV, officerClaims(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportUnsupportedFormat(t *testing.T) {
	reader := &fakeSiteReader{sites: []models.Site{*reportTestSite()}}
	svc := NewReportService(reader, nil, zap.NewNop())

	_, err := svc.KeyHistory(context.Background(), "S1", ReportFormat("xlsx"), officerClaims(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
