package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telsite/fieldops-api/internal/service"
	"github.com/telsite/fieldops-api/pkg/response"
)

// ReportHandler streams history exports.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// VisitHistory exports a site's archived visits as CSV or PDF.
func (h *ReportHandler) VisitHistory(c *gin.Context) {
	report, err := h.service.VisitHistory(c.Request.Context(), c.Param("siteId"),
		service.ReportFormat(c.DefaultQuery("format", "csv")), claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	streamReport(c, report)
}

// KeyHistory exports a site's archived key custody cycles as CSV or PDF.
func (h *ReportHandler) KeyHistory(c *gin.Context) {
	report, err := h.service.KeyHistory(c.Request.Context(), c.Param("siteId"),
		service.ReportFormat(c.DefaultQuery("format", "csv")), claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	streamReport(c, report)
}

func streamReport(c *gin.Context, report *service.Report) {
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName+`"`)
	c.Data(http.StatusOK, report.ContentType, report.Content)
}
