package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalmiddleware "github.com/telsite/fieldops-api/internal/middleware"
	"github.com/telsite/fieldops-api/internal/models"
	"github.com/telsite/fieldops-api/internal/repository"
	"github.com/telsite/fieldops-api/internal/service"
	"github.com/telsite/fieldops-api/pkg/geo"
)

// memoryLedger is an in-memory stand-in for the site repository covering the
// access, key and read interfaces the services consume.
type memoryLedger struct {
	site          models.Site
	pendingVisit  *models.SiteVisitor
	currentVisit  *models.SiteVisitor
	visitHistory  []models.SiteVisitor
	pendingKey    *models.KeyLog
	currentKey    *models.KeyLog
	keyHistory    []models.KeyLog
	accessGranted bool
	keyGranted    bool
}

func (m *memoryLedger) snapshot() models.Site {
	site := m.site
	site.AccessAuthorized = m.accessGranted
	site.KeyAccessAuthorized = m.keyGranted
	site.PendingVisitor = m.pendingVisit
	site.CurrentVisitor = m.currentVisit
	site.VisitorHistory = m.visitHistory
	site.PendingKeyLog = m.pendingKey
	site.CurrentKeyLog = m.currentKey
	site.KeyHistory = m.keyHistory
	return site
}

func (m *memoryLedger) List(ctx context.Context) ([]models.Site, error) {
	return []models.Site{m.snapshot()}, nil
}

func (m *memoryLedger) Get(ctx context.Context, siteID string) (*models.Site, error) {
	if siteID != m.site.ID {
		return nil, sql.ErrNoRows
	}
	site := m.snapshot()
	return &site, nil
}

func (m *memoryLedger) ReplacePendingVisitor(ctx context.Context, visitor *models.SiteVisitor) error {
	m.pendingVisit = visitor
	m.accessGranted = false
	return nil
}

func (m *memoryLedger) SetAccessAuthorized(ctx context.Context, siteID string, authorized bool) error {
	if siteID != m.site.ID {
		return sql.ErrNoRows
	}
	m.accessGranted = authorized
	return nil
}

func (m *memoryLedger) ClearPendingVisitor(ctx context.Context, siteID string) error {
	if siteID != m.site.ID {
		return sql.ErrNoRows
	}
	m.pendingVisit = nil
	m.accessGranted = false
	return nil
}

func (m *memoryLedger) PromotePendingVisitor(ctx context.Context, siteID, sessionID string, checkInTime time.Time) (*models.SiteVisitor, error) {
	if m.pendingVisit == nil {
		return nil, sql.ErrNoRows
	}
	promoted := *m.pendingVisit
	promoted.ID = sessionID
	promoted.State = models.RecordStateCurrent
	promoted.CheckInTime = checkInTime
	m.pendingVisit = nil
	m.currentVisit = &promoted
	m.accessGranted = false
	return &promoted, nil
}

func (m *memoryLedger) ArchiveCurrentVisitor(ctx context.Context, siteID string, params repository.ArchiveVisitParams) (*models.SiteVisitor, error) {
	if m.currentVisit == nil {
		return nil, sql.ErrNoRows
	}
	archived := *m.currentVisit
	archived.State = models.RecordStateArchived
	archived.ExitPhoto = &params.ExitPhoto
	archived.RocLogoutName = &params.RocLogoutName
	archived.RocLogoutTime = &params.RocLogoutTime
	archived.RocLogoutCoordinated = params.RocLogoutCoordinated
	archived.CheckOutTime = &params.CheckOutTime
	m.currentVisit = nil
	m.visitHistory = append([]models.SiteVisitor{archived}, m.visitHistory...)
	return &archived, nil
}

func (m *memoryLedger) ReplacePendingKeyLog(ctx context.Context, log *models.KeyLog) error {
	m.pendingKey = log
	m.keyGranted = false
	return nil
}

func (m *memoryLedger) SetKeyAuthorized(ctx context.Context, siteID string, authorized bool) error {
	if siteID != m.site.ID {
		return sql.ErrNoRows
	}
	m.keyGranted = authorized
	return nil
}

func (m *memoryLedger) ClearPendingKeyLog(ctx context.Context, siteID string) error {
	if siteID != m.site.ID {
		return sql.ErrNoRows
	}
	m.pendingKey = nil
	m.keyGranted = false
	return nil
}

func (m *memoryLedger) PromotePendingKeyLog(ctx context.Context, siteID, custodyID string, borrowTime time.Time) (*models.KeyLog, error) {
	if m.pendingKey == nil {
		return nil, sql.ErrNoRows
	}
	promoted := *m.pendingKey
	promoted.ID = custodyID
	promoted.State = models.RecordStateCurrent
	promoted.BorrowTime = borrowTime
	m.pendingKey = nil
	m.currentKey = &promoted
	m.keyGranted = false
	m.site.KeyStatus = models.KeyStatusBorrowed
	return &promoted, nil
}

func (m *memoryLedger) ArchiveCurrentKeyLog(ctx context.Context, siteID string, params repository.ArchiveKeyParams) (*models.KeyLog, error) {
	if m.currentKey == nil {
		return nil, sql.ErrNoRows
	}
	archived := *m.currentKey
	archived.State = models.RecordStateArchived
	archived.ReturnPhoto = &params.ReturnPhoto
	archived.ReturnTime = &params.ReturnTime
	m.currentKey = nil
	m.keyHistory = append([]models.KeyLog{archived}, m.keyHistory...)
	m.site.KeyStatus = models.KeyStatusAvailable
	return &archived, nil
}

type memoryAccounts struct {
	accounts map[string]*models.Account
}

func (m *memoryAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return account, nil
}

type memoryMessages struct {
	messages []models.VendorMessage
}

func (m *memoryMessages) Append(ctx context.Context, message *models.VendorMessage) error {
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memoryMessages) ListForVendor(ctx context.Context, vendorID string) ([]models.VendorMessage, error) {
	var out []models.VendorMessage
	for _, msg := range m.messages {
		if msg.VendorID == vendorID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryMessages) MarkRead(ctx context.Context, vendorID, messageID string) error {
	for i := range m.messages {
		if m.messages[i].ID == messageID && m.messages[i].VendorID == vendorID {
			m.messages[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryMessages) CountUnread(ctx context.Context, vendorID string) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.VendorID == vendorID && !msg.Read {
			count++
		}
	}
	return count, nil
}

func siteCoord(v float64) *float64 { return &v }

func buildWorkflowRouter(ledger *memoryLedger) *gin.Engine {
	gin.SetMode(gin.TestMode)

	accounts := &memoryAccounts{accounts: map[string]*models.Account{
		"v1": {ID: "v1", Username: "acme", FullName: "Ava Chen", Contact: "0800", Company: "Acme Telecom", Role: models.RoleVendor},
	}}
	messages := &memoryMessages{}
	validate := validator.New()
	logger := zap.NewNop()
	verifier := geo.NewVerifier(500, true)

	accessSvc := service.NewAccessService(ledger, accounts, verifier, nil, nil, nil, nil, validate, logger)
	keySvc := service.NewKeyService(ledger, accounts, nil, nil, nil, nil, validate, logger)
	siteSvc := service.NewSiteService(ledger, nil, logger)
	gatewaySvc := service.NewGatewayService(ledger, accounts, messages, nil, validate, logger)
	reportSvc := service.NewReportService(ledger, nil, logger)

	accessHandler := NewAccessHandler(accessSvc)
	keyHandler := NewKeyHandler(keySvc)
	siteHandler := NewSiteHandler(siteSvc)
	gatewayHandler := NewGatewayHandler(gatewaySvc)
	reportHandler := NewReportHandler(reportSvc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			userID := c.GetHeader("X-Test-User")
			if userID == "" {
				userID = "test-user"
			}
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID:   userID,
				Role:     models.AccountRole(role),
				FullName: "Test Operator",
			})
		}
		c.Next()
	})

	officer := internalmiddleware.RequireRoles(models.RoleFieldOfficer, models.RoleAdmin)
	vendor := internalmiddleware.RequireRoles(models.RoleVendor)
	anyRole := internalmiddleware.RequireRoles(models.RoleVendor, models.RoleFieldOfficer, models.RoleAdmin)

	router.GET("/sites", anyRole, siteHandler.List)
	router.GET("/sites/overview", anyRole, siteHandler.Overview)
	router.GET("/sites/:siteId", anyRole, siteHandler.Get)

	router.POST("/sites/:siteId/access/request", vendor, accessHandler.Submit)
	router.POST("/sites/:siteId/access/authorize", officer, accessHandler.Authorize)
	router.POST("/sites/:siteId/access/deny", officer, accessHandler.Deny)
	router.POST("/sites/:siteId/access/check-in", vendor, accessHandler.CheckIn)
	router.POST("/sites/:siteId/access/check-out", vendor, accessHandler.CheckOut)

	router.POST("/sites/:siteId/keys/request", vendor, keyHandler.RequestBorrow)
	router.POST("/sites/:siteId/keys/authorize", officer, keyHandler.AuthorizeBorrow)
	router.POST("/sites/:siteId/keys/deny", officer, keyHandler.DenyBorrow)
	router.POST("/sites/:siteId/keys/confirm", vendor, keyHandler.ConfirmBorrow)
	router.POST("/sites/:siteId/keys/return", vendor, keyHandler.Return)

	router.GET("/gateway/pending", officer, gatewayHandler.PendingApprovals)
	router.POST("/vendors/:vendorId/messages", officer, gatewayHandler.SendMessage)
	router.GET("/vendors/:vendorId/messages", internalmiddleware.RBAC("FIELD_OFFICER", "ADMIN", "SELF"), gatewayHandler.Messages)
	router.POST("/vendors/:vendorId/messages/:messageId/read", internalmiddleware.RBAC("SELF"), gatewayHandler.MarkRead)

	router.GET("/sites/:siteId/reports/visits", officer, reportHandler.VisitHistory)
	router.GET("/sites/:siteId/reports/keys", officer, reportHandler.KeyHistory)

	return router
}

func doRequest(router *gin.Engine, method, path, role, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func accessPayload() map[string]interface{} {
	return map[string]interface{}{
		"activity": "antenna swap",
		"rocName":  "ROC Duty",
		"rocTime":  "08:30",
		"evidence": map[string]interface{}{
			"imageData": "base64-selfie",
			"lat":       -6.2001,
			"lng":       106.8001,
		},
	}
}

func TestAccessWorkflowEndToEnd(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1", Name: "North Tower", Lat: siteCoord(-6.2), Lng: siteCoord(106.8), KeyStatus: models.KeyStatusAvailable}}
	router := buildWorkflowRouter(ledger)

	resp := doRequest(router, http.MethodPost, "/sites/S1/access/request", "VENDOR", "v1", accessPayload())
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"id":"REQ-`)

	resp = doRequest(router, http.MethodGet, "/gateway/pending", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"S1"`)

	resp = doRequest(router, http.MethodPost, "/sites/S1/access/authorize", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.True(t, ledger.accessGranted)

	resp = doRequest(router, http.MethodPost, "/sites/S1/access/check-in", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"id":"VIS-`)
	require.Nil(t, ledger.pendingVisit)
	require.NotNil(t, ledger.currentVisit)

	resp = doRequest(router, http.MethodPost, "/sites/S1/access/check-out", "VENDOR", "v1", map[string]interface{}{
		"rocLogoutName": "ROC Duty",
		"rocLogoutTime": "17:15",
		"evidence":      map[string]interface{}{"imageData": "base64-exit"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Nil(t, ledger.currentVisit)
	require.Len(t, ledger.visitHistory, 1)
}

func TestAccessWorkflowRejectsOutOfRange(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1", Lat: siteCoord(-6.2), Lng: siteCoord(106.8)}}
	router := buildWorkflowRouter(ledger)

	payload := accessPayload()
	payload["evidence"] = map[string]interface{}{"imageData": "base64-selfie", "lat": -6.3, "lng": 106.8}
	resp := doRequest(router, http.MethodPost, "/sites/S1/access/request", "VENDOR", "v1", payload)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "PROXIMITY_OUT_OF_RANGE")
	require.Nil(t, ledger.pendingVisit)
}

func TestAccessWorkflowRBAC(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1"}}
	router := buildWorkflowRouter(ledger)

	// Vendors cannot authorize their own requests.
	resp := doRequest(router, http.MethodPost, "/sites/S1/access/authorize", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	// Unauthenticated requests are rejected outright.
	resp = doRequest(router, http.MethodPost, "/sites/S1/access/request", "", "", accessPayload())
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestKeyWorkflowEndToEnd(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1", KeyStatus: models.KeyStatusAvailable}}
	router := buildWorkflowRouter(ledger)

	resp := doRequest(router, http.MethodPost, "/sites/S1/keys/request", "VENDOR", "v1", map[string]interface{}{
		"reason":   "generator maintenance",
		"evidence": map[string]interface{}{"imageData": "base64-borrow"},
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), `"id":"KREQ-`)

	resp = doRequest(router, http.MethodPost, "/sites/S1/keys/authorize", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doRequest(router, http.MethodPost, "/sites/S1/keys/confirm", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"id":"KEY-`)
	require.Equal(t, models.KeyStatusBorrowed, ledger.site.KeyStatus)

	resp = doRequest(router, http.MethodPost, "/sites/S1/keys/return", "VENDOR", "v1", map[string]interface{}{
		"evidence": map[string]interface{}{"imageData": "base64-return"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, models.KeyStatusAvailable, ledger.site.KeyStatus)
	require.Len(t, ledger.keyHistory, 1)
}

func TestKeyWorkflowConfirmWithoutPending(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1"}}
	router := buildWorkflowRouter(ledger)

	resp := doRequest(router, http.MethodPost, "/sites/S1/keys/confirm", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestVendorMessageChannel(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1"}}
	router := buildWorkflowRouter(ledger)

	resp := doRequest(router, http.MethodPost, "/vendors/v1/messages", "FIELD_OFFICER", "fo1", map[string]interface{}{
		"body": "access granted, proceed to gate",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var created struct {
		Data models.VendorMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	// The recipient vendor reads the channel through the SELF rule.
	resp = doRequest(router, http.MethodGet, "/vendors/v1/messages", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "access granted")

	// Another vendor is shut out.
	resp = doRequest(router, http.MethodGet, "/vendors/v1/messages", "VENDOR", "v2", nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	// Only the recipient can acknowledge.
	resp = doRequest(router, http.MethodPost, "/vendors/v1/messages/"+created.Data.ID+"/read", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doRequest(router, http.MethodPost, "/vendors/v1/messages/"+created.Data.ID+"/read", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestSiteSnapshotAndReports(t *testing.T) {
	ledger := &memoryLedger{site: models.Site{ID: "S1", Name: "North Tower", Lat: siteCoord(-6.2), Lng: siteCoord(106.8), KeyStatus: models.KeyStatusAvailable}}
	router := buildWorkflowRouter(ledger)

	resp := doRequest(router, http.MethodPost, "/sites/S1/access/request", "VENDOR", "v1", accessPayload())
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = doRequest(router, http.MethodGet, "/sites/S1", "VENDOR", "v1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"pendingVisitor"`)

	resp = doRequest(router, http.MethodGet, "/sites/overview", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"pendingAccess"`)

	resp = doRequest(router, http.MethodGet, "/sites/S1/reports/visits?format=csv", "FIELD_OFFICER", "fo1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
}
