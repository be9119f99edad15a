package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/models"
	"github.com/telsite/fieldops-api/internal/repository"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
)

// keyLedger is the slice of the site repository the key custody workflow
// depends on.
type keyLedger interface {
	Get(ctx context.Context, siteID string) (*models.Site, error)
	ReplacePendingKeyLog(ctx context.Context, log *models.KeyLog) error
	SetKeyAuthorized(ctx context.Context, siteID string, authorized bool) error
	ClearPendingKeyLog(ctx context.Context, siteID string) error
	PromotePendingKeyLog(ctx context.Context, siteID, custodyID string, borrowTime time.Time) (*models.KeyLog, error)
	ArchiveCurrentKeyLog(ctx context.Context, siteID string, params repository.ArchiveKeyParams) (*models.KeyLog, error)
}

// KeyService drives the physical key borrow/return cycle. It mirrors the
// access workflow but carries no proximity gate: custody may be requested
// away from the site.
type KeyService struct {
	sites     keyLedger
	accounts  accountReader
	uploader  evidenceUploader
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewKeyService builds a KeyService with sane defaults.
func NewKeyService(
	sites keyLedger,
	accounts accountReader,
	uploader evidenceUploader,
	audit auditRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *KeyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyService{
		sites:     sites,
		accounts:  accounts,
		uploader:  uploader,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// RequestBorrow files a borrow request for the site key, replacing any prior
// pending request and resetting the key authorization flag.
func (s *KeyService) RequestBorrow(ctx context.Context, siteID, vendorID string, req dto.KeyBorrowRequest, ip string) (*models.KeyLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid key borrow payload")
	}
	if req.Evidence.ImageData == "" {
		return nil, appErrors.Clone(appErrors.ErrEvidenceMissing, "borrow evidence photo is required")
	}

	vendor, err := s.accounts.FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vendor not found")
		}
		return nil, storeError(err, "failed to load vendor")
	}

	now := time.Now().UTC()
	log := &models.KeyLog{
		ID:           newWorkflowID(keyRequestPrefix),
		SiteID:       siteID,
		VendorID:     vendor.ID,
		BorrowerName: vendor.FullName,
		Contact:      vendor.Contact,
		Company:      vendor.Company,
		Reason:       req.Reason,
		BorrowPhoto:  s.uploadEvidence(ctx, req.Evidence.ImageData),
		BorrowTime:   now,
		State:        models.RecordStatePending,
		CreatedAt:    now,
	}

	if err := s.sites.ReplacePendingKeyLog(ctx, log); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, storeError(err, "failed to store borrow request")
	}

	s.afterTransition(ctx, "borrow_request")
	if s.audit != nil {
		s.audit.Record(&vendor.ID, models.AuditActionKeyRequest, "site", &siteID, map[string]interface{}{
			"requestId": log.ID,
			"reason":    req.Reason,
		}, ip)
	}
	return log, nil
}

// AuthorizeBorrow flips the key authorization flag; safe to repeat.
func (s *KeyService) AuthorizeBorrow(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) error {
	if err := s.sites.SetKeyAuthorized(ctx, siteID, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return storeError(err, "failed to authorize key borrow")
	}

	s.afterTransition(ctx, "authorize")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionKeyApprove, "site", &siteID, nil, ip)
	}
	return nil
}

// DenyBorrow clears the pending borrow request.
func (s *KeyService) DenyBorrow(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) error {
	if err := s.sites.ClearPendingKeyLog(ctx, siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return storeError(err, "failed to deny key borrow")
	}

	s.afterTransition(ctx, "deny")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionKeyDeny, "site", &siteID, nil, ip)
	}
	return nil
}

// ConfirmBorrow promotes the pending request into active custody under a
// confirmed KEY-* ID and marks the key borrowed.
func (s *KeyService) ConfirmBorrow(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) (*models.KeyLog, error) {
	log, err := s.sites.PromotePendingKeyLog(ctx, siteID, newWorkflowID(keyCustodyPrefix), time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending key request for site")
		}
		return nil, storeError(err, "failed to confirm key borrow")
	}

	s.afterTransition(ctx, "confirm")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionKeyConfirm, "site", &siteID, map[string]interface{}{"custodyId": log.ID}, ip)
	}
	return log, nil
}

// ReturnKey merges the return fields into the active custody record,
// archives it and marks the key available again.
func (s *KeyService) ReturnKey(ctx context.Context, siteID string, req dto.KeyReturnRequest, actor *models.JWTClaims, ip string) (*models.KeyLog, error) {
	if req.Evidence.ImageData == "" {
		return nil, appErrors.Clone(appErrors.ErrEvidenceMissing, "return evidence photo is required")
	}

	params := repository.ArchiveKeyParams{
		ReturnPhoto: s.uploadEvidence(ctx, req.Evidence.ImageData),
		ReturnTime:  time.Now().UTC(),
	}
	log, err := s.sites.ArchiveCurrentKeyLog(ctx, siteID, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no key currently borrowed for site")
		}
		return nil, storeError(err, "failed to return key")
	}

	s.afterTransition(ctx, "return")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionKeyReturn, "site", &siteID, map[string]interface{}{"custodyId": log.ID}, ip)
	}
	return log, nil
}

func (s *KeyService) uploadEvidence(ctx context.Context, imageData string) string {
	if s.uploader == nil {
		return imageData
	}
	url, err := s.uploader.Upload(ctx, imageData)
	if err != nil {
		s.logger.Warn("evidence upload failed, keeping inline payload", zap.Error(err))
		return imageData
	}
	return url
}

func (s *KeyService) afterTransition(ctx context.Context, transition string) {
	s.metrics.RecordTransition("key", transition)
	if s.cache != nil {
		s.cache.InvalidateSites(ctx)
	}
}
