package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/models"
	"github.com/telsite/fieldops-api/internal/repository"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
	"github.com/telsite/fieldops-api/pkg/geo"
)

// accessLedger is the slice of the site repository the access workflow
// depends on.
type accessLedger interface {
	Get(ctx context.Context, siteID string) (*models.Site, error)
	ReplacePendingVisitor(ctx context.Context, visitor *models.SiteVisitor) error
	SetAccessAuthorized(ctx context.Context, siteID string, authorized bool) error
	ClearPendingVisitor(ctx context.Context, siteID string) error
	PromotePendingVisitor(ctx context.Context, siteID, sessionID string, checkInTime time.Time) (*models.SiteVisitor, error)
	ArchiveCurrentVisitor(ctx context.Context, siteID string, params repository.ArchiveVisitParams) (*models.SiteVisitor, error)
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// evidenceUploader pushes a captured photo to the external image host.
type evidenceUploader interface {
	Upload(ctx context.Context, imageData string) (string, error)
}

// AccessService drives a visitor request from submission through
// authorization to check-in and checkout.
type AccessService struct {
	sites     accessLedger
	accounts  accountReader
	verifier  *geo.Verifier
	uploader  evidenceUploader
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccessService builds an AccessService with sane defaults.
func NewAccessService(
	sites accessLedger,
	accounts accountReader,
	verifier *geo.Verifier,
	uploader evidenceUploader,
	audit auditRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AccessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		verifier = geo.NewVerifier(500, true)
	}
	return &AccessService{
		sites:     sites,
		accounts:  accounts,
		verifier:  verifier,
		uploader:  uploader,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Submit files an access request for the site. Any prior pending request for
// the same site is replaced and the authorization flag is reset; nothing is
// written when a precondition fails.
func (s *AccessService) Submit(ctx context.Context, siteID, vendorID string, req dto.SubmitAccessRequest, ip string) (*models.SiteVisitor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access request payload")
	}
	if req.Evidence.ImageData == "" {
		return nil, appErrors.Clone(appErrors.ErrEvidenceMissing, "entry evidence photo is required")
	}

	vendor, err := s.accounts.FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vendor not found")
		}
		return nil, storeError(err, "failed to load vendor")
	}

	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, storeError(err, "failed to load site")
	}

	verdict := s.verifier.VerifySite(req.Evidence.Lat, req.Evidence.Lng, site.Lat, site.Lng)
	if !verdict.WithinRange {
		return nil, appErrors.Clone(appErrors.ErrProximity,
			fmt.Sprintf("evidence captured %.0f m from site %s, allowed radius is %.0f m", verdict.DistanceMeters, site.ID, s.verifier.RadiusMeters()))
	}

	now := time.Now().UTC()
	visitor := &models.SiteVisitor{
		ID:             newWorkflowID(accessRequestPrefix),
		SiteID:         site.ID,
		VendorID:       vendor.ID,
		LeadName:       vendor.FullName,
		Contact:        vendor.Contact,
		Personnel:      append([]string{vendor.FullName}, req.Personnel...),
		Company:        vendor.Company,
		Activity:       req.Activity,
		EntryPhoto:     s.uploadEvidence(ctx, req.Evidence.ImageData),
		RocName:        req.RocName,
		RocTime:        req.RocTime,
		RocCoordinated: req.RocCoordinated,
		CheckInTime:    now,
		State:          models.RecordStatePending,
		CreatedAt:      now,
	}

	if err := s.sites.ReplacePendingVisitor(ctx, visitor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, storeError(err, "failed to store access request")
	}

	s.afterTransition(ctx, "access", "submit")
	if s.audit != nil {
		s.audit.Record(&vendor.ID, models.AuditActionAccessRequest, "site", &site.ID, map[string]interface{}{
			"requestId":      visitor.ID,
			"activity":       req.Activity,
			"distanceMeters": verdict.DistanceMeters,
			"gateSkipped":    verdict.Skipped,
		}, ip)
	}

	return visitor, nil
}

// Authorize flips the access authorization flag. Re-authorizing an already
// authorized site is a no-op, which keeps the operation safe under
// at-least-once delivery from polling clients.
func (s *AccessService) Authorize(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) error {
	if err := s.sites.SetAccessAuthorized(ctx, siteID, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return storeError(err, "failed to authorize access")
	}

	s.afterTransition(ctx, "access", "authorize")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionAccessApprove, "site", &siteID, nil, ip)
	}
	return nil
}

// Deny clears the pending request and resets the authorization flag.
func (s *AccessService) Deny(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) error {
	if err := s.sites.ClearPendingVisitor(ctx, siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return storeError(err, "failed to deny access")
	}

	s.afterTransition(ctx, "access", "deny")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionAccessDeny, "site", &siteID, nil, ip)
	}
	return nil
}

// CheckIn promotes the pending request into the current visit under a
// confirmed VIS-* session ID.
func (s *AccessService) CheckIn(ctx context.Context, siteID string, actor *models.JWTClaims, ip string) (*models.SiteVisitor, error) {
	visitor, err := s.sites.PromotePendingVisitor(ctx, siteID, newWorkflowID(accessSessionPrefix), time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending access request for site")
		}
		return nil, storeError(err, "failed to check in")
	}

	s.afterTransition(ctx, "access", "check_in")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionCheckIn, "site", &siteID, map[string]interface{}{"sessionId": visitor.ID}, ip)
	}
	return visitor, nil
}

// CheckOut merges the exit fields into the current visit and archives it.
func (s *AccessService) CheckOut(ctx context.Context, siteID string, req dto.CheckOutRequest, actor *models.JWTClaims, ip string) (*models.SiteVisitor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkout payload")
	}
	if req.Evidence.ImageData == "" {
		return nil, appErrors.Clone(appErrors.ErrEvidenceMissing, "exit evidence photo is required")
	}

	params := repository.ArchiveVisitParams{
		ExitPhoto:            s.uploadEvidence(ctx, req.Evidence.ImageData),
		RocLogoutName:        req.RocLogoutName,
		RocLogoutTime:        req.RocLogoutTime,
		RocLogoutCoordinated: req.RocLogoutCoordinated,
		CheckOutTime:         time.Now().UTC(),
	}
	visitor, err := s.sites.ArchiveCurrentVisitor(ctx, siteID, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no visitor currently on site")
		}
		return nil, storeError(err, "failed to check out")
	}

	s.afterTransition(ctx, "access", "check_out")
	if s.audit != nil && actor != nil {
		s.audit.Record(&actor.UserID, models.AuditActionCheckOut, "site", &siteID, map[string]interface{}{"sessionId": visitor.ID}, ip)
	}
	return visitor, nil
}

// uploadEvidence pushes the photo to the image host. Uploads are best effort;
// on any failure the inline payload is kept unchanged.
func (s *AccessService) uploadEvidence(ctx context.Context, imageData string) string {
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

func (s *AccessService) afterTransition(ctx context.Context, workflow, transition string) {
	s.metrics.RecordTransition(workflow, transition)
	if s.cache != nil {
		s.cache.InvalidateSites(ctx)
	}
}
