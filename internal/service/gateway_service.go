package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/dto"
	"github.com/telsite/fieldops-api/internal/models"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
)

type messageStore interface {
	Append(ctx context.Context, message *models.VendorMessage) error
	ListForVendor(ctx context.Context, vendorID string) ([]models.VendorMessage, error)
	MarkRead(ctx context.Context, vendorID, messageID string) error
	CountUnread(ctx context.Context, vendorID string) (int, error)
}

// GatewayService is the field officer control surface: the queue of requests
// awaiting a decision plus the per-vendor coordination channel.
type GatewayService struct {
	sites     siteReader
	accounts  accountReader
	messages  messageStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGatewayService builds a GatewayService.
func NewGatewayService(
	sites siteReader,
	accounts accountReader,
	messages messageStore,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *GatewayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayService{
		sites:     sites,
		accounts:  accounts,
		messages:  messages,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// PendingApprovals lists sites whose access or key request still awaits a
// field officer decision.
func (s *GatewayService) PendingApprovals(ctx context.Context) (*dto.PendingApprovals, error) {
	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list sites")
	}

	pending := &dto.PendingApprovals{
		Access: []models.Site{},
		Keys:   []models.Site{},
	}
	for _, site := range sites {
		if site.PendingVisitor != nil && !site.AccessAuthorized {
			pending.Access = append(pending.Access, site)
		}
		if site.PendingKeyLog != nil && !site.KeyAccessAuthorized {
			pending.Keys = append(pending.Keys, site)
		}
	}
	return pending, nil
}

// SendMessage posts a field officer message on the vendor's channel.
func (s *GatewayService) SendMessage(ctx context.Context, vendorID string, req dto.SendMessageRequest, actor *models.JWTClaims, ip string) (*models.VendorMessage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	vendor, err := s.accounts.FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vendor not found")
		}
		return nil, storeError(err, "failed to load vendor")
	}

	message := &models.VendorMessage{
		ID:         uuid.NewString(),
		VendorID:   vendor.ID,
		SenderID:   actor.UserID,
		SenderName: actor.FullName,
		SiteID:     req.SiteID,
		Body:       req.Body,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, message); err != nil {
		return nil, storeError(err, "failed to store message")
	}

	if s.audit != nil {
		s.audit.Record(&actor.UserID, models.AuditActionMessageSend, "vendor", &vendor.ID, map[string]interface{}{"messageId": message.ID}, ip)
	}
	return message, nil
}

// Messages returns the vendor's channel in insertion order. Vendors may only
// read their own channel; field officers can read any.
func (s *GatewayService) Messages(ctx context.Context, vendorID string, actor *models.JWTClaims) ([]models.VendorMessage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleVendor && actor.UserID != vendorID {
		return nil, appErrors.ErrForbidden
	}

	messages, err := s.messages.ListForVendor(ctx, vendorID)
	if err != nil {
		return nil, storeError(err, "failed to list messages")
	}
	return messages, nil
}

// MarkRead acknowledges a message. Only the recipient vendor may flip the
// read flag.
func (s *GatewayService) MarkRead(ctx context.Context, vendorID, messageID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.UserID != vendorID {
		return appErrors.ErrForbidden
	}

	if err := s.messages.MarkRead(ctx, vendorID, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return storeError(err, "failed to mark message read")
	}
	return nil
}

// UnreadCount returns how many messages the vendor has not yet acknowledged.
func (s *GatewayService) UnreadCount(ctx context.Context, vendorID string, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleVendor && actor.UserID != vendorID {
		return 0, appErrors.ErrForbidden
	}

	count, err := s.messages.CountUnread(ctx, vendorID)
	if err != nil {
		return 0, storeError(err, "failed to count unread messages")
	}
	return count, nil
}
