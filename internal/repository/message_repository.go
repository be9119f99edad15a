package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/telsite/fieldops-api/internal/models"
)

// MessageRepository persists the per-vendor coordination channel.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append adds a message to the vendor's channel. Messages are never updated
// or reordered afterwards; only the read flag changes.
func (r *MessageRepository) Append(ctx context.Context, message *models.VendorMessage) error {
	const query = `
INSERT INTO vendor_messages (id, vendor_id, sender_id, sender_name, site_id, body, read, created_at)
VALUES (:id, :vendor_id, :sender_id, :sender_name, :site_id, :body, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("append vendor message: %w", err)
	}
	return nil
}

// ListForVendor returns the vendor's messages in insertion order.
func (r *MessageRepository) ListForVendor(ctx context.Context, vendorID string) ([]models.VendorMessage, error) {
	var messages []models.VendorMessage
	const query = `SELECT * FROM vendor_messages WHERE vendor_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &messages, query, vendorID); err != nil {
		return nil, fmt.Errorf("list vendor messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags a message as read. The caller enforces that only the
// recipient acknowledges. Returns sql.ErrNoRows when the message does not
// belong to the vendor.
func (r *MessageRepository) MarkRead(ctx context.Context, vendorID, messageID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE vendor_messages SET read = TRUE WHERE id = $1 AND vendor_id = $2`, messageID, vendorID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUnread returns the number of unread messages for the vendor.
func (r *MessageRepository) CountUnread(ctx context.Context, vendorID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM vendor_messages WHERE vendor_id = $1 AND read = FALSE`, vendorID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
