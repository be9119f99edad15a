package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/telsite/fieldops-api/internal/models"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	const query = `
INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, details, ip_address, created_at)
VALUES (:id, :actor_id, :action, :resource, :resource_id, :details, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListForResource returns the newest audit entries for a resource.
func (r *AuditRepository) ListForResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditLog
	const query = `
SELECT * FROM audit_logs
WHERE resource = $1 AND resource_id = $2
ORDER BY created_at DESC
LIMIT $3`
	if err := r.db.SelectContext(ctx, &entries, query, resource, resourceID, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
