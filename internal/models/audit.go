package models

import "time"

// Audit actions recorded for every workflow transition.
const (
	AuditActionLogin          = "auth.login"
	AuditActionRegister       = "auth.register"
	AuditActionAccessRequest  = "access.request"
	AuditActionAccessApprove  = "access.authorize"
	AuditActionAccessDeny     = "access.deny"
	AuditActionCheckIn        = "access.check_in"
	AuditActionCheckOut       = "access.check_out"
	AuditActionKeyRequest     = "key.request"
	AuditActionKeyApprove     = "key.authorize"
	AuditActionKeyDeny        = "key.deny"
	AuditActionKeyConfirm     = "key.confirm"
	AuditActionKeyReturn      = "key.return"
	AuditActionMessageSend    = "message.send"
	AuditActionHistoryExport  = "history.export"
)

// AuditLog is an append-only record of an access or custody event.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
