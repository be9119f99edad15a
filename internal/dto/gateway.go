package dto

import "github.com/telsite/fieldops-api/internal/models"

// PendingApprovals lists the sites awaiting a field officer decision, split
// by workflow.
type PendingApprovals struct {
	Access []models.Site `json:"access"`
	Keys   []models.Site `json:"keys"`
}

// SendMessageRequest posts a message on a vendor's coordination channel.
type SendMessageRequest struct {
	Body   string  `json:"body" validate:"required"`
	SiteID *string `json:"siteId,omitempty"`
}
