package models

import "time"

// VendorMessage is one entry in the per-vendor coordination channel between
// the field officer console and a vendor kiosk. Messages are append-only and
// ordered by insertion; the read flag is flipped only by the recipient.
type VendorMessage struct {
	ID         string    `db:"id" json:"id"`
	VendorID   string    `db:"vendor_id" json:"vendorId"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	SenderName string    `db:"sender_name" json:"senderName"`
	SiteID     *string   `db:"site_id" json:"siteId,omitempty"`
	Body       string    `db:"body" json:"body"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
