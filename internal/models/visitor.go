package models

import (
	"time"

	"github.com/lib/pq"
)

// RecordState marks the lifecycle phase of an occupancy or custody record.
type RecordState string

const (
	// RecordStatePending is a request awaiting authorization and check-in.
	RecordStatePending RecordState = "PENDING"
	// RecordStateCurrent is an in-progress session.
	RecordStateCurrent RecordState = "CURRENT"
	// RecordStateArchived is a terminated, immutable session kept for audit.
	RecordStateArchived RecordState = "ARCHIVED"
)

// SiteVisitor represents one vendor's presence request or session at a site.
// The ID carries the phase: REQ-* while pending, VIS-* once checked in.
type SiteVisitor struct {
	ID                   string         `db:"id" json:"id"`
	SiteID               string         `db:"site_id" json:"siteId"`
	VendorID             string         `db:"vendor_id" json:"vendorId"`
	LeadName             string         `db:"lead_name" json:"leadName"`
	Contact              string         `db:"contact" json:"contact"`
	Personnel            pq.StringArray `db:"personnel" json:"personnel"`
	Company              string         `db:"company" json:"company"`
	Activity             string         `db:"activity" json:"activity"`
	EntryPhoto           string         `db:"entry_photo" json:"entryPhoto"`
	ExitPhoto            *string        `db:"exit_photo" json:"exitPhoto,omitempty"`
	RocName              string         `db:"roc_name" json:"rocName"`
	RocTime              string         `db:"roc_time" json:"rocTime"`
	RocCoordinated       bool           `db:"roc_coordinated" json:"rocCoordinated"`
	RocLogoutName        *string        `db:"roc_logout_name" json:"rocLogoutName,omitempty"`
	RocLogoutTime        *string        `db:"roc_logout_time" json:"rocLogoutTime,omitempty"`
	RocLogoutCoordinated bool           `db:"roc_logout_coordinated" json:"rocLogoutCoordinated"`
	CheckInTime          time.Time      `db:"check_in_time" json:"checkInTime"`
	CheckOutTime         *time.Time     `db:"check_out_time" json:"checkOutTime,omitempty"`
	State                RecordState    `db:"state" json:"state"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
}
