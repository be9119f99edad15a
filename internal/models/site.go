package models

import "time"

// KeyStatus tracks physical key custody for a site.
type KeyStatus string

const (
	KeyStatusAvailable KeyStatus = "AVAILABLE"
	KeyStatusBorrowed  KeyStatus = "BORROWED"
)

// Site represents a physical location under management. Lat and Lng are nil
// for sites that have not been geo-registered yet; the proximity gate is
// skipped for those.
type Site struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	Address             string     `db:"address" json:"address"`
	Lat                 *float64   `db:"lat" json:"lat,omitempty"`
	Lng                 *float64   `db:"lng" json:"lng,omitempty"`
	AccessAuthorized    bool       `db:"access_authorized" json:"accessAuthorized"`
	KeyAccessAuthorized bool       `db:"key_access_authorized" json:"keyAccessAuthorized"`
	KeyStatus           KeyStatus  `db:"key_status" json:"keyStatus"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`

	// Hydrated occupancy and custody sub-records; not stored on the site row.
	PendingVisitor *SiteVisitor  `db:"-" json:"pendingVisitor,omitempty"`
	CurrentVisitor *SiteVisitor  `db:"-" json:"currentVisitor,omitempty"`
	VisitorHistory []SiteVisitor `db:"-" json:"visitorHistory"`
	PendingKeyLog  *KeyLog       `db:"-" json:"pendingKeyLog,omitempty"`
	CurrentKeyLog  *KeyLog       `db:"-" json:"currentKeyLog,omitempty"`
	KeyHistory     []KeyLog      `db:"-" json:"keyHistory"`
}

// HasCoordinate reports whether the site has a registered GPS coordinate.
func (s *Site) HasCoordinate() bool {
	return s.Lat != nil && s.Lng != nil
}

// SiteOverview groups sites into the derived sets the dashboards poll for.
type SiteOverview struct {
	PendingAccess  []Site `json:"pendingAccess"`
	PendingKeys    []Site `json:"pendingKeys"`
	ActiveVisitors []Site `json:"activeVisitors"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
