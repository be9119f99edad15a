package models

import "time"

// AccountRole represents the available roles for the RBAC system.
type AccountRole string

const (
	RoleAdmin        AccountRole = "ADMIN"
	RoleFieldOfficer AccountRole = "FIELD_OFFICER"
	RoleVendor       AccountRole = "VENDOR"
)

// Account represents a registered operator: a vendor requesting site access
// or key custody, or a field officer authorizing those requests.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Username     string      `db:"username" json:"username"`
	PasswordHash string      `db:"password_hash" json:"-"`
	FullName     string      `db:"full_name" json:"fullName"`
	Contact      string      `db:"contact" json:"contact"`
	Company      string      `db:"company" json:"company"`
	Photo        *string     `db:"photo" json:"photo,omitempty"`
	Role         AccountRole `db:"role" json:"role"`
	Active       bool        `db:"active" json:"active"`
	LastLogin    *time.Time  `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}
