package models

import "time"

// KeyLog represents one vendor's borrow/return cycle for a site's physical
// key. The ID carries the phase: KREQ-* while pending, KEY-* once borrowed.
type KeyLog struct {
	ID           string      `db:"id" json:"id"`
	SiteID       string      `db:"site_id" json:"siteId"`
	VendorID     string      `db:"vendor_id" json:"vendorId"`
	BorrowerName string      `db:"borrower_name" json:"borrowerName"`
	Contact      string      `db:"contact" json:"contact"`
	Company      string      `db:"company" json:"company"`
	Reason       string      `db:"reason" json:"reason"`
	BorrowPhoto  string      `db:"borrow_photo" json:"borrowPhoto"`
	ReturnPhoto  *string     `db:"return_photo" json:"returnPhoto,omitempty"`
	BorrowTime   time.Time   `db:"borrow_time" json:"borrowTime"`
	ReturnTime   *time.Time  `db:"return_time" json:"returnTime,omitempty"`
	State        RecordState `db:"state" json:"state"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}
