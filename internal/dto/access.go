package dto

import "time"

// EvidenceCapture is the output contract of the capture client: a timestamped,
// geostamped photo plus the raw GPS fix it was taken at.
type EvidenceCapture struct {
	ImageData      string    `json:"imageData"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	TimestampUTC   time.Time `json:"timestampUtc"`
}

// SubmitAccessRequest is the payload for a vendor requesting entry to a site.
type SubmitAccessRequest struct {
	Activity       string          `json:"activity" validate:"required"`
	Personnel      []string        `json:"personnel"`
	RocName        string          `json:"rocName" validate:"required"`
	RocTime        string          `json:"rocTime" validate:"required"`
	RocCoordinated bool            `json:"rocCoordinated"`
	Evidence       EvidenceCapture `json:"evidence"`
}

// CheckOutRequest finalizes an in-progress site visit.
type CheckOutRequest struct {
	RocLogoutName        string          `json:"rocLogoutName" validate:"required"`
	RocLogoutTime        string          `json:"rocLogoutTime" validate:"required"`
	RocLogoutCoordinated bool            `json:"rocLogoutCoordinated"`
	Evidence             EvidenceCapture `json:"evidence"`
}
