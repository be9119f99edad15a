package dto

// KeyBorrowRequest is the payload for a vendor requesting custody of a site
// key. Key custody carries no proximity gate, so only the photo part of the
// evidence is required.
type KeyBorrowRequest struct {
	Reason   string          `json:"reason" validate:"required"`
	Evidence EvidenceCapture `json:"evidence"`
}

// KeyReturnRequest finalizes an active key custody cycle.
type KeyReturnRequest struct {
	Evidence EvidenceCapture `json:"evidence"`
}
