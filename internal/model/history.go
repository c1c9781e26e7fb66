package model

import "time"

// CreationComment is the comment of the first ledger entry of every report.
const CreationComment = "Report created"

// StatusHistoryEntry is one immutable record of a report's audit ledger.
//
// Entries form a chain: each entry's PreviousStatus equals the NewStatus of
// the entry before it. Only the creation entry has a nil PreviousStatus.
type StatusHistoryEntry struct {
	// ID is assigned by the store and increases with insertion order.
	ID int64 `json:"id"`

	ReportID string `json:"report_id"`

	// PreviousStatus is nil only for the creation entry.
	PreviousStatus *Status `json:"previous_status"`

	NewStatus Status `json:"new_status"`
	ActorID   string `json:"actor_id"`
	ActorRole Role   `json:"actor_role"`
	Comment   string `json:"comment"`

	CreatedAt time.Time `json:"created_at"`
}

// IsCreation reports whether e is the creation entry.
func (e StatusHistoryEntry) IsCreation() bool {
	return e.PreviousStatus == nil
}
