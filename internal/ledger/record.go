package ledger

import (
	"time"
)

// Status is the terminal state of a delivery record.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Valid reports whether the status is one of the persisted states.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// DeliveryRecord is the persisted per-key delivery history. The JSON
// encoding is the on-disk contract: status string, non-negative attempt
// count, RFC 3339 timestamp, optional error text.
type DeliveryRecord struct {
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_timestamp"`
	LastError     string    `json:"last_error,omitempty"`
}

// Entry pairs a record with its key for listings.
type Entry struct {
	Key    string         `json:"key"`
	Record DeliveryRecord `json:"record"`
}

// Stats are counts by status over the whole ledger.
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
	Total   int64 `json:"total"`
}

// ListFilter restricts List output.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// RunEntry is one archived run summary, newest last.
type RunEntry struct {
	ID         string `json:"id"`
	RecordedAt time.Time
	Data       []byte
}
