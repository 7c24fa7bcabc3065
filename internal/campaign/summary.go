package campaign

import (
	"time"
)

// Mode selects live delivery or a dry run. Both modes share the same
// pipeline; the mode only guards the transport call.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeDryRun Mode = "dry-run"
)

// Summary aggregates the per-recipient outcomes of one run. It is the
// structured stats output the run ends with, and what gets archived in
// the ledger's run history.
type Summary struct {
	RunID      string    `json:"run_id"`
	Mode       Mode      `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Total is the roster size fetched for this run.
	Total int `json:"total"`

	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	AlreadySent int `json:"already_sent"`
	Duplicates  int `json:"duplicates"`
	WouldSend   int `json:"would_send"`

	// Aborted is set when the run was interrupted before the whole
	// roster was dispatched. Outcomes counted above are still committed.
	Aborted bool `json:"aborted,omitempty"`
}

// Processed is the number of recipients that reached a terminal outcome
// this run.
func (s *Summary) Processed() int {
	return s.Sent + s.Failed + s.Skipped + s.AlreadySent + s.Duplicates + s.WouldSend
}
