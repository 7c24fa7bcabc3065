// Package ledger persists the per-recipient delivery history that makes
// campaign runs idempotent. It is the sole source of truth for "already
// sent": no other component may decide that on its own.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mailherald/herald/internal/recipient"
)

var (
	bucketRecords = []byte("records")
	bucketRuns    = []byte("runs")
)

// CorruptError reports persisted state that cannot be trusted. A corrupt
// ledger is fatal for a run: proceeding would risk duplicate sends.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("ledger corrupt at key %q: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store is a bbolt-backed ledger. Writes are synchronous: a record is
// durable before RecordAttempt or RecordSkip returns.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger database and verifies every
// persisted record still decodes. Undecodable state is reported as
// *CorruptError, never silently discarded.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.verify(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// verify walks the records bucket and rejects anything that does not
// decode to a record with a known status.
func (s *Store) verify() error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) == 0 {
				return &CorruptError{Key: "", Err: fmt.Errorf("empty record key")}
			}
			var rec DeliveryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return &CorruptError{Key: string(k), Err: err}
			}
			if !rec.Status.Valid() {
				return &CorruptError{Key: string(k), Err: fmt.Errorf("unknown status %q", rec.Status)}
			}
			if rec.Attempts < 0 {
				return &CorruptError{Key: string(k), Err: fmt.Errorf("negative attempts %d", rec.Attempts)}
			}
		}
		return nil
	})
}

// Lookup returns the record for a key, or nil if the key was never seen.
func (s *Store) Lookup(ctx context.Context, key recipient.Key) (*DeliveryRecord, error) {
	var rec *DeliveryRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(key))
		if data == nil {
			return nil
		}
		rec = &DeliveryRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return &CorruptError{Key: key.String(), Err: err}
		}
		return nil
	})

	return rec, err
}

// RecordAttempt commits the outcome of one delivery attempt: it creates
// the record on first sight, otherwise increments the attempt count and
// overwrites status, timestamp and error. A record that already reached
// StatusSent is terminal and is returned unchanged; the engine never
// attempts sent keys, this is a backstop for the at-most-once invariant.
func (s *Store) RecordAttempt(ctx context.Context, key recipient.Key, outcome Status, attemptErr error) (*DeliveryRecord, error) {
	if outcome != StatusSent && outcome != StatusFailed {
		return nil, fmt.Errorf("invalid attempt outcome %q", outcome)
	}

	var rec DeliveryRecord

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		if data := b.Get([]byte(key)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return &CorruptError{Key: key.String(), Err: err}
			}
			if rec.Status == StatusSent {
				return nil
			}
		}

		rec.Attempts++
		rec.Status = outcome
		rec.LastAttemptAt = time.Now().UTC()
		rec.LastError = ""
		if attemptErr != nil {
			rec.LastError = attemptErr.Error()
		}

		return putRecord(b, key, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// RecordSkip marks a key skipped without counting a delivery attempt.
// Used when the engine excludes a recipient before any send: malformed
// keys and dry-run previews. Sent records stay untouched.
func (s *Store) RecordSkip(ctx context.Context, key recipient.Key, reason string) (*DeliveryRecord, error) {
	var rec DeliveryRecord

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)

		if data := b.Get([]byte(key)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return &CorruptError{Key: key.String(), Err: err}
			}
			if rec.Status == StatusSent {
				return nil
			}
		}

		rec.Status = StatusSkipped
		rec.LastAttemptAt = time.Now().UTC()
		rec.LastError = reason

		return putRecord(b, key, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func putRecord(b *bolt.Bucket, key recipient.Key, rec *DeliveryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Get retrieves a record by raw key string, for the inspection CLI.
func (s *Store) Get(ctx context.Context, key string) (*DeliveryRecord, error) {
	return s.Lookup(ctx, recipient.Key(key))
}

// List returns entries in key order with optional status filtering.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()

		count := 0
		skipped := 0

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec DeliveryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return &CorruptError{Key: string(k), Err: err}
			}

			if filter.Status != "" && rec.Status != filter.Status {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}

			entries = append(entries, Entry{Key: string(k), Record: rec})
			count++

			if filter.Limit > 0 && count >= filter.Limit {
				break
			}
		}

		return nil
	})

	return entries, err
}

// Export returns the full persisted mapping. Saving this as JSON and
// loading it back yields an identical mapping.
func (s *Store) Export(ctx context.Context) (map[string]DeliveryRecord, error) {
	out := make(map[string]DeliveryRecord)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec DeliveryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return &CorruptError{Key: string(k), Err: err}
			}
			out[string(k)] = rec
		}
		return nil
	})

	return out, err
}

// Stats counts records by status.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec DeliveryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return &CorruptError{Key: string(k), Err: err}
			}

			stats.Total++
			switch rec.Status {
			case StatusSent:
				stats.Sent++
			case StatusFailed:
				stats.Failed++
			case StatusSkipped:
				stats.Skipped++
			}
		}
		return nil
	})

	return stats, err
}

// AppendRun archives a run summary under a sortable time+id key.
func (s *Store) AppendRun(ctx context.Context, id string, at time.Time, summary []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := makeRunKey(at, id)
		if err := tx.Bucket(bucketRuns).Put(key, summary); err != nil {
			return fmt.Errorf("failed to archive run: %w", err)
		}
		return nil
	})
}

// ListRuns returns archived run summaries, oldest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	var runs []RunEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			at, id := parseRunKey(k)
			runs = append(runs, RunEntry{
				ID:         id,
				RecordedAt: at,
				Data:       append([]byte(nil), v...),
			})
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})

	return runs, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// makeRunKey creates a sortable key from timestamp and run ID.
func makeRunKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano) + ":" + id)
}

// parseRunKey splits a run key back into timestamp and ID.
func parseRunKey(key []byte) (time.Time, string) {
	s := string(key)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			ts, _ := time.Parse(time.RFC3339Nano, s[:i])
			return ts, s[i+1:]
		}
	}
	return time.Time{}, s
}
