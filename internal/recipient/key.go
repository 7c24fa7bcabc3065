package recipient

import (
	"fmt"
	"strings"
)

// Key is the deduplication identity for a logical send target. Two rows
// that should be treated as the same target always derive the same Key.
// The persisted ledger is keyed by its string form.
type Key string

func (k Key) String() string { return string(k) }

// KeyError reports that a recipient's fields cannot produce a valid key.
type KeyError struct {
	Field  string
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("cannot derive recipient key: %s %s", e.Field, e.Reason)
}

// DeriveKey computes the deduplication key from the recipient's stable
// fields: case-folded, trimmed email plus the normalized session title.
// It fails rather than produce an empty or degenerate key, so recipients
// with missing fields can never collide into one identity.
func DeriveKey(r Recipient) (Key, error) {
	email := NormalizeEmail(r.Email)
	if email == "" {
		return "", &KeyError{Field: "email", Reason: "is empty"}
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", &KeyError{Field: "email", Reason: "has no local part or domain"}
	}

	title := normalizeTitle(r.Title)
	if title == "" {
		return "", &KeyError{Field: "title", Reason: "is empty"}
	}

	return Key(email + "|" + title), nil
}

// NormalizeEmail lowercases and trims an address so harmless formatting
// differences do not create distinct keys. Returns "" for blank input.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeTitle trims the title, collapses internal runs of whitespace
// and case-folds it.
func normalizeTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Join(fields, " "))
}
