// Package recipient defines the contributor value type and the
// deduplication key derived from it.
package recipient

// Activity is the kind of accepted contribution.
type Activity string

const (
	ActivityTalk     Activity = "talk"
	ActivityTutorial Activity = "tutorial"
)

// Recipient is one contributor row from the roster, expanded to a single
// (author, email) pair. Immutable once fetched for a run.
type Recipient struct {
	Name       string
	Email      string
	Title      string
	Theme      string
	AllAuthors string
	Activity   Activity
}

// IsTutorial reports whether the contribution is a tutorial.
func (r Recipient) IsTutorial() bool {
	return r.Activity == ActivityTutorial
}
