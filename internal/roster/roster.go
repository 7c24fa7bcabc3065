// Package roster fetches and parses the contributor roster that drives
// a campaign run. Sources produce recipients in a stable order; a source
// failure is fatal for the run since no partial roster may be processed.
package roster

import (
	"context"
	"fmt"

	"github.com/mailherald/herald/internal/recipient"
)

// Source produces the current recipient set for a run.
type Source interface {
	Fetch(ctx context.Context) ([]recipient.Recipient, error)
}

// SourceError reports that the backing roster data could not be
// retrieved or understood.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("roster source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
