package roster

import (
	"context"
	"os"

	"github.com/mailherald/herald/internal/recipient"
)

// FileSource reads the roster from a local CSV export.
type FileSource struct {
	path string
}

// NewFileSource builds a source over a CSV file on disk.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch parses the file.
func (s *FileSource) Fetch(ctx context.Context) ([]recipient.Recipient, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &SourceError{Source: "file", Err: err}
	}
	defer f.Close()

	recipients, err := parseCSV(f)
	if err != nil {
		return nil, &SourceError{Source: "file", Err: err}
	}

	return recipients, nil
}
