package roster

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/mailherald/herald/internal/recipient"
)

var sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9\-_]+)`)

// SheetSource fetches the roster from a Google Sheets CSV export.
type SheetSource struct {
	exportURL string
	client    *http.Client
}

// NewSheetSource builds a source from a sheet sharing URL.
func NewSheetSource(sheetURL string, timeout time.Duration) (*SheetSource, error) {
	id, err := ExtractSheetID(sheetURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SheetSource{
		exportURL: fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", id),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// ExtractSheetID pulls the document ID out of a sheet sharing URL.
func ExtractSheetID(sheetURL string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", &SourceError{Source: "sheet", Err: fmt.Errorf("URL %q has no document ID", sheetURL)}
	}
	return m[1], nil
}

// Fetch downloads and parses the current export.
func (s *SheetSource) Fetch(ctx context.Context) ([]recipient.Recipient, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.exportURL, nil)
	if err != nil {
		return nil, &SourceError{Source: "sheet", Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: "sheet", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: "sheet", Err: fmt.Errorf("export returned status %d", resp.StatusCode)}
	}

	recipients, err := parseCSV(resp.Body)
	if err != nil {
		return nil, &SourceError{Source: "sheet", Err: err}
	}

	return recipients, nil
}
