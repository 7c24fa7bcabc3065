package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mailherald/herald/internal/recipient"
)

// Roster export column headers.
const (
	colActivity = "ATIVIDADE"
	colEmail    = "EMAIL"
	colTheme    = "TEMA"
)

const maxAuthors = 3

// parseCSV reads the roster export and expands each row into one
// recipient per (author, email) pair. Rows missing the activity, theme,
// email or author columns are dropped, as are addresses without an "@";
// those rows never had a valid send target. Output order follows the
// file, so runs over an unchanged export are deterministic.
func parseCSV(r io.Reader) ([]recipient.Recipient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colActivity, colEmail, colTheme} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("roster is missing required column %q", required)
		}
	}

	var recipients []recipient.Recipient
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster row: %w", err)
		}
		recipients = append(recipients, parseRow(cols, row)...)
	}

	return recipients, nil
}

func parseRow(cols map[string]int, row []string) []recipient.Recipient {
	activity := strings.TrimSpace(field(cols, row, colActivity))
	theme := strings.TrimSpace(field(cols, row, colTheme))
	email := strings.TrimSpace(field(cols, row, colEmail))
	authors := extractAuthors(cols, row)

	if activity == "" || theme == "" || email == "" || len(authors) == 0 {
		return nil
	}

	allAuthors := authors[0]
	if len(authors) > 1 {
		allAuthors = strings.Join(authors, ", ")
	}

	var recipients []recipient.Recipient
	for i, addr := range splitEmails(email) {
		if !strings.Contains(addr, "@") {
			continue
		}
		name := authors[0]
		if i < len(authors) {
			name = authors[i]
		}
		recipients = append(recipients, recipient.Recipient{
			Name:       name,
			Email:      addr,
			Title:      theme,
			Theme:      theme,
			AllAuthors: allAuthors,
			Activity:   activityType(activity),
		})
	}

	return recipients
}

func field(cols map[string]int, row []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func extractAuthors(cols map[string]int, row []string) []string {
	var authors []string
	for i := 1; i <= maxAuthors; i++ {
		author := strings.TrimSpace(field(cols, row, fmt.Sprintf("AUTOR%d", i)))
		if author != "" {
			authors = append(authors, author)
		}
	}
	return authors
}

func activityType(activity string) recipient.Activity {
	if strings.EqualFold(activity, "tutorial") {
		return recipient.ActivityTutorial
	}
	return recipient.ActivityTalk
}

func splitEmails(email string) []string {
	parts := strings.Split(email, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
