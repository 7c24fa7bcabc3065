package roster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mailherald/herald/internal/recipient"
)

const sampleCSV = `ATIVIDADE,AUTOR1,AUTOR2,AUTOR3,EMAIL,TEMA
palestra,Ana Souza,,,ana@example.com,Concurrency in Go
tutorial,Bruno Lima,Carla Dias,,"bruno@example.com, carla@example.com",Web APIs from Scratch
palestra,,,,missing@example.com,No Authors
palestra,Davi Reis,,,not-an-email,Broken Address
palestra,Elisa Melo,,,elisa@example.com,
`

func TestParseCSV(t *testing.T) {
	got, err := parseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parseCSV() error = %v", err)
	}

	want := []recipient.Recipient{
		{
			Name:       "Ana Souza",
			Email:      "ana@example.com",
			Title:      "Concurrency in Go",
			Theme:      "Concurrency in Go",
			AllAuthors: "Ana Souza",
			Activity:   recipient.ActivityTalk,
		},
		{
			Name:       "Bruno Lima",
			Email:      "bruno@example.com",
			Title:      "Web APIs from Scratch",
			Theme:      "Web APIs from Scratch",
			AllAuthors: "Bruno Lima, Carla Dias",
			Activity:   recipient.ActivityTutorial,
		},
		{
			Name:       "Carla Dias",
			Email:      "carla@example.com",
			Title:      "Web APIs from Scratch",
			Theme:      "Web APIs from Scratch",
			AllAuthors: "Bruno Lima, Carla Dias",
			Activity:   recipient.ActivityTutorial,
		},
	}

	if len(got) != len(want) {
		t.Fatalf("parseCSV() returned %d recipients, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recipient[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseCSVMoreEmailsThanAuthors(t *testing.T) {
	csv := `ATIVIDADE,AUTOR1,AUTOR2,AUTOR3,EMAIL,TEMA
palestra,Ana Souza,,,"ana@example.com, backup@example.com",Concurrency in Go
`
	got, err := parseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parseCSV() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parseCSV() returned %d recipients, want 2", len(got))
	}
	// Extra addresses fall back to the first author's name.
	if got[1].Name != "Ana Souza" {
		t.Errorf("recipient[1].Name = %q, want %q", got[1].Name, "Ana Souza")
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	csv := "AUTOR1,EMAIL\nAna,ana@example.com\n"
	if _, err := parseCSV(strings.NewReader(csv)); err == nil {
		t.Error("parseCSV() accepted a roster without required columns")
	}
}

func TestExtractSheetID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", want: "1AbC-d_9"},
		{url: "https://docs.google.com/spreadsheets/d/xyz123/export", want: "xyz123"},
		{url: "https://example.com/not-a-sheet", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ExtractSheetID(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractSheetID(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractSheetID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSheetSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src, err := NewSheetSource("https://docs.google.com/spreadsheets/d/test123/edit", time.Second)
	if err != nil {
		t.Fatalf("NewSheetSource() error = %v", err)
	}
	src.exportURL = srv.URL

	recipients, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(recipients) != 3 {
		t.Errorf("Fetch() returned %d recipients, want 3", len(recipients))
	}
}

func TestSheetSourceFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewSheetSource("https://docs.google.com/spreadsheets/d/test123/edit", time.Second)
	if err != nil {
		t.Fatalf("NewSheetSource() error = %v", err)
	}
	src.exportURL = srv.URL

	_, err = src.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() succeeded against a failing export")
	}
	var se *SourceError
	if !errors.As(err, &se) {
		t.Errorf("Fetch() error type = %T, want *SourceError", err)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	recipients, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(recipients) != 3 {
		t.Errorf("Fetch() returned %d recipients, want 3", len(recipients))
	}

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.csv")).Fetch(context.Background())
	var se *SourceError
	if !errors.As(err, &se) {
		t.Errorf("Fetch() on missing file error = %v, want *SourceError", err)
	}
}
