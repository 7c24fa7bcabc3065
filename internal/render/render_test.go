package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/mailherald/herald/internal/recipient"
)

func TestRenderDefaults(t *testing.T) {
	r, err := New(DefaultSubject, DefaultBody)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rcpt := recipient.Recipient{
		Name:       "Ana Souza",
		Email:      "ana@example.com",
		Title:      "Concurrency in Go",
		Theme:      "Concurrency in Go",
		AllAuthors: "Ana Souza",
		Activity:   recipient.ActivityTalk,
	}

	got, err := r.Render(rcpt)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := `Your talk "Concurrency in Go" has been accepted`; got.Subject != want {
		t.Errorf("Subject = %q, want %q", got.Subject, want)
	}
	if !strings.Contains(got.Body, "Dear Ana Souza,") {
		t.Errorf("Body missing greeting:\n%s", got.Body)
	}
	if !strings.Contains(got.Body, "as a speaker") {
		t.Errorf("Body missing speaker role:\n%s", got.Body)
	}
	if strings.Contains(got.Body, "Co-authors") {
		t.Errorf("Body lists co-authors for a single author:\n%s", got.Body)
	}
}

func TestRenderTutorialWording(t *testing.T) {
	r, err := New(DefaultSubject, DefaultBody)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rcpt := recipient.Recipient{
		Name:       "Bruno Lima",
		Email:      "bruno@example.com",
		Title:      "Web APIs from Scratch",
		Theme:      "Web APIs from Scratch",
		AllAuthors: "Bruno Lima, Carla Dias",
		Activity:   recipient.ActivityTutorial,
	}

	got, err := r.Render(rcpt)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got.Subject, "tutorial") {
		t.Errorf("Subject = %q, want tutorial wording", got.Subject)
	}
	if !strings.Contains(got.Body, "as a tutorial instructor") {
		t.Errorf("Body missing instructor role:\n%s", got.Body)
	}
	if !strings.Contains(got.Body, "Tutorial duration") {
		t.Errorf("Body missing tutorial duration label:\n%s", got.Body)
	}
	if !strings.Contains(got.Body, "Co-authors: Bruno Lima, Carla Dias") {
		t.Errorf("Body missing co-authors:\n%s", got.Body)
	}
}

func TestRenderMissingField(t *testing.T) {
	r, err := New("{{.Title}}", "Hello {{.Nickname}}")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = r.Render(recipient.Recipient{Name: "Ana", Title: "T"})
	if err == nil {
		t.Fatal("Render() succeeded with an unknown template field")
	}
	var te *TemplateError
	if !errors.As(err, &te) {
		t.Errorf("Render() error type = %T, want *TemplateError", err)
	}
	if te.Stage != "body" {
		t.Errorf("Stage = %q, want body", te.Stage)
	}
}

func TestNewRejectsInvalidTemplate(t *testing.T) {
	if _, err := New("{{.Title", DefaultBody); err == nil {
		t.Error("New() accepted an unparseable subject template")
	}
	if _, err := New(DefaultSubject, "{{end}}"); err == nil {
		t.Error("New() accepted an unparseable body template")
	}
}
