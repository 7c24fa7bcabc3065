// Package render turns a recipient into a personalized message. It is a
// pure stage: no side effects, no state beyond the parsed templates.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/mailherald/herald/internal/recipient"
)

// Default templates for the acceptance notification. Both can be
// replaced through configuration.
const (
	DefaultSubject = `Your {{.Activity}} "{{.Title}}" has been accepted`

	DefaultBody = `Dear {{.Name}},

We are delighted to let you know that your {{.Activity}}, "{{.Title}}", has been accepted for the conference!

To confirm your participation as {{.Role}}, please reply to this message.

Details:
- Session: {{.Title}}
- Theme: {{.Theme}}
- {{.DurationLabel}}: 45 minutes
{{- if .Coauthors}}
- Co-authors: {{.Coauthors}}
{{- end}}

We look forward to your confirmation!

Best regards,
The organizing team
`
)

// TemplateError reports a per-recipient rendering failure. It never
// aborts the run; the engine records it and moves on.
type TemplateError struct {
	Stage string
	Err   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Stage, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Result is a rendered message.
type Result struct {
	Subject string
	Body    string
}

// Renderer renders subject and body templates against recipient fields.
type Renderer struct {
	subject *template.Template
	body    *template.Template
}

// New parses the subject and body templates. Missing substitution
// fields fail at render time, per recipient, rather than silently
// producing "<no value>".
func New(subjectTmpl, bodyTmpl string) (*Renderer, error) {
	subject, err := template.New("subject").Option("missingkey=error").Parse(subjectTmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid subject template: %w", err)
	}
	body, err := template.New("body").Option("missingkey=error").Parse(bodyTmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid body template: %w", err)
	}

	return &Renderer{subject: subject, body: body}, nil
}

// Render produces the message for one recipient.
func (r *Renderer) Render(rcpt recipient.Recipient) (*Result, error) {
	data := buildContext(rcpt)

	subject, err := execute(r.subject, data)
	if err != nil {
		return nil, &TemplateError{Stage: "subject", Err: err}
	}
	body, err := execute(r.body, data)
	if err != nil {
		return nil, &TemplateError{Stage: "body", Err: err}
	}

	return &Result{Subject: subject, Body: body}, nil
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// buildContext maps recipient fields to template variables, including
// the wording that differs between talks and tutorials.
func buildContext(rcpt recipient.Recipient) map[string]any {
	role := "a speaker"
	durationLabel := "Talk duration"
	if rcpt.IsTutorial() {
		role = "a tutorial instructor"
		durationLabel = "Tutorial duration"
	}

	coauthors := ""
	if strings.Contains(rcpt.AllAuthors, ",") {
		coauthors = rcpt.AllAuthors
	}

	return map[string]any{
		"Name":          rcpt.Name,
		"Email":         rcpt.Email,
		"Title":         rcpt.Title,
		"Theme":         rcpt.Theme,
		"Activity":      string(rcpt.Activity),
		"Role":          role,
		"DurationLabel": durationLabel,
		"Coauthors":     coauthors,
	}
}
