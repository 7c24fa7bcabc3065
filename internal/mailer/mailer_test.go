package mailer

import (
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTemporary bool
	}{
		{
			name:          "SMTP 4xx is temporary",
			err:           &smtp.SMTPError{Code: 451, Message: "try again later"},
			wantTemporary: true,
		},
		{
			name:          "SMTP 452 mailbox full is temporary",
			err:           &smtp.SMTPError{Code: 452, Message: "mailbox full"},
			wantTemporary: true,
		},
		{
			name:          "SMTP 550 is permanent",
			err:           &smtp.SMTPError{Code: 550, Message: "no such user"},
			wantTemporary: false,
		},
		{
			name:          "SMTP 535 auth failure is permanent",
			err:           &smtp.SMTPError{Code: 535, Message: "authentication credentials invalid"},
			wantTemporary: false,
		},
		{
			name:          "plain error defaults to temporary",
			err:           errors.New("read: connection reset by peer"),
			wantTemporary: true,
		},
		{
			name:          "existing classification is preserved",
			err:           &DeliveryError{Temporary: false, Message: "server does not offer STARTTLS"},
			wantTemporary: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := Classify(tt.err, "RCPT TO")
			if de.Temporary != tt.wantTemporary {
				t.Errorf("Classify().Temporary = %v, want %v", de.Temporary, tt.wantTemporary)
			}
			if de.Message == "" {
				t.Error("Classify() produced an empty message")
			}
		})
	}
}

func TestIsTemporary(t *testing.T) {
	if !IsTemporary(errors.New("unknown")) {
		t.Error("IsTemporary(unknown error) = false, want true")
	}
	if IsTemporary(&DeliveryError{Temporary: false}) {
		t.Error("IsTemporary(permanent) = true")
	}
	if !IsTemporary(&DeliveryError{Temporary: true}) {
		t.Error("IsTemporary(temporary) = false")
	}
}

func TestBuildMessage(t *testing.T) {
	msg := &Message{
		To:      "ana@example.com",
		ToName:  "Ana Souza",
		Subject: "Sua palestra foi aprovada",
		Body:    "Hello Ana,\n\nGood news.\n",
	}

	data := string(buildMessage("Organizing Team", "team@conf.example", msg))

	headerBody := strings.SplitN(data, "\r\n\r\n", 2)
	if len(headerBody) != 2 {
		t.Fatalf("message has no header/body separator:\n%s", data)
	}
	headers, body := headerBody[0], headerBody[1]

	for _, want := range []string{
		`From: "Organizing Team" <team@conf.example>`,
		`To: "Ana Souza" <ana@example.com>`,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
	} {
		if !strings.Contains(headers, want) {
			t.Errorf("headers missing %q:\n%s", want, headers)
		}
	}

	// The ASCII subject passes through unencoded.
	if !strings.Contains(headers, "Subject: Sua palestra foi aprovada") {
		t.Errorf("headers missing plain subject:\n%s", headers)
	}

	if !strings.Contains(headers, "Message-ID: <") || !strings.Contains(headers, "@conf.example>") {
		t.Errorf("Message-ID malformed:\n%s", headers)
	}

	if !strings.Contains(body, "Hello Ana,\r\n\r\nGood news.\r\n") {
		t.Errorf("body not CRLF normalized:\n%q", body)
	}
}

func TestBuildMessageEncodedSubject(t *testing.T) {
	msg := &Message{
		To:      "ana@example.com",
		Subject: "Aprovação — confirmação",
		Body:    "x",
	}

	data := string(buildMessage("Team", "team@conf.example", msg))
	if !strings.Contains(data, "=?utf-8?q?") && !strings.Contains(data, "=?utf-8?Q?") {
		t.Errorf("non-ASCII subject not RFC 2047 encoded:\n%s", data)
	}
}
