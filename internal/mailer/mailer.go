// Package mailer is the outbound transport boundary: it submits
// rendered messages over authenticated SMTP and classifies failures
// into retryable and permanent.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-smtp"
)

// Message is one outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer is the effectful, possibly-failing send capability.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// DeliveryError represents a send failure with retry classification.
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// Classify wraps an error from a send stage into a DeliveryError.
// SMTP 4xx replies and transport-level failures (dial, IO, timeouts)
// are temporary; 5xx replies are permanent.
func Classify(err error, stage string) *DeliveryError {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}

	msg := fmt.Sprintf("%s failed: %v", stage, err)

	var se *smtp.SMTPError
	if errors.As(err, &se) {
		return &DeliveryError{Temporary: se.Temporary(), Message: msg}
	}

	// Dial errors, timeouts, broken connections: worth retrying.
	return &DeliveryError{Temporary: true, Message: msg}
}

// IsTemporary reports whether an error is worth retrying. Unknown
// errors are assumed temporary.
func IsTemporary(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true
}
