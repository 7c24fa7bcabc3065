package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mailherald/herald/internal/dkim"
)

// Config holds submission settings for the SMTP mailer.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	HelloName   string
	Timeout     time.Duration
}

// SMTPMailer submits messages through an authenticated relay. Each send
// opens its own session and releases it on every exit path.
type SMTPMailer struct {
	cfg    Config
	signer *dkim.Signer
	logger *slog.Logger
}

// NewSMTP creates a mailer. The signer is optional.
func NewSMTP(cfg Config, signer *dkim.Signer, logger *slog.Logger) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HelloName == "" {
		cfg.HelloName = "localhost"
	}
	return &SMTPMailer{cfg: cfg, signer: signer, logger: logger}
}

// Send submits one message. Returned errors are *DeliveryError with the
// temporary/permanent classification the retry policy relies on.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	data := buildMessage(m.cfg.FromName, m.cfg.FromAddress, msg)

	if m.signer != nil {
		signed, err := m.signer.Sign(data)
		if err != nil {
			m.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", m.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("connection failed to %s: %v", addr, err),
		}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	// Port 465 is implicit TLS; everything else upgrades via STARTTLS.
	tlsConfig := &tls.Config{
		ServerName: m.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if m.cfg.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	client := smtp.NewClient(conn)
	defer client.Close()

	if err := client.Hello(m.cfg.HelloName); err != nil {
		return Classify(err, "HELO")
	}

	if m.cfg.Port != 465 {
		ok, _ := client.Extension("STARTTLS")
		if !ok {
			// Never authenticate over cleartext.
			return &DeliveryError{
				Temporary: false,
				Message:   fmt.Sprintf("server %s does not offer STARTTLS", addr),
			}
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return Classify(err, "STARTTLS")
		}
	}

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := client.Auth(auth); err != nil {
			// Credential rejections do not heal on retry.
			return &DeliveryError{
				Temporary: false,
				Message:   fmt.Sprintf("AUTH failed: %v", err),
			}
		}
	}

	if err := client.Mail(m.cfg.FromAddress, nil); err != nil {
		return Classify(err, "MAIL FROM")
	}
	if err := client.Rcpt(msg.To, nil); err != nil {
		return Classify(err, fmt.Sprintf("RCPT TO %s", msg.To))
	}

	wc, err := client.Data()
	if err != nil {
		return Classify(err, "DATA")
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("failed to write message data: %v", err),
		}
	}
	if err := wc.Close(); err != nil {
		return Classify(err, "DATA close")
	}

	client.Quit()

	m.logger.Info("message submitted",
		"to", msg.To,
		"subject", msg.Subject,
	)

	return nil
}
