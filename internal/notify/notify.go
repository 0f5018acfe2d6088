// Package notify delivers operator alerts and arrival messages.
//
// Delivery is best effort: a failing sink never aborts the operation that
// raised the alert.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// Message is one notification.
type Message struct {
	Subject string
	Body    string
	// To overrides the sink's default recipients when non-empty.
	To []string
}

// Sink delivers messages.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Server   string
	Port     int
	From     string
	Username string
	Password string
	// To is the default recipient list.
	To []string
}

// SendFunc sends a prepared email through addr.
type SendFunc func(e *email.Email, addr string, auth smtp.Auth) error

func defaultSend(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

// EmailSink sends messages over SMTP.
type EmailSink struct {
	cfg  SMTPConfig
	send SendFunc
}

// NewEmailSink creates an EmailSink. A nil send uses the network.
func NewEmailSink(cfg SMTPConfig, send SendFunc) *EmailSink {
	if send == nil {
		send = defaultSend
	}
	return &EmailSink{cfg: cfg, send: send}
}

// Send implements Sink. Servers that do not support AUTH are retried
// without credentials.
func (s *EmailSink) Send(ctx context.Context, msg Message) error {
	to := msg.To
	if len(to) == 0 {
		to = s.cfg.To
	}
	if len(to) == 0 {
		return errors.New("send email: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("busstats <%s>", s.cfg.From)
	mail.To = to
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	}

	err := s.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email to %s: %w", strings.Join(to, ", "), err)
	}
	return nil
}

// LogSink writes messages to a logger. It is used when no mail server is
// configured.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements Sink.
func (s LogSink) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("notification", "subject", msg.Subject, "to", msg.To, "body", msg.Body)
	return nil
}

// Alert reports err through sink with its full chain in the body. Delivery
// failures are logged and swallowed.
func Alert(ctx context.Context, sink Sink, logger *slog.Logger, subject string, err error) {
	if sink == nil || err == nil {
		return
	}
	body := "The following error occurred:\n\n" + chain(err)
	if sendErr := sink.Send(ctx, Message{Subject: subject, Body: body}); sendErr != nil {
		logger.Error("alert delivery failed", "subject", subject, "error", sendErr)
	}
}

// chain renders err and every error it wraps, outermost first.
func chain(err error) string {
	var b strings.Builder
	for i := 0; err != nil; i++ {
		if i > 0 {
			b.WriteString("\ncaused by: ")
		}
		b.WriteString(err.Error())
		err = errors.Unwrap(err)
	}
	return b.String()
}
