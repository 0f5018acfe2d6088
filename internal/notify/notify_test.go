package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	mail *email.Email
	addr string
	auth smtp.Auth
}

func recorder(calls *[]sent, errs ...error) SendFunc {
	return func(e *email.Email, addr string, auth smtp.Auth) error {
		*calls = append(*calls, sent{e, addr, auth})
		if len(errs) >= len(*calls) {
			return errs[len(*calls)-1]
		}
		return nil
	}
}

func TestEmailSink_Send(t *testing.T) {
	var calls []sent
	sink := NewEmailSink(SMTPConfig{
		Server:   "smtp.example.org",
		Port:     587,
		From:     "bus@example.org",
		Username: "bus",
		Password: "pw",
		To:       []string{"ops@example.org"},
	}, recorder(&calls))

	err := sink.Send(context.Background(), Message{Subject: "hi", Body: "body"})
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "smtp.example.org:587", calls[0].addr)
	assert.NotNil(t, calls[0].auth)
	assert.Equal(t, []string{"ops@example.org"}, calls[0].mail.To)
	assert.Equal(t, "busstats <bus@example.org>", calls[0].mail.From)
	assert.Equal(t, "hi", calls[0].mail.Subject)
	assert.Equal(t, []byte("body"), calls[0].mail.Text)
}

func TestEmailSink_RecipientsOverride(t *testing.T) {
	var calls []sent
	sink := NewEmailSink(SMTPConfig{Server: "s", Port: 25, To: []string{"ops@example.org"}}, recorder(&calls))

	require.NoError(t, sink.Send(context.Background(), Message{To: []string{"ana@example.org"}}))
	assert.Equal(t, []string{"ana@example.org"}, calls[0].mail.To)
	assert.Nil(t, calls[0].auth, "no credentials, no auth")
}

func TestEmailSink_FallsBackWithoutAuth(t *testing.T) {
	var calls []sent
	sink := NewEmailSink(SMTPConfig{Server: "s", Port: 25, Username: "u", To: []string{"x@y"}},
		recorder(&calls, errors.New("smtp: server doesn't support AUTH")))

	require.NoError(t, sink.Send(context.Background(), Message{Subject: "s"}))
	require.Len(t, calls, 2)
	assert.NotNil(t, calls[0].auth)
	assert.Nil(t, calls[1].auth)
}

func TestEmailSink_Errors(t *testing.T) {
	var calls []sent
	sink := NewEmailSink(SMTPConfig{Server: "s", Port: 25}, recorder(&calls))
	assert.ErrorContains(t, sink.Send(context.Background(), Message{}), "no recipients")

	sink = NewEmailSink(SMTPConfig{Server: "s", Port: 25, To: []string{"x@y"}},
		recorder(&calls, errors.New("connection refused")))
	assert.ErrorContains(t, sink.Send(context.Background(), Message{}), "connection refused")
}

type memorySink struct {
	msgs []Message
	err  error
}

func (m *memorySink) Send(_ context.Context, msg Message) error {
	m.msgs = append(m.msgs, msg)
	return m.err
}

func TestAlert_IncludesErrorChain(t *testing.T) {
	sink := &memorySink{}
	root := errors.New("connection reset")
	err := fmt.Errorf("scrape stop 686: %w", root)

	Alert(context.Background(), sink, slog.Default(), "Data generation failed", err)

	require.Len(t, sink.msgs, 1)
	assert.Equal(t, "Data generation failed", sink.msgs[0].Subject)
	assert.Contains(t, sink.msgs[0].Body, "scrape stop 686: connection reset\ncaused by: connection reset")
}

func TestAlert_DeliveryFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &memorySink{err: errors.New("smtp down")}

	Alert(context.Background(), sink, logger, "subject", errors.New("boom"))

	assert.Contains(t, buf.String(), "alert delivery failed")
	assert.Contains(t, buf.String(), "smtp down")
}

func TestAlert_NilErrorIsNoop(t *testing.T) {
	sink := &memorySink{}
	Alert(context.Background(), sink, slog.New(slog.NewTextHandler(io.Discard, nil)), "s", nil)
	assert.Empty(t, sink.msgs)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sink.Send(context.Background(), Message{Subject: "Gamazo", Body: "2 arrives at 08:41 (3 mins)"}))
	assert.Contains(t, buf.String(), "subject=Gamazo")
}
