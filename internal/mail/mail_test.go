package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplates(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	tests := []struct {
		name    string
		msg     Message
		subject string
		body    []string
	}{
		{
			name:    "welcome",
			msg:     NewMessage(TemplateWelcome, "ada@example.com", map[string]string{"name": "Ada", "appURL": "http://app"}),
			subject: "Welcome to Expense Tracker",
			body:    []string{"Hi Ada,", "http://app"},
		},
		{
			name: "expense added",
			msg: NewMessage(TemplateExpenseAdded, "ada@example.com", map[string]string{
				"name": "Ada", "description": "Coffee", "amount": "3.50", "category": "Food & Dining",
			}),
			subject: "Expense added: Coffee",
			body:    []string{"Amount:         3.50", "Food & Dining"},
		},
		{
			name: "password reset",
			msg: NewMessage(TemplatePasswordReset, "ada@example.com", map[string]string{
				"name": "Ada", "resetURL": "http://app/reset/abc", "expiresIn": "1 hour",
			}),
			subject: "Reset your password",
			body:    []string{"http://app/reset/abc", "within 1 hour"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", out.To)
			assert.Equal(t, tt.subject, out.Subject)
			for _, want := range tt.body {
				assert.Contains(t, out.Body, want)
			}
		})
	}
}

func TestRenderRejectsBadMessages(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(NewMessage("newsletter", "a@example.com", nil))
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = r.Render(NewMessage(TemplateWelcome, " ", nil))
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestMessageJSON(t *testing.T) {
	m := NewMessage(TemplateWelcome, "a@example.com", map[string]string{"name": "A"})
	b, err := m.ToJSON()
	require.NoError(t, err)

	got, err := MessageFromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, m.Template, got.Template)
	assert.Equal(t, m.Data, got.Data)
	assert.True(t, m.Timestamp.Equal(got.Timestamp))

	_, err = MessageFromJSON([]byte(`{"template":"welcome"}`))
	assert.ErrorIs(t, err, ErrNoRecipient)
	_, err = MessageFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher()
	assert.NoError(t, d.Dispatch(context.Background(), NewMessage(TemplateWelcome, "a@example.com", nil)))
	assert.Error(t, d.Dispatch(context.Background(), NewMessage("bogus", "a@example.com", nil)))
}

func TestSMTPSender(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	err := s.Send(context.Background(), Rendered{To: "a@example.com", Subject: "Hi\r\nBcc: x", Body: "line1\nline2\n"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hi  Bcc: x\r\n")
	assert.Contains(t, gotMsg, "line1\r\nline2\r\n")
	assert.False(t, strings.Contains(gotMsg, "\r\nBcc:"))
}

func TestSMTPSenderErrors(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25, From: "a@b"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	err := s.Send(context.Background(), Rendered{To: "x@y"})
	assert.ErrorContains(t, err, "421 busy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Rendered{To: "x@y"}), context.Canceled)
}

func TestBuildMessageHeaders(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := string(buildMessage("from@x", Rendered{To: "to@x", Subject: "S", Body: "B"}, now))
	assert.True(t, strings.HasPrefix(msg, "From: from@x\r\nTo: to@x\r\nSubject: S\r\n"))
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\nB")
}
