package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/mail"
)

type recordingSender struct {
	sent []mail.Rendered
	err  error
}

func (s *recordingSender) Send(_ context.Context, r mail.Rendered) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, r)
	return nil
}

type fakeConsumer struct {
	msgs []mail.Message
	errs []error
}

func (c *fakeConsumer) ConsumeMail(ctx context.Context, handler func(context.Context, mail.Message) error) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler(ctx, m))
	}
	return context.Canceled
}

func newWorker(t *testing.T, s mail.Sender) *MailWorker {
	t.Helper()
	r, err := mail.NewRenderer()
	require.NoError(t, err)
	return NewMailWorker(r, s)
}

func TestHandleMailMessage(t *testing.T) {
	sender := &recordingSender{}
	w := newWorker(t, sender)

	err := w.HandleMailMessage(context.Background(),
		mail.NewMessage(mail.TemplateWelcome, "ada@example.com", map[string]string{"name": "Ada"}))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Equal(t, "Welcome to Expense Tracker", sender.sent[0].Subject)
}

func TestHandleMailMessageSendFailureRequeues(t *testing.T) {
	w := newWorker(t, &recordingSender{err: errors.New("connection refused")})

	err := w.HandleMailMessage(context.Background(), mail.NewMessage(mail.TemplateWelcome, "a@example.com", nil))
	assert.ErrorContains(t, err, "connection refused")
}

func TestHandleMailMessageDropsUnrenderable(t *testing.T) {
	sender := &recordingSender{}
	w := newWorker(t, sender)

	err := w.HandleMailMessage(context.Background(), mail.Message{Template: "bogus", To: "a@example.com"})
	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestRun(t *testing.T) {
	sender := &recordingSender{}
	w := newWorker(t, sender)
	c := &fakeConsumer{msgs: []mail.Message{
		mail.NewMessage(mail.TemplateWelcome, "a@example.com", nil),
		mail.NewMessage(mail.TemplatePasswordReset, "b@example.com", map[string]string{"resetURL": "u"}),
	}}

	err := w.Run(context.Background(), c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, []error{nil, nil}, c.errs)
}
