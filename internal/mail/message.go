// Package mail renders and delivers transactional email.
//
// The API enqueues Messages through a Dispatcher; the mailer worker renders
// them with the embedded templates and hands them to a Sender.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"expenses/internal/log"
)

// Template names understood by the renderer.
const (
	TemplateWelcome       = "welcome"
	TemplateExpenseAdded  = "expense_added"
	TemplatePasswordReset = "password_reset"
)

var (
	ErrUnknownTemplate = errors.New("unknown mail template")
	ErrNoRecipient     = errors.New("mail message has no recipient")
)

// Message is a mail job. Data holds the template variables.
type Message struct {
	Template  string            `json:"template"`
	To        string            `json:"to"`
	Data      map[string]string `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewMessage(template, to string, data map[string]string) Message {
	if data == nil {
		data = map[string]string{}
	}
	return Message{Template: template, To: to, Data: data, Timestamp: time.Now().UTC()}
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if !KnownTemplate(m.Template) {
		return ErrUnknownTemplate
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes and validates a queued message.
func MessageFromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Dispatcher hands a message off for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

// LogDispatcher drops messages after logging them. It is used when no
// queue is configured.
type LogDispatcher struct {
	logger *log.Logger
}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{logger: log.WithComponent(log.ComponentMail)}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "Mail queue not configured, dropping message",
		log.FieldTemplate, m.Template, log.FieldRecipient, m.To)
	return nil
}
