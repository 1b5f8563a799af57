// Package worker holds the queue consumers run by cmd/mailer-worker.
package worker

import (
	"context"
	"fmt"

	"expenses/internal/log"
	"expenses/internal/mail"
)

// MailWorker renders queued mail jobs and sends them.
type MailWorker struct {
	renderer *mail.Renderer
	sender   mail.Sender
	logger   *log.Logger
}

func NewMailWorker(renderer *mail.Renderer, sender mail.Sender) *MailWorker {
	return &MailWorker{
		renderer: renderer,
		sender:   sender,
		logger:   log.WithComponent(log.ComponentWorker),
	}
}

// HandleMailMessage processes a single mail message from AMQP. A returned
// error makes the consumer requeue the message.
func (w *MailWorker) HandleMailMessage(ctx context.Context, msg mail.Message) error {
	w.logger.InfoContext(ctx, "Processing mail message",
		log.FieldTemplate, msg.Template,
		log.FieldRecipient, msg.To)

	rendered, err := w.renderer.Render(msg)
	if err != nil {
		// Rendering is deterministic, so retrying cannot help.
		w.logger.ErrorContext(ctx, "Dropping unrenderable mail message",
			log.FieldTemplate, msg.Template, log.FieldError, err)
		return nil
	}

	if err := w.sender.Send(ctx, rendered); err != nil {
		return fmt.Errorf("deliver %s mail: %w", msg.Template, err)
	}

	w.logger.InfoContext(ctx, "Mail delivered",
		log.FieldTemplate, msg.Template,
		log.FieldRecipient, msg.To)
	return nil
}

// Consumer is the queue side of the worker.
type Consumer interface {
	ConsumeMail(ctx context.Context, handler func(context.Context, mail.Message) error) error
}

// Run consumes until ctx is done.
func (w *MailWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Mail worker started")
	err := c.ConsumeMail(ctx, w.HandleMailMessage)
	w.logger.InfoContext(ctx, "Mail worker stopped", "reason", err)
	return err
}
