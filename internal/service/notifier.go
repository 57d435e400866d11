// Package service holds the application services that sit between HTTP
// handlers and the persistence layer.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/taskflo/taskflo/internal/queue"
)

// Notifier publishes mail events to RabbitMQ.  Publishing is best effort:
// errors are logged and returned so callers can ignore failures without
// interrupting the request flow, and the functions never panic.  Messages
// are marked persistent so they survive a broker restart.
type Notifier struct {
	url string
	log *zap.Logger
}

// NewNotifier builds a Notifier for the broker at url, normally
// Config.RabbitMQURL.
func NewNotifier(url string, log *zap.Logger) *Notifier {
	return &Notifier{url: url, log: log}
}

// PasswordResetRequested queues the reset-link mail.  The event body holds
// the raw secret; it is deliberately not logged here or anywhere else.
func (n *Notifier) PasswordResetRequested(ctx context.Context, ev queue.PasswordResetRequestedEvent) error {
	return n.publish(ctx, queue.PasswordResetQueue, ev)
}

// TaskCreated queues the task-added confirmation mail.
func (n *Notifier) TaskCreated(ctx context.Context, ev queue.TaskCreatedEvent) error {
	return n.publish(ctx, queue.TaskCreatedQueue, ev)
}

func (n *Notifier) publish(ctx context.Context, queueName string, payload any) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		n.log.Error("rabbitmq dial failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		n.log.Error("rabbitmq channel open failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		n.log.Error("rabbitmq queue declare failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("rabbitmq marshal event failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		n.log.Error("rabbitmq publish failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	return nil
}
