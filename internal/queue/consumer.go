package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/taskflo/taskflo/internal/config"
	"github.com/taskflo/taskflo/internal/mailer"
)

// StartMailConsumer connects to RabbitMQ, declares both mail queues
// (durable) and delivers their messages through the SMTP sender.  It runs a
// reconnect loop with exponential backoff and keeps running across broker
// restarts; processing errors are logged and the offending message is
// rejected without requeue so a poison message cannot wedge the worker.
// Reset secrets inside message bodies are never written to logs.
func StartMailConsumer(cfg config.Config, sender *mailer.Sender, log *zap.Logger) error {
	w := &mailWorker{cfg: cfg, sender: sender, log: log}

	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Warn("mail-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := w.consumeLoop(conn); err != nil {
			log.Warn("mail-consumer: consume loop ended, reconnecting", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

type mailWorker struct {
	cfg    config.Config
	sender *mailer.Sender
	log    *zap.Logger
}

func (w *mailWorker) consumeLoop(conn *amqp.Connection) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		w.log.Warn("mail-consumer: set QoS failed", zap.Error(err))
	}

	for _, name := range []string{PasswordResetQueue, TaskCreatedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	resets, err := ch.Consume(PasswordResetQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", PasswordResetQueue, err)
	}
	created, err := ch.Consume(TaskCreatedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", TaskCreatedQueue, err)
	}

	for {
		select {
		case d, ok := <-resets:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			w.settle(d, w.handleReset(d.Body))
		case d, ok := <-created:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			w.settle(d, w.handleTaskCreated(d.Body))
		}
	}
}

func (w *mailWorker) settle(d amqp.Delivery, err error) {
	if err != nil {
		w.log.Error("mail-consumer: handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

func (w *mailWorker) handleReset(body []byte) error {
	var ev PasswordResetRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	resetURL := fmt.Sprintf("%s/resetPassword?token=%s", w.cfg.AppWebURL, url.QueryEscape(ev.Token))
	subject := "Reset your password"
	text := fmt.Sprintf(
		"Reset your %s password (expires in %d minutes): %s\r\n\r\nIf you didn't request a password reset, you can ignore this email.\r\n",
		w.cfg.AppName, ev.ExpiresMinutes, resetURL)
	return w.sender.Send(ev.Email, subject, text)
}

func (w *mailWorker) handleTaskCreated(body []byte) error {
	var ev TaskCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	subject := "Task Added"
	text := fmt.Sprintf(
		"Task added successfully\r\nTitle: %s\r\nDescription: %s\r\nOpen: %s\r\n",
		ev.Title, ev.Description, w.cfg.AppWebURL)
	return w.sender.Send(ev.Email, subject, text)
}
