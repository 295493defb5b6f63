package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sportsfeed/internal/domain"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Handler runs one task. A returned error drops the message.
type Handler interface {
	Dispatch(ctx context.Context, task domain.Task) error
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	queue      string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// NewRabbitMQ connects and declares the durable exchange, queue and binding
// used by both producers and workers.
func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger = logger.With("component", "taskqueue")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		queue:      q.Name,
		logger:     logger,
	}, nil
}

// Enqueue sends a task as a persistent JSON message.
func (r *RabbitMQ) Enqueue(ctx context.Context, task domain.Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         task.Name,
			Body:         body,
			Timestamp:    task.EnqueuedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish task: %w", err)
	}

	r.logger.Debug("enqueued task", "task", task.Name)
	return nil
}

// Consume hands tasks to h one at a time until ctx is done. Each message is
// acked after a successful run and nacked without requeue otherwise.
func (r *RabbitMQ) Consume(ctx context.Context, consumerTag string, h Handler) error {
	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := r.channel.Consume(
		r.queue,
		consumerTag,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	r.logger.Info("worker started", "queue", r.queue, "consumer", consumerTag)

	for {
		select {
		case <-ctx.Done():
			_ = r.channel.Cancel(consumerTag, false)
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			r.handle(ctx, d, h)
		}
	}
}

func (r *RabbitMQ) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	var task domain.Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		r.logger.Error("dropping malformed task", "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	logger := r.logger.With("task", task.Name)
	logger.Info("running task", "enqueued_at", task.EnqueuedAt)

	if err := h.Dispatch(ctx, task); err != nil {
		logger.Error("task failed", "error", err, "duration", time.Since(start))
		_ = d.Nack(false, false)
		return
	}

	logger.Info("task done", "duration", time.Since(start))
	if err := d.Ack(false); err != nil {
		logger.Warn("failed to ack task", "error", err)
	}
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
