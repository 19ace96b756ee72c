package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_service/internal/lib/logger/sl"
	"account_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrChannelClosed = errors.New("delivery channel closed")

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// SendMessage publishes msg as a persistent JSON message on the queue.
func (r *RabbitMQClient) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Handler processes one delivery body. A returned error requeues the
// delivery unless it wraps ErrDiscard.
type Handler func(ctx context.Context, body []byte) error

// ErrDiscard marks a delivery that can never succeed.
var ErrDiscard = errors.New("discard message")

// StartReading consumes the queue until ctx is done or the broker closes the
// channel. Each delivery is acked on success and nacked otherwise.
func (r *RabbitMQClient) StartReading(ctx context.Context, log *slog.Logger, handle Handler) error {
	const op = "rabbitmq.StartReading"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: %w", op, ErrChannelClosed)
			}

			settle(log, d, handle(ctx, d.Body))
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(log *slog.Logger, d acknowledger, err error) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrDiscard)
	log.Error("failed to handle message", sl.Err(err), slog.Bool("requeue", requeue))

	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error("failed to nack message", sl.Err(nackErr))
	}
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}
