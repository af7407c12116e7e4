package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes persistent JSON messages through the default
// exchange, with the queue name as routing key.
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

// NewAMQPPublisher dials the broker once to validate the URL.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	return &AMQPPublisher{url: url, conn: conn, declared: make(map[string]bool)}, nil
}

// Publish opens a short-lived channel, declares the queue on first use and
// sends the event. A dropped connection is redialed once.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if !p.declared[queue] {
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq queue declare failed: %w", err)
		}
		p.declared[queue] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq redial failed: %w", err)
		}
		p.conn = conn
		p.declared = make(map[string]bool)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	return ch, nil
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
