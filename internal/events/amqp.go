package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/resilience"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange, routed by topic.
type AMQPPublisher struct {
	ch       Channel
	exchange string
	breaker  *resilience.Breaker
}

// Dial opens a channel on url and declares the exchange.
func Dial(url, exchange string, breaker *resilience.Breaker) (*AMQPPublisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	pub, err := NewAMQPPublisher(ch, exchange, breaker)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return pub, conn, nil
}

// NewAMQPPublisher declares a durable topic exchange on ch.
func NewAMQPPublisher(ch Channel, exchange string, breaker *resilience.Breaker) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{Target: "amqp"})
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, breaker: breaker}, nil
}

// Publish implements Publisher. Calls fail fast with resilience.ErrOpenCircuit
// while the broker is considered down.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.breaker.Do(func() error {
		return p.ch.PublishWithContext(ctx, p.exchange, ev.Topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID.String(),
			Timestamp:    ev.OccurredAt,
			Type:         ev.Topic,
			Body:         body,
		})
	})
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.EventsPublishedTotal != nil {
		obs.EventsPublishedTotal.WithLabelValues(ev.Topic, result).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	return nil
}

// Close closes the channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
