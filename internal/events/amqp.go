package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a fanout exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewAMQPPublisher connects to url and declares a durable fanout exchange.
func NewAMQPPublisher(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	p.logger.Info().Str("exchange", exchange).Msg("event feed connected")
	return p, nil
}

func newPublisher(ch channel, exchange string, logger zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "events").Logger(),
	}
}

// Publish sends event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		"",    // fanout ignores the routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			MessageId:    event.OrderID,
			Timestamp:    event.OccurredAt,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", event.Type, event.OrderID, err)
	}

	p.logger.Debug().Str("type", event.Type).Str("order_id", event.OrderID).Msg("event published")
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
