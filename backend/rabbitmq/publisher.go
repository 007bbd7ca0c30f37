package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

const publishTimeout = 10 * time.Second

// Publisher represents a RabbitMQ publisher instance
type Publisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher connects and declares a durable direct exchange.
func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Infof("RabbitMQ publisher ready on exchange %s, routing key %s", exchangeName, routingKey)
	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchangeName,
		routingKey: routingKey,
	}, nil
}

// Publish sends a persistent JSON message with the configured routing key.
// It gives up when ctx is done before the broker accepts the frame.
func (p *Publisher) Publish(ctx context.Context, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		// amqp.Channel is not safe for concurrent publishing.
		p.mu.Lock()
		defer p.mu.Unlock()
		done <- p.channel.Publish(
			p.exchange,   // exchange
			p.routingKey, // routing key
			false,        // mandatory
			false,        // immediate
			publishing,
		)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to publish message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done while publishing message: %w", ctx.Err())
	}
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	var errs []error

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
