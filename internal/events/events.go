// Package events publishes portal events to the message broker. Publishing
// is best effort: a broker outage degrades to log lines, never to failed
// requests.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/dishnetafrica/isp-portal/internal/config"
)

// exchange is the direct exchange all portal events go through. Routing
// keys follow "<resource>.<action>": subscriber.login, voucher.issued,
// device.reboot.
const exchange = "portal.events"

// Publisher writes events to one broker channel.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker with retries and declares the portal exchange.
func Connect(cfg config.AMQP) (*Publisher, error) {
	const op = "events.Connect"

	var conn *amqp.Connection
	var err error
	for attempt := 0; attempt < cfg.Retries; attempt++ {
		conn, err = amqp.Dial(cfg.AddressAMQP)
		if err == nil {
			break
		}
		time.Sleep(cfg.RetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

// Publish sends one event. The payload is marshalled to JSON and delivered
// persistent.
func (p *Publisher) Publish(_ context.Context, routingKey string, payload any) error {
	const op = "events.Publish"

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() error {
	const op = "events.Close"

	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
