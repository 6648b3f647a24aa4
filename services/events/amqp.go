// Package eventsvc publishes the domain events.
package eventsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/trezcool/academia/core"
)

// Event is the message published for every domain event.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

func encode(routingKey string, payload interface{}) ([]byte, error) {
	return json.Marshal(Event{Type: routingKey, OccurredAt: time.Now().UTC(), Payload: payload})
}

type amqpPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	channel  *amqp.Channel
	exchange string
}

var _ core.EventPublisher = (*amqpPublisher)(nil)

// NewAMQPPublisher publishes events to a durable topic exchange, with the event type as routing key.
func NewAMQPPublisher(conf *core.Config) (core.EventPublisher, error) {
	conn, err := amqp.Dial(conf.AMQP.URL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening amqp channel")
	}
	err = ch.ExchangeDeclare(
		conf.AMQP.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &amqpPublisher{conn: conn, channel: ch, exchange: conf.AMQP.Exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := encode(routingKey, payload)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	return errors.Wrap(err, "publishing event")
}

func (p *amqpPublisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cErr := p.conn.Close(); err == nil {
			err = cErr
		}
	}
	return err
}
