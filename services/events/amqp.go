// Package eventsvc provides the core.EventPublisher backends.
package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/trezcool/darasa/core"
)

// Exchange is the durable topic exchange every domain event is published to, routed by event name.
const Exchange = "darasa.events"

var dialFunc = amqp.Dial // mockable

type AMQPPublisher struct {
	conn   *amqp.Connection
	mu     sync.Mutex // amqp channels are not safe for concurrent publishing
	ch     *amqp.Channel
	logger core.Logger
}

var _ core.EventPublisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher connects to `url`, retrying with an exponential backoff, and declares the exchange.
func NewAMQPPublisher(url string, logger core.Logger) (*AMQPPublisher, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	wait := time.Second
	for attempt := 1; attempt <= 6; attempt++ {
		if conn, err = dialFunc(url); err == nil {
			break
		}
		logger.Warn(fmt.Sprintf("connecting to amqp (attempt %d): %v", attempt, err), err)
		time.Sleep(wait)
		wait *= 2
	}
	if err != nil {
		return nil, errors.Wrap(err, "connecting to amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening amqp channel")
	}
	err = ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}

	logger.Info("connected to amqp")
	return &AMQPPublisher{conn: conn, ch: ch, logger: logger}, nil
}

func (pub *AMQPPublisher) Publish(ctx context.Context, evt core.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	err = pub.ch.Publish(Exchange, evt.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	return errors.Wrapf(err, "publishing %s", evt.Name)
}

func (pub *AMQPPublisher) Close() error {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if err := pub.ch.Close(); err != nil {
		pub.logger.Warn(fmt.Sprintf("closing amqp channel: %v", err), err)
	}
	return pub.conn.Close()
}
