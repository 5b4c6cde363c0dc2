package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/focus-server/internal/config"
)

const DefaultQueue = "focus.booking"

// ErrBrokerUnavailable is returned while the publisher waits out the redial
// backoff after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("amqp broker unavailable")

// AMQPPublisher writes events as persistent JSON messages to a durable queue
// on the default exchange. The connection is opened lazily and re-opened after
// the broker drops it. Dials are bounded by a short timeout, and after a
// failed dial events are dropped until the backoff has passed.
type AMQPPublisher struct {
	url     string
	queue   string
	backoff time.Duration
	dial    func(url string) (*amqp.Connection, error)
	now     func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{
		url:     url,
		queue:   queue,
		backoff: config.AMQPRedialBackoff,
		dial:    dialWithTimeout(config.AMQPDialTimeout),
		now:     time.Now,
	}
}

func dialWithTimeout(timeout time.Duration) func(string) (*amqp.Connection, error) {
	return func(url string) (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{
			Dial: amqp.DefaultDial(timeout),
		})
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		log.Warn().
			Err(err).
			Str("eventType", string(event.Type)).
			Str("sessionId", event.SessionID).
			Msg("amqp publish failed")
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// channel returns an open channel, dialing when needed. Caller holds p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	now := p.now()
	if now.Before(p.nextDial) {
		return nil, ErrBrokerUnavailable
	}

	conn, err := p.dial(p.url)
	if err != nil {
		p.nextDial = now.Add(p.backoff)
		log.Warn().Err(err).Dur("backoff", p.backoff).Msg("amqp dial failed, dropping events until backoff ends")
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	log.Info().Str("queue", p.queue).Msg("amqp publisher connected")
	p.conn = conn
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
