package events

import (
	"encoding/json"
	"sync"
	"time"

	"exam_prep_backend/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	AttemptStarted      = "attempt.started"
	AttemptSubmitted    = "attempt.submitted"
	AttemptGraded       = "attempt.graded"
	AttemptAbandoned    = "attempt.abandoned"
	AttemptDisqualified = "attempt.disqualified"
)

// Publisher emits attempt lifecycle events for downstream consumers.
type Publisher interface {
	Publish(eventType string, payload interface{}) error
	Close()
}

type envelope struct {
	Type       string      `json:"type"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// AMQPPublisher publishes JSON events to a topic exchange, routed by type.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(eventType string, payload interface{}) error {
	body, err := json.Marshal(envelope{Type: eventType, Payload: payload, OccurredAt: time.Now()})
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}
	logger.Log.Debug("Event published", zap.String("type", eventType))
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }
func (NoopPublisher) Close()                            {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	Type    string
	Payload interface{}
}

func (r *Recorder) Publish(eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, RecordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (r *Recorder) Close() {}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
