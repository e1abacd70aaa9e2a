package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

const (
	attrEventType   = "event-type"
	attrContentType = "content-type"
	jsonContentType = "application/json"
)

// Event is the JSON envelope every domain event is published in.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	now     func() time.Time
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend, now: time.Now}
}

// NewFromConfig connects the backend selected by cfg.Backend. It returns a
// nil *MQ when publishing is disabled ("none" or empty).
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishEvent wraps payload in an Event envelope and publishes it on
// channel. Publishing on a nil *MQ is a no-op.
func (m *MQ) PublishEvent(ctx context.Context, channel string, payload any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channel, err)
	}
	body, err := json.Marshal(Event{Type: channel, OccurredAt: m.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", channel, err)
	}
	_, err = m.backend.Publish(ctx, channel, body, map[string]string{
		attrEventType:   channel,
		attrContentType: jsonContentType,
	})
	return err
}

// DecodeEvent parses an Event envelope and unmarshals its data into out.
func DecodeEvent(msg Message, out any) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(event.Data, out); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
	}
	return event, nil
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}
