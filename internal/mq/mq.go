package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talenthub/apiserver/config"
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

// MQ wraps a backend with JSON helpers.
type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the backend named in cfg. It returns nil, nil when no
// backend is configured; callers treat a nil *MQ as "notifications off".
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var backend Backend
	var err error
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.MQRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.MQPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Backend, err)
	}
	return New(backend), nil
}

// PublishJSON encodes event and publishes it with an event-type attribute.
func (m *MQ) PublishJSON(ctx context.Context, channel string, event any) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", channel, err)
	}
	return m.backend.Publish(ctx, channel, data, map[string]string{
		"content_type": "application/json",
		"event":        channel,
	})
}

func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// SubscribeJSON decodes each message into a fresh T before calling handler.
// Messages that do not decode are acknowledged and dropped.
func SubscribeJSON[T any](ctx context.Context, m *MQ, channel string, handler func(ctx context.Context, event T) error) error {
	return m.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		var event T
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return handler(ctx, event)
	})
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
