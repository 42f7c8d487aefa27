// Package events publishes domain events after successful writes.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// Subjects
const (
	UserRegistered = "users.registered"
	TodoCreated    = "todos.created"
	TodoDeleted    = "todos.deleted"
)

// Publisher delivers best effort: failures are logged by the
// implementation and never fail the request that triggered them.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{})
}

// Nop drops every event. Used when NATS_URL is empty.
type Nop struct{}

func (Nop) Publish(ctx context.Context, subject string, payload interface{}) {}

// NatsPublisher publishes JSON payloads on a NATS connection.
type NatsPublisher struct {
	nc *nats.Conn
}

// ConnectNats opens the connection used by the publisher.
func ConnectNats(url string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("todo-service"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("Connected to NATS", zap.String("url", url))
	return &NatsPublisher{nc: nc}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, payload interface{}) {
	if p.nc == nil || !p.nc.IsConnected() {
		logger.Error("NATS connection is closed, dropping event", zap.String("subject", subject))
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		logger.Error("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}
