// Package notify carries cache invalidation messages between the storage
// factories of one or many processes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"docstore/internal/config"
	"docstore/internal/files"
)

// Notifier publishes JSON-encoded messages on named topics. Handlers run on
// a delivery goroutine, never on the publisher's.
type Notifier interface {
	Publish(ctx context.Context, topic string, msg any) error

	// Subscribe registers handler for topic. The returned func unsubscribes.
	Subscribe(topic string, handler func(payload []byte)) (func(), error)

	Close() error
}

// Encode is the wire form every notifier uses.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding notification: %w", err)
	}
	return data, nil
}

// NewNotifierFromConfig creates the notifier named by cfg.Type.
func NewNotifierFromConfig(ctx context.Context, cfg config.NotifyConfig, logger files.Logger) (Notifier, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocal(logger), nil
	case "redis":
		return NewRedis(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown notify type: %q", cfg.Type)
	}
}
