package notify

import (
	"context"
	"fmt"

	"github.com/juju/pubsub/v2"

	"docstore/internal/files"
)

// Local delivers within the process through a pubsub hub.
type Local struct {
	hub    *pubsub.SimpleHub
	logger files.Logger
}

var _ Notifier = (*Local)(nil)

func NewLocal(logger files.Logger) *Local {
	return &Local{
		hub:    pubsub.NewSimpleHub(nil),
		logger: logger,
	}
}

func (l *Local) Publish(ctx context.Context, topic string, msg any) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	l.hub.Publish(topic, data)
	return nil
}

func (l *Local) Subscribe(topic string, handler func(payload []byte)) (func(), error) {
	unsubscribe := l.hub.Subscribe(topic, func(topic string, data interface{}) {
		payload, ok := data.([]byte)
		if !ok {
			l.logger.Warn("dropping notification", "topic", topic, "type", fmt.Sprintf("%T", data))
			return
		}
		handler(payload)
	})
	return unsubscribe, nil
}

func (l *Local) Close() error {
	return nil
}
