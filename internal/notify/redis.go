package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docstore/internal/config"
	"docstore/internal/files"
)

// channelPrefix namespaces docstore topics on a shared server.
const channelPrefix = "docstore:"

// Redis delivers to every process subscribed on the same server.
type Redis struct {
	client *redis.Client
	logger files.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
}

var _ Notifier = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.NotifyConfig, logger files.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, logger: logger}, nil
}

// Channel returns the redis channel used for topic.
func Channel(topic string) string {
	return channelPrefix + topic
}

func (r *Redis) Publish(ctx context.Context, topic string, msg any) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, Channel(topic), data).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Subscribe waits for the server to confirm the subscription, so messages
// published after it returns are delivered.
func (r *Redis) Subscribe(topic string, handler func(payload []byte)) (func(), error) {
	ctx := context.Background()
	ps := r.client.Subscribe(ctx, Channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, ps)
	r.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			handler([]byte(msg.Payload))
		}
		r.logger.Debug("notification subscription closed", "topic", topic)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				r.logger.Warn("closing subscription", "topic", topic, "error", err)
			}
		})
	}, nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, ps := range subs {
		ps.Close()
	}
	return r.client.Close()
}
