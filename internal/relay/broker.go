package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrBrokerClosed is returned by a closed broker.
var ErrBrokerClosed = errors.New("broker closed")

// DeliveryHandler receives encoded transport.Delivery packets of one scene.
type DeliveryHandler func(data []byte)

// Broker fans deliveries out to every relay instance that serves a scene.
type Broker interface {
	Publish(ctx context.Context, sceneID string, data []byte) error
	Subscribe(ctx context.Context, sceneID string, handler DeliveryHandler) (unsubscribe func(), err error)
	Close() error
}

// LocalBroker delivers in process. It serves a single relay instance.
type LocalBroker struct {
	subs   map[string]map[uint64]DeliveryHandler
	nextID uint64
	mu     sync.RWMutex
	closed bool
}

// NewLocalBroker создает брокер в памяти процесса.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[uint64]DeliveryHandler)}
}

// Publish calls every subscriber of the scene synchronously.
func (b *LocalBroker) Publish(ctx context.Context, sceneID string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	handlers := make([]DeliveryHandler, 0, len(b.subs[sceneID]))
	for _, h := range b.subs[sceneID] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers handler for the scene.
func (b *LocalBroker) Subscribe(ctx context.Context, sceneID string, handler DeliveryHandler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	b.nextID++
	id := b.nextID
	if b.subs[sceneID] == nil {
		b.subs[sceneID] = make(map[uint64]DeliveryHandler)
	}
	b.subs[sceneID][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs[sceneID], id)
		if len(b.subs[sceneID]) == 0 {
			delete(b.subs, sceneID)
		}
	}, nil
}

// Close drops all subscriptions.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[string]map[uint64]DeliveryHandler)
	return nil
}

// RedisBroker shares deliveries between relay instances through Redis pub/sub.
// Every scene is a channel named prefix + scene id.
type RedisBroker struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// DefaultChannelPrefix is the Redis channel prefix used by NewRedisBroker.
const DefaultChannelPrefix = "scenesync:scene:"

// NewRedisBroker connects to Redis at addr and checks the connection.
func NewRedisBroker(ctx context.Context, addr string, logger *slog.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	return NewRedisBrokerWithClient(client, DefaultChannelPrefix, logger), nil
}

// NewRedisBrokerWithClient wraps an existing client.
func NewRedisBrokerWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, prefix: prefix, logger: logger}
}

func (b *RedisBroker) channel(sceneID string) string {
	return b.prefix + sceneID
}

// Publish sends data to the scene channel.
func (b *RedisBroker) Publish(ctx context.Context, sceneID string, data []byte) error {
	if err := b.client.Publish(ctx, b.channel(sceneID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe starts a goroutine that forwards channel messages to handler
// until unsubscribe is called.
func (b *RedisBroker) Subscribe(ctx context.Context, sceneID string, handler DeliveryHandler) (func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(sceneID))

	// Ждем подтверждения подписки, иначе первые сообщения могут потеряться
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	messages := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			handler([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				b.logger.Warn("Error closing redis subscription", "scene", sceneID, "error", err)
			}
			<-done
		})
	}, nil
}

// Close closes the Redis client.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
