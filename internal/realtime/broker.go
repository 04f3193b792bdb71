package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeliverFunc hands a broadcast to the local hub.
type DeliverFunc func(room string, payload []byte)

// Broker carries broadcasts to every hub that should see them.
type Broker interface {
	// Start begins delivering published messages to deliver.
	Start(deliver DeliverFunc) error
	Publish(ctx context.Context, room string, payload []byte) error
	Close() error
}

// localBroker delivers in-process only.
type localBroker struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func (b *localBroker) Start(deliver DeliverFunc) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *localBroker) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(room, payload)
	}
	return nil
}

func (b *localBroker) Close() error { return nil }

// RedisBroker fans broadcasts out through a Redis pub/sub channel so several
// server processes share rooms. Every process, including the publisher,
// receives messages through its subscription.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

type envelope struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// NewRedisBroker connects to the Redis server at url and verifies it answers.
func NewRedisBroker(ctx context.Context, url, channel string, logger *zap.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid message queue URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("message queue unreachable: %w", err)
	}

	return &RedisBroker{
		client:  client,
		channel: channel,
		logger:  logger.Named("redis_broker"),
	}, nil
}

func (b *RedisBroker) Start(deliver DeliverFunc) error {
	ctx := context.Background()
	b.pubsub = b.client.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := b.pubsub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ch {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("Dropping malformed broadcast", zap.Error(err))
				continue
			}
			deliver(env.Room, env.Payload)
		}
	}()
	return nil
}

func (b *RedisBroker) Publish(ctx context.Context, room string, payload []byte) error {
	data, err := json.Marshal(envelope{Room: room, Payload: payload})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBroker) Close() error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	b.wg.Wait()
	return b.client.Close()
}
