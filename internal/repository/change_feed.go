package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Change topics published after successful writes.
const (
	TopicStudents   = "students"
	TopicAttendance = "attendance"
)

// ChangeFeed announces that a collection changed so observers can re-read it.
// Notifications carry no payload; subscribers always reload the full collection.
type ChangeFeed interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, error)
}

// LocalChangeFeed fans notifications out to subscribers in this process.
type LocalChangeFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewLocalChangeFeed constructs an in-process change feed.
func NewLocalChangeFeed() *LocalChangeFeed {
	return &LocalChangeFeed{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscriber of topic. Pending signals are coalesced.
func (f *LocalChangeFeed) Publish(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[topic] {
		signal(ch)
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled.
func (f *LocalChangeFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	f.mu.Lock()
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[chan struct{}]struct{})
	}
	f.subs[topic][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[topic], ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// RedisChangeFeed shares notifications between processes through Redis pub/sub.
type RedisChangeFeed struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisChangeFeed builds a Redis-backed change feed using channel prefix.
func NewRedisChangeFeed(client *redis.Client, prefix string, logger *zap.Logger) *RedisChangeFeed {
	if prefix == "" {
		prefix = "rollcall:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisChangeFeed{client: client, prefix: prefix, logger: logger}
}

func (f *RedisChangeFeed) channel(topic string) string {
	return fmt.Sprintf("%s:%s", f.prefix, topic)
}

// Publish announces a change on topic.
func (f *RedisChangeFeed) Publish(ctx context.Context, topic string) error {
	if err := f.client.Publish(ctx, f.channel(topic), "changed").Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe relays Redis messages for topic until ctx is cancelled.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					f.logger.Warn("change feed subscription closed", zap.String("topic", topic))
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
