package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/dinevoice/internal/transport"
)

var ErrTooManySubscribers = errors.New("too many session subscribers")

const (
	sessionEventsChannel = "voice:session:%s:events"

	subscriberBuffer = 64
	maxSubscribers   = 10000
	publishTimeout   = 2 * time.Second
)

// Bridge fans host events out through Redis pub/sub so that any replica of
// the service can stream a session's events to its subscribers.
type Bridge struct {
	redis  *redis.Client
	logger *slog.Logger

	mu   sync.Mutex
	subs map[int64]context.CancelFunc
	next int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBridge(redisClient *redis.Client, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		redis:  redisClient,
		logger: logger.With("component", "bridge"),
		subs:   make(map[int64]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Bridge) Publish(ctx context.Context, msg *transport.SessionMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal session message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	channel := fmt.Sprintf(sessionEventsChannel, msg.SessionID)
	if err := b.redis.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish session message: %w", err)
	}

	b.logger.Debug("published session message",
		"session_id", msg.SessionID,
		"type", msg.Type)
	return nil
}

// Subscribe streams the session's messages until ctx is done or the bridge
// closes; the returned channel is closed then. The subscription is active
// by the time Subscribe returns.
func (b *Bridge) Subscribe(ctx context.Context, sessionID string) (<-chan *transport.SessionMessage, error) {
	b.mu.Lock()
	if len(b.subs) >= maxSubscribers {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySubscribers, maxSubscribers)
	}
	subCtx, cancel := context.WithCancel(ctx)
	id := b.next
	b.next++
	b.subs[id] = cancel
	b.mu.Unlock()

	stop := context.AfterFunc(b.ctx, cancel)

	channel := fmt.Sprintf(sessionEventsChannel, sessionID)
	pubsub := b.redis.Subscribe(subCtx, channel)
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		stop()
		b.release(id)
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	// A blocked ReceiveMessage only returns once the pubsub is closed.
	unblock := context.AfterFunc(subCtx, func() { _ = pubsub.Close() })

	out := make(chan *transport.SessionMessage, subscriberBuffer)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer stop()
		defer b.release(id)
		defer func() {
			unblock()
			_ = pubsub.Close()
		}()
		b.receive(subCtx, pubsub, sessionID, out)
	}()

	b.logger.Debug("subscribed to session events", "session_id", sessionID, "channel", channel)
	return out, nil
}

func (b *Bridge) receive(ctx context.Context, pubsub *redis.PubSub, sessionID string, out chan<- *transport.SessionMessage) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Error("receive session message", "error", err, "session_id", sessionID)
			}
			return
		}

		var sm transport.SessionMessage
		if err := json.Unmarshal([]byte(msg.Payload), &sm); err != nil {
			b.logger.Error("unmarshal session message", "error", err, "session_id", sessionID)
			continue
		}

		select {
		case out <- &sm:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) release(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.subs[id]; ok {
		cancel()
		delete(b.subs, id)
	}
}

func (b *Bridge) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bridge) Ping(ctx context.Context) error {
	return b.redis.Ping(ctx).Err()
}

func (b *Bridge) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
