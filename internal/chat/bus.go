package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

// Event carries one persisted message to every instance serving its room.
type Event struct {
	RoomID string `json:"room_id"`
	Frame  Frame  `json:"frame"`
}

// Bus fans chat events out across API instances. Each instance subscribes
// once and hands events to its local Hub.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, handler func(Event)) error
	Close() error
}

// HubHandler delivers bus events to the sockets registered on hub.
func HubHandler(hub *Hub) func(Event) {
	return func(event Event) {
		if !hub.HasRoom(event.Frame.RoomID) {
			return
		}
		hub.Broadcast(event.Frame.RoomID, event.Frame)
	}
}

// LocalBus delivers events in process. It serves tests and single-instance
// deployments without Redis.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Event)
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("chat bus closed")
	}
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe registers handler until ctx is cancelled.
func (b *LocalBus) Subscribe(ctx context.Context, handler func(Event)) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("chat bus closed")
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]func(Event))
	return nil
}

// RedisBus publishes each event on its room channel and pattern-subscribes to
// every room channel. The Redis client is owned by the caller.
type RedisBus struct {
	rdb  *goredis.Client
	logg *logger.Logger

	mu   sync.Mutex
	subs []*goredis.PubSub
}

func NewRedisBus(client *redis.Client, logg *logger.Logger) (*RedisBus, error) {
	if client == nil || client.Raw() == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisBus{rdb: client.Raw(), logg: logg}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if event.RoomID == "" {
		return fmt.Errorf("event room id required")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode chat event: %w", err)
	}
	return b.rdb.Publish(ctx, redis.ChatRoomChannel(event.RoomID), raw).Err()
}

// Subscribe starts a forwarder goroutine that runs until ctx is cancelled or
// the bus is closed. It returns once the subscription is confirmed.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(Event)) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}

	sub := b.rdb.PSubscribe(ctx, redis.ChatRoomPattern())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				roomID, ok := redis.RoomIDFromChannel(m.Channel)
				if !ok {
					continue
				}
				var event Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					if b.logg != nil {
						b.logg.Error(b.logg.WithRoomID(context.Background(), roomID), "chat.bus.bad_payload", err)
					}
					continue
				}
				event.RoomID = roomID
				handler(event)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	var err error
	for _, sub := range subs {
		if cerr := sub.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
