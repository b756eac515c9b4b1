package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

func testEvent(roomID uuid.UUID) Event {
	return Event{
		RoomID: roomID.String(),
		Frame: Frame{
			Type:        FrameTypeMessage,
			ID:          uuid.New(),
			RoomID:      roomID,
			SenderID:    uuid.New(),
			Body:        "hello",
			MessageType: enums.MessageTypeText,
			CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		},
	}
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for bus event")
	}
	return Event{}
}

func TestLocalBusDeliversUntilCancelled(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan Event, 4)
	require.NoError(t, bus.Subscribe(ctx, func(e Event) { got <- e }))

	event := testEvent(uuid.New())
	require.NoError(t, bus.Publish(context.Background(), event))
	assert.Equal(t, event.Frame.ID, recvEvent(t, got).Frame.ID)

	cancel()
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.handlers) == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Close())
	require.Error(t, bus.Publish(context.Background(), event))
}

func TestRedisBusFansOutAcrossSubscribers(t *testing.T) {
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	bus, err := NewRedisBus(redis.NewFromClient(raw), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first := make(chan Event, 4)
	second := make(chan Event, 4)
	require.NoError(t, bus.Subscribe(ctx, func(e Event) { first <- e }))
	require.NoError(t, bus.Subscribe(ctx, func(e Event) { second <- e }))

	event := testEvent(uuid.New())
	require.NoError(t, bus.Publish(ctx, event))

	a := recvEvent(t, first)
	b := recvEvent(t, second)
	assert.Equal(t, event.RoomID, a.RoomID)
	assert.Equal(t, event.Frame.ID, a.Frame.ID)
	assert.Equal(t, "hello", b.Frame.Body)
	assert.True(t, event.Frame.CreatedAt.Equal(b.Frame.CreatedAt))

	require.Error(t, bus.Publish(ctx, Event{}))
}

func TestHubHandlerSkipsRoomsWithoutLocalSockets(t *testing.T) {
	hub := NewHub(2, nil, nil)
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Subscribe(ctx, HubHandler(hub)))

	room := uuid.New()
	client := hub.Register(room, uuid.New())

	event := testEvent(room)
	require.NoError(t, bus.Publish(ctx, event))
	assert.Equal(t, event.Frame.ID, recvFrame(t, client.Outbound).ID)

	require.NoError(t, bus.Publish(ctx, testEvent(uuid.New())))
	assert.Empty(t, client.Outbound)
}
