package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
)

func recvFrame(t *testing.T, ch <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return Frame{}
}

func TestHubBroadcastReachesEveryParticipant(t *testing.T) {
	hub := NewHub(4, nil, nil)
	room := uuid.New()
	buyer, seller := uuid.New(), uuid.New()

	a := hub.Register(room, buyer)
	b := hub.Register(room, seller)
	other := hub.Register(uuid.New(), buyer)

	frame := Frame{Type: FrameTypeMessage, ID: uuid.New(), RoomID: room}
	assert.Equal(t, 2, hub.Broadcast(room, frame))
	assert.Equal(t, frame.ID, recvFrame(t, a.Outbound).ID)
	assert.Equal(t, frame.ID, recvFrame(t, b.Outbound).ID)
	assert.Empty(t, other.Outbound)

	assert.Equal(t, 0, hub.Broadcast(uuid.New(), frame))
}

func TestHubEvictsOnlyTheFailingSocket(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMarketplaceMetrics(reg)
	hub := NewHub(1, m, nil)
	room := uuid.New()

	slow := hub.Register(room, uuid.New())
	fast := hub.Register(room, uuid.New())
	require.Equal(t, 2, hub.Connected(room))

	hub.Broadcast(room, Frame{ID: uuid.New()})
	recvFrame(t, fast.Outbound)

	// slow never drained its single-slot queue
	delivered := hub.Broadcast(room, Frame{ID: uuid.New()})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, hub.Connected(room))
	recvFrame(t, fast.Outbound)

	select {
	case <-slow.Done():
	default:
		t.Fatalf("evicted client should be closed")
	}

	assert.EqualValues(t, 1, gaugeValue(t, reg, "chat_ws_connections"))
}

func TestHubRegisterReplacesPreviousSocket(t *testing.T) {
	hub := NewHub(2, nil, nil)
	room, user := uuid.New(), uuid.New()

	first := hub.Register(room, user)
	second := hub.Register(room, user)
	assert.Equal(t, 1, hub.Connected(room))

	select {
	case <-first.Done():
	default:
		t.Fatalf("replaced client should be closed")
	}

	// the stale handle must not unregister its replacement
	hub.Unregister(first)
	assert.Equal(t, 1, hub.Connected(room))

	hub.Unregister(second)
	hub.Unregister(second)
	assert.False(t, hub.HasRoom(room))
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("%s not registered", name)
	return 0
}
