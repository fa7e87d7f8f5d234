package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/logger"
)

func testClient(socketID string, userID uint) *Client {
	return NewClient(socketID, userID, nil)
}

func drain(t *testing.T, c *Client) []events.Event {
	t.Helper()
	var out []events.Event
	for {
		select {
		case frame := <-c.send:
			var ev events.Event
			require.NoError(t, json.Unmarshal(frame, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHubToChatReachesOnlyJoinedClients(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	b := testClient("s2", 2)
	c := testClient("s3", 3)
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)
	hub.Join(10, a)
	hub.Join(10, b)
	hub.Join(20, c)

	hub.ToChat(10, events.ChatDeleted(10))

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))
}

func TestHubToAllReachesEveryClient(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	b := testClient("s2", 2)
	hub.Register(a)
	hub.Register(b)

	hub.ToAll(events.UserKicked(1, 2))

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
}

func TestHubDeliveryPreservesEmissionOrder(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	hub.Register(a)
	hub.Join(10, a)

	hub.ToChat(10, events.ChatCreated(10, "first"))
	hub.ToChat(10, events.RoleChanged(10))
	hub.ToChat(10, events.ChatDeleted(10))

	got := drain(t, a)
	require.Len(t, got, 3)
	assert.Equal(t, events.TypeChatCreated, got[0].Type)
	assert.Equal(t, events.TypeRoleChanged, got[1].Type)
	assert.Equal(t, events.TypeChatDeleted, got[2].Type)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	hub.Register(a)
	hub.Join(10, a)
	hub.Leave(10, a)

	hub.ToChat(10, events.ChatDeleted(10))
	assert.Empty(t, drain(t, a))
}

func TestHubUnregisterRemovesFromAllGroups(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	hub.Register(a)
	hub.Join(10, a)
	hub.Join(20, a)
	hub.Unregister(a)

	// Channel is closed; broadcasts must not reach or panic.
	hub.ToChat(10, events.ChatDeleted(10))
	hub.ToChat(20, events.ChatDeleted(20))
	hub.ToAll(events.ChatDeleted(30))

	_, open := <-a.send
	assert.False(t, open)
}

func TestHubDropsEmptyGroups(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	b := testClient("s2", 2)
	hub.Register(a)
	hub.Register(b)
	hub.Join(10, a)
	hub.Join(10, b)
	hub.Join(20, a)

	groupCount := func() int {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.groups)
	}

	hub.Leave(10, a)
	assert.Equal(t, 2, groupCount())

	hub.Leave(10, b)
	assert.Equal(t, 1, groupCount())

	hub.Unregister(a)
	assert.Equal(t, 0, groupCount())
}

func TestHubUnregisterTwiceIsSafe(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	hub.Register(a)
	hub.Unregister(a)
	hub.Unregister(a)
}

func TestClientFullBufferDropsInsteadOfBlocking(t *testing.T) {
	a := testClient("s1", 1)
	frame := []byte(`{"type":"ChatDeleted"}`)
	for i := 0; i < sendBufferSize; i++ {
		a.enqueue(frame)
	}

	done := make(chan struct{})
	go func() {
		a.enqueue(frame) // 257th must drop, not block
		close(done)
	}()
	<-done

	assert.Len(t, a.send, sendBufferSize)
}

func TestMultiBroadcasterTees(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := testClient("s1", 1)
	b := testClient("s2", 2)
	hub.Register(a)
	hub.Register(b)
	hub.Join(10, a)

	second := NewHub(logger.Nop())
	c := testClient("s3", 3)
	second.Register(c)
	second.Join(10, c)

	multi := events.Multi(hub, second)
	multi.ToChat(10, events.ChatDeleted(10))

	assert.Len(t, drain(t, a), 1)
	assert.Empty(t, drain(t, b))
	assert.Len(t, drain(t, c), 1)
}
