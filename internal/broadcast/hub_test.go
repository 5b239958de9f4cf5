package broadcast

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Event   string
	Payload any
}

// fakeSender records everything sent at it; optionally fails every send.
type fakeSender struct {
	id   string
	fail bool
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeSender) ID() string { return f.id }

func (f *fakeSender) Send(event string, payload any) error {
	if f.fail {
		return errors.New("gone")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{event, payload})
	return nil
}

func (f *fakeSender) events() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.seen...)
}

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEmitReachesAllMembersInOrder(t *testing.T) {
	h := testHub()
	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.JoinRoom(a, "sedan-DECIDING")
	h.JoinRoom(b, "sedan-DECIDING")

	h.Emit("sedan-DECIDING", "giveride", 1)
	h.Emit("sedan-DECIDING", "giveride", 2)

	for _, s := range []*fakeSender{a, b} {
		evs := s.events()
		require.Len(t, evs, 2)
		assert.Equal(t, 1, evs[0].Payload)
		assert.Equal(t, 2, evs[1].Payload)
	}
}

func TestEmitDoesNotCrossRooms(t *testing.T) {
	h := testHub()
	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	h.JoinRoom(a, "r1-WAITING")
	h.JoinRoom(b, "r2-WAITING")

	h.Emit("r1-WAITING", "gotride", nil)

	assert.Len(t, a.events(), 1)
	assert.Empty(t, b.events())
}

func TestDeadMemberIsDropped(t *testing.T) {
	h := testHub()
	dead := &fakeSender{id: "dead", fail: true}
	live := &fakeSender{id: "live"}
	h.JoinRoom(dead, "room")
	h.JoinRoom(live, "room")

	h.Emit("room", "refresh", nil)

	assert.Equal(t, 1, h.RoomSize("room"))
	assert.Len(t, live.events(), 1)
}

func TestDropRemovesFromEveryRoom(t *testing.T) {
	h := testHub()
	s := &fakeSender{id: "s"}
	h.JoinRoom(s, "a")
	h.JoinRoom(s, "b")

	h.Drop(s)

	assert.Zero(t, h.RoomSize("a"))
	assert.Zero(t, h.RoomSize("b"))
}

func TestLeaveRoomKeepsOtherMembership(t *testing.T) {
	h := testHub()
	s := &fakeSender{id: "s"}
	h.JoinRoom(s, "a")
	h.JoinRoom(s, "b")

	h.LeaveRoom(s, "a")

	assert.Zero(t, h.RoomSize("a"))
	assert.Equal(t, 1, h.RoomSize("b"))
}

func TestEmitToUnicast(t *testing.T) {
	h := testHub()
	s := &fakeSender{id: "s"}
	h.EmitTo(s, "redirect", map[string]string{"url": "/ride/1"})
	require.Len(t, s.events(), 1)
	assert.Equal(t, "redirect", s.events()[0].Event)
}
