package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "ride-exchange:events"

type bridgeFrame struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge is a Gateway that mirrors every room emit onto a Redis pub/sub
// channel and replays emits from peer server instances into the local hub.
// Room membership stays local to each instance; only events cross the wire.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
	origin string
	logger *slog.Logger
}

func NewRedisBridge(hub *Hub, client *redis.Client, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{hub: hub, client: client, origin: uuid.NewString(), logger: logger}
}

func (b *RedisBridge) JoinRoom(s Sender, room string)  { b.hub.JoinRoom(s, room) }
func (b *RedisBridge) LeaveRoom(s Sender, room string) { b.hub.LeaveRoom(s, room) }
func (b *RedisBridge) Drop(s Sender)                   { b.hub.Drop(s) }

func (b *RedisBridge) EmitTo(s Sender, event string, payload any) {
	b.hub.EmitTo(s, event, payload)
}

func (b *RedisBridge) Emit(room, event string, payload any) {
	b.hub.Emit(room, event, payload)
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("bridge payload marshal failed", "event", event, "error", err)
		return
	}
	frame, _ := json.Marshal(bridgeFrame{Origin: b.origin, Room: room, Event: event, Payload: raw})
	if err := b.client.Publish(context.Background(), bridgeChannel, frame).Err(); err != nil {
		// Peers miss this event; local delivery already happened.
		b.logger.Warn("bridge publish failed", "room", room, "event", event, "error", err)
	}
}

// Run subscribes to the bridge channel and applies peer emits to the local
// hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, bridgeChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var f bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.logger.Warn("bridge frame decode failed", "error", err)
				continue
			}
			if f.Origin == b.origin {
				continue
			}
			b.hub.Emit(f.Room, f.Event, f.Payload)
		}
	}
}
