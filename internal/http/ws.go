package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/exchange"
	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/observability"
	"github.com/example/ride-exchange/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// frame is the wire envelope in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsSender adapts a websocket connection to broadcast.Sender. Writes are
// serialized; the hub may emit from many goroutines at once.
type wsSender struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{id: uuid.NewString(), conn: conn}
}

func (s *wsSender) ID() string { return s.id }

func (s *wsSender) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(outFrame{Event: event, Data: payload})
}

// apply carries a coordinator Result onto the wire: room joins first, then
// events in order.
func (s *Server) apply(sender broadcast.Sender, res broadcast.Result) {
	for _, room := range res.Rooms {
		s.gateway.JoinRoom(sender, room)
	}
	for _, ev := range res.Events {
		if ev.ToCaller {
			s.gateway.EmitTo(sender, ev.Event, ev.Payload)
			continue
		}
		s.gateway.Emit(ev.Room, ev.Event, ev.Payload)
	}
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, channel session.Channel) (models.Identity, *wsSender, bool) {
	id, err := s.identity.FromRequest(r)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return models.Identity{}, nil, false
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return models.Identity{}, nil, false
	}
	observability.WSConnections.WithLabelValues(string(channel)).Inc()
	return id, newWSSender(conn), true
}

func (s *Server) teardown(sender *wsSender, channel session.Channel) {
	observability.WSConnections.WithLabelValues(string(channel)).Dec()
	s.gateway.Drop(sender)
	_ = sender.conn.Close()
}

// handleExchangeWS serves the matching channel: rider joins, cancels and
// driver selections.
func (s *Server) handleExchangeWS(w http.ResponseWriter, r *http.Request) {
	id, sender, ok := s.upgrade(w, r, session.ChannelExchange)
	if !ok {
		return
	}
	defer func() {
		s.exchange.Leave(id, sender.ID())
		s.teardown(sender, session.ChannelExchange)
	}()

	for {
		var f frame
		if err := sender.conn.ReadJSON(&f); err != nil {
			return
		}
		ctx := r.Context()
		switch f.Event {
		case "join":
			var intent exchange.JoinIntent
			if !s.decode(sender, f.Data, &intent) {
				continue
			}
			s.apply(sender, s.exchange.Join(ctx, id, intent, sender.ID()))
		case "cancel":
			s.apply(sender, s.exchange.Cancel(id))
		case "selrid":
			var sel struct {
				UserID  string `json:"userId"`
				CarType string `json:"carType"`
			}
			if !s.decode(sender, f.Data, &sel) {
				continue
			}
			s.apply(sender, s.exchange.Select(ctx, id, sel.UserID, sel.CarType))
		default:
			s.gateway.EmitTo(sender, "Failed", map[string]string{"msg": "Unknown event"})
		}
	}
}

// handleRideWS serves the ride-session channel: room join and arrival.
func (s *Server) handleRideWS(w http.ResponseWriter, r *http.Request) {
	id, sender, ok := s.upgrade(w, r, session.ChannelRide)
	if !ok {
		return
	}
	defer func() {
		s.rides.Leave(id, sender.ID(), session.ChannelRide)
		s.teardown(sender, session.ChannelRide)
	}()

	for {
		var f frame
		if err := sender.conn.ReadJSON(&f); err != nil {
			return
		}
		ctx := r.Context()
		var payload struct {
			ID string `json:"id"`
		}
		if !s.decode(sender, f.Data, &payload) {
			continue
		}
		switch f.Event {
		case "join":
			s.apply(sender, s.rides.Join(ctx, id, payload.ID, sender.ID(), session.ChannelRide))
		case "triggerarrived":
			s.apply(sender, s.rides.TriggerArrived(ctx, id, payload.ID))
		default:
			s.gateway.EmitTo(sender, "Failed", map[string]string{"msg": "Unknown event"})
		}
	}
}

// handleChatWS serves the ride chat channel.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	id, sender, ok := s.upgrade(w, r, session.ChannelChat)
	if !ok {
		return
	}
	defer func() {
		s.rides.Leave(id, sender.ID(), session.ChannelChat)
		s.teardown(sender, session.ChannelChat)
	}()

	for {
		var f frame
		if err := sender.conn.ReadJSON(&f); err != nil {
			return
		}
		ctx := r.Context()
		switch f.Event {
		case "join":
			var payload struct {
				ID string `json:"id"`
			}
			if !s.decode(sender, f.Data, &payload) {
				continue
			}
			s.apply(sender, s.rides.Join(ctx, id, payload.ID, sender.ID(), session.ChannelChat))
		case "chat":
			var payload struct {
				ID      string `json:"id"`
				Message string `json:"message"`
			}
			if !s.decode(sender, f.Data, &payload) {
				continue
			}
			s.apply(sender, s.rides.PostChat(ctx, id, payload.ID, payload.Message))
		default:
			s.gateway.EmitTo(sender, "Failed", map[string]string{"msg": "Unknown event"})
		}
	}
}

func (s *Server) decode(sender *wsSender, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		// Empty data is a valid frame for events that carry no payload.
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.gateway.EmitTo(sender, "Failed", map[string]string{"msg": "Invalid payload"})
		return false
	}
	return true
}
