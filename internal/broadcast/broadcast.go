package broadcast

// Sender is one end of a persistent client connection. The hub only needs to
// push named events at it; the transport behind it (websocket in production,
// an in-process fake in tests) is its own business.
type Sender interface {
	ID() string
	Send(event string, payload any) error
}

// Gateway multiplexes connections into rooms and fans events out to them.
// Rooms are plain addressing labels; they have no storage of their own.
type Gateway interface {
	JoinRoom(s Sender, room string)
	LeaveRoom(s Sender, room string)
	// Drop removes the sender from every room it joined.
	Drop(s Sender)
	// Emit delivers the event to every current member of the room. Within
	// one room, delivery order follows call order.
	Emit(room, event string, payload any)
	// EmitTo delivers the event to a single connection.
	EmitTo(s Sender, event string, payload any)
}

// Outbound is one event a coordinator wants delivered. Room targets a
// fan-out; ToCaller targets the connection that issued the intent.
type Outbound struct {
	Room     string
	ToCaller bool
	Event    string
	Payload  any
}

// Result is what coordinator methods hand back to the transport layer:
// rooms the caller's connection should be joined to, and events to deliver.
// Keeping this a plain value keeps the business logic free of transport
// concerns.
type Result struct {
	Rooms  []string
	Events []Outbound
}

// Failed builds the error event reported back to a caller whose intent was
// rejected. Guard failures never crash the session; they surface as this.
func Failed(msg string) Outbound {
	return Outbound{ToCaller: true, Event: "Failed", Payload: map[string]string{"msg": msg}}
}
