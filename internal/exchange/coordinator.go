package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/observability"
	"github.com/example/ride-exchange/internal/registry"
	"github.com/example/ride-exchange/internal/session"
	"github.com/example/ride-exchange/internal/storage"
)

const msgAlreadyInRide = "You are already in a ride!"

// EventPublisher receives ride lifecycle records, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

// Room keys for the exchange channel. Drivers of one vehicle class share a
// deciding room; each waiting rider has their own.
func WaitingRoom(riderID string) string       { return riderID + "-WAITING" }
func DecidingRoom(vehicleClass string) string { return vehicleClass + "-DECIDING" }

// JoinIntent is the payload of a rider's exchange join. Drivers join with an
// empty intent; their vehicle class comes from their identity.
type JoinIntent struct {
	Destination     models.Coord `json:"address"`
	DestinationText string       `json:"textAddress"`
	Pickup          models.Coord `json:"pickup"`
	NowOrLater      string       `json:"nowOrLater"`
	Time            string       `json:"time"`
	VehicleClass    string       `json:"carType"`
}

// Coordinator owns the join/cancel/select protocol. Methods are synchronous
// and return the rooms to join and events to deliver; the transport applies
// them, so the protocol is unit-testable without any connection in sight.
type Coordinator struct {
	pending  *registry.Pending
	store    storage.RideStore
	sessions *session.Directory
	events   EventPublisher
	logger   *slog.Logger
}

func NewCoordinator(pending *registry.Pending, store storage.RideStore, sessions *session.Directory, events EventPublisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{pending: pending, store: store, sessions: sessions, events: events, logger: logger}
}

// Join admits a caller to the exchange. Drivers get the current pending
// snapshot for their class; riders get queued and broadcast to the deciding
// room. Both are refused while they have an active (unarrived) ride.
func (c *Coordinator) Join(ctx context.Context, id models.Identity, intent JoinIntent, sessionID string) broadcast.Result {
	if id.IsDriver() {
		return c.joinDriver(ctx, id, sessionID)
	}
	return c.joinRider(ctx, id, intent, sessionID)
}

func (c *Coordinator) joinDriver(ctx context.Context, id models.Identity, sessionID string) broadcast.Result {
	if res, blocked := c.activeRideGuard(ctx, id); blocked {
		return res
	}
	c.sessions.Register(session.ChannelExchange, id.ID, sessionID)
	snapshot := c.pending.PeekAll(id.VehicleClass)
	return broadcast.Result{
		Rooms: []string{DecidingRoom(id.VehicleClass)},
		Events: []broadcast.Outbound{{
			ToCaller: true,
			Event:    "pending",
			Payload:  map[string]any{"requests": snapshot},
		}},
	}
}

func (c *Coordinator) joinRider(ctx context.Context, id models.Identity, intent JoinIntent, sessionID string) broadcast.Result {
	if res, blocked := c.activeRideGuard(ctx, id); blocked {
		return res
	}
	requestedTime := "now"
	if intent.NowOrLater != "" && intent.NowOrLater != "now" {
		requestedTime = intent.Time
	} else if intent.Time != "" && intent.Time != "now" {
		// A "now" request must not carry an explicit time.
		return broadcast.Result{Events: []broadcast.Outbound{
			broadcast.Failed("You can't define the time when you are requesting a ride for now!"),
		}}
	}

	req := models.RideRequest{
		RiderID:         id.ID,
		VehicleClass:    intent.VehicleClass,
		Pickup:          intent.Pickup,
		Destination:     intent.Destination,
		DestinationText: intent.DestinationText,
		RequestedTime:   requestedTime,
	}
	if err := c.pending.Enqueue(req); err != nil {
		if errors.Is(err, registry.ErrAlreadyQueued) {
			return broadcast.Result{Events: []broadcast.Outbound{
				broadcast.Failed("You already have a pending ride request!"),
			}}
		}
		c.logger.Error("enqueue failed", "rider", id.ID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}
	}

	c.sessions.Register(session.ChannelExchange, id.ID, sessionID)
	observability.RequestsPending.Inc()
	c.publish(ctx, models.RideEvent{
		Type: "requested", RiderID: id.ID, VehicleClass: req.VehicleClass, At: time.Now(),
	})

	return broadcast.Result{
		Rooms: []string{WaitingRoom(id.ID)},
		Events: []broadcast.Outbound{{
			Room:    DecidingRoom(req.VehicleClass),
			Event:   "giveride",
			Payload: req,
		}},
	}
}

// Cancel withdraws the caller's pending request. A driver caller and a rider
// with nothing queued are both deliberate no-ops.
func (c *Coordinator) Cancel(id models.Identity) broadcast.Result {
	if id.IsDriver() {
		return broadcast.Result{}
	}
	if c.pending.CancelByRider(id.ID) {
		observability.RequestsPending.Dec()
	}
	return broadcast.Result{}
}

// Select matches the calling driver with a waiting rider. The dequeue is the
// linearization point: of two drivers racing for the same rider exactly one
// gets the request, the other sees it gone and backs off silently.
func (c *Coordinator) Select(ctx context.Context, id models.Identity, riderID, vehicleClass string) broadcast.Result {
	if !id.IsDriver() {
		return broadcast.Result{}
	}
	req, err := c.pending.Dequeue(vehicleClass, riderID)
	if err != nil {
		// Already matched or cancelled; expected under races, not an error.
		return broadcast.Result{}
	}
	observability.RequestsPending.Dec()

	ride := &models.Ride{
		DriverID:        id.ID,
		RiderID:         req.RiderID,
		Pickup:          req.Pickup,
		Destination:     req.Destination,
		DestinationText: req.DestinationText,
		RequestedTime:   req.RequestedTime,
		Chat:            []models.ChatEntry{},
	}
	rideID, err := c.store.Create(ctx, ride)
	if err != nil {
		c.logger.Error("ride create failed", "driver", id.ID, "rider", riderID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}
	}

	observability.MatchesTotal.Inc()
	c.publish(ctx, models.RideEvent{
		Type: "matched", RideID: rideID, RiderID: req.RiderID, DriverID: id.ID,
		VehicleClass: vehicleClass, At: time.Now(),
	})

	return broadcast.Result{Events: []broadcast.Outbound{
		{Room: WaitingRoom(req.RiderID), Event: "gotride", Payload: map[string]string{"rideId": rideID}},
		{ToCaller: true, Event: "redirect", Payload: map[string]string{"url": fmt.Sprintf("/ride/%s", rideID)}},
	}}
}

// Leave clears the caller's exchange session entry on disconnect. The
// pending request, if any, stays queued; only an explicit cancel removes it.
func (c *Coordinator) Leave(id models.Identity, sessionID string) {
	c.sessions.Remove(session.ChannelExchange, id.ID, sessionID)
}

func (c *Coordinator) activeRideGuard(ctx context.Context, id models.Identity) (broadcast.Result, bool) {
	var err error
	if id.IsDriver() {
		_, err = c.store.FindActiveByDriver(ctx, id.ID)
	} else {
		_, err = c.store.FindActiveByRider(ctx, id.ID)
	}
	if err == nil {
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed(msgAlreadyInRide)}}, true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.logger.Error("active ride lookup failed", "user", id.ID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}, true
	}
	return broadcast.Result{}, false
}

func (c *Coordinator) publish(ctx context.Context, ev models.RideEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.Warn("lifecycle publish failed", "type", ev.Type, "error", err)
	}
}
