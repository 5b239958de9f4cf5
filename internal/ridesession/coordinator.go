package ridesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/notify"
	"github.com/example/ride-exchange/internal/observability"
	"github.com/example/ride-exchange/internal/session"
	"github.com/example/ride-exchange/internal/storage"
)

const msgInvalidRide = "Invalid ride!"

// Fare bounds for the placeholder invoice amount.
const (
	FareMin = 1
	FareMax = 100
)

// EventPublisher receives ride lifecycle records, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

// Coordinator mediates a matched ride: chat, arrival, invoicing. The ride id
// doubles as the room key for both the ride and chat channels.
type Coordinator struct {
	store    storage.RideStore
	sessions *session.Directory
	notifier notify.Notifier
	events   EventPublisher
	logger   *slog.Logger

	// Fare computes the invoice amount. Overridable in tests; defaults to a
	// uniform random value in [FareMin, FareMax].
	Fare func() int
}

func NewCoordinator(store storage.RideStore, sessions *session.Directory, notifier notify.Notifier, events EventPublisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		events:   events,
		logger:   logger,
		Fare:     func() int { return FareMin + rand.Intn(FareMax-FareMin+1) },
	}
}

// Join admits a party to the ride's room on the given channel. Anyone who is
// neither the ride's driver nor its rider is refused.
func (c *Coordinator) Join(ctx context.Context, id models.Identity, rideID, sessionID string, ch session.Channel) broadcast.Result {
	if _, res, ok := c.partyRide(ctx, id, rideID); !ok {
		return res
	}
	c.sessions.Register(ch, id.ID, sessionID)
	return broadcast.Result{Rooms: []string{rideID}}
}

// PostChat appends the message to the ride's chat log under the sender's
// role and tells the room to re-fetch.
func (c *Coordinator) PostChat(ctx context.Context, id models.Identity, rideID, message string) broadcast.Result {
	if _, res, ok := c.partyRide(ctx, id, rideID); !ok {
		return res
	}
	entry := models.ChatEntry{Sender: id.Role, Message: message}
	if err := c.store.AppendChat(ctx, rideID, entry); err != nil {
		c.logger.Error("chat append failed", "ride", rideID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}
	}
	observability.ChatMessagesTotal.Inc()
	return broadcast.Result{Events: []broadcast.Outbound{
		{Room: rideID, Event: "refresh", Payload: map[string]any{}},
	}}
}

// TriggerArrived completes the ride: computes the fare, flips arrived, and
// invoices the rider. Only the ride's driver may trigger it; a second
// trigger is rejected so the invoiced amount never changes.
func (c *Coordinator) TriggerArrived(ctx context.Context, id models.Identity, rideID string) broadcast.Result {
	ride, err := c.store.Get(ctx, rideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed(msgInvalidRide)}}
		}
		c.logger.Error("ride lookup failed", "ride", rideID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}
	}
	if ride.DriverID != id.ID {
		// Non-drivers cannot complete a ride.
		return broadcast.Result{}
	}

	cost := c.Fare()
	if err := c.store.SetArrived(ctx, rideID, cost); err != nil {
		if errors.Is(err, storage.ErrAlreadyArrived) {
			return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Ride already completed!")}}
		}
		c.logger.Error("set arrived failed", "ride", rideID, "error", err)
		return broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed("Something went wrong")}}
	}

	observability.ArrivalsTotal.Inc()
	c.publish(ctx, models.RideEvent{
		Type: "arrived", RideID: rideID, RiderID: ride.RiderID, DriverID: ride.DriverID,
		Cost: cost, At: time.Now(),
	})

	// Best-effort invoice mail; a delivery failure must not undo arrival.
	if c.notifier != nil {
		body := fmt.Sprintf("Hello! You owe %d$ to your driver!", cost)
		if err := c.notifier.Notify(ctx, ride.RiderID, "Ride completed!", body); err != nil {
			c.logger.Warn("invoice notification failed", "ride", rideID, "rider", ride.RiderID, "error", err)
		}
	}

	return broadcast.Result{Events: []broadcast.Outbound{
		{Room: rideID, Event: "refresh", Payload: map[string]any{}},
	}}
}

// Leave clears the caller's session entry for the channel on disconnect.
func (c *Coordinator) Leave(id models.Identity, sessionID string, ch session.Channel) {
	c.sessions.Remove(ch, id.ID, sessionID)
}

func (c *Coordinator) partyRide(ctx context.Context, id models.Identity, rideID string) (*models.Ride, broadcast.Result, bool) {
	ride, err := c.store.Get(ctx, rideID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Error("ride lookup failed", "ride", rideID, "error", err)
		}
		return nil, broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed(msgInvalidRide)}}, false
	}
	if ride.DriverID != id.ID && ride.RiderID != id.ID {
		return nil, broadcast.Result{Events: []broadcast.Outbound{broadcast.Failed(msgInvalidRide)}}, false
	}
	return ride, broadcast.Result{}, true
}

func (c *Coordinator) publish(ctx context.Context, ev models.RideEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, ev); err != nil {
		c.logger.Warn("lifecycle publish failed", "type", ev.Type, "error", err)
	}
}
