package ridesession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/session"
	"github.com/example/ride-exchange/internal/storage"
)

type fakeNotifier struct {
	fail    bool
	userID  string
	subject string
	body    string
	calls   int
}

func (f *fakeNotifier) Notify(_ context.Context, userID, subject, body string) error {
	f.calls++
	f.userID, f.subject, f.body = userID, subject, body
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*Coordinator, *storage.MemoryStore, *fakeNotifier, string) {
	t.Helper()
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{}
	c := NewCoordinator(store, session.NewDirectory(), notifier, nil, testLogger())
	rideID, err := store.Create(context.Background(), &models.Ride{
		DriverID: "d1", RiderID: "r1", Chat: []models.ChatEntry{},
	})
	if err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return c, store, notifier, rideID
}

func driver(id string) models.Identity {
	return models.Identity{ID: id, Role: models.RoleDriver, VehicleClass: "sedan"}
}

func rider(id string) models.Identity {
	return models.Identity{ID: id, Role: models.RoleRider}
}

func findEvent(res broadcast.Result, name string) (broadcast.Outbound, bool) {
	for _, ev := range res.Events {
		if ev.Event == name {
			return ev, true
		}
	}
	return broadcast.Outbound{}, false
}

func TestJoinAdmitsParties(t *testing.T) {
	c, _, _, rideID := setup(t)
	ctx := context.Background()

	for _, id := range []models.Identity{driver("d1"), rider("r1")} {
		res := c.Join(ctx, id, rideID, "sess", session.ChannelRide)
		if len(res.Rooms) != 1 || res.Rooms[0] != rideID {
			t.Fatalf("%s: expected ride room, got %+v", id.ID, res)
		}
	}
}

func TestJoinRefusesStrangers(t *testing.T) {
	c, _, _, rideID := setup(t)
	res := c.Join(context.Background(), rider("stranger"), rideID, "sess", session.ChannelChat)
	if _, ok := findEvent(res, "Failed"); !ok || len(res.Rooms) != 0 {
		t.Fatalf("stranger admitted: %+v", res)
	}
}

func TestJoinUnknownRide(t *testing.T) {
	c, _, _, _ := setup(t)
	res := c.Join(context.Background(), rider("r1"), "missing", "sess", session.ChannelRide)
	ev, ok := findEvent(res, "Failed")
	if !ok {
		t.Fatalf("expected Failed, got %+v", res)
	}
	if msg := ev.Payload.(map[string]string)["msg"]; msg != "Invalid ride!" {
		t.Fatalf("wrong message: %s", msg)
	}
}

func TestPostChatAppendsAndRefreshes(t *testing.T) {
	c, store, _, rideID := setup(t)
	ctx := context.Background()

	res := c.PostChat(ctx, driver("d1"), rideID, "on my way")
	ev, ok := findEvent(res, "refresh")
	if !ok || ev.Room != rideID {
		t.Fatalf("expected refresh to ride room, got %+v", res.Events)
	}

	ride, _ := store.Get(ctx, rideID)
	if len(ride.Chat) != 1 {
		t.Fatalf("expected one chat entry, got %d", len(ride.Chat))
	}
	if e := ride.Chat[0]; e.Sender != models.RoleDriver || e.Message != "on my way" {
		t.Fatalf("wrong entry: %+v", e)
	}

	c.PostChat(ctx, rider("r1"), rideID, "ok")
	ride, _ = store.Get(ctx, rideID)
	if len(ride.Chat) != 2 || ride.Chat[1].Sender != models.RoleRider {
		t.Fatalf("append order broken: %+v", ride.Chat)
	}
}

func TestPostChatRefusesStrangers(t *testing.T) {
	c, store, _, rideID := setup(t)
	res := c.PostChat(context.Background(), rider("stranger"), rideID, "let me in")
	if _, ok := findEvent(res, "Failed"); !ok {
		t.Fatalf("expected Failed, got %+v", res)
	}
	ride, _ := store.Get(context.Background(), rideID)
	if len(ride.Chat) != 0 {
		t.Fatal("stranger message stored")
	}
}

func TestTriggerArrivedSetsCostInRange(t *testing.T) {
	c, store, notifier, rideID := setup(t)
	ctx := context.Background()

	res := c.TriggerArrived(ctx, driver("d1"), rideID)
	ev, ok := findEvent(res, "refresh")
	if !ok || ev.Room != rideID {
		t.Fatalf("expected refresh broadcast, got %+v", res.Events)
	}

	ride, _ := store.Get(ctx, rideID)
	if !ride.Arrived {
		t.Fatal("arrived not set")
	}
	if ride.Cost < FareMin || ride.Cost > FareMax {
		t.Fatalf("cost %d outside [%d,%d]", ride.Cost, FareMin, FareMax)
	}
	if notifier.calls != 1 || notifier.userID != "r1" {
		t.Fatalf("rider not notified: %+v", notifier)
	}
	if notifier.subject != "Ride completed!" || !strings.Contains(notifier.body, "owe") {
		t.Fatalf("wrong invoice mail: %q %q", notifier.subject, notifier.body)
	}
}

func TestTriggerArrivedIsDriverOnly(t *testing.T) {
	c, store, _, rideID := setup(t)
	ctx := context.Background()

	res := c.TriggerArrived(ctx, rider("r1"), rideID)
	if len(res.Events) != 0 {
		t.Fatalf("rider arrival must be silent no-op: %+v", res.Events)
	}
	ride, _ := store.Get(ctx, rideID)
	if ride.Arrived {
		t.Fatal("rider completed the ride")
	}
}

func TestTriggerArrivedTwiceKeepsCost(t *testing.T) {
	c, store, _, rideID := setup(t)
	ctx := context.Background()

	c.Fare = func() int { return 42 }
	c.TriggerArrived(ctx, driver("d1"), rideID)

	c.Fare = func() int { return 99 }
	res := c.TriggerArrived(ctx, driver("d1"), rideID)
	if _, ok := findEvent(res, "Failed"); !ok {
		t.Fatalf("second arrival must be rejected: %+v", res.Events)
	}
	ride, _ := store.Get(ctx, rideID)
	if ride.Cost != 42 {
		t.Fatalf("invoiced amount changed: %d", ride.Cost)
	}
}

func TestTriggerArrivedUnknownRide(t *testing.T) {
	c, _, _, _ := setup(t)
	res := c.TriggerArrived(context.Background(), driver("d1"), "missing")
	if _, ok := findEvent(res, "Failed"); !ok {
		t.Fatalf("expected Failed, got %+v", res)
	}
}

func TestNotifyFailureDoesNotAbortArrival(t *testing.T) {
	c, store, notifier, rideID := setup(t)
	notifier.fail = true
	ctx := context.Background()

	res := c.TriggerArrived(ctx, driver("d1"), rideID)
	if _, ok := findEvent(res, "refresh"); !ok {
		t.Fatalf("refresh suppressed by mail failure: %+v", res.Events)
	}
	ride, _ := store.Get(ctx, rideID)
	if !ride.Arrived {
		t.Fatal("arrival rolled back on mail failure")
	}
}
