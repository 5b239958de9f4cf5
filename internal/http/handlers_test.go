package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/ride-exchange/internal/broadcast"
	"github.com/example/ride-exchange/internal/exchange"
	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/notify"
	"github.com/example/ride-exchange/internal/registry"
	"github.com/example/ride-exchange/internal/ridesession"
	"github.com/example/ride-exchange/internal/session"
	"github.com/example/ride-exchange/internal/storage"
)

type fakeGeocoder struct {
	coord models.Coord
	err   error
}

func (f *fakeGeocoder) Resolve(context.Context, string) (models.Coord, error) {
	return f.coord, f.err
}

func testServer(t *testing.T, store storage.RideStore) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewDirectory()
	pending := registry.NewPending()
	return NewServer(Deps{
		Exchange: exchange.NewCoordinator(pending, store, sessions, nil, logger),
		Rides:    ridesession.NewCoordinator(store, sessions, notify.NopNotifier{}, nil, logger),
		Store:    store,
		Gateway:  broadcast.NewHub(logger),
		Geocoder: &fakeGeocoder{coord: models.Coord{Lat: 40.4, Lon: -3.7}},
		Logger:   logger,
	})
}

func asRider(r *http.Request, id string) *http.Request {
	r.Header.Set("X-User-ID", id)
	r.Header.Set("X-User-Role", "rider")
	return r
}

func asDriver(r *http.Request, id, class string) *http.Request {
	r.Header.Set("X-User-ID", id)
	r.Header.Set("X-User-Role", "driver")
	r.Header.Set("X-Vehicle-Class", class)
	return r
}

func seedRide(t *testing.T, store storage.RideStore) string {
	t.Helper()
	id, err := store.Create(context.Background(), &models.Ride{
		DriverID: "d1", RiderID: "r1", DestinationText: "12 Main St", Chat: []models.ChatEntry{},
	})
	if err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return id
}

func TestGetRideForParties(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)
	rideID := seedRide(t, store)

	for _, mk := range []func(*http.Request) *http.Request{
		func(r *http.Request) *http.Request { return asRider(r, "r1") },
		func(r *http.Request) *http.Request { return asDriver(r, "d1", "sedan") },
	} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, mk(httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID, nil)))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var ride models.Ride
		if err := json.NewDecoder(w.Body).Decode(&ride); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ride.ID != rideID || ride.DestinationText != "12 Main St" {
			t.Fatalf("wrong ride: %+v", ride)
		}
	}
}

func TestGetRideHiddenFromStrangers(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)
	rideID := seedRide(t, store)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID, nil), "stranger"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", w.Code)
	}
}

func TestGetRideUnauthenticated(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)
	rideID := seedRide(t, store)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestInvoiceOnlyAfterArrival(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)
	rideID := seedRide(t, store)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID+"/invoice", nil), "r1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before arrival, got %d", w.Code)
	}

	if err := store.SetArrived(context.Background(), rideID, 42); err != nil {
		t.Fatalf("set arrived: %v", err)
	}
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID+"/invoice", nil), "r1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string]any
	_ = json.NewDecoder(w.Body).Decode(&out)
	if out["amountEarned"].(float64) != 42 {
		t.Fatalf("wrong invoice amount: %v", out["amountEarned"])
	}
}

func TestGetRideChatLog(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)
	rideID := seedRide(t, store)
	_ = store.AppendChat(context.Background(), rideID, models.ChatEntry{Sender: models.RoleDriver, Message: "on my way"})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodGet, "/api/v1/rides/"+rideID+"/chat", nil), "r1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Messages []models.ChatEntry `json:"messages"`
	}
	_ = json.NewDecoder(w.Body).Decode(&out)
	if len(out.Messages) != 1 || out.Messages[0].Message != "on my way" {
		t.Fatalf("wrong chat log: %+v", out.Messages)
	}
}

func TestGeocode(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := testServer(t, store)

	body := strings.NewReader(`{"address":"12 Main St"}`)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodPost, "/api/v1/geocode", body), "r1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var coord models.Coord
	_ = json.NewDecoder(w.Body).Decode(&coord)
	if coord.Lat != 40.4 {
		t.Fatalf("wrong coord: %+v", coord)
	}
}

func TestGeocodeInvalidAddress(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewDirectory()
	srv := NewServer(Deps{
		Exchange: exchange.NewCoordinator(registry.NewPending(), store, sessions, nil, logger),
		Rides:    ridesession.NewCoordinator(store, sessions, notify.NopNotifier{}, nil, logger),
		Store:    store,
		Gateway:  broadcast.NewHub(logger),
		Geocoder: &fakeGeocoder{err: errors.New("no match")},
		Logger:   logger,
	})

	body := strings.NewReader(`{"address":"gibberish"}`)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, asRider(httptest.NewRequest(http.MethodPost, "/api/v1/geocode", body), "r1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, storage.NewMemoryStore())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
