package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/ride-exchange/internal/models"
	"github.com/example/ride-exchange/internal/storage"
)

// partyRide loads the ride and enforces that the caller is one of its two
// parties. Non-parties get the same 404 as a missing ride.
func (s *Server) partyRide(w http.ResponseWriter, r *http.Request) (*models.Ride, models.Identity, bool) {
	id, err := s.identity.FromRequest(r)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return nil, models.Identity{}, false
	}
	rideID := mux.Vars(r)["id"]
	ride, err := s.store.Get(r.Context(), rideID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "ride not found", http.StatusNotFound)
		} else {
			s.logger.Error("ride lookup failed", "ride", rideID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return nil, models.Identity{}, false
	}
	if ride.DriverID != id.ID && ride.RiderID != id.ID {
		http.Error(w, "ride not found", http.StatusNotFound)
		return nil, models.Identity{}, false
	}
	return ride, id, true
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, _, ok := s.partyRide(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleGetRideChat(w http.ResponseWriter, r *http.Request) {
	ride, _, ok := s.partyRide(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": ride.ID, "messages": ride.Chat})
}

// handleGetInvoice serves the final invoice; it exists only once the driver
// has arrived.
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ride, _, ok := s.partyRide(w, r)
	if !ok {
		return
	}
	if !ride.Arrived {
		http.Error(w, "ride not completed", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           ride.ID,
		"driverId":     ride.DriverID,
		"riderId":      ride.RiderID,
		"textAddress":  ride.DestinationText,
		"amountEarned": ride.Cost,
	})
}

// handleGeocode resolves free-form address text for the rider form.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if _, err := s.identity.FromRequest(r); err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var in struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Address == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}
	coord, err := s.geocoder.Resolve(r.Context(), in.Address)
	if err != nil {
		http.Error(w, "invalid address", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, coord)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
