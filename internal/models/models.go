package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"long"`
}

// Role tags an Identity. Role checks in the coordinators are switches on
// this tag rather than a type hierarchy.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// Identity is the read-only projection of the authenticated caller handed to
// us by the upstream auth layer. VehicleClass is set only for drivers.
type Identity struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	VehicleClass string `json:"vehicle_class,omitempty"`
}

func (i Identity) IsDriver() bool { return i.Role == RoleDriver }

// RideRequest is a rider's outstanding ask for a ride. It lives only in the
// pending registry: created on join, removed exactly once on cancel or
// select, never mutated in between.
type RideRequest struct {
	RiderID         string `json:"userId"`
	VehicleClass    string `json:"carType"`
	Pickup          Coord  `json:"pickup"`
	Destination     Coord  `json:"address"`
	DestinationText string `json:"textAddress"`
	// RequestedTime is "now" or an explicit future time supplied by the rider.
	RequestedTime string `json:"time"`
}

// ChatEntry is one message in a ride's chat log.
type ChatEntry struct {
	Sender  Role   `json:"sender"`
	Message string `json:"message"`
}

// Ride is the durable record created on a successful match. Once Arrived is
// set (together with Cost) the record is final.
type Ride struct {
	ID              string      `json:"id"`
	DriverID        string      `json:"driverId"`
	RiderID         string      `json:"riderId"`
	Pickup          Coord       `json:"pickup"`
	Destination     Coord       `json:"address"`
	DestinationText string      `json:"textAddress"`
	RequestedTime   string      `json:"time"`
	Chat            []ChatEntry `json:"chat"`
	Arrived         bool        `json:"arrived"`
	Cost            int         `json:"cost,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// RideEvent is the lifecycle record published to Kafka for downstream
// analytics consumers.
type RideEvent struct {
	Type         string    `json:"type"` // requested, matched, arrived
	RideID       string    `json:"ride_id,omitempty"`
	RiderID      string    `json:"rider_id"`
	DriverID     string    `json:"driver_id,omitempty"`
	VehicleClass string    `json:"vehicle_class"`
	Cost         int       `json:"cost,omitempty"`
	At           time.Time `json:"at"`
}
