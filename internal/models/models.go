package models

import (
	"time"

	"github.com/example/ride-marketplace/internal/rating"
	"github.com/example/ride-marketplace/internal/wallet"
)

type VehicleType string

const (
	VehicleCar  VehicleType = "car"
	VehicleBike VehicleType = "bike"
	VehicleCNG  VehicleType = "cng"
)

// Vehicle is bound to a driver at registration and never reassigned.
// Rides carry a copy of it so history stays stable even if catalog
// rates change later.
type Vehicle struct {
	Type         VehicleType `json:"type"`
	LicensePlate string      `json:"license_plate"`
	RatePerKm    float64     `json:"rate"`
	Capacity     int         `json:"capacity"`
}

type Rider struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	NID          string        `json:"nid"`
	Location     string        `json:"current_location"`
	Wallet       wallet.Wallet `json:"wallet"`
	Rating       rating.Totals `json:"rating"`
	ActiveRideID string        `json:"active_ride_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// HasActiveRide reports whether the rider holds a ride in a non-terminal state.
func (r *Rider) HasActiveRide() bool { return r.ActiveRideID != "" }

type Driver struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	NID            string        `json:"nid"`
	Location       string        `json:"current_location"`
	Vehicle        Vehicle       `json:"vehicle"`
	Wallet         wallet.Wallet `json:"wallet"`
	Rating         rating.Totals `json:"rating"`
	Available      bool          `json:"is_available"`
	CompletedRides int           `json:"total_rides"`
	ActiveRideID   string        `json:"active_ride_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type RideStatus string

const (
	RideRequested  RideStatus = "requested"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCancelled  RideStatus = "cancelled"
)

// Actor identifies which party initiated a cancellation.
type Actor string

const (
	ActorRider  Actor = "rider"
	ActorDriver Actor = "driver"
)

type Ride struct {
	ID            string     `json:"id"`
	RiderID       string     `json:"rider_id"`
	DriverID      string     `json:"driver_id"`
	Vehicle       Vehicle    `json:"vehicle"`
	StartLocation string     `json:"start_location"`
	EndLocation   string     `json:"end_location"`
	DistanceKm    float64    `json:"distance"`
	Fare          float64    `json:"fare"`
	EstimatedMins float64    `json:"estimated_mins"`
	Status        RideStatus `json:"status"`
	CancelledBy   Actor      `json:"cancelled_by,omitempty"`
	// DriverScore is the rider's score for the driver, RiderScore the
	// driver's score for the rider. Zero means not rated yet.
	DriverScore int       `json:"driver_score,omitempty"`
	RiderScore  int       `json:"rider_score,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the ride is still open for complete/cancel.
func (r *Ride) Active() bool {
	return r.Status == RideRequested || r.Status == RideInProgress
}

type CompanyStats struct {
	CompanyName      string    `json:"company_name"`
	Riders           int       `json:"riders"`
	Drivers          int       `json:"drivers"`
	AvailableDrivers int       `json:"available_drivers"`
	TotalRides       int       `json:"total_rides"`
	TotalRevenue     float64   `json:"total_revenue"`
	UpdatedAt        time.Time `json:"last_updated"`
}

// DriverView is the read-only projection handed to presentation layers.
type DriverView struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	VehicleType    VehicleType `json:"vehicle_type"`
	LicensePlate   string      `json:"license_plate"`
	Available      bool        `json:"available"`
	Rated          bool        `json:"rated"`
	Rating         float64     `json:"rating"`
	RatingCount    int         `json:"rating_count"`
	CompletedRides int         `json:"completed_rides"`
	Balance        float64     `json:"balance"`
}

type RiderView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Location    string  `json:"current_location"`
	Balance     float64 `json:"balance"`
	Rated       bool    `json:"rated"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"rating_count"`
	ActiveRide  bool    `json:"active_ride"`
}

// RideEvent is the payload published on the ride-events topic.
type RideEvent struct {
	Type            string      `json:"type"` // requested, completed, cancelled
	RideID          string      `json:"ride_id"`
	RiderID         string      `json:"rider_id"`
	DriverID        string      `json:"driver_id"`
	VehicleType     VehicleType `json:"vehicle_type"`
	Fare            float64     `json:"fare"`
	DriverAvailable bool        `json:"driver_available"`
	DriverRated     bool        `json:"driver_rated"`
	DriverRating    float64     `json:"driver_rating"`
	At              time.Time   `json:"at"`
}
