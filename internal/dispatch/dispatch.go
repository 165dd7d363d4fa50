// Package dispatch delivers ride notifications to driver apps: a
// websocket registry for connected drivers and an HTTP push fallback.
package dispatch

// Assignment is pushed to a driver when the matcher picks them.
type Assignment struct {
	RideID     string  `json:"ride_id"`
	RiderName  string  `json:"rider_name"`
	Pickup     string  `json:"pickup"`
	Dropoff    string  `json:"dropoff"`
	DistanceKm float64 `json:"distance_km"`
	Fare       float64 `json:"fare"`
}

// Cancellation tells a driver their active ride was closed.
type Cancellation struct {
	RideID string `json:"ride_id"`
	By     string `json:"by"`
}

// Notifier is what the fleet registry needs; delivery is best-effort
// and never fails a ride operation.
type Notifier interface {
	OfferRide(driverID string, a Assignment) error
	NotifyCancel(driverID string, c Cancellation) error
}
