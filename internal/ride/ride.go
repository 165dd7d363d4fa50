// Package ride implements the trip state machine: creation on a
// successful match, completion with wallet settlement, cancellation with
// the fee policy, and post-completion ratings.
package ride

import (
	"errors"
	"time"

	"github.com/example/ride-marketplace/internal/catalog"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/wallet"
)

var (
	ErrInvalidState = errors.New("operation not allowed in current ride state")
	ErrAlreadyRated = errors.New("ride already rated by this party")
)

// allowed is the transition table. Requested exists only momentarily:
// matching and ride start are the same operation, so New moves straight
// through it to InProgress. Terminal states have no exits.
var allowed = map[models.RideStatus][]models.RideStatus{
	models.RideRequested:  {models.RideInProgress, models.RideCancelled},
	models.RideInProgress: {models.RideCompleted, models.RideCancelled},
}

func canTransition(from, to models.RideStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// New creates a ride between a rider and a matched driver and starts it.
// The fare is computed once here and never recomputed. The driver is
// marked busy and the rider's active-ride reference is set.
func New(id string, rider *models.Rider, driver *models.Driver, destination string, distanceKm float64, now time.Time) (*models.Ride, error) {
	if rider.HasActiveRide() {
		return nil, ErrInvalidState
	}
	if !driver.Available {
		return nil, ErrInvalidState
	}

	r := &models.Ride{
		ID:            id,
		RiderID:       rider.ID,
		DriverID:      driver.ID,
		Vehicle:       driver.Vehicle,
		StartLocation: rider.Location,
		EndLocation:   destination,
		DistanceKm:    distanceKm,
		Fare:          catalog.Fare(driver.Vehicle, distanceKm),
		EstimatedMins: catalog.EstimateMins(driver.Vehicle.Type, distanceKm),
		Status:        models.RideRequested,
		RequestedAt:   now,
	}
	r.Status = models.RideInProgress

	driver.Available = false
	driver.ActiveRideID = r.ID
	rider.ActiveRideID = r.ID
	return r, nil
}

// Complete settles an in-progress ride. The rider is debited first; if
// that fails nothing changes and the ride stays InProgress so the caller
// can retry or cancel. On success the driver is credited the full fare,
// freed, and both parties' active-ride references are cleared.
func Complete(r *models.Ride, rider *models.Rider, driver *models.Driver, now time.Time) error {
	if !canTransition(r.Status, models.RideCompleted) {
		return ErrInvalidState
	}
	if err := rider.Wallet.Debit(r.Fare); err != nil {
		return err
	}
	if err := driver.Wallet.Credit(r.Fare); err != nil {
		// Credit only rejects non-positive amounts and the fare is
		// always >= base fare, so restore the debit and surface it.
		rider.Wallet.Balance += r.Fare
		return err
	}

	r.Status = models.RideCompleted
	r.EndedAt = now
	driver.CompletedRides++
	driver.Available = true
	driver.ActiveRideID = ""
	rider.ActiveRideID = ""
	return nil
}

// Cancel closes an active ride. Rider-initiated cancels transfer the
// fixed fee to the driver, but only when the rider can cover it in full;
// a rider below the fee is let off without any partial charge. Driver
// cancels carry no fee in either direction.
func Cancel(r *models.Ride, rider *models.Rider, driver *models.Driver, by models.Actor, now time.Time) error {
	if !canTransition(r.Status, models.RideCancelled) {
		return ErrInvalidState
	}

	if by == models.ActorRider {
		err := rider.Wallet.Debit(catalog.CancellationFee)
		switch {
		case err == nil:
			_ = driver.Wallet.Credit(catalog.CancellationFee)
		case errors.Is(err, wallet.ErrInsufficientFunds):
			// Fee skipped entirely; the driver is still freed.
		default:
			return err
		}
	}

	r.Status = models.RideCancelled
	r.CancelledBy = by
	r.EndedAt = now
	driver.Available = true
	driver.ActiveRideID = ""
	rider.ActiveRideID = ""
	return nil
}

// RateDriver records the rider's score for the driver. Ratings are a
// follow-on step gated on completion and never touch settlement.
func RateDriver(r *models.Ride, driver *models.Driver, score int) error {
	if r.Status != models.RideCompleted {
		return ErrInvalidState
	}
	if r.DriverScore != 0 {
		return ErrAlreadyRated
	}
	if err := driver.Rating.Record(score); err != nil {
		return err
	}
	r.DriverScore = score
	return nil
}

// RateRider records the driver's score for the rider.
func RateRider(r *models.Ride, rider *models.Rider, score int) error {
	if r.Status != models.RideCompleted {
		return ErrInvalidState
	}
	if r.RiderScore != 0 {
		return ErrAlreadyRated
	}
	if err := rider.Rating.Record(score); err != nil {
		return err
	}
	r.RiderScore = score
	return nil
}
