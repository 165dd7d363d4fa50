// Package catalog holds the static per-type vehicle data: fare rate,
// seating capacity, and cruise speed used for duration estimates.
package catalog

import (
	"errors"

	"github.com/example/ride-marketplace/internal/models"
)

const (
	// BaseFare is charged on every ride regardless of distance.
	BaseFare = 50.0
	// CancellationFee is transferred rider -> driver on rider-initiated cancels.
	CancellationFee = 20.0
)

var ErrUnknownVehicleType = errors.New("unknown vehicle type")

type Info struct {
	Type      models.VehicleType
	RatePerKm float64
	Capacity  int
	SpeedKmh  float64
}

var byType = map[models.VehicleType]Info{
	models.VehicleCar:  {Type: models.VehicleCar, RatePerKm: 30, Capacity: 4, SpeedKmh: 50},
	models.VehicleBike: {Type: models.VehicleBike, RatePerKm: 20, Capacity: 2, SpeedKmh: 60},
	models.VehicleCNG:  {Type: models.VehicleCNG, RatePerKm: 25, Capacity: 3, SpeedKmh: 15},
}

func Lookup(t models.VehicleType) (Info, error) {
	info, ok := byType[t]
	if !ok {
		return Info{}, ErrUnknownVehicleType
	}
	return info, nil
}

// NewVehicle builds a vehicle of the given type with catalog rate and capacity.
func NewVehicle(t models.VehicleType, licensePlate string) (models.Vehicle, error) {
	info, err := Lookup(t)
	if err != nil {
		return models.Vehicle{}, err
	}
	return models.Vehicle{
		Type:         t,
		LicensePlate: licensePlate,
		RatePerKm:    info.RatePerKm,
		Capacity:     info.Capacity,
	}, nil
}

// Fare is the fixed price for a ride: base fare plus distance at the
// vehicle's per-km rate.
func Fare(v models.Vehicle, distanceKm float64) float64 {
	return BaseFare + distanceKm*v.RatePerKm
}

// EstimateMins converts distance to a trip duration using the catalog
// cruise speed for the vehicle type. Unknown types estimate zero.
func EstimateMins(t models.VehicleType, distanceKm float64) float64 {
	info, ok := byType[t]
	if !ok || info.SpeedKmh <= 0 {
		return 0
	}
	return distanceKm / info.SpeedKmh * 60
}
