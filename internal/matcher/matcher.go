// Package matcher selects the best available driver for a requested
// vehicle type: a linear argmax on rating average, with unrated drivers
// sorting below any rated one.
package matcher

import (
	"errors"

	"github.com/example/ride-marketplace/internal/models"
)

var ErrNoDriverAvailable = errors.New("no driver available for vehicle type")

// Match filters the pool to available drivers of the requested type and
// returns the one with the highest rating average. The comparison is
// strictly-greater, so ties keep the first driver encountered in pool
// order, which is deterministic for a given slice.
func Match(vehicleType models.VehicleType, pool []*models.Driver) (*models.Driver, error) {
	var best *models.Driver
	for _, d := range pool {
		if !d.Available || d.Vehicle.Type != vehicleType {
			continue
		}
		if best == nil || d.Rating.SortValue() > best.Rating.SortValue() {
			best = d
		}
	}
	if best == nil {
		return nil, ErrNoDriverAvailable
	}
	return best, nil
}
