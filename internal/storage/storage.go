package storage

import (
	"errors"

	"github.com/example/ride-marketplace/internal/models"
)

// ErrStorage wraps every failure crossing the persistence boundary so
// callers can treat all of them uniformly with errors.Is.
var ErrStorage = errors.New("storage error")

// Repository is the whole-collection load/replace boundary the core
// calls through explicitly. Implementations never get invoked
// mid-transaction by the core.
type Repository interface {
	LoadRiders() ([]*models.Rider, error)
	SaveRiders(riders []*models.Rider) error
	LoadDrivers() ([]*models.Driver, error)
	SaveDrivers(drivers []*models.Driver) error
	LoadRides() ([]*models.Ride, error)
	SaveRides(rides []*models.Ride) error
	LoadCompanyStats() (models.CompanyStats, error)
	SaveCompanyStats(stats models.CompanyStats) error
}
