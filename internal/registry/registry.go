// Package registry is the fleet registry: it owns the rider/driver
// collections and the ride history, and orchestrates matching, the ride
// lifecycle, settlement, and ratings into the rider-facing operations.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-marketplace/internal/catalog"
	"github.com/example/ride-marketplace/internal/dispatch"
	"github.com/example/ride-marketplace/internal/matcher"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
	"github.com/example/ride-marketplace/internal/presence"
	"github.com/example/ride-marketplace/internal/ride"
	"github.com/example/ride-marketplace/internal/storage"
)

var ErrNotFound = errors.New("entity not found")

// DistanceSource supplies the trip distance in km. Injected so tests
// can fix it; production uses the uniform [5,25] default.
type DistanceSource func() float64

func defaultDistance() float64 { return 5 + rand.Float64()*20 }

// EventPublisher receives ride lifecycle events (Kafka in production).
type EventPublisher interface {
	PublishRideEvent(ev models.RideEvent) error
}

// PresenceUpdater mirrors driver state into the read-side cache.
type PresenceUpdater interface {
	Update(ctx context.Context, m presence.Meta) error
}

// Registry is constructed once at startup and passed by handle to every
// operation; there is no hidden package state. All collaborator fields
// are optional: a zero field simply disables that side channel.
type Registry struct {
	CompanyName string
	Distance    DistanceSource
	Now         func() time.Time
	Logger      *slog.Logger
	Events      EventPublisher
	Notifier    dispatch.Notifier
	Presence    PresenceUpdater

	mu          sync.Mutex
	riders      map[string]*models.Rider
	drivers     map[string]*models.Driver
	driverOrder []string
	rides       map[string]*models.Ride
	history     []*models.Ride
	totalRides  int
	revenue     float64
}

func New(companyName string) *Registry {
	return &Registry{
		CompanyName: companyName,
		Distance:    defaultDistance,
		Now:         time.Now,
		Logger:      slog.Default(),
		riders:      make(map[string]*models.Rider),
		drivers:     make(map[string]*models.Driver),
		rides:       make(map[string]*models.Ride),
	}
}

// sideEffects collects the fan-out an operation owes once the registry
// lock is released. Broker and cache writes never happen inside the
// critical section, so a degraded Redis or Kafka cannot stall a ride
// operation.
type sideEffects struct {
	event    *models.RideEvent
	meta     *presence.Meta
	offerTo  string
	offer    *dispatch.Assignment
	cancelTo string
	cancel   *dispatch.Cancellation
}

func (g *Registry) fanOut(fx sideEffects) {
	if fx.event != nil {
		g.publish(*fx.event)
	}
	if fx.meta != nil {
		g.mirror(*fx.meta)
	}
	if g.Notifier != nil && fx.offer != nil {
		_ = g.Notifier.OfferRide(fx.offerTo, *fx.offer)
	}
	if g.Notifier != nil && fx.cancel != nil {
		_ = g.Notifier.NotifyCancel(fx.cancelTo, *fx.cancel)
	}
}

// RegisterRider adds a rider and credits any initial wallet amount.
func (g *Registry) RegisterRider(name, email, nid, location string, initialBalance float64) (models.RiderView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := &models.Rider{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		NID:       nid,
		Location:  location,
		CreatedAt: g.Now(),
	}
	if initialBalance > 0 {
		if err := r.Wallet.Credit(initialBalance); err != nil {
			return models.RiderView{}, err
		}
	}
	g.riders[r.ID] = r
	g.Logger.Info("rider registered", "rider_id", r.ID, "name", r.Name)
	return riderView(r), nil
}

// RegisterDriver adds a driver with a permanently bound vehicle.
func (g *Registry) RegisterDriver(name, email, nid, location string, vt models.VehicleType, licensePlate string) (models.DriverView, error) {
	v, err := catalog.NewVehicle(vt, licensePlate)
	if err != nil {
		return models.DriverView{}, err
	}

	g.mu.Lock()
	d := &models.Driver{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		NID:       nid,
		Location:  location,
		Vehicle:   v,
		Available: true,
		CreatedAt: g.Now(),
	}
	g.drivers[d.ID] = d
	g.driverOrder = append(g.driverOrder, d.ID)
	g.updateAvailableGauge()
	view := driverView(d)
	fx := sideEffects{meta: g.driverMeta(d)}
	g.mu.Unlock()

	g.fanOut(fx)
	g.Logger.Info("driver registered", "driver_id", view.ID, "vehicle_type", vt, "license_plate", licensePlate)
	return view, nil
}

// RequestRide matches the rider to the best available driver of the
// requested type and starts the ride. Matching and ride-start are one
// atomic operation.
func (g *Registry) RequestRide(riderID string, vt models.VehicleType, destination string) (models.Ride, error) {
	if _, err := catalog.Lookup(vt); err != nil {
		return models.Ride{}, err
	}

	g.mu.Lock()
	rider, ok := g.riders[riderID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}
	if rider.HasActiveRide() {
		g.mu.Unlock()
		return models.Ride{}, ride.ErrInvalidState
	}

	driver, err := matcher.Match(vt, g.driverPool())
	if err != nil {
		g.mu.Unlock()
		observability.MatchFailuresTotal.Inc()
		return models.Ride{}, err
	}

	r, err := ride.New(uuid.NewString(), rider, driver, destination, g.Distance(), g.Now())
	if err != nil {
		g.mu.Unlock()
		return models.Ride{}, err
	}
	g.rides[r.ID] = r
	observability.MatchesTotal.Inc()
	g.updateAvailableGauge()

	out := *r
	fx := sideEffects{
		event:   g.rideEvent("requested", r, driver),
		meta:    g.driverMeta(driver),
		offerTo: driver.ID,
		offer: &dispatch.Assignment{
			RideID:     r.ID,
			RiderName:  rider.Name,
			Pickup:     r.StartLocation,
			Dropoff:    r.EndLocation,
			DistanceKm: r.DistanceKm,
			Fare:       r.Fare,
		},
	}
	g.mu.Unlock()

	g.fanOut(fx)
	g.Logger.Info("ride started", "ride_id", out.ID, "rider_id", out.RiderID, "driver_id", out.DriverID, "fare", out.Fare)
	return out, nil
}

// CompleteRide settles the rider's active ride. On insufficient funds
// the ride stays in progress and nothing changes.
func (g *Registry) CompleteRide(riderID string) (models.Ride, error) {
	g.mu.Lock()
	rider, ok := g.riders[riderID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}
	if !rider.HasActiveRide() {
		g.mu.Unlock()
		return models.Ride{}, ride.ErrInvalidState
	}
	r, ok := g.rides[rider.ActiveRideID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ride.ErrInvalidState
	}
	driver, ok := g.drivers[r.DriverID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}

	if err := ride.Complete(r, rider, driver, g.Now()); err != nil {
		g.mu.Unlock()
		return models.Ride{}, err
	}
	g.history = append(g.history, r)
	g.totalRides++
	g.revenue += r.Fare
	observability.RidesCompleted.Inc()
	observability.RevenueTotal.Add(r.Fare)
	g.updateAvailableGauge()

	out := *r
	riderBalance := rider.Wallet.Balance
	driverBalance := driver.Wallet.Balance
	fx := sideEffects{event: g.rideEvent("completed", r, driver), meta: g.driverMeta(driver)}
	g.mu.Unlock()

	g.fanOut(fx)
	g.Logger.Info("ride completed", "ride_id", out.ID, "fare", out.Fare,
		"rider_balance", riderBalance, "driver_balance", driverBalance)
	return out, nil
}

// CancelRide closes the active ride of the given party. The initiator
// determines the fee policy (see ride.Cancel).
func (g *Registry) CancelRide(partyID string, by models.Actor) (models.Ride, error) {
	g.mu.Lock()

	var activeRideID string
	switch by {
	case models.ActorRider:
		rider, ok := g.riders[partyID]
		if !ok {
			g.mu.Unlock()
			return models.Ride{}, ErrNotFound
		}
		activeRideID = rider.ActiveRideID
	case models.ActorDriver:
		driver, ok := g.drivers[partyID]
		if !ok {
			g.mu.Unlock()
			return models.Ride{}, ErrNotFound
		}
		activeRideID = driver.ActiveRideID
	default:
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}
	if activeRideID == "" {
		g.mu.Unlock()
		return models.Ride{}, ride.ErrInvalidState
	}

	r, ok := g.rides[activeRideID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ride.ErrInvalidState
	}
	rider, ok := g.riders[r.RiderID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}
	driver, ok := g.drivers[r.DriverID]
	if !ok {
		g.mu.Unlock()
		return models.Ride{}, ErrNotFound
	}

	if err := ride.Cancel(r, rider, driver, by, g.Now()); err != nil {
		g.mu.Unlock()
		return models.Ride{}, err
	}
	g.history = append(g.history, r)
	observability.RidesCancelled.WithLabelValues(string(by)).Inc()
	g.updateAvailableGauge()

	out := *r
	fx := sideEffects{event: g.rideEvent("cancelled", r, driver), meta: g.driverMeta(driver)}
	if by == models.ActorRider {
		fx.cancelTo = driver.ID
		fx.cancel = &dispatch.Cancellation{RideID: r.ID, By: string(by)}
	}
	g.mu.Unlock()

	g.fanOut(fx)
	g.Logger.Info("ride cancelled", "ride_id", out.ID, "by", by)
	return out, nil
}

// RateDriver records the rider's score for the driver of a completed ride.
func (g *Registry) RateDriver(rideID string, score int) error {
	g.mu.Lock()
	r, ok := g.rides[rideID]
	if !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	driver, ok := g.drivers[r.DriverID]
	if !ok {
		g.mu.Unlock()
		return ErrNotFound
	}
	if err := ride.RateDriver(r, driver, score); err != nil {
		g.mu.Unlock()
		return err
	}
	fx := sideEffects{meta: g.driverMeta(driver)}
	g.mu.Unlock()

	g.fanOut(fx)
	return nil
}

// RateRider records the driver's score for the rider of a completed ride.
func (g *Registry) RateRider(rideID string, score int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	rider, ok := g.riders[r.RiderID]
	if !ok {
		return ErrNotFound
	}
	return ride.RateRider(r, rider, score)
}

// AddFunds credits a rider or driver wallet and returns the new balance.
func (g *Registry) AddFunds(accountID string, amount float64) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.riders[accountID]; ok {
		if err := r.Wallet.Credit(amount); err != nil {
			return 0, err
		}
		return r.Wallet.Balance, nil
	}
	if d, ok := g.drivers[accountID]; ok {
		if err := d.Wallet.Credit(amount); err != nil {
			return 0, err
		}
		return d.Wallet.Balance, nil
	}
	return 0, ErrNotFound
}

// UpdateRiderLocation moves a rider; the next ride starts from here.
func (g *Registry) UpdateRiderLocation(riderID, location string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.riders[riderID]
	if !ok {
		return ErrNotFound
	}
	r.Location = location
	return nil
}

// TopRatedDrivers returns up to n rated drivers, best first. Unrated
// drivers never appear. Ties break on completed rides, then stay in
// registration order.
func (g *Registry) TopRatedDrivers(n int) []models.DriverView {
	g.mu.Lock()
	defer g.mu.Unlock()

	var rated []*models.Driver
	for _, id := range g.driverOrder {
		d := g.drivers[id]
		if d.Rating.Count > 0 {
			rated = append(rated, d)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		a, b := rated[i].Rating.SortValue(), rated[j].Rating.SortValue()
		if a != b {
			return a > b
		}
		return rated[i].CompletedRides > rated[j].CompletedRides
	})
	if n > 0 && len(rated) > n {
		rated = rated[:n]
	}
	out := make([]models.DriverView, len(rated))
	for i, d := range rated {
		out[i] = driverView(d)
	}
	return out
}

// SearchDrivers lists rated drivers with average >= minRating, best first.
func (g *Registry) SearchDrivers(minRating float64) []models.DriverView {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []models.DriverView
	for _, id := range g.driverOrder {
		d := g.drivers[id]
		if avg, ok := d.Rating.Average(); ok && avg >= minRating {
			out = append(out, driverView(d))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out
}

// SearchRidersByName matches riders by case-insensitive substring.
func (g *Registry) SearchRidersByName(query string) []models.RiderView {
	g.mu.Lock()
	defer g.mu.Unlock()

	q := strings.ToLower(query)
	var out []models.RiderView
	for _, r := range g.riders {
		if strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, riderView(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RiderHistory returns the rider's terminal rides in completion order.
func (g *Registry) RiderHistory(riderID string) ([]models.Ride, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.riders[riderID]; !ok {
		return nil, ErrNotFound
	}
	var out []models.Ride
	for _, r := range g.history {
		if r.RiderID == riderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ActiveRide returns a copy of the rider's current ride.
func (g *Registry) ActiveRide(riderID string) (models.Ride, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.riders[riderID]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	if !r.HasActiveRide() {
		return models.Ride{}, ride.ErrInvalidState
	}
	trip, ok := g.rides[r.ActiveRideID]
	if !ok {
		return models.Ride{}, ride.ErrInvalidState
	}
	return *trip, nil
}

// Riders returns snapshot views of every rider.
func (g *Registry) Riders() []models.RiderView {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.RiderView, 0, len(g.riders))
	for _, r := range g.riders {
		out = append(out, riderView(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Drivers returns snapshot views of every driver in registration order.
func (g *Registry) Drivers() []models.DriverView {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.DriverView, 0, len(g.driverOrder))
	for _, id := range g.driverOrder {
		out = append(out, driverView(g.drivers[id]))
	}
	return out
}

// CompanyStats aggregates the registry counters.
func (g *Registry) CompanyStats() models.CompanyStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statsLocked()
}

func (g *Registry) statsLocked() models.CompanyStats {
	avail := 0
	for _, d := range g.drivers {
		if d.Available {
			avail++
		}
	}
	return models.CompanyStats{
		CompanyName:      g.CompanyName,
		Riders:           len(g.riders),
		Drivers:          len(g.drivers),
		AvailableDrivers: avail,
		TotalRides:       g.totalRides,
		TotalRevenue:     g.revenue,
		UpdatedAt:        g.Now(),
	}
}

// SaveAll pushes the whole state through the persistence boundary.
// Called explicitly, never mid-transaction. Open rides are persisted
// after the terminal history so a restored registry can still complete
// or cancel them.
func (g *Registry) SaveAll(repo storage.Repository) error {
	g.mu.Lock()
	riders := make([]*models.Rider, 0, len(g.riders))
	for _, r := range g.riders {
		riders = append(riders, r)
	}
	sort.Slice(riders, func(i, j int) bool { return riders[i].CreatedAt.Before(riders[j].CreatedAt) })
	drivers := make([]*models.Driver, 0, len(g.driverOrder))
	for _, id := range g.driverOrder {
		drivers = append(drivers, g.drivers[id])
	}
	trips := append([]*models.Ride(nil), g.history...)
	var open []*models.Ride
	for _, r := range g.rides {
		if r.Active() {
			open = append(open, r)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].RequestedAt.Equal(open[j].RequestedAt) {
			return open[i].RequestedAt.Before(open[j].RequestedAt)
		}
		return open[i].ID < open[j].ID
	})
	trips = append(trips, open...)
	stats := g.statsLocked()
	g.mu.Unlock()

	if err := repo.SaveRiders(riders); err != nil {
		return err
	}
	if err := repo.SaveDrivers(drivers); err != nil {
		return err
	}
	if err := repo.SaveRides(trips); err != nil {
		return err
	}
	return repo.SaveCompanyStats(stats)
}

// LoadAll replaces the registry state from the persistence boundary.
func (g *Registry) LoadAll(repo storage.Repository) error {
	riders, err := repo.LoadRiders()
	if err != nil {
		return err
	}
	drivers, err := repo.LoadDrivers()
	if err != nil {
		return err
	}
	trips, err := repo.LoadRides()
	if err != nil {
		return err
	}
	stats, err := repo.LoadCompanyStats()
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.riders = make(map[string]*models.Rider, len(riders))
	for _, r := range riders {
		g.riders[r.ID] = r
	}
	g.drivers = make(map[string]*models.Driver, len(drivers))
	g.driverOrder = g.driverOrder[:0]
	for _, d := range drivers {
		g.drivers[d.ID] = d
		g.driverOrder = append(g.driverOrder, d.ID)
	}
	g.rides = make(map[string]*models.Ride, len(trips))
	g.history = g.history[:0]
	for _, r := range trips {
		g.rides[r.ID] = r
		if !r.Active() {
			g.history = append(g.history, r)
		}
	}
	// A snapshot may reference rides it does not contain, e.g. one
	// written by an older binary that only archived terminal rides.
	// Drop those references and free the drivers they pinned so nobody
	// is stranded on a ride that can never be closed.
	for _, r := range g.riders {
		if r.ActiveRideID == "" {
			continue
		}
		if trip, ok := g.rides[r.ActiveRideID]; !ok || !trip.Active() {
			g.Logger.Warn("dropping dangling ride reference", "rider_id", r.ID, "ride_id", r.ActiveRideID)
			r.ActiveRideID = ""
		}
	}
	for _, d := range g.drivers {
		if d.ActiveRideID == "" {
			continue
		}
		if trip, ok := g.rides[d.ActiveRideID]; !ok || !trip.Active() {
			g.Logger.Warn("dropping dangling ride reference", "driver_id", d.ID, "ride_id", d.ActiveRideID)
			d.ActiveRideID = ""
			d.Available = true
		}
	}
	g.totalRides = stats.TotalRides
	g.revenue = stats.TotalRevenue
	g.updateAvailableGauge()
	return nil
}

// driverPool is the matcher input in registration order, which makes
// tie-breaks deterministic per call.
func (g *Registry) driverPool() []*models.Driver {
	pool := make([]*models.Driver, 0, len(g.driverOrder))
	for _, id := range g.driverOrder {
		pool = append(pool, g.drivers[id])
	}
	return pool
}

func (g *Registry) updateAvailableGauge() {
	avail := 0
	for _, d := range g.drivers {
		if d.Available {
			avail++
		}
	}
	observability.DriversAvailable.Set(float64(avail))
}

// rideEvent and driverMeta snapshot state under the lock; the snapshots
// are sent by fanOut after the lock is released.
func (g *Registry) rideEvent(eventType string, r *models.Ride, driver *models.Driver) *models.RideEvent {
	if g.Events == nil {
		return nil
	}
	avg, rated := driver.Rating.Average()
	return &models.RideEvent{
		Type:            eventType,
		RideID:          r.ID,
		RiderID:         r.RiderID,
		DriverID:        r.DriverID,
		VehicleType:     r.Vehicle.Type,
		Fare:            r.Fare,
		DriverAvailable: driver.Available,
		DriverRated:     rated,
		DriverRating:    avg,
		At:              g.Now(),
	}
}

func (g *Registry) driverMeta(d *models.Driver) *presence.Meta {
	if g.Presence == nil {
		return nil
	}
	avg, rated := d.Rating.Average()
	return &presence.Meta{
		DriverID:    d.ID,
		VehicleType: d.Vehicle.Type,
		Available:   d.Available,
		Rated:       rated,
		Rating:      avg,
		Updated:     g.Now(),
	}
}

// publish and mirror are best-effort: a broken broker or cache must
// never fail a ride operation.
func (g *Registry) publish(ev models.RideEvent) {
	if err := g.Events.PublishRideEvent(ev); err != nil {
		g.Logger.Warn("ride event publish failed", "ride_id", ev.RideID, "type", ev.Type, "error", err)
	}
}

func (g *Registry) mirror(m presence.Meta) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Presence.Update(ctx, m); err != nil {
		g.Logger.Warn("presence mirror update failed", "driver_id", m.DriverID, "error", err)
	}
}

func riderView(r *models.Rider) models.RiderView {
	avg, rated := r.Rating.Average()
	return models.RiderView{
		ID:          r.ID,
		Name:        r.Name,
		Location:    r.Location,
		Balance:     r.Wallet.Balance,
		Rated:       rated,
		Rating:      avg,
		RatingCount: r.Rating.Count,
		ActiveRide:  r.HasActiveRide(),
	}
}

func driverView(d *models.Driver) models.DriverView {
	avg, rated := d.Rating.Average()
	return models.DriverView{
		ID:             d.ID,
		Name:           d.Name,
		VehicleType:    d.Vehicle.Type,
		LicensePlate:   d.Vehicle.LicensePlate,
		Available:      d.Available,
		Rated:          rated,
		Rating:         avg,
		RatingCount:    d.Rating.Count,
		CompletedRides: d.CompletedRides,
		Balance:        d.Wallet.Balance,
	}
}
