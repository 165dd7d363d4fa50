package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ride-marketplace/internal/dispatch"
	"github.com/example/ride-marketplace/internal/matcher"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/presence"
	"github.com/example/ride-marketplace/internal/ride"
	"github.com/example/ride-marketplace/internal/storage"
	"github.com/example/ride-marketplace/internal/wallet"
)

func newTestRegistry(distanceKm float64) *Registry {
	g := New("QuickRide")
	g.Distance = func() float64 { return distanceKm }
	g.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func mustRider(t *testing.T, g *Registry, name string, balance float64) models.RiderView {
	t.Helper()
	r, err := g.RegisterRider(name, name+"@mail.test", "nid-"+name, "Banani", balance)
	if err != nil {
		t.Fatalf("register rider %s: %v", name, err)
	}
	return r
}

func mustDriver(t *testing.T, g *Registry, name string, vt models.VehicleType) models.DriverView {
	t.Helper()
	d, err := g.RegisterDriver(name, name+"@mail.test", "nid-"+name, "Gulshan", vt, "PLATE-"+name)
	if err != nil {
		t.Fatalf("register driver %s: %v", name, err)
	}
	return d
}

func TestRideLifecycleEndToEnd(t *testing.T) {
	g := newTestRegistry(12)
	rv := mustRider(t, g, "alice", 500)
	dv := mustDriver(t, g, "bob", models.VehicleCar)

	r, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r.Fare != 410 {
		t.Fatalf("expected fare 410, got %v", r.Fare)
	}
	if r.DriverID != dv.ID || r.Status != models.RideInProgress {
		t.Fatalf("unexpected ride: %+v", r)
	}

	done, err := g.CompleteRide(rv.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.RideCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	riders := g.Riders()
	if len(riders) != 1 || riders[0].Balance != 90 {
		t.Fatalf("rider balance: expected 90, got %+v", riders)
	}
	drivers := g.Drivers()
	if len(drivers) != 1 || drivers[0].Balance != 410 || drivers[0].CompletedRides != 1 || !drivers[0].Available {
		t.Fatalf("driver not settled: %+v", drivers)
	}

	if err := g.RateDriver(done.ID, 5); err != nil {
		t.Fatalf("rate driver: %v", err)
	}
	if got := g.Drivers()[0]; !got.Rated || got.Rating != 5.0 {
		t.Fatalf("driver rating: %+v", got)
	}

	hist, err := g.RiderHistory(rv.ID)
	if err != nil || len(hist) != 1 || hist[0].ID != done.ID {
		t.Fatalf("history: %v %+v", err, hist)
	}

	stats := g.CompanyStats()
	if stats.TotalRides != 1 || stats.TotalRevenue != 410 || stats.AvailableDrivers != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestRequestPrefersHighestRatedDriver(t *testing.T) {
	g := newTestRegistry(10)
	alice := mustRider(t, g, "alice", 1000)
	dana := mustRider(t, g, "dana", 1000)
	newbie := mustDriver(t, g, "newbie", models.VehicleCar)
	veteran := mustDriver(t, g, "veteran", models.VehicleCar)

	// Unrated tie goes to the first registered driver.
	r1, err := g.RequestRide(alice.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r1.DriverID != newbie.ID {
		t.Fatalf("expected first registered driver, got %s", r1.DriverID)
	}

	// With the first driver busy, the second rider gets the veteran.
	// Rate that ride so the veteran carries a 5.0 average.
	r2, err := g.RequestRide(dana.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r2.DriverID != veteran.ID {
		t.Fatalf("expected veteran, got %s", r2.DriverID)
	}
	if _, err := g.CompleteRide(dana.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := g.RateDriver(r2.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := g.CompleteRide(alice.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Both free again: the rated veteran now beats the unrated newbie
	// despite registration order.
	r3, err := g.RequestRide(alice.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r3.DriverID != veteran.ID {
		t.Fatalf("expected rated veteran, got %s", r3.DriverID)
	}
}

func TestRequestWithActiveRideRejected(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 1000)
	mustDriver(t, g, "bob", models.VehicleCar)
	mustDriver(t, g, "carol", models.VehicleCar)

	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Station"); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	// The failed request must not have grabbed the second driver.
	stats := g.CompanyStats()
	if stats.AvailableDrivers != 1 {
		t.Fatalf("expected 1 available driver, got %d", stats.AvailableDrivers)
	}
}

func TestRequestErrors(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 1000)

	if _, err := g.RequestRide(rv.ID, models.VehicleType("boat"), "X"); err == nil {
		t.Fatal("expected unknown vehicle type error")
	}
	if _, err := g.RequestRide("missing", models.VehicleCar, "X"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "X"); !errors.Is(err, matcher.ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}

	mustDriver(t, g, "bob", models.VehicleBike)
	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "X"); !errors.Is(err, matcher.ErrNoDriverAvailable) {
		t.Fatalf("wrong type must not match, got %v", err)
	}
}

func TestCompleteInsufficientFundsKeepsRideOpen(t *testing.T) {
	g := newTestRegistry(12)
	rv := mustRider(t, g, "alice", 100)
	mustDriver(t, g, "bob", models.VehicleCar)

	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := g.CompleteRide(rv.ID); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := g.ActiveRide(rv.ID); err != nil {
		t.Fatalf("ride must stay active: %v", err)
	}

	// Top up and retry.
	if _, err := g.AddFunds(rv.ID, 400); err != nil {
		t.Fatalf("add funds: %v", err)
	}
	done, err := g.CompleteRide(rv.ID)
	if err != nil {
		t.Fatalf("complete after top-up: %v", err)
	}
	if done.Status != models.RideCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if g.Riders()[0].Balance != 90 {
		t.Fatalf("expected 90, got %v", g.Riders()[0].Balance)
	}
}

func TestRiderCancelPaysFeeAndFreesDriver(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)

	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}
	r, err := g.CancelRide(rv.ID, models.ActorRider)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Status != models.RideCancelled || r.CancelledBy != models.ActorRider {
		t.Fatalf("unexpected ride: %+v", r)
	}
	if g.Riders()[0].Balance != 480 {
		t.Fatalf("rider balance: expected 480, got %v", g.Riders()[0].Balance)
	}
	d := g.Drivers()[0]
	if d.Balance != 20 || !d.Available || d.CompletedRides != 0 {
		t.Fatalf("driver after cancel: %+v", d)
	}

	hist, _ := g.RiderHistory(rv.ID)
	if len(hist) != 1 || hist[0].Status != models.RideCancelled {
		t.Fatalf("history: %+v", hist)
	}
	if _, err := g.ActiveRide(rv.ID); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("active ride must be cleared, got %v", err)
	}
}

func TestDriverCancelByDriverID(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 500)
	dv := mustDriver(t, g, "bob", models.VehicleCar)

	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}
	r, err := g.CancelRide(dv.ID, models.ActorDriver)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.CancelledBy != models.ActorDriver {
		t.Fatalf("expected driver cancel, got %s", r.CancelledBy)
	}
	if g.Riders()[0].Balance != 500 || g.Drivers()[0].Balance != 0 {
		t.Fatal("driver cancel must not move money")
	}
}

func TestCancelWithoutActiveRide(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 500)
	if _, err := g.CancelRide(rv.ID, models.ActorRider); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if _, err := g.CancelRide("missing", models.ActorRider); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTopRatedOrderingAndRatedOnly(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 10000)
	mustDriver(t, g, "fresh", models.VehicleBike)

	// Run two drivers through rated rides at different scores.
	first := mustDriver(t, g, "steady", models.VehicleCar)
	rideOne(t, g, rv.ID, models.VehicleCar, 4)
	second := mustDriver(t, g, "star", models.VehicleCNG)
	rideOne(t, g, rv.ID, models.VehicleCNG, 5)

	top := g.TopRatedDrivers(5)
	if len(top) != 2 {
		t.Fatalf("unrated driver leaked into top list: %+v", top)
	}
	if top[0].ID != second.ID || top[1].ID != first.ID {
		t.Fatalf("ordering wrong: %+v", top)
	}

	if got := g.TopRatedDrivers(1); len(got) != 1 || got[0].ID != second.ID {
		t.Fatalf("limit not applied: %+v", got)
	}

	found := g.SearchDrivers(4.5)
	if len(found) != 1 || found[0].ID != second.ID {
		t.Fatalf("search min 4.5: %+v", found)
	}
	if all := g.SearchDrivers(1); len(all) != 2 {
		t.Fatalf("search min 1: %+v", all)
	}
}

// rideOne runs a full request/complete/rate cycle for the rider.
func rideOne(t *testing.T, g *Registry, riderID string, vt models.VehicleType, score int) {
	t.Helper()
	r, err := g.RequestRide(riderID, vt, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := g.CompleteRide(riderID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := g.RateDriver(r.ID, score); err != nil {
		t.Fatalf("rate: %v", err)
	}
}

func TestSearchRidersByName(t *testing.T) {
	g := newTestRegistry(10)
	mustRider(t, g, "Alice Rahman", 0)
	mustRider(t, g, "Alina Khan", 0)
	mustRider(t, g, "Bob", 0)

	got := g.SearchRidersByName("ali")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	if got[0].Name != "Alice Rahman" || got[1].Name != "Alina Khan" {
		t.Fatalf("expected name order, got %+v", got)
	}
	if len(g.SearchRidersByName("zzz")) != 0 {
		t.Fatal("expected no matches")
	}
}

func TestAddFundsAndLocation(t *testing.T) {
	g := newTestRegistry(10)
	rv := mustRider(t, g, "alice", 100)

	bal, err := g.AddFunds(rv.ID, 50)
	if err != nil || bal != 150 {
		t.Fatalf("add funds: bal=%v err=%v", bal, err)
	}
	if _, err := g.AddFunds(rv.ID, -5); !errors.Is(err, wallet.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := g.AddFunds("missing", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := g.UpdateRiderLocation(rv.ID, "Dhanmondi"); err != nil {
		t.Fatalf("update location: %v", err)
	}
	mustDriver(t, g, "bob", models.VehicleCar)
	r, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r.StartLocation != "Dhanmondi" {
		t.Fatalf("expected ride from Dhanmondi, got %s", r.StartLocation)
	}
}

type memRepo struct {
	riders  []*models.Rider
	drivers []*models.Driver
	rides   []*models.Ride
	stats   models.CompanyStats
}

func (m *memRepo) LoadRiders() ([]*models.Rider, error)           { return m.riders, nil }
func (m *memRepo) SaveRiders(r []*models.Rider) error             { m.riders = r; return nil }
func (m *memRepo) LoadDrivers() ([]*models.Driver, error)         { return m.drivers, nil }
func (m *memRepo) SaveDrivers(d []*models.Driver) error           { m.drivers = d; return nil }
func (m *memRepo) LoadRides() ([]*models.Ride, error)             { return m.rides, nil }
func (m *memRepo) SaveRides(r []*models.Ride) error               { m.rides = r; return nil }
func (m *memRepo) LoadCompanyStats() (models.CompanyStats, error) { return m.stats, nil }
func (m *memRepo) SaveCompanyStats(s models.CompanyStats) error   { m.stats = s; return nil }

var _ storage.Repository = (*memRepo)(nil)

func TestSaveLoadRoundTrip(t *testing.T) {
	g := newTestRegistry(12)
	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)
	rideOne(t, g, rv.ID, models.VehicleCar, 5)

	repo := &memRepo{}
	if err := g.SaveAll(repo); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := newTestRegistry(12)
	if err := fresh.LoadAll(repo); err != nil {
		t.Fatalf("load: %v", err)
	}
	if fresh.Riders()[0].Balance != 90 {
		t.Fatalf("rider balance lost: %v", fresh.Riders()[0].Balance)
	}
	d := fresh.Drivers()[0]
	if d.Balance != 410 || d.Rating != 5.0 || d.CompletedRides != 1 {
		t.Fatalf("driver state lost: %+v", d)
	}
	stats := fresh.CompanyStats()
	if stats.TotalRides != 1 || stats.TotalRevenue != 410 {
		t.Fatalf("stats lost: %+v", stats)
	}
	hist, err := fresh.RiderHistory(rv.ID)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history lost: %v %+v", err, hist)
	}

	// The restored registry keeps working.
	if _, err := fresh.RequestRide(rv.ID, models.VehicleCar, "Station"); err != nil {
		t.Fatalf("request after restore: %v", err)
	}
}

func TestSaveLoadMidRideCompletes(t *testing.T) {
	g := newTestRegistry(12)
	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)
	trip, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// Snapshot while the ride is still open, as the shutdown path does.
	repo := &memRepo{}
	if err := g.SaveAll(repo); err != nil {
		t.Fatalf("save: %v", err)
	}
	fresh := newTestRegistry(12)
	if err := fresh.LoadAll(repo); err != nil {
		t.Fatalf("load: %v", err)
	}

	active, err := fresh.ActiveRide(rv.ID)
	if err != nil || active.ID != trip.ID {
		t.Fatalf("open ride lost in snapshot: %v %+v", err, active)
	}
	if fresh.Drivers()[0].Available {
		t.Fatal("driver must stay bound to the restored ride")
	}

	done, err := fresh.CompleteRide(rv.ID)
	if err != nil {
		t.Fatalf("complete after restore: %v", err)
	}
	if done.Status != models.RideCompleted || done.Fare != 410 {
		t.Fatalf("unexpected ride: %+v", done)
	}
	if fresh.Riders()[0].Balance != 90 || fresh.Drivers()[0].Balance != 410 {
		t.Fatalf("settlement after restore: rider=%v driver=%v",
			fresh.Riders()[0].Balance, fresh.Drivers()[0].Balance)
	}
	if fresh.CompanyStats().TotalRides != 1 {
		t.Fatalf("stats after restore: %+v", fresh.CompanyStats())
	}
}

func TestSaveLoadMidRideCancels(t *testing.T) {
	g := newTestRegistry(12)
	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)
	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}

	repo := &memRepo{}
	if err := g.SaveAll(repo); err != nil {
		t.Fatalf("save: %v", err)
	}
	fresh := newTestRegistry(12)
	if err := fresh.LoadAll(repo); err != nil {
		t.Fatalf("load: %v", err)
	}

	r, err := fresh.CancelRide(rv.ID, models.ActorRider)
	if err != nil {
		t.Fatalf("cancel after restore: %v", err)
	}
	if r.Status != models.RideCancelled {
		t.Fatalf("unexpected ride: %+v", r)
	}
	if fresh.Riders()[0].Balance != 480 || fresh.Drivers()[0].Balance != 20 {
		t.Fatalf("fee after restore: rider=%v driver=%v",
			fresh.Riders()[0].Balance, fresh.Drivers()[0].Balance)
	}
	if !fresh.Drivers()[0].Available {
		t.Fatal("driver must be freed")
	}
}

func TestLoadClearsDanglingRideReferences(t *testing.T) {
	// A snapshot written by an older binary: both parties reference a
	// ride the rides collection does not contain.
	repo := &memRepo{
		riders: []*models.Rider{{
			ID: "r1", Name: "alice", Location: "Banani",
			Wallet: wallet.Wallet{Balance: 500}, ActiveRideID: "ghost",
			CreatedAt: time.Now(),
		}},
		drivers: []*models.Driver{{
			ID: "d1", Name: "bob",
			Vehicle:      models.Vehicle{Type: models.VehicleCar, LicensePlate: "DHK-1", RatePerKm: 30, Capacity: 4},
			Available:    false,
			ActiveRideID: "ghost",
			CreatedAt:    time.Now(),
		}},
	}

	g := newTestRegistry(12)
	if err := g.LoadAll(repo); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := g.CompleteRide("r1"); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("complete with dangling ref: expected ErrInvalidState, got %v", err)
	}
	if _, err := g.CancelRide("r1", models.ActorRider); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("cancel with dangling ref: expected ErrInvalidState, got %v", err)
	}
	if _, err := g.ActiveRide("r1"); !errors.Is(err, ride.ErrInvalidState) {
		t.Fatalf("active with dangling ref: expected ErrInvalidState, got %v", err)
	}
	if !g.Drivers()[0].Available {
		t.Fatal("driver pinned to a missing ride must be freed")
	}

	// Both parties are usable again.
	r, err := g.RequestRide("r1", models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request after cleanup: %v", err)
	}
	if r.DriverID != "d1" {
		t.Fatalf("expected d1, got %s", r.DriverID)
	}
}

type capturedEvents struct{ events []models.RideEvent }

func (c *capturedEvents) PublishRideEvent(ev models.RideEvent) error {
	c.events = append(c.events, ev)
	return nil
}

type capturedPresence struct{ metas []presence.Meta }

func (c *capturedPresence) Update(ctx context.Context, m presence.Meta) error {
	c.metas = append(c.metas, m)
	return nil
}

type capturedNotifier struct {
	offers  []dispatch.Assignment
	cancels []dispatch.Cancellation
}

func (c *capturedNotifier) OfferRide(driverID string, a dispatch.Assignment) error {
	c.offers = append(c.offers, a)
	return nil
}

func (c *capturedNotifier) NotifyCancel(driverID string, n dispatch.Cancellation) error {
	c.cancels = append(c.cancels, n)
	return nil
}

func TestSideChannelsFired(t *testing.T) {
	g := newTestRegistry(12)
	events := &capturedEvents{}
	pres := &capturedPresence{}
	notif := &capturedNotifier{}
	g.Events = events
	g.Presence = pres
	g.Notifier = notif

	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)

	r, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(notif.offers) != 1 || notif.offers[0].RideID != r.ID || notif.offers[0].Fare != 410 {
		t.Fatalf("offer not dispatched: %+v", notif.offers)
	}
	if _, err := g.CancelRide(rv.ID, models.ActorRider); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(notif.cancels) != 1 || notif.cancels[0].RideID != r.ID {
		t.Fatalf("cancel not dispatched: %+v", notif.cancels)
	}

	var types []string
	for _, ev := range events.events {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != "requested" || types[1] != "cancelled" {
		t.Fatalf("event stream: %v", types)
	}
	// Mirror updated at registration, request, and cancel.
	if len(pres.metas) != 3 {
		t.Fatalf("presence updates: %+v", pres.metas)
	}
	last := pres.metas[len(pres.metas)-1]
	if !last.Available {
		t.Fatal("driver must mirror as available after cancel")
	}
}

// lockCheckPresence verifies the registry mutex has been released by the
// time the mirror write runs, so a slow cache cannot stall operations.
type lockCheckPresence struct {
	g        *Registry
	calls    int
	lockFree bool
}

func (p *lockCheckPresence) Update(ctx context.Context, m presence.Meta) error {
	p.calls++
	p.lockFree = p.g.mu.TryLock()
	if p.lockFree {
		p.g.mu.Unlock()
	}
	return nil
}

func TestMirrorRunsOutsideRegistryLock(t *testing.T) {
	g := newTestRegistry(12)
	pres := &lockCheckPresence{g: g}
	g.Presence = pres

	rv := mustRider(t, g, "alice", 500)
	mustDriver(t, g, "bob", models.VehicleCar)
	if pres.calls == 0 || !pres.lockFree {
		t.Fatal("registration mirrored while holding the registry lock")
	}

	if _, err := g.RequestRide(rv.ID, models.VehicleCar, "Airport"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !pres.lockFree {
		t.Fatal("request mirrored while holding the registry lock")
	}
	if _, err := g.CompleteRide(rv.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !pres.lockFree {
		t.Fatal("completion mirrored while holding the registry lock")
	}
}
