package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-marketplace/internal/models"
)

// PostgresRepository archives the same collections in Postgres for
// deployments that outgrow the JSON files. Each Save replaces the whole
// collection inside one transaction, matching the boundary contract.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", ErrStorage, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: ping postgres: %v", ErrStorage, err)
	}
	return &PostgresRepository{db: db}, nil
}

func (p *PostgresRepository) Close() error { return p.db.Close() }

func (p *PostgresRepository) SaveRiders(riders []*models.Rider) error {
	return p.replace("riders", func(tx *sql.Tx) error {
		for _, r := range riders {
			_, err := tx.Exec(`INSERT INTO riders(id, name, email, nid, location, balance, rating_sum, rating_count, active_ride_id, created_at)
				VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				r.ID, r.Name, r.Email, r.NID, r.Location, r.Wallet.Balance,
				r.Rating.Sum, r.Rating.Count, r.ActiveRideID, r.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepository) LoadRiders() ([]*models.Rider, error) {
	rows, err := p.db.Query(`SELECT id, name, email, nid, location, balance, rating_sum, rating_count, active_ride_id, created_at FROM riders`)
	if err != nil {
		return nil, fmt.Errorf("%w: load riders: %v", ErrStorage, err)
	}
	defer rows.Close()
	var out []*models.Rider
	for rows.Next() {
		var r models.Rider
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.NID, &r.Location,
			&r.Wallet.Balance, &r.Rating.Sum, &r.Rating.Count, &r.ActiveRideID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan rider: %v", ErrStorage, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) SaveDrivers(drivers []*models.Driver) error {
	return p.replace("drivers", func(tx *sql.Tx) error {
		for _, d := range drivers {
			_, err := tx.Exec(`INSERT INTO drivers(id, name, email, nid, location, vehicle_type, license_plate, rate_per_km, capacity, balance, rating_sum, rating_count, available, completed_rides, active_ride_id, created_at)
				VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
				d.ID, d.Name, d.Email, d.NID, d.Location,
				string(d.Vehicle.Type), d.Vehicle.LicensePlate, d.Vehicle.RatePerKm, d.Vehicle.Capacity,
				d.Wallet.Balance, d.Rating.Sum, d.Rating.Count, d.Available, d.CompletedRides, d.ActiveRideID, d.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepository) LoadDrivers() ([]*models.Driver, error) {
	rows, err := p.db.Query(`SELECT id, name, email, nid, location, vehicle_type, license_plate, rate_per_km, capacity, balance, rating_sum, rating_count, available, completed_rides, active_ride_id, created_at FROM drivers`)
	if err != nil {
		return nil, fmt.Errorf("%w: load drivers: %v", ErrStorage, err)
	}
	defer rows.Close()
	var out []*models.Driver
	for rows.Next() {
		var d models.Driver
		var vt string
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.NID, &d.Location,
			&vt, &d.Vehicle.LicensePlate, &d.Vehicle.RatePerKm, &d.Vehicle.Capacity,
			&d.Wallet.Balance, &d.Rating.Sum, &d.Rating.Count, &d.Available, &d.CompletedRides, &d.ActiveRideID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan driver: %v", ErrStorage, err)
		}
		d.Vehicle.Type = models.VehicleType(vt)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) SaveRides(rides []*models.Ride) error {
	return p.replace("rides", func(tx *sql.Tx) error {
		for _, r := range rides {
			_, err := tx.Exec(`INSERT INTO rides(id, rider_id, driver_id, vehicle_type, license_plate, start_location, end_location, distance_km, fare, status, cancelled_by, driver_score, rider_score, requested_at, ended_at)
				VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
				r.ID, r.RiderID, r.DriverID, string(r.Vehicle.Type), r.Vehicle.LicensePlate,
				r.StartLocation, r.EndLocation, r.DistanceKm, r.Fare,
				string(r.Status), string(r.CancelledBy), r.DriverScore, r.RiderScore, r.RequestedAt, r.EndedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresRepository) LoadRides() ([]*models.Ride, error) {
	rows, err := p.db.Query(`SELECT id, rider_id, driver_id, vehicle_type, license_plate, start_location, end_location, distance_km, fare, status, cancelled_by, driver_score, rider_score, requested_at, ended_at FROM rides ORDER BY ended_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: load rides: %v", ErrStorage, err)
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		var r models.Ride
		var vt, status, by string
		if err := rows.Scan(&r.ID, &r.RiderID, &r.DriverID, &vt, &r.Vehicle.LicensePlate,
			&r.StartLocation, &r.EndLocation, &r.DistanceKm, &r.Fare,
			&status, &by, &r.DriverScore, &r.RiderScore, &r.RequestedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ride: %v", ErrStorage, err)
		}
		r.Vehicle.Type = models.VehicleType(vt)
		r.Status = models.RideStatus(status)
		r.CancelledBy = models.Actor(by)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) SaveCompanyStats(stats models.CompanyStats) error {
	_, err := p.db.Exec(`INSERT INTO company_stats(id, company_name, riders, drivers, available_drivers, total_rides, total_revenue, updated_at)
		VALUES(1,$1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET company_name=$1, riders=$2, drivers=$3, available_drivers=$4, total_rides=$5, total_revenue=$6, updated_at=$7`,
		stats.CompanyName, stats.Riders, stats.Drivers, stats.AvailableDrivers,
		stats.TotalRides, stats.TotalRevenue, stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: save company stats: %v", ErrStorage, err)
	}
	return nil
}

func (p *PostgresRepository) LoadCompanyStats() (models.CompanyStats, error) {
	var s models.CompanyStats
	row := p.db.QueryRow(`SELECT company_name, riders, drivers, available_drivers, total_rides, total_revenue, updated_at FROM company_stats WHERE id = 1`)
	err := row.Scan(&s.CompanyName, &s.Riders, &s.Drivers, &s.AvailableDrivers, &s.TotalRides, &s.TotalRevenue, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.CompanyStats{}, nil
	}
	if err != nil {
		return models.CompanyStats{}, fmt.Errorf("%w: load company stats: %v", ErrStorage, err)
	}
	return s, nil
}

func (p *PostgresRepository) replace(table string, insert func(tx *sql.Tx) error) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorage, err)
	}
	if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: clear %s: %v", ErrStorage, table, err)
	}
	if err := insert(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: insert %s: %v", ErrStorage, table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", ErrStorage, table, err)
	}
	return nil
}
