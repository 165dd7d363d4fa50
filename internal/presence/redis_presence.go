// Package presence mirrors driver availability and rating into Redis so
// read-heavy surfaces (driver apps polling, ops dashboards) don't hit
// the registry. The mirror is advisory: the registry remains the source
// of truth and writes here are best-effort.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-marketplace/internal/models"
)

const availSetPrefix = "presence:available:"

func metaKey(id string) string { return "driver:meta:" + id }

type Meta struct {
	DriverID    string
	VehicleType models.VehicleType
	Available   bool
	Rated       bool
	Rating      float64
	Updated     time.Time
}

type Store struct {
	client *redis.Client
}

func NewStore(addr, password string) *Store {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Store{client: c}
}

// NewStoreWithClient is for callers that already hold a client (consumer).
func NewStoreWithClient(c *redis.Client) *Store { return &Store{client: c} }

// Update writes the driver hash and maintains the per-vehicle-type
// available set in one pipeline.
func (s *Store) Update(ctx context.Context, m Meta) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, metaKey(m.DriverID), map[string]interface{}{
		"vehicle_type": string(m.VehicleType),
		"available":    strconv.FormatBool(m.Available),
		"rated":        strconv.FormatBool(m.Rated),
		"rating":       strconv.FormatFloat(m.Rating, 'f', -1, 64),
		"updated":      m.Updated.UTC().Format(time.RFC3339),
	})
	set := availSetPrefix + string(m.VehicleType)
	if m.Available {
		pipe.SAdd(ctx, set, m.DriverID)
	} else {
		pipe.SRem(ctx, set, m.DriverID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AvailableDrivers lists driver IDs mirrored as available for a type.
func (s *Store) AvailableDrivers(ctx context.Context, t models.VehicleType) ([]string, error) {
	return s.client.SMembers(ctx, availSetPrefix+string(t)).Result()
}

// Driver reads one driver's mirrored state.
func (s *Store) Driver(ctx context.Context, id string) (Meta, error) {
	vals, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return Meta{}, err
	}
	m := Meta{DriverID: id, VehicleType: models.VehicleType(vals["vehicle_type"])}
	m.Available, _ = strconv.ParseBool(vals["available"])
	m.Rated, _ = strconv.ParseBool(vals["rated"])
	m.Rating, _ = strconv.ParseFloat(vals["rating"], 64)
	if ts, err := time.Parse(time.RFC3339, vals["updated"]); err == nil {
		m.Updated = ts
	}
	return m, nil
}

func (s *Store) Close() error { return s.client.Close() }
