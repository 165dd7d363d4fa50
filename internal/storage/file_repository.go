package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/ride-marketplace/internal/models"
)

// FileRepository persists each collection as one JSON file in a data
// directory. A missing file loads as an empty collection so a fresh
// process starts clean.
type FileRepository struct {
	dir string
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrStorage, err)
	}
	return &FileRepository{dir: dir}, nil
}

const (
	ridersFile  = "riders.json"
	driversFile = "drivers.json"
	ridesFile   = "rides.json"
	companyFile = "company.json"
)

func (f *FileRepository) LoadRiders() ([]*models.Rider, error) {
	var out []*models.Rider
	if err := f.load(ridersFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileRepository) SaveRiders(riders []*models.Rider) error {
	return f.save(ridersFile, riders)
}

func (f *FileRepository) LoadDrivers() ([]*models.Driver, error) {
	var out []*models.Driver
	if err := f.load(driversFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileRepository) SaveDrivers(drivers []*models.Driver) error {
	return f.save(driversFile, drivers)
}

func (f *FileRepository) LoadRides() ([]*models.Ride, error) {
	var out []*models.Ride
	if err := f.load(ridesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileRepository) SaveRides(rides []*models.Ride) error {
	return f.save(ridesFile, rides)
}

func (f *FileRepository) LoadCompanyStats() (models.CompanyStats, error) {
	var out models.CompanyStats
	if err := f.load(companyFile, &out); err != nil {
		return models.CompanyStats{}, err
	}
	return out, nil
}

func (f *FileRepository) SaveCompanyStats(stats models.CompanyStats) error {
	return f.save(companyFile, stats)
}

func (f *FileRepository) load(name string, dst any) error {
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrStorage, name, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrStorage, name, err)
	}
	return nil
}

func (f *FileRepository) save(name string, src any) error {
	b, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, name, err)
	}
	// Write to a temp file in the same dir and rename so a crash
	// mid-write cannot truncate the previous snapshot.
	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrStorage, name, err)
	}
	return nil
}
