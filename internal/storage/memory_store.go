package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-booking/internal/models"
)

// MemoryStore keeps everything in process. It backs local runs without
// PG_DSN and the tests; operations match PostgresStore semantics.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	settings map[int64]models.SecuritySettings
	rides    map[int64]*models.Ride
	drivers  map[int64]*models.Driver
	vehicles map[int64]models.Vehicle
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]models.User),
		settings: make(map[int64]models.SecuritySettings),
		rides:    make(map[int64]*models.Ride),
		drivers:  make(map[int64]*models.Driver),
		vehicles: make(map[int64]models.Vehicle),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser adds u and sets its ID.
func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	m.users[u.ID] = *u
	return nil
}

// CreateDriver adds a driver with one vehicle. New drivers are available.
func (m *MemoryStore) CreateDriver(ctx context.Context, d *models.Driver, v *models.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Available = true
	d.CurrentRideID = nil
	cp := *d
	m.drivers[d.ID] = &cp
	v.ID = m.id()
	v.DriverID = d.ID
	m.vehicles[v.ID] = *v
	return nil
}

// Driver returns a copy of the stored driver.
func (m *MemoryStore) Driver(id int64) (models.Driver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, false
	}
	return *d, true
}

// SettingsCount reports how many settings rows exist.
func (m *MemoryStore) SettingsCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.settings)
}

// RideCount reports how many rides exist.
func (m *MemoryStore) RideCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func (m *MemoryStore) FindUserByLogin(ctx context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		u := m.users[id]
		if u.Email == username || u.Phone == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MemoryStore) GetSecuritySettings(ctx context.Context, userID int64) (models.SecuritySettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[userID]
	return s, ok, nil
}

func (m *MemoryStore) UpsertSecuritySettings(ctx context.Context, s models.SecuritySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	m.settings[s.UserID] = s
	return nil
}

func (m *MemoryStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	r.ID = m.id()
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id int64) (models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	return *r, nil
}

func (m *MemoryStore) AvailableDrivers(ctx context.Context, class models.VehicleClass, limit int) ([]models.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Candidate, 0)
	for _, v := range m.vehicles {
		if v.Class != class {
			continue
		}
		d, ok := m.drivers[v.DriverID]
		if !ok || !d.Available || d.CurrentRideID != nil {
			continue
		}
		out = append(out, models.Candidate{Driver: *d, Vehicle: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Driver, out[j].Driver
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return out[i].Vehicle.ID < out[j].Vehicle.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AssignDriver(ctx context.Context, rideID int64, c models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	d, ok := m.drivers[c.Driver.ID]
	if !ok || !d.Available || d.CurrentRideID != nil {
		return ErrDriverTaken
	}
	if r.Status != models.RideRequested {
		return ErrRideState
	}
	id := rideID
	d.Available = false
	d.CurrentRideID = &id
	driverID, vehicleID := c.Driver.ID, c.Vehicle.ID
	r.DriverID = &driverID
	r.VehicleID = &vehicleID
	r.Status = models.RideAccepted
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ReleaseRide(ctx context.Context, rideID int64, from []models.RideStatus, to models.RideStatus) (models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return models.Ride{}, ErrNotFound
	}
	if !statusIn(r.Status, from) {
		return *r, ErrRideState
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	if r.DriverID != nil {
		if d, ok := m.drivers[*r.DriverID]; ok && d.CurrentRideID != nil && *d.CurrentRideID == rideID {
			d.Available = true
			d.CurrentRideID = nil
		}
	}
	return *r, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
