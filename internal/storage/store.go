package storage

import (
	"context"
	"errors"

	"github.com/example/ride-booking/internal/models"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrDriverTaken means the driver was no longer free when the
	// conditional assignment ran.
	ErrDriverTaken = errors.New("storage: driver no longer available")
	// ErrRideState means the ride was not in a status the operation accepts.
	ErrRideState = errors.New("storage: ride in unexpected state")
)

// UserStore covers login lookups and security preferences.
type UserStore interface {
	// FindUserByLogin matches username against email or phone.
	FindUserByLogin(ctx context.Context, username string) (models.User, error)
	// GetSecuritySettings reports found=false when the user has no row yet.
	GetSecuritySettings(ctx context.Context, userID int64) (s models.SecuritySettings, found bool, err error)
	UpsertSecuritySettings(ctx context.Context, s models.SecuritySettings) error
	// UpdatePasswordHash replaces the stored hash. It returns ErrNotFound for
	// an unknown user.
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

// RideStore defines persistence operations for rides and their drivers.
type RideStore interface {
	// CreateRide inserts r and fills in its ID and timestamps.
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id int64) (models.Ride, error)
	// AvailableDrivers lists free drivers owning a vehicle of class,
	// earliest-registered first.
	AvailableDrivers(ctx context.Context, class models.VehicleClass, limit int) ([]models.Candidate, error)
	// AssignDriver claims the candidate's driver for rideID and marks the ride
	// accepted in one atomic step. It returns ErrDriverTaken if the driver was
	// claimed concurrently and ErrRideState if the ride is not requested.
	AssignDriver(ctx context.Context, rideID int64, c models.Candidate) error
	// ReleaseRide moves a ride whose status is in from to status to and frees
	// its driver, atomically.
	ReleaseRide(ctx context.Context, rideID int64, from []models.RideStatus, to models.RideStatus) (models.Ride, error)
}

type Store interface {
	UserStore
	RideStore
	Ping(ctx context.Context) error
	Close() error
}

func statusIn(s models.RideStatus, set []models.RideStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}
