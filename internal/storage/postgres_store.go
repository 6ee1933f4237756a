package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-booking/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate applies the embedded migrations in file name order. Every
// statement is idempotent so it is safe to run on each start.
func (p *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return names, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (full_name, email, phone, password_hash, job_title, member_type)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6) RETURNING id`,
		u.FullName, u.Email, u.Phone, u.PasswordHash, u.JobTitle, u.MemberType,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CreateDriver inserts a driver and its vehicle in one transaction.
func (p *PostgresStore) CreateDriver(ctx context.Context, d *models.Driver, v *models.Vehicle) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO drivers (full_name, phone) VALUES ($1, $2) RETURNING id, created_at`,
		d.FullName, d.Phone,
	).Scan(&d.ID, &d.CreatedAt); err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO vehicles (driver_id, make, model, plate_number, vehicle_type) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		d.ID, v.Make, v.Model, v.PlateNumber, string(v.Class),
	).Scan(&v.ID); err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	d.Available = true
	v.DriverID = d.ID
	return nil
}

func (p *PostgresStore) FindUserByLogin(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, full_name, COALESCE(email, ''), COALESCE(phone, ''), password_hash,
		        COALESCE(job_title, ''), COALESCE(member_type, '')
		 FROM users WHERE email = $1 OR phone = $1 ORDER BY id LIMIT 1`,
		username,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash, &u.JobTitle, &u.MemberType)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) GetSecuritySettings(ctx context.Context, userID int64) (models.SecuritySettings, bool, error) {
	s := models.SecuritySettings{UserID: userID}
	err := p.db.QueryRowContext(ctx,
		`SELECT enable_driver_calls, share_live_location, private_mode, updated_at
		 FROM user_security_settings WHERE user_id = $1`,
		userID,
	).Scan(&s.EnableDriverCalls, &s.ShareLiveLocation, &s.PrivateMode, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SecuritySettings{UserID: userID}, false, nil
	}
	if err != nil {
		return models.SecuritySettings{}, false, fmt.Errorf("query security settings: %w", err)
	}
	return s, true, nil
}

const upsertSecuritySQL = `INSERT INTO user_security_settings (user_id, enable_driver_calls, share_live_location, private_mode)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
    enable_driver_calls = EXCLUDED.enable_driver_calls,
    share_live_location = EXCLUDED.share_live_location,
    private_mode = EXCLUDED.private_mode,
    updated_at = now()`

func (p *PostgresStore) UpsertSecuritySettings(ctx context.Context, s models.SecuritySettings) error {
	_, err := p.db.ExecContext(ctx, upsertSecuritySQL, s.UserID, s.EnableDriverCalls, s.ShareLiveLocation, s.PrivateMode)
	if err != nil {
		return fmt.Errorf("upsert security settings: %w", err)
	}
	return nil
}

func (p *PostgresStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const insertRideSQL = `INSERT INTO rides (user_id, pickup_address, pickup_lat, pickup_lng, destination_address, destination_lat, destination_lng, ride_type, fare, status, scheduled_time, payment_intent_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at, updated_at`

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	err := p.db.QueryRowContext(ctx, insertRideSQL,
		r.UserID,
		r.Pickup.Address, nullFloat(r.Pickup.Lat), nullFloat(r.Pickup.Lng),
		r.Destination.Address, nullFloat(r.Destination.Lat), nullFloat(r.Destination.Lng),
		string(r.Class), r.Fare, string(r.Status),
		nullTime(r.ScheduledTime), nullString(r.PaymentIntentID),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

const selectRideSQL = `SELECT id, user_id, pickup_address, pickup_lat, pickup_lng, destination_address, destination_lat, destination_lng,
       ride_type, fare, status, scheduled_time, driver_id, vehicle_id, COALESCE(payment_intent_id, ''), created_at, updated_at
FROM rides WHERE id = $1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (models.Ride, error) {
	var (
		r                      models.Ride
		pLat, pLng, dLat, dLng sql.NullFloat64
		scheduled              sql.NullTime
		driverID, vehicleID    sql.NullInt64
		class, status          string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Pickup.Address, &pLat, &pLng, &r.Destination.Address, &dLat, &dLng,
		&class, &r.Fare, &status, &scheduled, &driverID, &vehicleID, &r.PaymentIntentID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Ride{}, err
	}
	r.Class = models.VehicleClass(class)
	r.Status = models.RideStatus(status)
	r.Pickup.Lat, r.Pickup.Lng = floatPtr(pLat), floatPtr(pLng)
	r.Destination.Lat, r.Destination.Lng = floatPtr(dLat), floatPtr(dLng)
	if scheduled.Valid {
		t := scheduled.Time
		r.ScheduledTime = &t
	}
	r.DriverID, r.VehicleID = intPtr(driverID), intPtr(vehicleID)
	return r, nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id int64) (models.Ride, error) {
	r, err := scanRide(p.db.QueryRowContext(ctx, selectRideSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, ErrNotFound
	}
	if err != nil {
		return models.Ride{}, fmt.Errorf("query ride: %w", err)
	}
	return r, nil
}

const availableDriversSQL = `SELECT d.id, d.full_name, d.phone, d.created_at, v.id, v.make, v.model, v.plate_number, v.vehicle_type
FROM drivers d
JOIN vehicles v ON v.driver_id = d.id
WHERE d.is_available = true AND d.current_ride_id IS NULL AND v.vehicle_type = $1
ORDER BY d.created_at, d.id, v.id
LIMIT $2`

func (p *PostgresStore) AvailableDrivers(ctx context.Context, class models.VehicleClass, limit int) ([]models.Candidate, error) {
	rows, err := p.db.QueryContext(ctx, availableDriversSQL, string(class), limit)
	if err != nil {
		return nil, fmt.Errorf("query available drivers: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var vclass string
		if err := rows.Scan(&c.Driver.ID, &c.Driver.FullName, &c.Driver.Phone, &c.Driver.CreatedAt,
			&c.Vehicle.ID, &c.Vehicle.Make, &c.Vehicle.Model, &c.Vehicle.PlateNumber, &vclass); err != nil {
			return nil, fmt.Errorf("scan driver row: %w", err)
		}
		c.Driver.Available = true
		c.Vehicle.DriverID = c.Driver.ID
		c.Vehicle.Class = models.VehicleClass(vclass)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate driver rows: %w", err)
	}
	return out, nil
}

const claimDriverSQL = `UPDATE drivers SET is_available = false, current_ride_id = $1
WHERE id = $2 AND is_available = true AND current_ride_id IS NULL`

const acceptRideSQL = `UPDATE rides SET driver_id = $1, vehicle_id = $2, status = 'accepted', updated_at = now()
WHERE id = $3 AND status = 'requested'`

// AssignDriver runs the claim as a compare-and-swap on the driver row; under
// READ COMMITTED a concurrent claim makes the WHERE clause fail on re-check,
// so only one booking can win a given driver.
func (p *PostgresStore) AssignDriver(ctx context.Context, rideID int64, c models.Candidate) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, claimDriverSQL, rideID, c.Driver.ID)
	if err != nil {
		return fmt.Errorf("claim driver: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("claim driver: %w", err)
	} else if n == 0 {
		return ErrDriverTaken
	}

	res, err = tx.ExecContext(ctx, acceptRideSQL, c.Driver.ID, c.Vehicle.ID, rideID)
	if err != nil {
		return fmt.Errorf("accept ride: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("accept ride: %w", err)
	} else if n == 0 {
		return ErrRideState
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const releaseDriverSQL = `UPDATE drivers SET is_available = true, current_ride_id = NULL
WHERE id = $1 AND current_ride_id = $2`

func (p *PostgresStore) ReleaseRide(ctx context.Context, rideID int64, from []models.RideStatus, to models.RideStatus) (models.Ride, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Ride{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanRide(tx.QueryRowContext(ctx, selectRideSQL+" FOR UPDATE", rideID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, ErrNotFound
	}
	if err != nil {
		return models.Ride{}, fmt.Errorf("lock ride: %w", err)
	}
	if !statusIn(r.Status, from) {
		return r, ErrRideState
	}

	var updated time.Time
	if err := tx.QueryRowContext(ctx,
		`UPDATE rides SET status = $1, updated_at = now() WHERE id = $2 RETURNING updated_at`,
		string(to), rideID,
	).Scan(&updated); err != nil {
		return models.Ride{}, fmt.Errorf("update ride status: %w", err)
	}
	if r.DriverID != nil {
		if _, err := tx.ExecContext(ctx, releaseDriverSQL, *r.DriverID, rideID); err != nil {
			return models.Ride{}, fmt.Errorf("release driver: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Ride{}, fmt.Errorf("commit: %w", err)
	}
	r.Status = to
	r.UpdatedAt = updated
	return r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
