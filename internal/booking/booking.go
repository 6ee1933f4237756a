// Package booking implements the ride booking workflow: fare, ride insert,
// driver selection and atomic assignment, and the release path that frees a
// driver when a ride is completed or cancelled.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/ride-booking/internal/apperr"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/pricing"
	"github.com/example/ride-booking/internal/storage"
)

type Locator interface {
	Positions(ctx context.Context, driverIDs []int64) (map[int64]models.Coord, error)
}

type Notifier interface {
	NotifyAssignment(driverID int64, a models.Assignment) error
}

type EventPublisher interface {
	PublishRideEvent(ctx context.Context, e models.RideEvent) error
}

// Payments places a hold for the fare at booking time.
type Payments interface {
	Hold(ctx context.Context, amount int64, userID int64) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

const (
	defaultCandidateLimit = 8
	defaultEventTimeout   = 250 * time.Millisecond
)

// Service books rides. Store is required; every other collaborator is
// optional and skipped when nil.
type Service struct {
	Store          storage.RideStore
	Locator        Locator
	Notifier       Notifier
	Events         EventPublisher
	Payments       Payments
	CandidateLimit int
	// EventTimeout bounds each PublishRideEvent call.
	EventTimeout time.Duration
	Logger       *slog.Logger
}

type BookRequest struct {
	UserID        int64
	Pickup        models.Location
	Destination   models.Location
	VehicleType   string
	ScheduledTime *time.Time
}

type BookResult struct {
	Ride   models.Ride
	Driver *models.DriverSummary
}

// Layouts accepted for scheduled_time.
var scheduledLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"}

// ParseScheduledTime parses an optional scheduled_time value. Blank input
// yields nil.
func ParseScheduledTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range scheduledLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.ValidationError("Invalid scheduled_time")
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Book creates the ride and tries to assign a driver. Failing to find or
// claim a driver is not an error: the ride stays requested and Driver is nil.
func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	start := time.Now()
	defer func() { observability.BookingLatency.Observe(time.Since(start).Seconds()) }()

	if req.UserID <= 0 || strings.TrimSpace(req.Pickup.Address) == "" || strings.TrimSpace(req.Destination.Address) == "" {
		return BookResult{}, apperr.ValidationError("Required fields missing")
	}

	class := pricing.NormalizeVehicleClass(req.VehicleType)
	ride := &models.Ride{
		UserID:        req.UserID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Class:         class,
		Fare:          pricing.FareFor(class),
		Status:        models.RideRequested,
		ScheduledTime: req.ScheduledTime,
	}

	if s.Payments != nil {
		id, err := s.Payments.Hold(ctx, ride.Fare, ride.UserID)
		if err != nil {
			s.logger().Warn("payment_hold_failed", "user_id", ride.UserID, "fare", ride.Fare, "error", err)
		} else {
			ride.PaymentIntentID = id
		}
	}

	if err := s.Store.CreateRide(ctx, ride); err != nil {
		s.logger().Error("create_ride_failed", "user_id", ride.UserID, "error", err)
		s.cancelHold(ctx, ride.PaymentIntentID)
		return BookResult{}, apperr.PersistenceError("Failed to book ride", err)
	}
	observability.RidesBooked.WithLabelValues(string(class)).Inc()
	s.logger().Info("ride_created", "ride_id", ride.ID, "user_id", ride.UserID, "ride_type", class, "fare", ride.Fare)
	s.publish(ctx, "ride.requested", *ride)

	res := BookResult{Ride: *ride}
	c, ok := s.assign(ctx, ride)
	if !ok {
		return res, nil
	}

	driverID, vehicleID := c.Driver.ID, c.Vehicle.ID
	res.Ride.DriverID = &driverID
	res.Ride.VehicleID = &vehicleID
	res.Ride.Status = models.RideAccepted
	sum := c.Summary()
	res.Driver = &sum

	s.notify(res.Ride)
	s.publish(ctx, "ride.assigned", res.Ride)
	return res, nil
}

// assign walks the ranked candidates until one claim succeeds. A candidate
// lost to a concurrent booking is skipped; any other store error ends the
// attempt and leaves the ride requested.
func (s *Service) assign(ctx context.Context, ride *models.Ride) (models.Candidate, bool) {
	limit := s.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	cands, err := s.Store.AvailableDrivers(ctx, ride.Class, limit)
	if err != nil {
		observability.Assignments.WithLabelValues("failed").Inc()
		s.logger().Error("driver_lookup_failed", "ride_id", ride.ID, "error", err)
		return models.Candidate{}, false
	}
	s.rank(ctx, ride, cands)

	tried := make(map[int64]bool, len(cands))
	for _, c := range cands {
		if tried[c.Driver.ID] {
			continue
		}
		tried[c.Driver.ID] = true

		err := s.Store.AssignDriver(ctx, ride.ID, c)
		switch {
		case err == nil:
			observability.Assignments.WithLabelValues("assigned").Inc()
			s.logger().Info("driver_assigned", "ride_id", ride.ID, "driver_id", c.Driver.ID, "vehicle_id", c.Vehicle.ID)
			return c, true
		case errors.Is(err, storage.ErrDriverTaken):
			observability.AssignmentRaces.Inc()
			s.logger().Debug("driver_taken", "ride_id", ride.ID, "driver_id", c.Driver.ID)
		default:
			observability.Assignments.WithLabelValues("failed").Inc()
			s.logger().Error("assign_driver_failed", "ride_id", ride.ID, "driver_id", c.Driver.ID, "error", err)
			return models.Candidate{}, false
		}
	}
	observability.Assignments.WithLabelValues("no_driver").Inc()
	s.logger().Info("no_driver_available", "ride_id", ride.ID, "ride_type", ride.Class)
	return models.Candidate{}, false
}

// rank applies the nearest-first tie-break when positions are known;
// otherwise the store's earliest-registered order stands.
func (s *Service) rank(ctx context.Context, ride *models.Ride, cands []models.Candidate) {
	origin, ok := ride.Pickup.Coord()
	if !ok || s.Locator == nil || len(cands) < 2 {
		return
	}
	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.Driver.ID
	}
	pos, err := s.Locator.Positions(ctx, ids)
	if err != nil {
		s.logger().Warn("driver_positions_failed", "ride_id", ride.ID, "error", err)
		return
	}
	geo.RankNearest(origin, cands, pos)
}

func (s *Service) Get(ctx context.Context, id int64) (models.Ride, error) {
	r, err := s.Store.GetRide(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Ride{}, apperr.NotFoundError("Ride not found")
	}
	if err != nil {
		return models.Ride{}, apperr.PersistenceError("Failed to load ride", err)
	}
	return r, nil
}

// Complete finishes an accepted ride and frees its driver.
func (s *Service) Complete(ctx context.Context, id int64) (models.Ride, error) {
	r, err := s.release(ctx, id, []models.RideStatus{models.RideAccepted}, models.RideCompleted)
	if err != nil {
		return models.Ride{}, err
	}
	if s.Payments != nil && r.PaymentIntentID != "" {
		if err := s.Payments.Capture(ctx, r.PaymentIntentID); err != nil {
			s.logger().Error("payment_capture_failed", "ride_id", r.ID, "error", err)
		}
	}
	return r, nil
}

// Cancel cancels a requested or accepted ride and frees its driver, if any.
func (s *Service) Cancel(ctx context.Context, id int64) (models.Ride, error) {
	r, err := s.release(ctx, id, []models.RideStatus{models.RideRequested, models.RideAccepted}, models.RideCancelled)
	if err != nil {
		return models.Ride{}, err
	}
	s.cancelHold(ctx, r.PaymentIntentID)
	return r, nil
}

func (s *Service) release(ctx context.Context, id int64, from []models.RideStatus, to models.RideStatus) (models.Ride, error) {
	r, err := s.Store.ReleaseRide(ctx, id, from, to)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return models.Ride{}, apperr.NotFoundError("Ride not found")
	case errors.Is(err, storage.ErrRideState):
		return models.Ride{}, apperr.ConflictError("Ride cannot be " + string(to) + " from status " + string(r.Status))
	case err != nil:
		s.logger().Error("release_ride_failed", "ride_id", id, "status", to, "error", err)
		return models.Ride{}, apperr.PersistenceError("Failed to update ride", err)
	}
	observability.RidesReleased.WithLabelValues(string(to)).Inc()
	s.logger().Info("ride_released", "ride_id", id, "status", to, "driver_id", r.DriverID)
	s.publish(ctx, "ride."+string(to), r)
	return r, nil
}

func (s *Service) cancelHold(ctx context.Context, paymentIntentID string) {
	if s.Payments == nil || paymentIntentID == "" {
		return
	}
	if err := s.Payments.Cancel(ctx, paymentIntentID); err != nil {
		s.logger().Error("payment_cancel_failed", "payment_intent", paymentIntentID, "error", err)
	}
}

func (s *Service) notify(r models.Ride) {
	if s.Notifier == nil || r.DriverID == nil {
		return
	}
	a := models.Assignment{
		Type:               "ride.assigned",
		RideID:             r.ID,
		PickupAddress:      r.Pickup.Address,
		DestinationAddress: r.Destination.Address,
		Class:              r.Class,
		Fare:               r.Fare,
		ScheduledTime:      r.ScheduledTime,
	}
	if err := s.Notifier.NotifyAssignment(*r.DriverID, a); err != nil {
		s.logger().Warn("notify_driver_failed", "ride_id", r.ID, "driver_id", *r.DriverID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, typ string, r models.Ride) {
	if s.Events == nil {
		return
	}
	e := models.RideEvent{
		Type:     typ,
		RideID:   r.ID,
		UserID:   r.UserID,
		Status:   r.Status,
		Class:    r.Class,
		Fare:     r.Fare,
		DriverID: r.DriverID,
		At:       time.Now().UTC(),
	}
	timeout := s.EventTimeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Events.PublishRideEvent(ctx, e); err != nil {
		s.logger().Warn("publish_ride_event_failed", "ride_id", r.ID, "type", typ, "error", err)
	}
}
