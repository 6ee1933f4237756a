package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/ride-booking/internal/account"
	"github.com/example/ride-booking/internal/apperr"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		respond(w, http.StatusBadRequest, "Username and password required", nil)
		return
	}
	res, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Login successful", map[string]any{
		"user":              res.User,
		"security_settings": res.Settings,
	})
}

// userID decodes user_id sent either as a JSON number or as a numeric
// string. null and "" decode to zero.
type userID int64

func (u *userID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*u = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*u = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*u = userID(n)
	return nil
}

type bookRideRequest struct {
	UserID             userID   `json:"user_id"`
	PickupAddress      string   `json:"pickup_address"`
	PickupLat          *float64 `json:"pickup_lat"`
	PickupLng          *float64 `json:"pickup_lng"`
	DestinationAddress string   `json:"destination_address"`
	DestinationLat     *float64 `json:"destination_lat"`
	DestinationLng     *float64 `json:"destination_lng"`
	VehicleType        string   `json:"vehicle_type"`
	ScheduledTime      string   `json:"scheduled_time"`
}

func (s *Server) handleBookRide(w http.ResponseWriter, r *http.Request) {
	var req bookRideRequest
	if err := readJSON(w, r, &req); err != nil {
		respond(w, http.StatusBadRequest, "Required fields missing", nil)
		return
	}
	scheduled, err := booking.ParseScheduledTime(req.ScheduledTime)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.booking.Book(r.Context(), booking.BookRequest{
		UserID:        int64(req.UserID),
		Pickup:        models.Location{Address: req.PickupAddress, Lat: req.PickupLat, Lng: req.PickupLng},
		Destination:   models.Location{Address: req.DestinationAddress, Lat: req.DestinationLat, Lng: req.DestinationLng},
		VehicleType:   req.VehicleType,
		ScheduledTime: scheduled,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Ride booked successfully", map[string]any{
		"ride_id": res.Ride.ID,
		"fare":    res.Ride.Fare,
		"status":  res.Ride.Status,
		"driver":  res.Driver,
	})
}

type updateSecurityRequest struct {
	UserID            userID `json:"user_id"`
	EnableDriverCalls bool   `json:"enable_driver_calls"`
	ShareLiveLocation bool   `json:"share_live_location"`
	PrivateMode       bool   `json:"private_mode"`
}

func (s *Server) handleUpdateSecurity(w http.ResponseWriter, r *http.Request) {
	var req updateSecurityRequest
	if err := readJSON(w, r, &req); err != nil {
		respond(w, http.StatusBadRequest, "User ID required", nil)
		return
	}
	err := s.accounts.UpdateSecurity(r.Context(), account.UpdateSecurityRequest{
		UserID:            int64(req.UserID),
		EnableDriverCalls: req.EnableDriverCalls,
		ShareLiveLocation: req.ShareLiveLocation,
		PrivateMode:       req.PrivateMode,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Security settings updated", nil)
}

// rideView is the ride as returned by the ride endpoints.
type rideView struct {
	models.Ride
	PickupAddress      string   `json:"pickup_address"`
	PickupLat          *float64 `json:"pickup_lat,omitempty"`
	PickupLng          *float64 `json:"pickup_lng,omitempty"`
	DestinationAddress string   `json:"destination_address"`
	DestinationLat     *float64 `json:"destination_lat,omitempty"`
	DestinationLng     *float64 `json:"destination_lng,omitempty"`
}

func newRideView(r models.Ride) rideView {
	return rideView{
		Ride:               r,
		PickupAddress:      r.Pickup.Address,
		PickupLat:          r.Pickup.Lat,
		PickupLng:          r.Pickup.Lng,
		DestinationAddress: r.Destination.Address,
		DestinationLat:     r.Destination.Lat,
		DestinationLng:     r.Destination.Lng,
	}
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond(w, http.StatusNotFound, "Ride not found", nil)
		return
	}
	ride, err := s.booking.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "OK", map[string]any{"ride": newRideView(ride)})
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	s.releaseRide(w, r, s.booking.Complete, "Ride completed")
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	s.releaseRide(w, r, s.booking.Cancel, "Ride cancelled")
}

func (s *Server) releaseRide(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (models.Ride, error), message string) {
	id, ok := pathID(r)
	if !ok {
		respond(w, http.StatusNotFound, "Ride not found", nil)
		return
	}
	ride, err := op(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, message, map[string]any{"ride": newRideView(ride)})
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (l locationRequest) valid() bool {
	return l.Lat != nil && l.Lng != nil &&
		*l.Lat >= -90 && *l.Lat <= 90 && *l.Lng >= -180 && *l.Lng <= 180
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond(w, http.StatusBadRequest, "Driver ID required", nil)
		return
	}
	var req locationRequest
	if err := readJSON(w, r, &req); err != nil || !req.valid() {
		respond(w, http.StatusBadRequest, "Valid lat and lng required", nil)
		return
	}
	p := models.DriverPosition{DriverID: id, Loc: models.Coord{Lat: *req.Lat, Lon: *req.Lng}, Updated: time.Now().UTC()}

	if s.locations != nil {
		if err := s.locations.PublishLocation(r.Context(), p); err != nil {
			s.logger.Warn("publish_location_failed", "driver_id", id, "error", err)
		}
	}
	if s.geo != nil {
		if err := s.geo.Upsert(r.Context(), p); err != nil {
			s.respondError(w, r, apperr.PersistenceError("Failed to store location", err))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleDriverWS keeps a driver's session registered until the socket closes.
// Assignments are pushed through the registry.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "driver id required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_upgrade_failed", "driver_id", id, "error", err)
		return
	}
	s.wsreg.Add(id, conn)
	observability.DriversConnected.Inc()
	s.logger.Info("driver_connected", "driver_id", id)
	defer func() {
		s.wsreg.Remove(id, conn)
		observability.DriversConnected.Dec()
		_ = conn.Close()
		s.logger.Info("driver_disconnected", "driver_id", id)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			s.logger.Warn("readiness_check_failed", "dependency", name, "error", err)
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
