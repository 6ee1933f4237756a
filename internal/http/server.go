package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-booking/internal/account"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/dispatch"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/models"
)

// LocationPublisher forwards driver location reports to the stream.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, p models.DriverPosition) error
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server. Booking and Accounts are required; the rest may be
// nil.
type Deps struct {
	Booking   *booking.Service
	Accounts  *account.Service
	Geo       geo.Locator
	Locations LocationPublisher
	WSReg     *dispatch.WSRegistry
	Checks    map[string]Pinger
	Logger    *slog.Logger
}

type Server struct {
	booking   *booking.Service
	accounts  *account.Service
	geo       geo.Locator
	locations LocationPublisher
	wsreg     *dispatch.WSRegistry
	checks    map[string]Pinger
	logger    *slog.Logger
	mux       *mux.Router
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wsreg := d.WSReg
	if wsreg == nil {
		wsreg = dispatch.NewWSRegistry()
	}
	s := &Server{
		booking:   d.Booking,
		accounts:  d.Accounts,
		geo:       d.Geo,
		locations: d.Locations,
		wsreg:     wsreg,
		checks:    d.Checks,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/rides/book", s.handleBookRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id:[0-9]+}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id:[0-9]+}/complete", s.handleCompleteRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id:[0-9]+}/cancel", s.handleCancelRide).Methods(http.MethodPost)
	api.HandleFunc("/user/security", s.handleUpdateSecurity).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id:[0-9]+}/location", s.handleDriverLocation).Methods(http.MethodPost)

	s.mux.HandleFunc("/ws/drivers/{id:[0-9]+}", s.handleDriverWS).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
