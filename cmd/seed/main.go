// Command seed inserts a user or a driver with one vehicle.
//
//	seed -kind user -name "Ada Obi" -email ada@example.com -phone +2348011111111 -password secret
//	seed -kind driver -name "Tunde Bello" -phone +2348022222222 -make Toyota -model Camry -plate LAG-123 -vehicle-type suv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-booking/internal/account"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/pricing"
	"github.com/example/ride-booking/internal/storage"
)

type options struct {
	kind        string
	name        string
	email       string
	phone       string
	password    string
	jobTitle    string
	memberType  string
	make        string
	model       string
	plate       string
	vehicleType string
	cost        int
}

type seeder interface {
	CreateUser(ctx context.Context, u *models.User) error
	CreateDriver(ctx context.Context, d *models.Driver, v *models.Vehicle) error
}

func main() {
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.kind, "kind", "user", "what to insert: user or driver")
	flag.StringVar(&o.name, "name", "", "full name")
	flag.StringVar(&o.email, "email", "", "user email")
	flag.StringVar(&o.phone, "phone", "", "phone number")
	flag.StringVar(&o.password, "password", "", "user password (stored as a bcrypt hash)")
	flag.StringVar(&o.jobTitle, "job-title", "", "user job title")
	flag.StringVar(&o.memberType, "member-type", "", "user member type")
	flag.StringVar(&o.make, "make", "", "vehicle make")
	flag.StringVar(&o.model, "model", "", "vehicle model")
	flag.StringVar(&o.plate, "plate", "", "vehicle plate number")
	flag.StringVar(&o.vehicleType, "vehicle-type", "standard", "vehicle class: standard, premium or suv")
	flag.IntVar(&o.cost, "bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost")
	migrate := flag.Bool("migrate", false, "apply migrations before inserting")
	flag.Parse()

	logger := logging.NewLogger(os.Getenv("LOG_LEVEL"))

	dsn := strings.TrimSpace(os.Getenv("PG_DSN"))
	if dsn == "" {
		logger.Error("PG_DSN is required")
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.NewPostgresStore(dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrate {
		applied, err := store.Migrate(ctx)
		if err != nil {
			logger.Error("migrate failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "files", applied)
	}

	id, err := seed(ctx, store, o)
	if err != nil {
		logger.Error("seed failed", "kind", o.kind, "error", err)
		os.Exit(1)
	}
	logger.Info("seeded", slog.String("kind", o.kind), slog.Int64("id", id))
}

func seed(ctx context.Context, s seeder, o options) (int64, error) {
	if strings.TrimSpace(o.name) == "" {
		return 0, errors.New("-name is required")
	}
	switch o.kind {
	case "user":
		if o.email == "" && o.phone == "" {
			return 0, errors.New("-email or -phone is required")
		}
		hash, err := account.HashPassword(o.password, o.cost)
		if err != nil {
			return 0, fmt.Errorf("hash password: %w", err)
		}
		u := &models.User{FullName: o.name, Email: o.email, Phone: o.phone,
			PasswordHash: hash, JobTitle: o.jobTitle, MemberType: o.memberType}
		if err := s.CreateUser(ctx, u); err != nil {
			return 0, err
		}
		return u.ID, nil
	case "driver":
		if o.plate == "" {
			return 0, errors.New("-plate is required")
		}
		d := &models.Driver{FullName: o.name, Phone: o.phone}
		v := &models.Vehicle{Make: o.make, Model: o.model, PlateNumber: o.plate,
			Class: pricing.NormalizeVehicleClass(o.vehicleType)}
		if err := s.CreateDriver(ctx, d, v); err != nil {
			return 0, err
		}
		return d.ID, nil
	default:
		return 0, fmt.Errorf("unknown -kind %q (want user or driver)", o.kind)
	}
}
