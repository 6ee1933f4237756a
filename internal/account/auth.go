// Package account handles user login and per-user security preferences.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/ride-booking/internal/apperr"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/storage"
)

type Service struct {
	Users storage.UserStore
	// BcryptCost is the work factor stored hashes are upgraded to on login.
	// Zero leaves hashes as they are.
	BcryptCost int
	Logger     *slog.Logger
}

// LoginResult is the public profile returned on a successful login. The
// password hash never leaves the service.
type LoginResult struct {
	User     models.User
	Settings models.SecuritySettings
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Login matches username against email or phone and verifies password.
// Unknown users and bad passwords fail with different messages.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		observability.Logins.WithLabelValues("invalid").Inc()
		return LoginResult{}, apperr.ValidationError("Username and password required")
	}

	u, err := s.Users.FindUserByLogin(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		observability.Logins.WithLabelValues("unknown_user").Inc()
		return LoginResult{}, apperr.AuthenticationError("User not found")
	}
	if err != nil {
		observability.Logins.WithLabelValues("error").Inc()
		s.logger().Error("find_user_failed", "error", err)
		return LoginResult{}, apperr.PersistenceError("Login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		observability.Logins.WithLabelValues("bad_password").Inc()
		s.logger().Info("login_rejected", "user_id", u.ID)
		return LoginResult{}, apperr.AuthenticationError("Invalid credentials")
	}

	s.upgradeHash(ctx, u, password)

	settings, _, err := s.Users.GetSecuritySettings(ctx, u.ID)
	if err != nil {
		observability.Logins.WithLabelValues("error").Inc()
		s.logger().Error("load_security_settings_failed", "user_id", u.ID, "error", err)
		return LoginResult{}, apperr.PersistenceError("Login failed", err)
	}

	observability.Logins.WithLabelValues("success").Inc()
	s.logger().Info("login_succeeded", "user_id", u.ID)
	u.PasswordHash = ""
	return LoginResult{User: u, Settings: settings}, nil
}

// upgradeHash rehashes a verified password whose stored cost is below
// BcryptCost. Failures are logged and never fail the login.
func (s *Service) upgradeHash(ctx context.Context, u models.User, password string) {
	if s.BcryptCost <= 0 {
		return
	}
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil || cost >= s.BcryptCost {
		return
	}
	h, err := HashPassword(password, s.BcryptCost)
	if err == nil {
		err = s.Users.UpdatePasswordHash(ctx, u.ID, h)
	}
	if err != nil {
		s.logger().Warn("password_rehash_failed", "user_id", u.ID, "error", err)
		return
	}
	s.logger().Info("password_rehashed", "user_id", u.ID, "from_cost", cost, "to_cost", s.BcryptCost)
}

// HashPassword returns a bcrypt hash of plain at the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" {
		return "", apperr.ValidationError("Password required")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
