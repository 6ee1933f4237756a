package account

import (
	"context"

	"github.com/example/ride-booking/internal/apperr"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
)

type UpdateSecurityRequest struct {
	UserID            int64
	EnableDriverCalls bool
	ShareLiveLocation bool
	PrivateMode       bool
}

// UpdateSecurity creates or replaces the user's settings row. Repeating the
// same request leaves a single row with the same values.
func (s *Service) UpdateSecurity(ctx context.Context, req UpdateSecurityRequest) error {
	if req.UserID <= 0 {
		return apperr.ValidationError("User ID required")
	}
	err := s.Users.UpsertSecuritySettings(ctx, models.SecuritySettings{
		UserID:            req.UserID,
		EnableDriverCalls: req.EnableDriverCalls,
		ShareLiveLocation: req.ShareLiveLocation,
		PrivateMode:       req.PrivateMode,
	})
	if err != nil {
		s.logger().Error("upsert_security_settings_failed", "user_id", req.UserID, "error", err)
		return apperr.PersistenceError("Failed to update settings", err)
	}
	observability.SettingsUpdates.Inc()
	return nil
}
