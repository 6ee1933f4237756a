// Package pricing holds the flat-rate fare table.
package pricing

import (
	"strings"

	"github.com/example/ride-booking/internal/models"
)

// Fares in the smallest currency unit.
const (
	StandardFare int64 = 2500
	PremiumFare  int64 = 4000
	SUVFare      int64 = 6000
)

// NormalizeVehicleClass maps free-form input onto a known class. Anything
// unrecognized, including the empty string, is standard.
func NormalizeVehicleClass(s string) models.VehicleClass {
	switch models.VehicleClass(strings.ToLower(strings.TrimSpace(s))) {
	case models.VehiclePremium:
		return models.VehiclePremium
	case models.VehicleSUV:
		return models.VehicleSUV
	default:
		return models.VehicleStandard
	}
}

func FareFor(class models.VehicleClass) int64 {
	switch NormalizeVehicleClass(string(class)) {
	case models.VehiclePremium:
		return PremiumFare
	case models.VehicleSUV:
		return SUVFare
	default:
		return StandardFare
	}
}
