package pipeline

import (
	"strings"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// DeriveUnits computes the display units for a refresh cycle from the
// vendor's unit hints and the configured vehicle type. Electric vehicles
// always report the energy unit regardless of the vendor hint; combustion
// vehicles default to liters or gallons based on the trip-distance unit,
// with a vendor-supplied unit taking precedence.
func DeriveUnits(v domain.VehicleInfo, vtype domain.VehicleType) domain.Units {
	u := domain.Units{
		Trip:        strings.TrimSpace(v.TripUnit),
		Quantity:    strings.TrimSpace(v.QuantityUnit),
		Consumption: normalizeConsumptionUnit(v.ConsumptionUnit),
	}
	if u.Trip == "" {
		u.Trip = "km"
	}

	if vtype == domain.VehicleElectric {
		u.Quantity = "kWh"
	} else if u.Quantity == "" {
		if strings.EqualFold(u.Trip, "mi") {
			u.Quantity = "gal"
		} else {
			u.Quantity = "L"
		}
	}

	if u.Consumption == "" {
		if vtype == domain.VehicleElectric {
			u.Consumption = "kWh/100km"
		} else {
			u.Consumption = "L/100km"
		}
	}
	return u
}

// normalizeConsumptionUnit fixes the casing the vendor uses for liter-based
// consumption units.
func normalizeConsumptionUnit(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km/l":
		return "km/L"
	case "l/100km":
		return "L/100km"
	}
	return strings.TrimSpace(s)
}
