package sensors

import (
	"strings"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// UnitRule selects how a sensor's unit of measurement is resolved against
// the snapshot units and the configured currency. Units are not hard-coded
// per sensor because trip, quantity and consumption units differ per vehicle.
type UnitRule int

const (
	UnitNone UnitRule = iota
	UnitTrip
	UnitQuantity
	UnitConsumption
	UnitCurrency
	UnitCurrencyPerQuantity
	UnitCurrencyPerTrip
	UnitDays
)

// Resolve maps the rule to a concrete unit string, empty when the sensor has
// no unit.
func (r UnitRule) Resolve(units domain.Units, currency string) string {
	switch r {
	case UnitTrip:
		return units.Trip
	case UnitQuantity:
		return units.Quantity
	case UnitConsumption:
		return units.Consumption
	case UnitCurrency:
		return currency
	case UnitCurrencyPerQuantity:
		if currency == "" || units.Quantity == "" {
			return ""
		}
		return currency + "/" + units.Quantity
	case UnitCurrencyPerTrip:
		if currency == "" || units.Trip == "" {
			return ""
		}
		return currency + "/" + units.Trip
	case UnitDays:
		return "d"
	}
	return ""
}

// Descriptor describes one exposed sensor: a stable identifier, display
// metadata, a unit-resolution rule and a value function that is evaluated
// lazily against the latest snapshot on every read. Value returns nil when
// the metric cannot be computed; it never panics on missing data.
type Descriptor struct {
	ID          string
	Name        string
	Icon        string
	DeviceClass string
	StateClass  string
	Unit        UnitRule
	Value       func(*domain.Snapshot) any
}

// Build assembles the sensor registry for the configured vehicle type. It is
// called once at setup: combustion vehicles expose the fuel sensors plus the
// shared set, electric vehicles the energy sensors plus the shared set, and
// plug-in hybrids both sets with the list-bound derived sensors duplicated
// as _fuel / _electric variants computed against the respective sub-list.
//
// now is the clock used by calendar-bound metrics; pass nil for time.Now.
func Build(vtype domain.VehicleType, now func() time.Time) []Descriptor {
	if now == nil {
		now = time.Now
	}

	primary := func(s *domain.Snapshot) []domain.TransactionRecord { return s.Refuelings }
	gasOnly := func(s *domain.Snapshot) []domain.TransactionRecord { return s.GasRefuelings }
	electricOnly := func(s *domain.Snapshot) []domain.TransactionRecord { return s.ElectricCharges }

	ds := sharedSensors()
	switch vtype {
	case domain.VehicleElectric:
		ds = append(ds, transactionSensors("", "", primary)...)
		ds = append(ds, electricSensors(now)...)
	case domain.VehiclePHEV:
		ds = append(ds, transactionSensors("_fuel", " (Fuel)", gasOnly)...)
		ds = append(ds, transactionSensors("_electric", " (Electric)", electricOnly)...)
		ds = append(ds, fuelSensors()...)
		ds = append(ds, electricSensors(now)...)
	default:
		ds = append(ds, transactionSensors("", "", primary)...)
		ds = append(ds, fuelSensors()...)
	}
	return ds
}

// numVal and strVal normalize typed nil pointers into untyped nils so a
// caller can compare the returned value against plain nil.
func numVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func strVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func sharedSensors() []Descriptor {
	return []Descriptor{
		{
			ID:   "vehicle",
			Name: "Vehicle",
			Icon: "mdi:car-info",
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				name := strings.TrimSpace(s.Vehicle.Make + " " + s.Vehicle.Model)
				if name == "" {
					return nil
				}
				return name
			},
		},
		{
			ID:   "lifetime_consumption",
			Name: "Lifetime Consumption",
			Icon: "mdi:gauge",
			Unit: UnitConsumption,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(s.Vehicle.Consumption.Ptr())
			},
		},
		{
			ID:          "total_distance",
			Name:        "Total Distance",
			Icon:        "mdi:counter",
			DeviceClass: "distance",
			StateClass:  "total_increasing",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(s.Vehicle.TripSum.Ptr())
			},
		},
		{
			ID:         "total_quantity",
			Name:       "Total Quantity",
			Icon:       "mdi:sigma",
			StateClass: "total_increasing",
			Unit:       UnitQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(s.Vehicle.QuantitySum.Ptr())
			},
		},
		{
			ID:          "next_service_odometer",
			Name:        "Next Service Odometer",
			Icon:        "mdi:wrench-clock",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				next := NextServiceReminder(s.Reminders)
				if next == nil {
					return nil
				}
				return numVal(next.NextOdometer.Ptr())
			},
		},
		{
			ID:   "next_service_date",
			Name: "Next Service Date",
			Icon: "mdi:calendar-check",
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				next := NextServiceDateReminder(s.Reminders)
				if next == nil {
					return nil
				}
				return next.NextDate
			},
		},
		{
			ID:          "km_to_service",
			Name:        "Distance To Service",
			Icon:        "mdi:map-marker-distance",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				var lastOdometer *float64
				if last := s.LastRefueling(); last != nil {
					lastOdometer = last.Odometer.Ptr()
				}
				return numVal(KmToService(NextServiceReminder(s.Reminders), lastOdometer))
			},
		},
	}
}

// transactionSensors builds the list-bound sensors: the last-record
// extraction sensors and every derived metric that operates on a recent
// transaction history. suffix and label distinguish the duplicated
// fuel/electric variants on a plug-in hybrid.
func transactionSensors(suffix, label string, pick func(*domain.Snapshot) []domain.TransactionRecord) []Descriptor {
	last := func(s *domain.Snapshot) *domain.TransactionRecord {
		list := pick(s)
		if len(list) == 0 {
			return nil
		}
		return &list[0]
	}

	return []Descriptor{
		{
			ID:   "last_refuel_date" + suffix,
			Name: "Last Refuel Date" + label,
			Icon: "mdi:calendar",
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return r.Date
				}
				return nil
			},
		},
		{
			ID:          "last_refuel_odometer" + suffix,
			Name:        "Last Refuel Odometer" + label,
			Icon:        "mdi:counter",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(r.Odometer.Ptr())
				}
				return nil
			},
		},
		{
			ID:          "last_refuel_trip" + suffix,
			Name:        "Last Refuel Trip" + label,
			Icon:        "mdi:map-marker-distance",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(r.Trip.Ptr())
				}
				return nil
			},
		},
		{
			ID:   "last_refuel_quantity" + suffix,
			Name: "Last Refuel Quantity" + label,
			Icon: "mdi:gas-station",
			Unit: UnitQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(r.Quantity.Ptr())
				}
				return nil
			},
		},
		{
			ID:   "last_refuel_cost" + suffix,
			Name: "Last Refuel Cost" + label,
			Icon: "mdi:cash",
			Unit: UnitCurrency,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(r.Cost.Ptr())
				}
				return nil
			},
		},
		{
			ID:   "last_refuel_consumption" + suffix,
			Name: "Last Refuel Consumption" + label,
			Icon: "mdi:gauge",
			Unit: UnitConsumption,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(r.Consumption.Ptr())
				}
				return nil
			},
		},
		{
			ID:   "price_per_unit" + suffix,
			Name: "Price Per Unit" + label,
			Icon: "mdi:currency-usd",
			Unit: UnitCurrencyPerQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				if r := last(s); r != nil {
					return numVal(PricePerUnit(r.Cost.Ptr(), r.Quantity.Ptr()))
				}
				return nil
			},
		},
		{
			ID:   "consumption_trend" + suffix,
			Name: "Consumption Trend" + label,
			Icon: "mdi:trending-up",
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return strVal(ConsumptionTrend(pick(s)))
			},
		},
		{
			ID:   "consumption_consistency" + suffix,
			Name: "Consumption Consistency" + label,
			Icon: "mdi:chart-bell-curve",
			Unit: UnitConsumption,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(ConsumptionConsistency(pick(s)))
			},
		},
		{
			ID:   "avg_refuel_quantity" + suffix,
			Name: "Average Refuel Quantity" + label,
			Icon: "mdi:scale",
			Unit: UnitQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(AvgRefuelQuantity(pick(s)))
			},
		},
		{
			ID:   "avg_days_between_refuels" + suffix,
			Name: "Average Days Between Refuels" + label,
			Icon: "mdi:calendar-clock",
			Unit: UnitDays,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(AvgDaysBetweenRefuels(pick(s)))
			},
		},
		{
			ID:   "price_variability" + suffix,
			Name: "Price Variability" + label,
			Icon: "mdi:chart-line-variant",
			Unit: UnitCurrencyPerQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(PriceVariability(pick(s)))
			},
		},
		{
			ID:   "eco_driving_index" + suffix,
			Name: "Eco Driving Index" + label,
			Icon: "mdi:leaf",
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(EcoDrivingIndex(pick(s), s.Vehicle.Consumption.Ptr()))
			},
		},
		{
			ID:   "cost_per_distance" + suffix,
			Name: "Cost Per Distance" + label,
			Icon: "mdi:cash-multiple",
			Unit: UnitCurrencyPerTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(CostPerDistance(pick(s)))
			},
		},
	}
}

func fuelSensors() []Descriptor {
	fuelLevel := func(s *domain.Snapshot) *float64 {
		var lastQuantity *float64
		if r := s.LastGasRefueling(); r != nil {
			lastQuantity = r.Quantity.Ptr()
		}
		return FuelLevelEstimate(s.Vehicle.Capacity.Ptr(), lastQuantity)
	}

	return []Descriptor{
		{
			ID:   "fuel_level",
			Name: "Fuel Level",
			Icon: "mdi:gas-station",
			Unit: UnitQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(fuelLevel(s))
			},
		},
		{
			ID:          "range_estimate",
			Name:        "Range Estimate",
			Icon:        "mdi:road-variant",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(RangeEstimate(fuelLevel(s), s.Vehicle.Consumption.Ptr(), s.Units.Consumption))
			},
		},
	}
}

func electricSensors(now func() time.Time) []Descriptor {
	return []Descriptor{
		{
			ID:          "full_battery_range",
			Name:        "Full Battery Range",
			Icon:        "mdi:battery-charging-100",
			DeviceClass: "distance",
			Unit:        UnitTrip,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(FullBatteryRange(s.Vehicle.Capacity.Ptr(), s.Vehicle.Consumption.Ptr()))
			},
		},
		{
			ID:         "monthly_energy_charged",
			Name:       "Monthly Energy Charged",
			Icon:       "mdi:lightning-bolt",
			StateClass: "total",
			Unit:       UnitQuantity,
			Value: func(s *domain.Snapshot) any {
				if s == nil {
					return nil
				}
				return numVal(MonthlyEnergyCharged(s.ElectricCharges, now()))
			},
		},
	}
}
