package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by the Spritmonitor API
// (DD.MM.YYYY).
const DateLayout = "02.01.2006"

// Tank ids the vendor uses to tag a record stream within one vehicle.
const (
	TankFuel     = 1
	TankElectric = 2
)

// VehicleType selects which record streams a vehicle maintains.
type VehicleType string

const (
	VehicleCombustion VehicleType = "combustion"
	VehicleElectric   VehicleType = "electric"
	VehiclePHEV       VehicleType = "phev"
)

// ParseVehicleType validates a configured vehicle type string.
func ParseVehicleType(s string) (VehicleType, error) {
	switch VehicleType(strings.ToLower(strings.TrimSpace(s))) {
	case VehicleCombustion:
		return VehicleCombustion, nil
	case VehicleElectric:
		return VehicleElectric, nil
	case VehiclePHEV:
		return VehiclePHEV, nil
	}
	return "", fmt.Errorf("unknown vehicle type %q (want combustion, electric or phev)", s)
}

// Number is a float that decodes from a JSON number, a numeric string or
// null. The Spritmonitor API mixes all three for the same field, so plain
// float64 fields would reject half the responses. Valid is false when the
// value was null, empty or missing, which is distinct from a value of 0.
type Number struct {
	Float64 float64
	Valid   bool
}

// Num wraps a plain float64 into a valid Number.
func Num(v float64) Number { return Number{Float64: v, Valid: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" || s == "" {
		*n = Number{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	*n = Number{Float64: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Float64, 'f', -1, 64), nil
}

// Ptr returns the value as a pointer, nil when absent.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// Positive reports whether the value is present and greater than zero.
func (n Number) Positive() bool { return n.Valid && n.Float64 > 0 }

// TransactionRecord is one fuel refill or energy charge event as fetched
// from the vendor. Records are immutable after fetch.
type TransactionRecord struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	TankID      int    `json:"tank_id"`
	Odometer    Number `json:"odometer"`
	Trip        Number `json:"trip"`
	Quantity    Number `json:"quantity"`
	Cost        Number `json:"cost"`
	Consumption Number `json:"consumption"`
	FuelSortID  int    `json:"fuelsortid"`
	Type        string `json:"type,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Time parses the record date in the vendor's DD.MM.YYYY format.
func (r *TransactionRecord) Time() (time.Time, error) {
	return time.Parse(DateLayout, r.Date)
}

// RankingInfo carries the vendor's peer-comparison statistics for a vehicle.
type RankingInfo struct {
	Min   Number `json:"min"`
	Avg   Number `json:"avg"`
	Max   Number `json:"max"`
	Rank  Number `json:"rank"`
	Total Number `json:"total"`
}

// VehicleInfo is the vendor's vehicle profile. It is refreshed wholesale on
// every poll; there is no partial update.
type VehicleInfo struct {
	ID              int64        `json:"id"`
	Make            string       `json:"make"`
	Model           string       `json:"model"`
	Capacity        Number       `json:"capacity"`
	Consumption     Number       `json:"consumption"`
	TripSum         Number       `json:"tripsum"`
	QuantitySum     Number       `json:"quantitysum"`
	Ranking         *RankingInfo `json:"rankingInfo,omitempty"`
	TripUnit        string       `json:"tripunit"`
	QuantityUnit    string       `json:"quantityunit"`
	ConsumptionUnit string       `json:"consumptionunit"`
}

// ReminderRecord is one scheduled-maintenance entry.
type ReminderRecord struct {
	ID           int64  `json:"id"`
	VehicleID    int64  `json:"vehicleid"`
	Completed    int    `json:"completed"`
	NextOdometer Number `json:"next_odometer"`
	NextDate     string `json:"nextdate,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Units are the display units derived once per refresh from vehicle info and
// the configured vehicle type.
type Units struct {
	Trip        string `json:"trip"`
	Quantity    string `json:"quantity"`
	Consumption string `json:"consumption"`
}

// Snapshot is the atomic result of one refresh cycle. It is created once by
// the pipeline, read many times by the sensor layer, and replaced wholesale
// on the next successful poll; it is never mutated in place.
//
// Refuelings aliases GasRefuelings or ElectricCharges depending on the
// vehicle type. Reminders is nil when the (best-effort) reminder fetch
// failed.
type Snapshot struct {
	Vehicle         VehicleInfo         `json:"vehicle"`
	Units           Units               `json:"units"`
	Refuelings      []TransactionRecord `json:"refuelings"`
	GasRefuelings   []TransactionRecord `json:"gas_refuelings"`
	ElectricCharges []TransactionRecord `json:"electric_charges"`
	Reminders       []ReminderRecord    `json:"reminders,omitempty"`
	FetchedAt       time.Time           `json:"fetched_at"`
}

// LastRefueling returns the most recent record of the primary list, nil when
// there is none (or no snapshot yet).
func (s *Snapshot) LastRefueling() *TransactionRecord {
	if s == nil || len(s.Refuelings) == 0 {
		return nil
	}
	return &s.Refuelings[0]
}

// LastGasRefueling returns the most recent fuel record, nil when there is none.
func (s *Snapshot) LastGasRefueling() *TransactionRecord {
	if s == nil || len(s.GasRefuelings) == 0 {
		return nil
	}
	return &s.GasRefuelings[0]
}

// LastElectricCharge returns the most recent charge record, nil when there is none.
func (s *Snapshot) LastElectricCharge() *TransactionRecord {
	if s == nil || len(s.ElectricCharges) == 0 {
		return nil
	}
	return &s.ElectricCharges[0]
}
