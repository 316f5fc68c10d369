package sensors

import (
	"math"
	"strings"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// Derived-metric functions. Each one is pure, operates on a list sorted most
// recent first, and returns nil when the value cannot be computed from the
// available data. Missing or malformed fields are absorbed here; nothing in
// this file returns an error or panics on vendor data.
//
// All rounding is round-half-away-from-zero (math.Round).

const (
	// Most metrics look at the 5 most recent records.
	recentWindow = 5
	// Cost per distance averages over a longer horizon.
	costWindow = 10
	// The eco index scores only the very latest consumptions.
	ecoWindow = 3
)

// Trend labels returned by ConsumptionTrend.
const (
	TrendImproving = "improving"
	TrendWorsening = "worsening"
	TrendStable    = "stable"
)

func window(records []domain.TransactionRecord, n int) []domain.TransactionRecord {
	if len(records) > n {
		return records[:n]
	}
	return records
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func ptr(v float64) *float64 { return &v }

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// positiveConsumptions collects the positive consumption values of the n
// most recent records, preserving order.
func positiveConsumptions(records []domain.TransactionRecord, n int) []float64 {
	var values []float64
	for _, r := range window(records, n) {
		if r.Consumption.Positive() {
			values = append(values, r.Consumption.Float64)
		}
	}
	return values
}

// PricePerUnit returns cost divided by quantity, rounded to three decimals.
// Absent when the quantity is missing or zero.
func PricePerUnit(cost, quantity *float64) *float64 {
	if cost == nil || quantity == nil || *quantity == 0 {
		return nil
	}
	return ptr(roundTo(*cost / *quantity, 3))
}

// NextServiceReminder returns the incomplete reminder with the lowest target
// odometer, nil when none qualifies.
func NextServiceReminder(reminders []domain.ReminderRecord) *domain.ReminderRecord {
	var next *domain.ReminderRecord
	for i := range reminders {
		r := &reminders[i]
		if r.Completed != 0 || !r.NextOdometer.Valid {
			continue
		}
		if next == nil || r.NextOdometer.Float64 < next.NextOdometer.Float64 {
			next = r
		}
	}
	return next
}

// NextServiceDateReminder returns the incomplete reminder with the earliest
// parseable due date, nil when none qualifies.
func NextServiceDateReminder(reminders []domain.ReminderRecord) *domain.ReminderRecord {
	var (
		next *domain.ReminderRecord
		when time.Time
	)
	for i := range reminders {
		r := &reminders[i]
		if r.Completed != 0 || r.NextDate == "" {
			continue
		}
		t, err := time.Parse(domain.DateLayout, r.NextDate)
		if err != nil {
			continue
		}
		if next == nil || t.Before(when) {
			next, when = r, t
		}
	}
	return next
}

// KmToService returns the distance left until the next service target,
// clamped at zero when the target odometer has already been passed.
func KmToService(next *domain.ReminderRecord, lastOdometer *float64) *float64 {
	if next == nil || lastOdometer == nil {
		return nil
	}
	v := next.NextOdometer.Float64 - *lastOdometer
	if v < 0 {
		v = 0
	}
	return ptr(v)
}

// FuelLevelEstimate assumes the tank was filled on the last refueling and
// caps the estimate at the tank capacity. Absent when capacity is unknown
// or not positive.
func FuelLevelEstimate(capacity, lastQuantity *float64) *float64 {
	if capacity == nil || *capacity <= 0 || lastQuantity == nil {
		return nil
	}
	return ptr(math.Min(*capacity, *lastQuantity))
}

// RangeEstimate projects the remaining range from the fuel level estimate
// and the vehicle's lifetime average consumption. Consumption units that
// contain "100" are treated as per-100-distance rates, anything else as a
// distance-per-quantity rate.
func RangeEstimate(fuelLevel, consumption *float64, consumptionUnit string) *float64 {
	if fuelLevel == nil || consumption == nil || *consumption <= 0 {
		return nil
	}
	var v float64
	if strings.Contains(consumptionUnit, "100") {
		v = *fuelLevel / *consumption * 100
	} else {
		v = *fuelLevel * *consumption
	}
	return ptr(math.Round(v))
}

// ConsumptionTrend compares the average of the two most recent consumption
// values against the two before them (or the single third value when only
// three are available) and labels the ratio as improving, worsening or
// stable. Absent when fewer than three of the last five records carry a
// positive consumption.
func ConsumptionTrend(records []domain.TransactionRecord) *string {
	values := positiveConsumptions(records, recentWindow)
	if len(values) < 3 {
		return nil
	}

	recentAvg := mean(values[:2])
	var olderAvg float64
	if len(values) >= 4 {
		olderAvg = mean(values[2:4])
	} else {
		olderAvg = values[2]
	}

	trend := TrendStable
	if olderAvg != 0 {
		switch ratio := recentAvg / olderAvg; {
		case ratio < 0.95:
			trend = TrendImproving
		case ratio > 1.05:
			trend = TrendWorsening
		}
	}
	return &trend
}

// ConsumptionConsistency is the population standard deviation of the recent
// consumption values, rounded to two decimals. Lower is steadier driving.
func ConsumptionConsistency(records []domain.TransactionRecord) *float64 {
	values := positiveConsumptions(records, recentWindow)
	if len(values) < 3 {
		return nil
	}
	avg := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(values))
	return ptr(roundTo(math.Sqrt(variance), 2))
}

// AvgRefuelQuantity averages the positive quantities of the five most recent
// records, rounded to one decimal.
func AvgRefuelQuantity(records []domain.TransactionRecord) *float64 {
	var values []float64
	for _, r := range window(records, recentWindow) {
		if r.Quantity.Positive() {
			values = append(values, r.Quantity.Float64)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return ptr(roundTo(mean(values), 1))
}

// AvgDaysBetweenRefuels averages the positive day gaps between consecutive
// records of the five most recent, rounded to one decimal. Absent with fewer
// than two dated records or when no gap is positive.
func AvgDaysBetweenRefuels(records []domain.TransactionRecord) *float64 {
	var dates []time.Time
	for _, r := range window(records, recentWindow) {
		t, err := r.Time()
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	if len(dates) < 2 {
		return nil
	}

	var deltas []float64
	for i := 0; i < len(dates)-1; i++ {
		// Records are sorted most recent first.
		days := dates[i].Sub(dates[i+1]).Hours() / 24
		if days > 0 {
			deltas = append(deltas, days)
		}
	}
	if len(deltas) == 0 {
		return nil
	}
	return ptr(roundTo(mean(deltas), 1))
}

// PriceVariability is the spread between the highest and lowest unit price
// over the five most recent records, rounded to two decimals. Absent with
// fewer than two priced records.
func PriceVariability(records []domain.TransactionRecord) *float64 {
	var prices []float64
	for _, r := range window(records, recentWindow) {
		if r.Cost.Valid && r.Quantity.Positive() {
			prices = append(prices, r.Cost.Float64/r.Quantity.Float64)
		}
	}
	if len(prices) < 2 {
		return nil
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	return ptr(roundTo(hi-lo, 2))
}

// EcoDrivingIndex blends a performance score (recent consumption vs. the
// vehicle's lifetime average) with a consistency score into a 0-10 index,
// rounded to one decimal. Absent without recent consumptions or when the
// vehicle average is missing or zero.
func EcoDrivingIndex(records []domain.TransactionRecord, vehicleAvg *float64) *float64 {
	recent := positiveConsumptions(records, ecoWindow)
	if len(recent) == 0 || vehicleAvg == nil || *vehicleAvg == 0 {
		return nil
	}

	var performance float64
	switch ratio := mean(recent) / *vehicleAvg; {
	case ratio < 0.9:
		performance = 10
	case ratio < 1.0:
		performance = 8
	case ratio < 1.1:
		performance = 6
	default:
		performance = 4
	}

	consistency := 5.0 // neutral default when not enough data
	if c := ConsumptionConsistency(records); c != nil {
		consistency = *c
	}
	consistencyScore := math.Max(0, 10-consistency*5)

	return ptr(roundTo(performance*0.7+consistencyScore*0.3, 1))
}

// CostPerDistance divides the total cost by the total trip distance over the
// ten most recent records, rounded to two decimals.
func CostPerDistance(records []domain.TransactionRecord) *float64 {
	var totalCost, totalTrip float64
	for _, r := range window(records, costWindow) {
		if r.Cost.Valid && r.Trip.Positive() {
			totalCost += r.Cost.Float64
			totalTrip += r.Trip.Float64
		}
	}
	if totalTrip == 0 {
		return nil
	}
	return ptr(roundTo(totalCost/totalTrip, 2))
}

// FullBatteryRange is the theoretical range on a full battery given a
// per-100-distance consumption, rounded to an integer.
func FullBatteryRange(capacity, consumption *float64) *float64 {
	if capacity == nil || *capacity <= 0 || consumption == nil || *consumption <= 0 {
		return nil
	}
	return ptr(math.Round(*capacity * 100 / *consumption))
}

// MonthlyEnergyCharged sums the charge quantities that fall into the current
// calendar month, rounded to two decimals. Absent when there are no charge
// records at all.
func MonthlyEnergyCharged(charges []domain.TransactionRecord, now time.Time) *float64 {
	if len(charges) == 0 {
		return nil
	}
	total := 0.0
	for i := range charges {
		t, err := charges[i].Time()
		if err != nil || !charges[i].Quantity.Valid {
			continue
		}
		if t.Month() == now.Month() && t.Year() == now.Year() {
			total += charges[i].Quantity.Float64
		}
	}
	return ptr(roundTo(total, 2))
}
