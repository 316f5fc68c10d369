package sensors

import (
	"testing"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

// consRecords builds a most-recent-first record list with the given
// consumption values.
func consRecords(values ...float64) []domain.TransactionRecord {
	records := make([]domain.TransactionRecord, len(values))
	for i, v := range values {
		records[i] = domain.TransactionRecord{Consumption: domain.Num(v)}
	}
	return records
}

func TestPricePerUnit(t *testing.T) {
	got := PricePerUnit(fptr(60), fptr(40))
	require.NotNil(t, got)
	assert.Equal(t, 1.5, *got)

	assert.Nil(t, PricePerUnit(fptr(60), nil))
	assert.Nil(t, PricePerUnit(nil, fptr(40)))
	assert.Nil(t, PricePerUnit(fptr(60), fptr(0)))

	got = PricePerUnit(fptr(10), fptr(3))
	require.NotNil(t, got)
	assert.Equal(t, 3.333, *got)
}

func TestNextServiceReminder(t *testing.T) {
	reminders := []domain.ReminderRecord{
		{ID: 1, Completed: 0, NextOdometer: domain.Num(60000)},
		{ID: 2, Completed: 1, NextOdometer: domain.Num(50000)}, // completed, skipped
		{ID: 3, Completed: 0, NextOdometer: domain.Num(55000)},
		{ID: 4, Completed: 0}, // no odometer target
	}

	next := NextServiceReminder(reminders)
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID)

	assert.Nil(t, NextServiceReminder(nil))
	assert.Nil(t, NextServiceReminder([]domain.ReminderRecord{{ID: 9, Completed: 1, NextOdometer: domain.Num(1)}}))
}

func TestNextServiceDateReminder(t *testing.T) {
	reminders := []domain.ReminderRecord{
		{ID: 1, NextDate: "01.12.2024"},
		{ID: 2, NextDate: "15.09.2024"},
		{ID: 3, NextDate: "bogus"},
		{ID: 4, Completed: 1, NextDate: "01.01.2024"},
	}

	next := NextServiceDateReminder(reminders)
	require.NotNil(t, next)
	assert.Equal(t, int64(2), next.ID)

	assert.Nil(t, NextServiceDateReminder([]domain.ReminderRecord{{ID: 5, NextDate: "not-a-date"}}))
}

func TestKmToService(t *testing.T) {
	next := &domain.ReminderRecord{NextOdometer: domain.Num(55000)}

	got := KmToService(next, fptr(50000))
	require.NotNil(t, got)
	assert.Equal(t, 5000.0, *got)

	// Target already passed: clamp at zero, never negative.
	got = KmToService(&domain.ReminderRecord{NextOdometer: domain.Num(50000)}, fptr(50500))
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)

	assert.Nil(t, KmToService(nil, fptr(50000)))
	assert.Nil(t, KmToService(next, nil))
}

func TestFuelLevelEstimate(t *testing.T) {
	got := FuelLevelEstimate(fptr(50), fptr(42))
	require.NotNil(t, got)
	assert.Equal(t, 42.0, *got)

	// Quantity above capacity caps at capacity.
	got = FuelLevelEstimate(fptr(50), fptr(60))
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got)

	assert.Nil(t, FuelLevelEstimate(fptr(0), fptr(40)))
	assert.Nil(t, FuelLevelEstimate(nil, fptr(40)))
	assert.Nil(t, FuelLevelEstimate(fptr(50), nil))
}

func TestRangeEstimate(t *testing.T) {
	// Per-100 unit: level / consumption * 100.
	got := RangeEstimate(fptr(40), fptr(6.5), "L/100km")
	require.NotNil(t, got)
	assert.Equal(t, 615.0, *got)

	// Distance-per-quantity unit: level * consumption.
	got = RangeEstimate(fptr(40), fptr(15), "km/L")
	require.NotNil(t, got)
	assert.Equal(t, 600.0, *got)

	assert.Nil(t, RangeEstimate(nil, fptr(6.5), "L/100km"))
	assert.Nil(t, RangeEstimate(fptr(40), fptr(0), "L/100km"))
}

func TestConsumptionTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"improving with three values", []float64{5.0, 5.0, 10.0}, TrendImproving},
		{"worsening", []float64{8.0, 8.0, 6.0, 6.0}, TrendWorsening},
		{"stable", []float64{6.0, 6.0, 6.0, 6.0}, TrendStable},
		{"just inside stable band", []float64{5.8, 6.0, 6.0, 6.0}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConsumptionTrend(consRecords(tt.values...))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	t.Run("too few values", func(t *testing.T) {
		assert.Nil(t, ConsumptionTrend(consRecords(6.0, 6.5)))
	})

	t.Run("zero consumptions are ignored", func(t *testing.T) {
		records := consRecords(5.0, 0, 5.0, 0, 10.0)
		got := ConsumptionTrend(records)
		require.NotNil(t, got)
		assert.Equal(t, TrendImproving, *got)
	})
}

func TestConsumptionConsistency(t *testing.T) {
	// Identical values: zero spread.
	got := ConsumptionConsistency(consRecords(6.0, 6.0, 6.0))
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)

	// Population stddev of {5, 6, 7} is sqrt(2/3) ~ 0.82.
	got = ConsumptionConsistency(consRecords(5.0, 6.0, 7.0))
	require.NotNil(t, got)
	assert.Equal(t, 0.82, *got)

	assert.Nil(t, ConsumptionConsistency(consRecords(6.0, 6.0)))
}

func TestAvgRefuelQuantity(t *testing.T) {
	records := []domain.TransactionRecord{
		{Quantity: domain.Num(40)},
		{Quantity: domain.Num(45)},
		{Quantity: domain.Num(0)}, // not positive, skipped
		{},                        // absent, skipped
		{Quantity: domain.Num(38)},
	}

	got := AvgRefuelQuantity(records)
	require.NotNil(t, got)
	assert.Equal(t, 41.0, *got)

	assert.Nil(t, AvgRefuelQuantity(nil))
}

func TestAvgDaysBetweenRefuels(t *testing.T) {
	records := []domain.TransactionRecord{
		{Date: "21.06.2024"},
		{Date: "14.06.2024"},
		{Date: "01.06.2024"},
	}

	// Gaps of 7 and 13 days average to 10.
	got := AvgDaysBetweenRefuels(records)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, *got)

	t.Run("single record", func(t *testing.T) {
		assert.Nil(t, AvgDaysBetweenRefuels(records[:1]))
	})

	t.Run("same-day records only", func(t *testing.T) {
		assert.Nil(t, AvgDaysBetweenRefuels([]domain.TransactionRecord{
			{Date: "01.06.2024"},
			{Date: "01.06.2024"},
		}))
	})
}

func TestPriceVariability(t *testing.T) {
	records := []domain.TransactionRecord{
		{Cost: domain.Num(60), Quantity: domain.Num(40)},   // 1.50
		{Cost: domain.Num(70.4), Quantity: domain.Num(40)}, // 1.76
		{Cost: domain.Num(64), Quantity: domain.Num(40)},   // 1.60
	}

	got := PriceVariability(records)
	require.NotNil(t, got)
	assert.Equal(t, 0.26, *got)

	assert.Nil(t, PriceVariability(records[:1]))
	assert.Nil(t, PriceVariability(nil))
}

func TestEcoDrivingIndex(t *testing.T) {
	t.Run("good performance, steady values", func(t *testing.T) {
		// Ratio 6/8 = 0.75 -> performance 10; consistency 0 -> score 10.
		got := EcoDrivingIndex(consRecords(6.0, 6.0, 6.0), fptr(8))
		require.NotNil(t, got)
		assert.Equal(t, 10.0, *got)
	})

	t.Run("poor performance", func(t *testing.T) {
		// Ratio 10/8 = 1.25 -> performance 4; consistency 0 -> 4*0.7 + 10*0.3.
		got := EcoDrivingIndex(consRecords(10.0, 10.0, 10.0), fptr(8))
		require.NotNil(t, got)
		assert.Equal(t, 5.8, *got)
	})

	t.Run("neutral consistency with sparse data", func(t *testing.T) {
		// One recent value; consistency defaults to 5 -> score max(0, 10-25)=0.
		got := EcoDrivingIndex(consRecords(6.0), fptr(8))
		require.NotNil(t, got)
		assert.Equal(t, 7.0, *got)
	})

	t.Run("zero vehicle average", func(t *testing.T) {
		assert.Nil(t, EcoDrivingIndex(consRecords(6.0, 6.0, 6.0), fptr(0)))
	})

	t.Run("missing vehicle average", func(t *testing.T) {
		assert.Nil(t, EcoDrivingIndex(consRecords(6.0), nil))
	})

	t.Run("no recent consumptions", func(t *testing.T) {
		assert.Nil(t, EcoDrivingIndex(nil, fptr(8)))
	})
}

func TestCostPerDistance(t *testing.T) {
	records := []domain.TransactionRecord{
		{Cost: domain.Num(60), Trip: domain.Num(500)},
		{Cost: domain.Num(55), Trip: domain.Num(450)},
		{Cost: domain.Num(10), Trip: domain.Num(0)}, // no trip, skipped
	}

	// (60+55) / (500+450) = 0.121... -> 0.12
	got := CostPerDistance(records)
	require.NotNil(t, got)
	assert.Equal(t, 0.12, *got)

	assert.Nil(t, CostPerDistance(nil))
	assert.Nil(t, CostPerDistance([]domain.TransactionRecord{{Cost: domain.Num(10)}}))
}

func TestFullBatteryRange(t *testing.T) {
	// 60 kWh at 15 kWh/100km -> 400 km.
	got := FullBatteryRange(fptr(60), fptr(15))
	require.NotNil(t, got)
	assert.Equal(t, 400.0, *got)

	assert.Nil(t, FullBatteryRange(fptr(0), fptr(15)))
	assert.Nil(t, FullBatteryRange(fptr(60), fptr(0)))
	assert.Nil(t, FullBatteryRange(nil, fptr(15)))
}

func TestMonthlyEnergyCharged(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	charges := []domain.TransactionRecord{
		{Date: "15.06.2024", Quantity: domain.Num(10)},
		{Date: "15.06.2023", Quantity: domain.Num(99)}, // other year
		{Date: "15.05.2024", Quantity: domain.Num(50)}, // other month
	}

	got := MonthlyEnergyCharged(charges, now)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, *got)

	t.Run("no records at all", func(t *testing.T) {
		assert.Nil(t, MonthlyEnergyCharged(nil, now))
	})

	t.Run("records but none this month", func(t *testing.T) {
		got := MonthlyEnergyCharged(charges[2:], now)
		require.NotNil(t, got)
		assert.Equal(t, 0.0, *got)
	})
}
