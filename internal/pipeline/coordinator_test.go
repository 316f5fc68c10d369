package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	vehicles     []domain.VehicleInfo
	vehiclesErr  error
	fuelings     []domain.TransactionRecord
	fuelingsErr  error
	reminders    []domain.ReminderRecord
	remindersErr error
}

func (f *fakeAPI) Vehicles(context.Context) ([]domain.VehicleInfo, error) {
	return f.vehicles, f.vehiclesErr
}

func (f *fakeAPI) Fuelings(context.Context, int64) ([]domain.TransactionRecord, error) {
	return f.fuelings, f.fuelingsErr
}

func (f *fakeAPI) Reminders(context.Context, int64) ([]domain.ReminderRecord, error) {
	return f.reminders, f.remindersErr
}

func testConfig() *config.Config {
	return &config.Config{
		AppToken:             "app",
		BearerToken:          "bearer",
		VehicleID:            42,
		VehicleType:          "combustion",
		Currency:             "EUR",
		RefreshIntervalHours: 8,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRefreshAssemblesSnapshot(t *testing.T) {
	api := &fakeAPI{
		vehicles: []domain.VehicleInfo{
			{ID: 7, Make: "Other"},
			{ID: 42, Make: "VW", Model: "Golf", TripUnit: "km", QuantityUnit: "l"},
		},
		fuelings: []domain.TransactionRecord{
			{ID: 1, Date: "01.06.2024", TankID: domain.TankFuel},
			{ID: 2, Date: "10.06.2024", TankID: domain.TankFuel},
			{ID: 3, Date: "05.06.2024", TankID: domain.TankElectric},
		},
		reminders: []domain.ReminderRecord{
			{ID: 1, VehicleID: 42, NextOdometer: domain.Num(55000)},
		},
	}

	c := New(api, testConfig(), nil, testLogger())
	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), snap.Vehicle.ID)
	assert.False(t, snap.FetchedAt.IsZero())

	require.Len(t, snap.GasRefuelings, 2)
	assert.Equal(t, int64(2), snap.GasRefuelings[0].ID)
	require.Len(t, snap.ElectricCharges, 1)

	// Combustion vehicle: the primary list is the fuel list.
	assert.Equal(t, snap.GasRefuelings, snap.Refuelings)

	require.Len(t, snap.Reminders, 1)
}

func TestRefreshVehicleNotFound(t *testing.T) {
	api := &fakeAPI{vehicles: []domain.VehicleInfo{{ID: 7}}}

	c := New(api, testConfig(), nil, testLogger())
	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestRefreshFatalErrors(t *testing.T) {
	t.Run("vehicle list fails", func(t *testing.T) {
		api := &fakeAPI{vehiclesErr: errors.New("boom")}
		c := New(api, testConfig(), nil, testLogger())
		_, err := c.Refresh(context.Background())
		assert.Error(t, err)
	})

	t.Run("fueling fetch fails", func(t *testing.T) {
		api := &fakeAPI{
			vehicles:    []domain.VehicleInfo{{ID: 42}},
			fuelingsErr: errors.New("boom"),
		}
		c := New(api, testConfig(), nil, testLogger())
		_, err := c.Refresh(context.Background())
		assert.Error(t, err)
	})

	t.Run("unparseable record date fails", func(t *testing.T) {
		api := &fakeAPI{
			vehicles: []domain.VehicleInfo{{ID: 42}},
			fuelings: []domain.TransactionRecord{{ID: 1, Date: "junk", TankID: domain.TankFuel}},
		}
		c := New(api, testConfig(), nil, testLogger())
		_, err := c.Refresh(context.Background())
		assert.Error(t, err)
	})
}

func TestRefreshReminderFetchIsBestEffort(t *testing.T) {
	api := &fakeAPI{
		vehicles:     []domain.VehicleInfo{{ID: 42}},
		fuelings:     []domain.TransactionRecord{{ID: 1, Date: "01.06.2024", TankID: domain.TankFuel}},
		remindersErr: errors.New("reminder endpoint down"),
	}

	c := New(api, testConfig(), nil, testLogger())
	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Reminders)
	assert.Len(t, snap.Refuelings, 1)
}

func TestLatestUntouchedOnFailedCycle(t *testing.T) {
	api := &fakeAPI{
		vehicles: []domain.VehicleInfo{{ID: 42, Make: "VW"}},
		fuelings: []domain.TransactionRecord{{ID: 1, Date: "01.06.2024", TankID: domain.TankFuel}},
	}

	c := New(api, testConfig(), nil, testLogger())
	assert.Nil(t, c.Latest())

	c.runCycle(context.Background())
	first := c.Latest()
	require.NotNil(t, first)

	// Break the API; the failed cycle must not clobber the snapshot.
	api.fuelingsErr = errors.New("boom")
	c.runCycle(context.Background())
	assert.Same(t, first, c.Latest())
}

func TestRequestRefreshCoalesces(t *testing.T) {
	c := New(&fakeAPI{}, testConfig(), nil, testLogger())

	// Never blocks, no matter how many pending requests.
	for i := 0; i < 10; i++ {
		c.RequestRefresh()
	}

	<-c.refresh
	select {
	case <-c.refresh:
		t.Fatal("expected pending refresh requests to be coalesced into one")
	default:
	}
}
