package spritmonitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "app-token", "bearer-token", testLogger())
}

func TestVehicles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles.json", r.URL.Path)
		assert.Equal(t, "app-token", r.Header.Get("Application-Id"))
		assert.Equal(t, "Bearer bearer-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		// The vendor mixes numbers and numeric strings.
		w.Write([]byte(`[
			{"id": 42, "make": "VW", "model": "Golf", "capacity": "50", "consumption": 6.5,
			 "tripsum": 120000, "quantitysum": "7800",
			 "tripunit": "km", "quantityunit": "L", "consumptionunit": "l/100km"}
		]`))
	})

	vehicles, err := client.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 1)

	v := vehicles[0]
	assert.Equal(t, int64(42), v.ID)
	assert.Equal(t, "VW", v.Make)
	assert.Equal(t, 50.0, v.Capacity.Float64)
	assert.Equal(t, 6.5, v.Consumption.Float64)
	assert.Equal(t, 7800.0, v.QuantitySum.Float64)
}

func TestFuelings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicle/42/fuelings.json", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))

		w.Write([]byte(`[
			{"id": 1, "date": "15.06.2024", "tank_id": 1, "quantity": "40", "cost": 60.0},
			{"id": 2, "date": "01.06.2024", "tank_id": 2, "quantity": 18.5, "cost": null}
		]`))
	})

	records, err := client.Fuelings(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 40.0, records[0].Quantity.Float64)
	assert.False(t, records[1].Cost.Valid)
}

func TestRemindersFiltersByVehicle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reminders.json", r.URL.Path)
		w.Write([]byte(`[
			{"id": 1, "vehicleid": 42, "completed": 0, "next_odometer": "55000"},
			{"id": 2, "vehicleid": 7, "completed": 0, "next_odometer": 10000}
		]`))
	})

	reminders, err := client.Reminders(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, int64(1), reminders[0].ID)
}

func TestGetNonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Vehicles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAddFueling(t *testing.T) {
	var gotQuery map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vehicle/42/tank/1/fueling.json", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"id": 999}`))
	})

	req := &FuelingRequest{
		Date:     "2024-06-15",
		Trip:     500,
		Quantity: 40,
		Type:     FuelingFull,
	}
	require.NoError(t, client.AddFueling(context.Background(), 42, 1, req))

	assert.Equal(t, []string{"15.06.2024"}, gotQuery["date"])
	assert.Equal(t, []string{"500"}, gotQuery["trip"])
	assert.Equal(t, []string{"40"}, gotQuery["quantity"])
	assert.Equal(t, []string{"full"}, gotQuery["type"])
}

func TestAddFuelingAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors": ["quantity out of range"]}`))
	})

	req := &FuelingRequest{Date: "15.06.2024", Trip: 500, Quantity: 40, Type: FuelingFull}
	err := client.AddFueling(context.Background(), 42, 1, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity out of range")
}

func TestAddFuelingInvalidRequestNeverHitsNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := &FuelingRequest{Date: "15.06.2024", Trip: 0, Quantity: 40, Type: FuelingFull}
	err := client.AddFueling(context.Background(), 42, 1, req)
	require.Error(t, err)
	assert.False(t, called)
}

func TestAddFuelingHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := &FuelingRequest{Date: "15.06.2024", Trip: 500, Quantity: 40, Type: FuelingFull}
	err := client.AddFueling(context.Background(), 42, 1, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestBaseURL(t *testing.T) {
	c := NewClient("", "a", "b", testLogger())
	assert.Equal(t, "api.spritmonitor.de", c.BaseURL())
}
