package spritmonitor

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// Fueling types accepted by the vendor.
const (
	FuelingFull    = "full"
	FuelingNotFull = "notfull"
	FuelingFirst   = "first"
	FuelingInvalid = "invalid"
)

// FuelingRequest is a structured fueling or charge submission. Required:
// date, trip, quantity and type. Dates are accepted as YYYY-MM-DD or
// DD.MM.YYYY and normalized to the vendor's DD.MM.YYYY before submission.
type FuelingRequest struct {
	Date     string  `json:"date"`
	Trip     float64 `json:"trip"`
	Quantity float64 `json:"quantity"`
	Type     string  `json:"type"`

	Odometer       *float64 `json:"odometer,omitempty"`
	FuelSortID     *int     `json:"fuelsortid,omitempty"`
	QuantityUnitID *int     `json:"quantityunitid,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	CurrencyID     *int     `json:"currencyid,omitempty"`
	PricePerUnit   *float64 `json:"priceperunit,omitempty"`
	Note           string   `json:"note,omitempty"`
	Country        string   `json:"country,omitempty"`
	StationName    string   `json:"stationname,omitempty"`

	// GPS position of the station; both coordinates or neither.
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	// Attribute flags (e.g. missed fuelings, tire kinds, driving styles)
	// are combined into one comma-joined string on submission.
	Attributes []string `json:"attributes,omitempty"`

	// Charge metadata for electric records, combined the same way.
	ChargeInfo          []string `json:"charge_info,omitempty"`
	ChargingPower       *float64 `json:"charging_power,omitempty"`
	ChargingDurationMin *float64 `json:"charging_duration,omitempty"`

	// Trip-computer readouts, all optional.
	BCConsumption *float64 `json:"bc_consumption,omitempty"`
	BCQuantity    *float64 `json:"bc_quantity,omitempty"`
	BCSpeed       *float64 `json:"bc_speed,omitempty"`
}

// NormalizeDate converts an accepted input date into the vendor's
// DD.MM.YYYY format.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format(domain.DateLayout), nil
	}
	if _, err := time.Parse(domain.DateLayout, s); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("unsupported date format %q (want YYYY-MM-DD or DD.MM.YYYY)", s)
}

// Validate checks the request without touching the network. It is called by
// Values but exposed so transports can reject bad submissions early.
func (r *FuelingRequest) Validate() error {
	if r.Date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := NormalizeDate(r.Date); err != nil {
		return err
	}
	if r.Trip <= 0 {
		return fmt.Errorf("trip must be positive")
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	switch r.Type {
	case FuelingFull, FuelingNotFull, FuelingFirst, FuelingInvalid:
	default:
		return fmt.Errorf("unknown fueling type %q", r.Type)
	}
	if (r.Lat == nil) != (r.Lon == nil) {
		return fmt.Errorf("latitude and longitude must be provided together")
	}
	return nil
}

// Values validates the request and renders it as the query parameters the
// vendor's POST endpoint expects.
func (r *FuelingRequest) Values() (url.Values, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	date, err := NormalizeDate(r.Date)
	if err != nil {
		return nil, err
	}

	v := url.Values{}
	v.Set("date", date)
	v.Set("trip", formatFloat(r.Trip))
	v.Set("quantity", formatFloat(r.Quantity))
	v.Set("type", r.Type)

	setFloat := func(key string, p *float64) {
		if p != nil {
			v.Set(key, formatFloat(*p))
		}
	}
	setInt := func(key string, p *int) {
		if p != nil {
			v.Set(key, strconv.Itoa(*p))
		}
	}
	setString := func(key, s string) {
		if s != "" {
			v.Set(key, s)
		}
	}

	setFloat("odometer", r.Odometer)
	setInt("fuelsortid", r.FuelSortID)
	setInt("quantityunitid", r.QuantityUnitID)
	setFloat("price", r.Price)
	setInt("currencyid", r.CurrencyID)
	setFloat("priceperunit", r.PricePerUnit)
	setString("note", r.Note)
	setString("country", r.Country)
	setString("stationname", r.StationName)
	setFloat("lat", r.Lat)
	setFloat("lon", r.Lon)
	setString("attributes", strings.Join(r.Attributes, ","))
	setString("charging_info", strings.Join(r.ChargeInfo, ","))
	setFloat("charging_power", r.ChargingPower)
	setFloat("charging_duration", r.ChargingDurationMin)
	setFloat("bc_consumption", r.BCConsumption)
	setFloat("bc_quantity", r.BCQuantity)
	setFloat("bc_speed", r.BCSpeed)

	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
