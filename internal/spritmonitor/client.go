package spritmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/jkaberg/spritmonitor-hass/internal/netutil"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Spritmonitor REST endpoint.
const DefaultBaseURL = "https://api.spritmonitor.de/v1"

// fetchLimit caps the transaction history to the window the derived metrics
// actually consume.
const fetchLimit = 20

// Client talks to the Spritmonitor REST API. Every request carries the
// Application-Id and bearer token headers; each call runs under the caller's
// context plus the client-level timeout.
type Client struct {
	baseURL    string
	appToken   string
	bearer     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a Spritmonitor API client. An empty baseURL selects the
// public endpoint.
func NewClient(baseURL, appToken, bearerToken string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		appToken:   appToken,
		bearer:     bearerToken,
		httpClient: netutil.NewHTTPClient(config.APIRequestTimeout, logger),
		logger:     logger,
	}
}

// Vehicles fetches the account's vehicle list.
func (c *Client) Vehicles(ctx context.Context) ([]domain.VehicleInfo, error) {
	var vehicles []domain.VehicleInfo
	if err := c.get(ctx, "/vehicles.json", &vehicles); err != nil {
		return nil, fmt.Errorf("fetch vehicles: %w", err)
	}
	c.logger.WithField("vehicles", len(vehicles)).Debug("Fetched vehicle list")
	return vehicles, nil
}

// Fuelings fetches the most recent transaction records for a vehicle, newest
// first as far as the vendor is concerned; ordering is re-established by the
// classifier regardless.
func (c *Client) Fuelings(ctx context.Context, vehicleID int64) ([]domain.TransactionRecord, error) {
	path := fmt.Sprintf("/vehicle/%d/fuelings.json?limit=%d", vehicleID, fetchLimit)
	var records []domain.TransactionRecord
	if err := c.get(ctx, path, &records); err != nil {
		return nil, fmt.Errorf("fetch fuelings for vehicle %d: %w", vehicleID, err)
	}
	c.logger.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"records":    len(records),
	}).Debug("Fetched fueling records")
	return records, nil
}

// Reminders fetches the account's reminders filtered to the given vehicle.
func (c *Client) Reminders(ctx context.Context, vehicleID int64) ([]domain.ReminderRecord, error) {
	var all []domain.ReminderRecord
	if err := c.get(ctx, "/reminders.json", &all); err != nil {
		return nil, fmt.Errorf("fetch reminders: %w", err)
	}

	var mine []domain.ReminderRecord
	for _, r := range all {
		if r.VehicleID == vehicleID {
			mine = append(mine, r)
		}
	}
	c.logger.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"reminders":  len(mine),
	}).Debug("Fetched reminders")
	return mine, nil
}

// AddFueling submits a new fueling or charge record. The request is
// validated and normalized before anything goes over the wire; a non-2xx
// response or an API-reported errors array fails the call.
func (c *Client) AddFueling(ctx context.Context, vehicleID int64, tankID int, req *FuelingRequest) error {
	values, err := req.Values()
	if err != nil {
		return fmt.Errorf("invalid fueling request: %w", err)
	}

	path := fmt.Sprintf("/vehicle/%d/tank/%d/fueling.json?%s", vehicleID, tankID, values.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build fueling request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit fueling: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read fueling response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}

	var apiResp struct {
		Errors []json.RawMessage `json:"errors"`
	}
	// The success payload is not interesting beyond the errors array; a body
	// that is not JSON at all is treated as success on a 2xx status.
	if err := json.Unmarshal(body, &apiResp); err == nil && len(apiResp.Errors) > 0 {
		msgs := make([]string, len(apiResp.Errors))
		for i, e := range apiResp.Errors {
			msgs[i] = string(e)
		}
		return fmt.Errorf("API reported errors: %v", msgs)
	}

	c.logger.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"tank_id":    tankID,
		"date":       values.Get("date"),
	}).Info("Fueling submitted")
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Application-Id", c.appToken)
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("User-Agent", "spritmonitor-hass/1.0")
}

// BaseURL returns the configured endpoint, useful for logging.
func (c *Client) BaseURL() string {
	if u, err := url.Parse(c.baseURL); err == nil {
		return u.Host
	}
	return c.baseURL
}
