package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
)

// Config holds all configuration options for the spritmonitor-hass bridge.
type Config struct {
	// MQTT Configuration
	MQTTUrl         string `json:"mqtt_url"`         // MQTT URL (supports both WebSocket and standard MQTT)
	DiscoveryPrefix string `json:"discovery_prefix"` // Home Assistant discovery prefix

	// Spritmonitor API Configuration
	AppToken    string `json:"app_token"`    // Spritmonitor Application-Id header
	BearerToken string `json:"bearer_token"` // Spritmonitor bearer token
	VehicleID   int64  `json:"vehicle_id"`   // Vehicle to monitor
	VehicleType string `json:"vehicle_type"` // combustion, electric or phev
	Currency    string `json:"currency"`     // Currency code for cost sensors

	// Polling
	RefreshIntervalHours int `json:"refresh_interval_hours"` // Hours between polls (1-24)

	// Device Configuration
	DeviceID string `json:"device_id"` // Unique device identifier

	// Application Configuration
	Verbose bool `json:"verbose"` // Enable verbose logging
}

// GetDefaultConfig returns a configuration with sensible defaults.
func GetDefaultConfig() *Config {
	return &Config{
		DiscoveryPrefix:      "homeassistant",
		VehicleType:          string(domain.VehicleCombustion),
		Currency:             "EUR",
		RefreshIntervalHours: DefaultRefreshIntervalHours,
		DeviceID:             "", // auto-generated from the vehicle id
		Verbose:              false,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.AppToken == "" {
		return fmt.Errorf("application token is required")
	}
	if c.BearerToken == "" {
		return fmt.Errorf("bearer token is required")
	}
	if c.VehicleID <= 0 {
		return fmt.Errorf("a positive vehicle id is required")
	}
	if _, err := domain.ParseVehicleType(c.VehicleType); err != nil {
		return err
	}
	if c.RefreshIntervalHours < MinRefreshIntervalHours || c.RefreshIntervalHours > MaxRefreshIntervalHours {
		return fmt.Errorf("refresh interval must be between %d and %d hours, got %d",
			MinRefreshIntervalHours, MaxRefreshIntervalHours, c.RefreshIntervalHours)
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	if c.DeviceID == "" {
		c.DeviceID = fmt.Sprintf("vehicle_%d", c.VehicleID)
	}
	return nil
}

// VehicleTypeEnum returns the parsed vehicle type. Call Validate first.
func (c *Config) VehicleTypeEnum() domain.VehicleType {
	t, _ := domain.ParseVehicleType(c.VehicleType)
	return t
}

// RefreshInterval returns the polling interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// HasMQTT returns true if MQTT is configured.
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}
