package config

import "time"

// Central place for all application-wide timing constants and other
// defaults. Changing a value here immediately affects all components that
// import github.com/jkaberg/spritmonitor-hass/internal/config.

const (
	// Polling bounds; Spritmonitor data changes at most a few times per day,
	// so the interval is measured in hours.
	DefaultRefreshIntervalHours = 8
	MinRefreshIntervalHours     = 1
	MaxRefreshIntervalHours     = 24

	// Operation time-outs (to avoid blocking goroutines)
	APIRequestTimeout = 30 * time.Second // each Spritmonitor API call
	MQTTTimeout       = 5 * time.Second  // MQTT publish
)
