package transmission

import "github.com/jkaberg/spritmonitor-hass/internal/domain"

// Transmitter defines the interface for publishing snapshots downstream
type Transmitter interface {
	Transmit(snapshot *domain.Snapshot) error
	IsConnected() bool
}
