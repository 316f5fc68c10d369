package transmission

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/jkaberg/spritmonitor-hass/internal/mqtt"
	"github.com/jkaberg/spritmonitor-hass/internal/sensors"
	"github.com/sirupsen/logrus"
)

// MQTTTransmitter publishes the sensor registry via MQTT: one Home
// Assistant discovery config per descriptor (published once, retained), a
// state JSON payload evaluated against the latest snapshot, and an
// availability topic.
type MQTTTransmitter struct {
	client           *mqtt.Client
	registry         []sensors.Descriptor
	currency         string
	deviceID         string
	discoveryPrefix  string
	logger           *logrus.Logger
	publishedSensors map[string]bool // Tracks published discovery configs
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration
type HADiscoveryConfig struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Device            HADevice `json:"device"`
	AvailabilityTopic string   `json:"availability_topic"`
	Icon              string   `json:"icon,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
}

// HADevice represents the device information for Home Assistant
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// NewMQTTTransmitter creates a new MQTT transmitter for the given registry
func NewMQTTTransmitter(client *mqtt.Client, registry []sensors.Descriptor, currency, deviceID, discoveryPrefix string, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:           client,
		registry:         registry,
		currency:         currency,
		deviceID:         deviceID,
		discoveryPrefix:  discoveryPrefix,
		logger:           logger,
		publishedSensors: make(map[string]bool),
	}
}

// Transmit publishes discovery configs, the state payload and availability
// for the given snapshot.
func (t *MQTTTransmitter) Transmit(snapshot *domain.Snapshot) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	// Publish discovery config for all registry sensors if it hasn't been done.
	// Units depend on the snapshot, so this only runs once we have one.
	if err := t.publishDiscoveryConfigs(snapshot); err != nil {
		// Log error but don't block transmission
		t.logger.WithError(err).Error("Failed to publish Home Assistant discovery configs")
	}

	payload, err := t.BuildStatePayload(snapshot)
	if err != nil {
		return fmt.Errorf("failed to build state payload: %w", err)
	}
	if err := t.client.Publish(t.client.GetStateTopic(), payload, true); err != nil {
		return fmt.Errorf("failed to publish sensor data: %w", err)
	}

	if err := t.client.PublishAvailability(true); err != nil {
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	t.logger.WithField("sensors", len(t.registry)).Debug("Snapshot transmitted")
	return nil
}

// BuildStatePayload evaluates every registry sensor against the snapshot and
// renders the state JSON object. Absent values are omitted so the Home
// Assistant value templates report them as unknown.
func (t *MQTTTransmitter) BuildStatePayload(snapshot *domain.Snapshot) ([]byte, error) {
	state := make(map[string]any, len(t.registry)+1)
	for _, desc := range t.registry {
		if v := desc.Value(snapshot); v != nil {
			state[desc.ID] = v
		}
	}
	if snapshot != nil && !snapshot.FetchedAt.IsZero() {
		state["last_update"] = snapshot.FetchedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return json.Marshal(state)
}

// publishDiscoveryConfigs ensures every registry sensor has its discovery
// config published.
func (t *MQTTTransmitter) publishDiscoveryConfigs(snapshot *domain.Snapshot) error {
	device := t.deviceInfo(snapshot)

	for _, desc := range t.registry {
		if err := t.publishDiscoveryForSensor(desc, device, snapshot.Units); err != nil {
			t.logger.WithError(err).WithField("sensor", desc.Name).Error("Failed to publish discovery config")
			// Continue to the next sensor
		}
	}
	return nil
}

func (t *MQTTTransmitter) deviceInfo(snapshot *domain.Snapshot) HADevice {
	name := strings.TrimSpace(snapshot.Vehicle.Make + " " + snapshot.Vehicle.Model)
	if name == "" {
		name = "Spritmonitor Vehicle"
	}
	model := snapshot.Vehicle.Model
	if model == "" {
		model = "Vehicle"
	}
	manufacturer := snapshot.Vehicle.Make
	if manufacturer == "" {
		manufacturer = "Spritmonitor"
	}
	return HADevice{
		Identifiers:  []string{fmt.Sprintf("spritmonitor_%s", t.deviceID)},
		Name:         name,
		Model:        model,
		Manufacturer: manufacturer,
		SWVersion:    "1.0.0",
	}
}

// publishDiscoveryForSensor publishes the discovery config for a single sensor.
func (t *MQTTTransmitter) publishDiscoveryForSensor(desc sensors.Descriptor, device HADevice, units domain.Units) error {
	uniqueID := fmt.Sprintf("%s_%s", t.deviceID, desc.ID)

	// Skip if already published
	if t.publishedSensors[uniqueID] {
		return nil
	}

	config := HADiscoveryConfig{
		Name:              desc.Name,
		UniqueID:          uniqueID,
		StateTopic:        t.client.GetStateTopic(),
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s | default(None) }}", desc.ID),
		AvailabilityTopic: t.client.GetAvailabilityTopic(),
		Device:            device,
		DeviceClass:       desc.DeviceClass,
		UnitOfMeasurement: desc.Unit.Resolve(units, t.currency),
		Icon:              desc.Icon,
		StateClass:        desc.StateClass,
	}

	topic := t.client.GetDiscoveryTopic(t.discoveryPrefix, "sensor", desc.ID)
	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}
	if err := t.client.Publish(topic, payload, true); err != nil {
		return fmt.Errorf("failed to publish %s discovery config: %w", desc.Name, err)
	}

	t.logger.WithFields(logrus.Fields{
		"sensor_name": desc.Name,
		"entity_id":   desc.ID,
		"topic":       topic,
	}).Info("Published sensor discovery config")

	// Mark as published
	t.publishedSensors[uniqueID] = true
	return nil
}

// IsConnected checks if the MQTT client is connected
func (t *MQTTTransmitter) IsConnected() bool {
	return t.client.IsConnected()
}
