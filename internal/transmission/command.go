package transmission

import (
	"context"
	"encoding/json"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/jkaberg/spritmonitor-hass/internal/mqtt"
	"github.com/jkaberg/spritmonitor-hass/internal/spritmonitor"
	"github.com/sirupsen/logrus"
)

// FuelingSubmitter is the slice of the Spritmonitor client the write path
// consumes.
type FuelingSubmitter interface {
	AddFueling(ctx context.Context, vehicleID int64, tankID int, req *spritmonitor.FuelingRequest) error
}

// Refresher requests an out-of-band pipeline refresh after a successful write.
type Refresher interface {
	RequestRefresh()
}

// FuelingCommandHandler carries the write path over MQTT: it accepts a
// fueling/charge submission as JSON on the command topic, validates and
// forwards it to Spritmonitor, reports the outcome on the result topic, and
// triggers a refresh on success. Submission errors never affect polling
// state.
type FuelingCommandHandler struct {
	client    *mqtt.Client
	api       FuelingSubmitter
	refresher Refresher
	vehicleID int64
	logger    *logrus.Logger
}

// fuelingCommand is the command payload: a fueling request plus the target
// tank (1 = fuel, 2 = electric; defaults to fuel).
type fuelingCommand struct {
	TankID int `json:"tank_id"`
	spritmonitor.FuelingRequest
}

type fuelingResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewFuelingCommandHandler wires the write path to the MQTT command topic.
func NewFuelingCommandHandler(client *mqtt.Client, api FuelingSubmitter, refresher Refresher, vehicleID int64, logger *logrus.Logger) *FuelingCommandHandler {
	return &FuelingCommandHandler{
		client:    client,
		api:       api,
		refresher: refresher,
		vehicleID: vehicleID,
		logger:    logger,
	}
}

// Start subscribes to the fueling command topic.
func (h *FuelingCommandHandler) Start() error {
	topic := h.client.GetFuelingCommandTopic()
	if err := h.client.Subscribe(topic, h.handleMessage); err != nil {
		return err
	}
	h.logger.WithField("topic", topic).Info("Fueling command handler ready")
	return nil
}

func (h *FuelingCommandHandler) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	var cmd fuelingCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		h.reportResult(fuelingResult{Error: "invalid payload: " + err.Error()})
		return
	}
	if cmd.TankID == 0 {
		cmd.TankID = domain.TankFuel
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.APIRequestTimeout)
	defer cancel()

	if err := h.api.AddFueling(ctx, h.vehicleID, cmd.TankID, &cmd.FuelingRequest); err != nil {
		h.logger.WithError(err).Warn("Fueling submission failed")
		h.reportResult(fuelingResult{Error: err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tank_id": cmd.TankID,
		"date":    cmd.Date,
	}).Info("Fueling submission accepted")
	h.reportResult(fuelingResult{Success: true})

	// A fresh record exists upstream; pull it into the next snapshot.
	h.refresher.RequestRefresh()
}

func (h *FuelingCommandHandler) reportResult(res fuelingResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := h.client.Publish(h.client.GetFuelingResultTopic(), payload, false); err != nil {
		h.logger.WithError(err).Debug("Failed to publish fueling result")
	}
}
