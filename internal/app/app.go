package app

import (
	"context"

	"github.com/jkaberg/spritmonitor-hass/internal/bus"
	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/jkaberg/spritmonitor-hass/internal/mqtt"
	"github.com/jkaberg/spritmonitor-hass/internal/pipeline"
	"github.com/jkaberg/spritmonitor-hass/internal/sensors"
	"github.com/jkaberg/spritmonitor-hass/internal/spritmonitor"
	"github.com/jkaberg/spritmonitor-hass/internal/transmission"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run wires the refresh pipeline to the MQTT exposure layer and blocks until
// ctx is cancelled. mqttClient may be nil, in which case snapshots are only
// logged.
func Run(
	parentCtx context.Context,
	cfg *config.Config,
	apiClient *spritmonitor.Client,
	mqttClient *mqtt.Client,
	logger *logrus.Logger,
) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	messageBus := bus.New()
	coordinator := pipeline.New(apiClient, cfg, messageBus, logger)
	registry := sensors.Build(cfg.VehicleTypeEnum(), nil)

	var mqttTx *transmission.MQTTTransmitter
	if mqttClient != nil {
		mqttTx = transmission.NewMQTTTransmitter(mqttClient, registry, cfg.Currency, cfg.DeviceID, cfg.DiscoveryPrefix, logger)

		handler := transmission.NewFuelingCommandHandler(mqttClient, apiClient, coordinator, cfg.VehicleID, logger)
		if err := handler.Start(); err != nil {
			logger.WithError(err).Warn("Fueling command handler unavailable")
		}
	} else {
		logger.Warn("No MQTT broker configured; snapshots will only be logged")
	}

	grp, ctx := errgroup.WithContext(ctx)

	// Pipeline ------------------------------------------------------------
	grp.Go(func() error {
		return coordinator.Run(ctx)
	})

	// Publisher -----------------------------------------------------------
	sub := messageBus.Subscribe()
	grp.Go(func() error {
		var lastSent *domain.Snapshot
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap, ok := <-sub:
				if !ok {
					return nil
				}
				if mqttTx == nil {
					continue
				}
				if !domain.Changed(lastSent, snap) {
					logger.Debug("publisher: snapshot unchanged, skipping transmit")
					continue
				}
				if err := mqttTx.Transmit(snap); err != nil {
					// lastSent stays untouched so the next snapshot
					// publication retries the transmit.
					logger.WithError(err).Warn("MQTT transmit failed")
					continue
				}
				lastSent = snap
			}
		}
	})

	err := grp.Wait()
	if err != nil && err != context.Canceled {
		logger.WithError(err).Warn("app: background group exited")
		return err
	}
	return nil
}
