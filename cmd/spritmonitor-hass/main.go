package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/app"
	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/mqtt"
	"github.com/jkaberg/spritmonitor-hass/internal/pipeline"
	"github.com/jkaberg/spritmonitor-hass/internal/sensors"
	"github.com/jkaberg/spritmonitor-hass/internal/spritmonitor"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	cfg, once := parseFlags()

	logger := setupLogger(cfg.Verbose)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	apiClient := spritmonitor.NewClient("", cfg.AppToken, cfg.BearerToken, logger)

	// Debug path ------------------------------------------------------------------
	if once {
		runOnce(cfg, apiClient, logger)
		return
	}

	logger.WithFields(logrus.Fields{
		"version":      version,
		"vehicle_id":   cfg.VehicleID,
		"vehicle_type": cfg.VehicleType,
		"device_id":    cfg.DeviceID,
		"poll_hours":   cfg.RefreshIntervalHours,
		"api":          apiClient.BaseURL(),
	}).Info("Starting spritmonitor-hass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	var mqttClient *mqtt.Client
	if cfg.HasMQTT() {
		var err error
		mqttClient, err = mqtt.NewClient(cfg.MQTTUrl, cfg.DeviceID, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		defer mqttClient.Disconnect(250)
	}

	if err := app.Run(ctx, cfg, apiClient, mqttClient, logger); err != nil {
		logger.WithError(err).Fatal("spritmonitor-hass exited with error")
	}
	logger.Info("spritmonitor-hass stopped")
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags() (*config.Config, bool) {
	// A .env next to the binary is convenient for development; a missing
	// file is fine.
	_ = godotenv.Load()

	cfg := config.GetDefaultConfig()

	showVersion := flag.Bool("version", false, "Show version and exit")
	once := flag.Bool("once", false, "Run a single refresh cycle, print every sensor value and exit")

	flag.StringVar(&cfg.MQTTUrl, "mqtt-url", getEnv("SPRITMONITOR_HASS_MQTT_URL", cfg.MQTTUrl), "MQTT URL")
	flag.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", getEnv("SPRITMONITOR_HASS_DISCOVERY_PREFIX", cfg.DiscoveryPrefix), "HA discovery prefix")
	flag.StringVar(&cfg.AppToken, "app-token", getEnv("SPRITMONITOR_HASS_APP_TOKEN", cfg.AppToken), "Spritmonitor application token")
	flag.StringVar(&cfg.BearerToken, "bearer-token", getEnv("SPRITMONITOR_HASS_BEARER_TOKEN", cfg.BearerToken), "Spritmonitor bearer token")
	flag.StringVar(&cfg.VehicleType, "vehicle-type", getEnv("SPRITMONITOR_HASS_VEHICLE_TYPE", cfg.VehicleType), "Vehicle type (combustion, electric, phev)")
	flag.StringVar(&cfg.Currency, "currency", getEnv("SPRITMONITOR_HASS_CURRENCY", cfg.Currency), "Currency code for cost sensors")
	flag.StringVar(&cfg.DeviceID, "device-id", getEnv("SPRITMONITOR_HASS_DEVICE_ID", cfg.DeviceID), "Device identifier")
	flag.BoolVar(&cfg.Verbose, "verbose", getEnv("SPRITMONITOR_HASS_VERBOSE", "false") == "true", "Verbose logging")

	vehicleIDStr := flag.String("vehicle-id", getEnv("SPRITMONITOR_HASS_VEHICLE_ID", ""), "Spritmonitor vehicle id")
	refreshHoursStr := flag.String("refresh-hours", getEnv("SPRITMONITOR_HASS_REFRESH_HOURS", ""), "Hours between polls (1-24)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("spritmonitor-hass %s\n", version)
		os.Exit(0)
	}

	if *vehicleIDStr != "" {
		if v, err := strconv.ParseInt(*vehicleIDStr, 10, 64); err == nil {
			cfg.VehicleID = v
		}
	}
	if *refreshHoursStr != "" {
		if v, err := strconv.Atoi(*refreshHoursStr); err == nil {
			cfg.RefreshIntervalHours = v
		}
	}

	return cfg, *once
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// runOnce executes one refresh cycle and dumps every registry sensor value.
func runOnce(cfg *config.Config, apiClient *spritmonitor.Client, logger *logrus.Logger) {
	coordinator := pipeline.New(apiClient, cfg, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap, err := coordinator.Refresh(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Refresh failed")
	}

	registry := sensors.Build(cfg.VehicleTypeEnum(), nil)
	for _, desc := range registry {
		value := desc.Value(snap)
		if value == nil {
			value = "absent"
		}
		logger.WithFields(logrus.Fields{
			"sensor": desc.ID,
			"unit":   desc.Unit.Resolve(snap.Units, cfg.Currency),
			"value":  value,
		}).Info(desc.Name)
	}
}
