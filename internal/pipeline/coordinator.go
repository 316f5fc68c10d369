package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jkaberg/spritmonitor-hass/internal/bus"
	"github.com/jkaberg/spritmonitor-hass/internal/config"
	"github.com/jkaberg/spritmonitor-hass/internal/domain"
	"github.com/sirupsen/logrus"
)

// ErrVehicleNotFound is returned when the configured vehicle id is missing
// from the account's vehicle list.
var ErrVehicleNotFound = errors.New("vehicle not found in account")

// API is the slice of the Spritmonitor client the pipeline consumes.
type API interface {
	Vehicles(ctx context.Context) ([]domain.VehicleInfo, error)
	Fuelings(ctx context.Context, vehicleID int64) ([]domain.TransactionRecord, error)
	Reminders(ctx context.Context, vehicleID int64) ([]domain.ReminderRecord, error)
}

// Coordinator runs the refresh pipeline: one full cycle per tick (or
// on-demand request) that fetches vehicle info, the transaction history and
// the reminders, classifies the records and publishes an immutable snapshot.
//
// A failed cycle logs "update failed" and leaves the previous snapshot
// untouched; readers never observe partial data.
type Coordinator struct {
	client  API
	cfg     *config.Config
	vtype   domain.VehicleType
	bus     *bus.Bus
	logger  *logrus.Logger
	latest  atomic.Pointer[domain.Snapshot]
	refresh chan struct{}
}

// New creates a coordinator. The config must already be validated. b may be
// nil for one-shot use, in which case snapshots are only stored locally.
func New(client API, cfg *config.Config, b *bus.Bus, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		client:  client,
		cfg:     cfg,
		vtype:   cfg.VehicleTypeEnum(),
		bus:     b,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

// Latest returns the last successfully published snapshot, nil before the
// first success. The pointer is swapped atomically; the snapshot behind it
// is never mutated.
func (c *Coordinator) Latest() *domain.Snapshot { return c.latest.Load() }

// RequestRefresh schedules an out-of-band refresh, typically after a
// successful write. Requests arriving while one is already pending are
// coalesced.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Run polls on the configured interval until ctx is cancelled. The first
// cycle runs immediately.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.RefreshInterval())
	defer ticker.Stop()

	c.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runCycle(ctx)
		case <-c.refresh:
			c.runCycle(ctx)
		}
	}
}

func (c *Coordinator) runCycle(ctx context.Context) {
	snap, err := c.Refresh(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("pipeline: update failed, keeping previous snapshot")
		return
	}

	c.latest.Store(snap)
	if c.bus != nil {
		c.bus.Publish(snap)
	}

	c.logger.WithFields(logrus.Fields{
		"vehicle":          snap.Vehicle.ID,
		"gas_refuelings":   len(snap.GasRefuelings),
		"electric_charges": len(snap.ElectricCharges),
		"reminders":        len(snap.Reminders),
	}).Info("Snapshot refreshed")
}

// Refresh executes one full cycle and returns the assembled snapshot. The
// vehicle-list, fueling and classification steps are fatal; the reminder
// fetch is best-effort and leaves Reminders nil on error.
func (c *Coordinator) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	vehicle, err := c.findVehicle(ctx)
	if err != nil {
		return nil, err
	}

	units := DeriveUnits(*vehicle, c.vtype)

	fctx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
	records, err := c.client.Fuelings(fctx, vehicle.ID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fueling history: %w", err)
	}

	gas, electric, err := domain.Classify(records, c.vtype)
	if err != nil {
		return nil, fmt.Errorf("classify fuelings: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
	reminders, rerr := c.client.Reminders(rctx, vehicle.ID)
	cancel()
	if rerr != nil {
		c.logger.WithError(rerr).Warn("pipeline: reminder fetch failed, continuing without reminders")
		reminders = nil
	}

	return &domain.Snapshot{
		Vehicle:         *vehicle,
		Units:           units,
		Refuelings:      domain.PrimaryList(gas, electric, c.vtype),
		GasRefuelings:   gas,
		ElectricCharges: electric,
		Reminders:       reminders,
		FetchedAt:       time.Now(),
	}, nil
}

func (c *Coordinator) findVehicle(ctx context.Context) (*domain.VehicleInfo, error) {
	vctx, cancel := context.WithTimeout(ctx, config.APIRequestTimeout)
	defer cancel()

	vehicles, err := c.client.Vehicles(vctx)
	if err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}
	for i := range vehicles {
		if vehicles[i].ID == c.cfg.VehicleID {
			return &vehicles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrVehicleNotFound, c.cfg.VehicleID)
}
