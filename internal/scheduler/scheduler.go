// Package scheduler periodically copies long-energy data from the API into
// the energy repository.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/wattwatch/internal/client"
	"github.com/tejusbharadwaj/wattwatch/internal/config"
	"github.com/tejusbharadwaj/wattwatch/internal/database"
	"github.com/tejusbharadwaj/wattwatch/internal/device"
	"github.com/tejusbharadwaj/wattwatch/internal/logging"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
)

// runTimeout bounds one scheduled sync of every device.
const runTimeout = 10 * time.Minute

// EnergySource is the part of client.Client the scheduler needs.
type EnergySource interface {
	Devices(ctx context.Context) ([]*device.Device, error)
	LongEnergy(ctx context.Context, deviceID string, start, end any, opts client.LongEnergyOptions) (*client.Series[models.LongData], error)
}

type Scheduler struct {
	source      EnergySource
	repo        database.EnergyRepository
	logger      logrus.FieldLogger
	cron        *cron.Cron
	granularity models.Granularity
	lookback    time.Duration
	devices     []string
	schedule    string
	now         func() time.Time

	// cursors holds the newest synced bucket per device; misses fall back to
	// the repository.
	cursors *lru.Cache

	running sync.Mutex
}

// New validates the sync configuration and builds a scheduler.
func New(source EnergySource, repo database.EnergyRepository, cfg config.SyncConfig, logger logrus.FieldLogger) (*Scheduler, error) {
	granularity, err := models.ParseGranularity(cfg.Granularity)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.Schedule, err)
	}
	size := cfg.CursorCacheSize
	if size <= 0 {
		size = 1024
	}
	cursors, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		source:      source,
		repo:        repo,
		logger:      logging.OrDiscard(logger),
		cron:        cron.New(),
		granularity: granularity,
		lookback:    cfg.Lookback,
		devices:     cfg.Devices,
		schedule:    cfg.Schedule,
		now:         time.Now,
		cursors:     cursors,
	}, nil
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.collectData); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop the scheduler and wait for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) collectData() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := s.SyncAll(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to sync energy data")
	}
}

// SyncAll syncs every configured device, or every device visible to the API
// key when none are configured. A failing device does not stop the others;
// their errors are joined. Overlapping runs are skipped.
func (s *Scheduler) SyncAll(ctx context.Context) error {
	if !s.running.TryLock() {
		s.logger.Warn("Previous sync still running, skipping")
		return nil
	}
	defer s.running.Unlock()

	ids, err := s.deviceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	var errs []error
	total := 0
	for _, id := range ids {
		n, err := s.SyncDevice(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, err)...)
			}
			errs = append(errs, err)
			continue
		}
		total += n
	}

	s.logger.WithFields(logrus.Fields{
		"devices":  len(ids),
		"readings": total,
		"failed":   len(errs),
	}).Info("Sync complete")
	return errors.Join(errs...)
}

func (s *Scheduler) deviceIDs(ctx context.Context) ([]string, error) {
	if len(s.devices) > 0 {
		return s.devices, nil
	}
	devices, err := s.source.Devices(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ID()
	}
	return ids, nil
}

// SyncDevice fetches everything since the device's cursor and stores it. The
// newest bucket is always fetched again because the API may still be filling
// it. It returns the number of readings written.
func (s *Scheduler) SyncDevice(ctx context.Context, deviceID string) (int, error) {
	log := s.logger.WithField("device_id", deviceID)

	start, err := s.cursor(ctx, deviceID)
	if err != nil {
		return 0, fmt.Errorf("device %s: failed to load cursor: %w", deviceID, err)
	}
	end := s.now()
	if !start.Before(end) {
		return 0, nil
	}

	series, err := s.source.LongEnergy(ctx, deviceID, start, end, client.LongEnergyOptions{
		Granularity: s.granularity,
	})
	if err != nil {
		return 0, fmt.Errorf("device %s: failed to fetch energy: %w", deviceID, err)
	}

	var readings []models.EnergyReading
	latest := start
	for _, rec := range series.Records {
		readings = append(readings, rec.Readings(deviceID)...)
		if rec.Timestamp.After(latest) {
			latest = rec.Timestamp.Time
		}
	}
	if err := s.repo.InsertReadings(ctx, readings); err != nil {
		return 0, fmt.Errorf("device %s: failed to store readings: %w", deviceID, err)
	}
	s.cursors.Add(deviceID, latest)

	log.WithFields(logrus.Fields{
		"from":     start,
		"to":       end,
		"windows":  len(series.Windows),
		"readings": len(readings),
	}).Debug("Device synced")
	return len(readings), nil
}

func (s *Scheduler) cursor(ctx context.Context, deviceID string) (time.Time, error) {
	if v, ok := s.cursors.Get(deviceID); ok {
		return v.(time.Time), nil
	}

	latest, err := s.repo.LatestReading(ctx, deviceID)
	if err != nil {
		return time.Time{}, err
	}
	if latest.IsZero() {
		latest = s.now().Add(-s.lookback)
	}
	s.cursors.Add(deviceID, latest)
	return latest, nil
}
