package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/wattwatch/internal/client"
	"github.com/tejusbharadwaj/wattwatch/internal/config"
	"github.com/tejusbharadwaj/wattwatch/internal/database/mocks"
	"github.com/tejusbharadwaj/wattwatch/internal/device"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
	"github.com/tejusbharadwaj/wattwatch/internal/window"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type longCall struct {
	deviceID   string
	start, end time.Time
	opts       client.LongEnergyOptions
}

type fakeSource struct {
	devices []string
	records map[string][]models.LongData
	errs    map[string]error
	calls   []longCall
}

func (f *fakeSource) Devices(ctx context.Context) ([]*device.Device, error) {
	out := make([]*device.Device, len(f.devices))
	for i, id := range f.devices {
		out[i] = device.New(nil, id)
	}
	return out, nil
}

func (f *fakeSource) LongEnergy(ctx context.Context, deviceID string, start, end any, opts client.LongEnergyOptions) (*client.Series[models.LongData], error) {
	f.calls = append(f.calls, longCall{deviceID, start.(time.Time), end.(time.Time), opts})
	if err := f.errs[deviceID]; err != nil {
		return nil, err
	}
	return &client.Series[models.LongData]{
		Records: f.records[deviceID],
		Windows: []window.Window{{Start: start.(time.Time), End: end.(time.Time)}},
	}, nil
}

func syncConfig() config.SyncConfig {
	return config.SyncConfig{
		Schedule:        "*/15 * * * *",
		Granularity:     "15m",
		Lookback:        24 * time.Hour,
		CursorCacheSize: 16,
	}
}

func newTestScheduler(t *testing.T, src EnergySource, repo *mocks.MockEnergyRepository, cfg config.SyncConfig) *Scheduler {
	t.Helper()
	s, err := New(src, repo, cfg, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func bucket(at time.Time, values ...float64) models.LongData {
	return models.LongData{Timestamp: models.Timestamp{Time: at}, Duration: 900, EnergyReal: values}
}

func TestNewValidatesConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	tests := []struct {
		name   string
		mutate func(*config.SyncConfig)
	}{
		{"bad granularity", func(c *config.SyncConfig) { c.Granularity = "2h" }},
		{"bad schedule", func(c *config.SyncConfig) { c.Schedule = "every tuesday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := syncConfig()
			tt.mutate(&cfg)
			_, err := New(&fakeSource{}, repo, cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestSyncDeviceFirstRunUsesLookback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	src := &fakeSource{records: map[string][]models.LongData{
		"D1": {bucket(now.Add(-30*time.Minute), 1, 2), bucket(now.Add(-15*time.Minute), 3, 4)},
	}}
	s := newTestScheduler(t, src, repo, syncConfig())

	repo.EXPECT().LatestReading(gomock.Any(), "D1").Return(time.Time{}, nil)
	repo.EXPECT().InsertReadings(gomock.Any(), gomock.Len(4)).Return(nil)

	n, err := s.SyncDevice(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.Len(t, src.calls, 1)
	assert.Equal(t, now.Add(-24*time.Hour), src.calls[0].start)
	assert.Equal(t, now, src.calls[0].end)
	assert.Equal(t, models.GranularityFifteenMinute, src.calls[0].opts.Granularity)
}

func TestSyncDeviceAdvancesCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	stored := now.Add(-2 * time.Hour)
	newest := now.Add(-15 * time.Minute)
	src := &fakeSource{records: map[string][]models.LongData{
		"D1": {bucket(newest, 5)},
	}}
	s := newTestScheduler(t, src, repo, syncConfig())

	// The repository is consulted once; later runs use the cached cursor.
	repo.EXPECT().LatestReading(gomock.Any(), "D1").Return(stored, nil).Times(1)
	repo.EXPECT().InsertReadings(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := s.SyncDevice(context.Background(), "D1")
	require.NoError(t, err)
	_, err = s.SyncDevice(context.Background(), "D1")
	require.NoError(t, err)

	require.Len(t, src.calls, 2)
	assert.Equal(t, stored, src.calls[0].start)
	assert.Equal(t, newest, src.calls[1].start)
}

func TestSyncDeviceStoreFailureKeepsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	stored := now.Add(-time.Hour)
	src := &fakeSource{records: map[string][]models.LongData{
		"D1": {bucket(now.Add(-15*time.Minute), 5)},
	}}
	s := newTestScheduler(t, src, repo, syncConfig())

	repo.EXPECT().LatestReading(gomock.Any(), "D1").Return(stored, nil)
	boom := errors.New("disk full")
	gomock.InOrder(
		repo.EXPECT().InsertReadings(gomock.Any(), gomock.Any()).Return(boom),
		repo.EXPECT().InsertReadings(gomock.Any(), gomock.Any()).Return(nil),
	)

	_, err := s.SyncDevice(context.Background(), "D1")
	require.ErrorIs(t, err, boom)

	_, err = s.SyncDevice(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, stored, src.calls[1].start)
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	apiErr := errors.New("forbidden")
	src := &fakeSource{
		devices: []string{"D1", "D2", "D3"},
		records: map[string][]models.LongData{
			"D1": {bucket(now.Add(-time.Hour), 1)},
			"D3": {bucket(now.Add(-time.Hour), 1, 2, 3)},
		},
		errs: map[string]error{"D2": apiErr},
	}
	s := newTestScheduler(t, src, repo, syncConfig())

	repo.EXPECT().LatestReading(gomock.Any(), gomock.Any()).Return(time.Time{}, nil).Times(3)
	repo.EXPECT().InsertReadings(gomock.Any(), gomock.Len(1)).Return(nil)
	repo.EXPECT().InsertReadings(gomock.Any(), gomock.Len(3)).Return(nil)

	err := s.SyncAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apiErr)
	assert.Len(t, src.calls, 3)
}

func TestSyncAllUsesConfiguredDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	src := &fakeSource{devices: []string{"D1", "D2"}}
	cfg := syncConfig()
	cfg.Devices = []string{"D9"}
	s := newTestScheduler(t, src, repo, cfg)

	repo.EXPECT().LatestReading(gomock.Any(), "D9").Return(time.Time{}, nil)
	repo.EXPECT().InsertReadings(gomock.Any(), gomock.Len(0)).Return(nil)

	require.NoError(t, s.SyncAll(context.Background()))
	require.Len(t, src.calls, 1)
	assert.Equal(t, "D9", src.calls[0].deviceID)
}

func TestStartAndStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockEnergyRepository(ctrl)

	s := newTestScheduler(t, &fakeSource{}, repo, syncConfig())
	require.NoError(t, s.Start())
	s.Stop()
}
