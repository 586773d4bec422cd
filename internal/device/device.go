// Package device models a remote device as a lazily materialized entity.
//
// A Device starts as a stub holding only its identifier. The first read of any
// other field fetches the full representation once; writes are recorded
// locally and sent as a partial update by Commit.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tejusbharadwaj/wattwatch/internal/models"
)

// State is the lifecycle stage of a Device.
type State int

const (
	Stub State = iota
	Materialized
)

func (s State) String() string {
	if s == Materialized {
		return "materialized"
	}
	return "stub"
}

// Source fetches and updates devices on behalf of a Device.
type Source interface {
	FetchDevice(ctx context.Context, id string) (*models.DeviceInfo, error)
	UpdateDevice(ctx context.Context, id string, fields map[string]any) error
}

// Wire names of writable device fields.
const (
	fieldTimezone                     = "timezone"
	fieldShortEnergyReportingInterval = "shortEnergyReportingInterval"
	fieldChannels                     = "channels"
	fieldSwitches                     = "switches"
	fieldSignalQuality                = "signalQuality"
)

// Device is safe for concurrent use. At most one fetch is made per Device, and
// writes recorded while that fetch is in flight are kept.
type Device struct {
	id  string
	src Source

	load   sync.Mutex // serializes materialization
	commit sync.Mutex // serializes commits

	mu       sync.RWMutex
	state    State
	channels []*Channel
	switches []*Switch

	rec record[models.DeviceInfo]
}

// Option configures a new Device.
type Option func(*Device)

// WithSnapshot seeds a stub with values the caller already has. They are
// served only until the first read materializes the device.
func WithSnapshot(info models.DeviceInfo) Option {
	return func(d *Device) {
		d.setInfo(info)
	}
}

// New returns a stub for the device with the given id.
func New(src Source, id string, opts ...Option) *Device {
	d := &Device{id: id, src: src}
	d.rec.assign = assignDevice
	d.rec.generated = map[string]bool{fieldSignalQuality: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewMaterialized returns a device built from a full representation.
func NewMaterialized(src Source, info models.DeviceInfo) *Device {
	d := New(src, info.ID)
	d.setInfo(info)
	d.state = Materialized
	return d
}

func assignDevice(d *models.DeviceInfo, name string, v any) {
	switch name {
	case fieldLabel:
		d.Label = v.(string)
	case fieldTimezone:
		d.Timezone = v.(string)
	case fieldShortEnergyReportingInterval:
		d.ShortEnergyReportingInterval = v.(int)
	}
}

// setInfo installs info, keeping pending writes. Callers hold mu or own d.
func (d *Device) setInfo(info models.DeviceInfo) {
	d.channels = mergeChannels(d.channels, info.Channels)
	d.switches = mergeSwitches(d.switches, info.Switches)
	info.Channels, info.Switches = nil, nil
	d.rec.merge(info)
}

// ID never triggers a fetch.
func (d *Device) ID() string { return d.id }

// State reports whether the device has been fetched. It never triggers a fetch.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Materialize fetches the full representation if the device is still a stub.
func (d *Device) Materialize(ctx context.Context) error {
	if d.State() == Materialized {
		return nil
	}

	d.load.Lock()
	defer d.load.Unlock()
	if d.State() == Materialized {
		return nil
	}

	info, err := d.src.FetchDevice(ctx, d.id)
	if err != nil {
		return fmt.Errorf("fetch device %s: %w", d.id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.setInfo(*info)
	d.state = Materialized
	return nil
}

func (d *Device) info(ctx context.Context) (models.DeviceInfo, error) {
	if err := d.Materialize(ctx); err != nil {
		return models.DeviceInfo{}, err
	}
	return d.rec.get(), nil
}

func (d *Device) Label(ctx context.Context) (string, error) {
	info, err := d.info(ctx)
	return info.Label, err
}

func (d *Device) Timezone(ctx context.Context) (string, error) {
	info, err := d.info(ctx)
	return info.Timezone, err
}

func (d *Device) Model(ctx context.Context) (string, error) {
	info, err := d.info(ctx)
	return info.Model, err
}

func (d *Device) FirmwareVersion(ctx context.Context) (string, error) {
	info, err := d.info(ctx)
	return info.FirmwareVersion, err
}

// ShortEnergyReportingInterval is in seconds.
func (d *Device) ShortEnergyReportingInterval(ctx context.Context) (int, error) {
	info, err := d.info(ctx)
	return info.ShortEnergyReportingInterval, err
}

func (d *Device) LatestStatus(ctx context.Context) (json.RawMessage, error) {
	info, err := d.info(ctx)
	return info.LatestStatus, err
}

// Pending returns configuration the device has yet to apply, or nil.
func (d *Device) Pending(ctx context.Context) (*models.DevicePending, error) {
	info, err := d.info(ctx)
	return info.Pending, err
}

func (d *Device) Comms(ctx context.Context) (models.DeviceComms, error) {
	info, err := d.info(ctx)
	return info.Comms, err
}

// SignalQuality classifies the comms signal of the device.
func (d *Device) SignalQuality(ctx context.Context) (models.SignalQuality, error) {
	info, err := d.info(ctx)
	if err != nil {
		return models.SignalUnknown, err
	}
	return info.Comms.SignalQuality()
}

func (d *Device) Phases(ctx context.Context) (models.PhaseConfiguration, error) {
	info, err := d.info(ctx)
	return info.Phases, err
}

// Channels returns the device's channels in API order.
func (d *Device) Channels(ctx context.Context) ([]*Channel, error) {
	if err := d.Materialize(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Channel(nil), d.channels...), nil
}

// Channel looks up a channel by id.
func (d *Device) Channel(ctx context.Context, id string) (*Channel, error) {
	channels, err := d.Channels(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range channels {
		if c.id == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("device %s has no channel %q", d.id, id)
}

func (d *Device) Switches(ctx context.Context) ([]*Switch, error) {
	if err := d.Materialize(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Switch(nil), d.switches...), nil
}

func (d *Device) SetLabel(label string) { d.rec.set(fieldLabel, label) }
func (d *Device) SetTimezone(tz string) { d.rec.set(fieldTimezone, tz) }
func (d *Device) SetShortEnergyReportingInterval(seconds int) {
	d.rec.set(fieldShortEnergyReportingInterval, seconds)
}

// Dirty reports whether the device or any of its channels or switches has
// uncommitted writes.
func (d *Device) Dirty() bool {
	if d.rec.dirty() {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.channels {
		if c.Dirty() {
			return true
		}
	}
	for _, s := range d.switches {
		if s.Dirty() {
			return true
		}
	}
	return false
}

// Commit sends every pending write as one partial update. Nothing is sent when
// there are no pending writes. On success the sent writes are forgotten; on
// failure they are kept so Commit can be called again. Commit never fetches.
func (d *Device) Commit(ctx context.Context) error {
	d.commit.Lock()
	defer d.commit.Unlock()

	payload, forget := d.payload()
	if len(payload) > 0 {
		if err := d.src.UpdateDevice(ctx, d.id, payload); err != nil {
			return fmt.Errorf("update device %s: %w", d.id, err)
		}
	}
	for _, fn := range forget {
		fn()
	}
	return nil
}

// payload assembles the partial update: the device's own fields plus a
// channels and switches array of {id, fields...} for each dirty child.
func (d *Device) payload() (map[string]any, []func()) {
	var forget []func()
	payload, done := d.rec.pending()
	if done != nil {
		forget = append(forget, done)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	d.mu.RLock()
	channels, switches := d.channels, d.switches
	d.mu.RUnlock()

	var channelUpdates []map[string]any
	for _, c := range channels {
		fields, done := c.rec.pending()
		if done == nil {
			continue
		}
		forget = append(forget, done)
		if len(fields) == 0 {
			continue
		}
		fields["id"] = c.id
		channelUpdates = append(channelUpdates, fields)
	}
	if len(channelUpdates) > 0 {
		payload[fieldChannels] = channelUpdates
	}

	var switchUpdates []map[string]any
	for _, s := range switches {
		fields, done := s.rec.pending()
		if done == nil {
			continue
		}
		forget = append(forget, done)
		if len(fields) == 0 {
			continue
		}
		fields["id"] = s.id
		switchUpdates = append(switchUpdates, fields)
	}
	if len(switchUpdates) > 0 {
		payload[fieldSwitches] = switchUpdates
	}

	return payload, forget
}
