package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/wattwatch/internal/models"
	"github.com/tejusbharadwaj/wattwatch/internal/ratelimit"
	"github.com/tejusbharadwaj/wattwatch/internal/window"
)

// EnergyOptions shape the energy values the API returns.
type EnergyOptions struct {
	// Group aggregates channels, e.g. by phase. GroupNone leaves them apart.
	Group models.Group
	// Convert is the unit readings are converted to. Joules is the API default.
	Convert models.Energy
	// Fields limits the returned energy fields to the given units.
	Fields []models.Energy
}

func (o EnergyOptions) params() url.Values {
	params := url.Values{}
	if o.Group != models.GroupNone {
		params.Set("filter[group]", o.Group.String())
	}
	if o.Convert != models.EnergyJoules {
		params.Set("convert[energy]", o.Convert.String())
	}
	if len(o.Fields) > 0 {
		fields := make([]string, len(o.Fields))
		for i, f := range o.Fields {
			fields[i] = f.String()
		}
		params.Set("fields[energy]", strings.Join(fields, ","))
	}
	return params
}

// LongEnergyOptions add bucket size and timezone to EnergyOptions.
type LongEnergyOptions struct {
	EnergyOptions
	// Granularity defaults to 15 minutes.
	Granularity models.Granularity
	// Timezone overrides the client's configured timezone.
	Timezone string
}

// Series is the result of a windowed query.
type Series[T any] struct {
	Records []T
	// Windows are the request windows, in the order their records appear.
	Windows []window.Window
	// RateLimits is the snapshot from the last window's response.
	RateLimits ratelimit.RateLimits
}

var longEnergyKinds = map[models.Granularity]window.Kind{
	models.GranularityFiveMinute:    window.KindLongFiveMinute,
	models.GranularityFifteenMinute: window.KindLongFifteen,
	models.GranularityHalfHourly:    window.KindLongHalfHour,
	models.GranularityHourly:        window.KindLongHourly,
	models.GranularityDaily:         window.KindLongDaily,
	models.GranularityWeekly:        window.KindLongWeekly,
	models.GranularityMonthly:       window.KindLongMonthly,
}

// ShortEnergy returns the raw short-interval readings of a device between
// start and end. Either bound may be nil; see window.NormalizeRange.
func (c *Client) ShortEnergy(ctx context.Context, deviceID string, start, end any, opts EnergyOptions) (*Series[models.ShortData], error) {
	windows, err := plan(window.KindShortEnergy, start, end)
	if err != nil {
		return nil, err
	}
	return collect(ctx, c, c.url("short-energy", deviceID), opts.params(), windows, withUnit[models.ShortData](opts.Convert, setShortUnit))
}

func (c *Client) FirstShortEnergy(ctx context.Context, deviceID string, opts EnergyOptions) (*models.ShortData, error) {
	var rec models.ShortData
	if _, err := c.getJSON(ctx, c.url("short-energy", deviceID, "first"), opts.params(), &rec); err != nil {
		return nil, err
	}
	rec.Unit = opts.Convert
	return &rec, nil
}

func (c *Client) LatestShortEnergy(ctx context.Context, deviceID string, opts EnergyOptions) (*models.ShortData, error) {
	var rec models.ShortData
	if _, err := c.getJSON(ctx, c.url("short-energy", deviceID, "latest"), opts.params(), &rec); err != nil {
		return nil, err
	}
	rec.Unit = opts.Convert
	return &rec, nil
}

// LongEnergy returns bucketed readings of a device between start and end.
func (c *Client) LongEnergy(ctx context.Context, deviceID string, start, end any, opts LongEnergyOptions) (*Series[models.LongData], error) {
	granularity := opts.Granularity
	if granularity == 0 {
		granularity = models.GranularityFifteenMinute
	}
	kind, ok := longEnergyKinds[granularity]
	if !ok {
		return nil, fmt.Errorf("unsupported granularity %v", granularity)
	}
	windows, err := plan(kind, start, end)
	if err != nil {
		return nil, err
	}

	params := opts.params()
	params.Set("granularity", granularity.String())
	if tz := c.timezoneFor(opts.Timezone); tz != "" {
		params.Set("timezone", tz)
	}
	return collect(ctx, c, c.url("long-energy", deviceID), params, windows, withUnit[models.LongData](opts.Convert, setLongUnit))
}

func (c *Client) FirstLongEnergy(ctx context.Context, deviceID string, opts EnergyOptions) (*models.LongData, error) {
	var rec models.LongData
	if _, err := c.getJSON(ctx, c.url("long-energy", deviceID, "first"), opts.params(), &rec); err != nil {
		return nil, err
	}
	rec.Unit = opts.Convert
	return &rec, nil
}

func (c *Client) LatestLongEnergy(ctx context.Context, deviceID string, opts EnergyOptions) (*models.LongData, error) {
	var rec models.LongData
	if _, err := c.getJSON(ctx, c.url("long-energy", deviceID, "latest"), opts.params(), &rec); err != nil {
		return nil, err
	}
	rec.Unit = opts.Convert
	return &rec, nil
}

// Modbus returns readings from a device's attached Modbus meters.
func (c *Client) Modbus(ctx context.Context, deviceID string, start, end any) (*Series[models.ModbusData], error) {
	windows, err := plan(window.KindModbus, start, end)
	if err != nil {
		return nil, err
	}
	return collect(ctx, c, c.url("modbus", deviceID), url.Values{}, windows, decodeList[models.ModbusData])
}

func (c *Client) timezoneFor(override string) string {
	if override != "" {
		return override
	}
	return c.timezone
}

func plan(kind window.Kind, start, end any) ([]window.Window, error) {
	profile, err := window.LookupProfile(kind)
	if err != nil {
		return nil, err
	}
	return profile.Plan(start, end)
}

func decodeList[T any](body []byte) ([]T, error) {
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func setShortUnit(r *models.ShortData, u models.Energy) { r.Unit = u }
func setLongUnit(r *models.LongData, u models.Energy)   { r.Unit = u }

// withUnit decodes a list and tags every record with the requested unit.
func withUnit[T any](unit models.Energy, set func(*T, models.Energy)) func([]byte) ([]T, error) {
	return func(body []byte) ([]T, error) {
		out, err := decodeList[T](body)
		if err != nil {
			return nil, err
		}
		for i := range out {
			set(&out[i], unit)
		}
		return out, nil
	}
}

// collect issues one fetch per window, at most c.concurrency at a time, and
// concatenates the decoded pages in window order. The first failure cancels
// the remaining windows and is returned on its own.
func collect[T any](ctx context.Context, c *Client, target string, base url.Values, windows []window.Window, decode func([]byte) ([]T, error)) (*Series[T], error) {
	pages := make([][]T, len(windows))
	limits := make([]ratelimit.RateLimits, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			params := url.Values{}
			for k, vs := range base {
				params[k] = append([]string(nil), vs...)
			}
			params.Set("fromTs", strconv.FormatInt(w.Start.Unix(), 10))
			params.Set("toTs", strconv.FormatInt(w.End.Unix(), 10))

			resp, err := c.fetcher.Fetch(gctx, target, params)
			if err != nil {
				return fmt.Errorf("window %s: %w", w, err)
			}
			page, err := decode(resp.Body)
			if err != nil {
				return fmt.Errorf("%w for window %s: %v", ErrDecode, w, err)
			}
			pages[i] = page
			limits[i] = resp.RateLimits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := &Series[T]{Windows: windows}
	for _, page := range pages {
		series.Records = append(series.Records, page...)
	}
	if n := len(limits); n > 0 {
		series.RateLimits = limits[n-1]
	}

	c.logger.WithFields(logrus.Fields{
		"url":     target,
		"windows": len(windows),
		"records": len(series.Records),
	}).Debug("Windowed query complete")
	return series, nil
}
