package window

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Kind identifies a time-series operation with its own span limits.
type Kind string

const (
	KindShortEnergy    Kind = "short-energy"
	KindModbus         Kind = "modbus"
	KindLongFiveMinute Kind = "long-energy/5m"
	KindLongFifteen    Kind = "long-energy/15m"
	KindLongHalfHour   Kind = "long-energy/30m"
	KindLongHourly     Kind = "long-energy/hour"
	KindLongDaily      Kind = "long-energy/day"
	KindLongWeekly     Kind = "long-energy/week"
	KindLongMonthly    Kind = "long-energy/month"
)

// Profile governs how a query of one kind is normalized and segmented.
type Profile struct {
	// MaxSpan is the longest window the API accepts in one request.
	MaxSpan time.Duration
	// DefaultSpan is how far back an open-ended query reaches.
	DefaultSpan time.Duration
}

var profiles = map[Kind]Profile{
	KindShortEnergy:    {MaxSpan: 12 * time.Hour, DefaultSpan: 12 * time.Hour},
	KindModbus:         {MaxSpan: 7 * day, DefaultSpan: 7 * day},
	KindLongFiveMinute: {MaxSpan: 7 * day, DefaultSpan: day},
	KindLongFifteen:    {MaxSpan: 14 * day, DefaultSpan: day},
	KindLongHalfHour:   {MaxSpan: 31 * day, DefaultSpan: day},
	KindLongHourly:     {MaxSpan: 90 * day, DefaultSpan: day},
	KindLongDaily:      {MaxSpan: 3 * 360 * day, DefaultSpan: 30 * day},
	KindLongWeekly:     {MaxSpan: 5 * 360 * day, DefaultSpan: 90 * day},
	KindLongMonthly:    {MaxSpan: 10 * 360 * day, DefaultSpan: 365 * day},
}

// LookupProfile returns the profile registered for kind.
func LookupProfile(kind Kind) (Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, fmt.Errorf("no window profile for %q", kind)
	}
	return p, nil
}

// Plan normalizes the bounds with the profile's default span and segments the
// result with its max span.
func (p Profile) Plan(start, end any) ([]Window, error) {
	w, err := NormalizeRange(start, end, p.DefaultSpan)
	if err != nil {
		return nil, err
	}
	return Segment(w, p.MaxSpan), nil
}
