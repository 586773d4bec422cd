// Package window normalizes user supplied time ranges and splits them into
// the bounded sub-windows accepted by a single telemetry request.
package window

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrInvalidRange is returned for start/end bounds that are neither an instant
// nor an integer epoch timestamp, or that describe an inverted range.
var ErrInvalidRange = errors.New("invalid range argument")

// Window is a time interval used as the unit of one network request.
type Window struct {
	Start time.Time
	End   time.Time
}

// Span returns End - Start.
func (w Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// NormalizeRange resolves optional bounds against the current time.
// See NormalizeRangeAt.
func NormalizeRange(start, end any, defaultSpan time.Duration) (Window, error) {
	return NormalizeRangeAt(time.Now(), start, end, defaultSpan)
}

// NormalizeRangeAt turns the optional start/end bounds into a concrete window.
//
// A missing end becomes now; a missing start becomes end - defaultSpan.
// Bounds may be nil, a time.Time, a *time.Time or any Go integer holding epoch
// seconds.
func NormalizeRangeAt(now time.Time, start, end any, defaultSpan time.Duration) (Window, error) {
	from, hasFrom, err := toInstant("start", start)
	if err != nil {
		return Window{}, err
	}
	to, hasTo, err := toInstant("end", end)
	if err != nil {
		return Window{}, err
	}

	if !hasTo {
		to = now
	}
	if !hasFrom {
		from = to.Add(-defaultSpan)
	}

	if from.After(to) {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return Window{Start: from, End: to}, nil
}

func toInstant(name string, v any) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false, nil
		}
		return t, true, nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false, nil
		}
		return *t, true, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Unix(rv.Int(), 0), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Unix(int64(rv.Uint()), 0), true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %s must be a time.Time or epoch seconds, got %T", ErrInvalidRange, name, v)
}

// Segment splits w into consecutive windows no longer than maxSpan.
//
// Every window but the last spans exactly maxSpan; the last spans the
// remainder. A window that already fits, or a non-positive maxSpan, is
// returned unchanged.
func Segment(w Window, maxSpan time.Duration) []Window {
	if maxSpan <= 0 || w.Span() <= maxSpan {
		return []Window{w}
	}

	windows := make([]Window, 0, int(w.Span()/maxSpan)+1)
	cursor := w.Start
	for cursor.Add(maxSpan).Before(w.End) {
		next := cursor.Add(maxSpan)
		windows = append(windows, Window{Start: cursor, End: next})
		cursor = next
	}
	return append(windows, Window{Start: cursor, End: w.End})
}
