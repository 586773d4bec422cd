// Package ratelimit turns the rate-limit headers returned by the telemetry API
// into an immutable snapshot.
//
// The API declares two budgets: a daily request allowance (Tpd) and a short
// per-second window (Tps). Every response carries the current counters, so a
// client always works from the snapshot of its most recent call.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names, matched case-insensitively through http.Header.
const (
	HeaderTotalPerDay        = "X-RateLimit-TpdLimit"
	HeaderRemainingPerDay    = "X-RateLimit-TpdRemaining"
	HeaderPerDayReset        = "X-RateLimit-TpdReset"
	HeaderTotalPerSecond     = "X-RateLimit-TpsLimit"
	HeaderRemainingPerSecond = "X-RateLimit-TpsRemaining"
	HeaderPerSecondReset     = "X-RateLimit-TpsReset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimits is a point-in-time view of the server-declared quota counters.
// A nil field means the server did not send (or sent an unreadable) value.
type RateLimits struct {
	TotalPerDay     *int
	RemainingPerDay *int
	// PerDayReset is the number of seconds until the daily counter resets.
	PerDayReset *int

	TotalPerSecond     *int
	RemainingPerSecond *int
	// PerSecondReset is the (fractional) number of seconds until the short
	// window resets.
	PerSecondReset *float64

	RetryAfter *int
}

// Parse reads the well-known rate-limit headers. It never fails.
func Parse(h http.Header) RateLimits {
	if h == nil {
		return RateLimits{}
	}
	return RateLimits{
		TotalPerDay:        parseInt(h.Get(HeaderTotalPerDay)),
		RemainingPerDay:    parseInt(h.Get(HeaderRemainingPerDay)),
		PerDayReset:        parseInt(h.Get(HeaderPerDayReset)),
		TotalPerSecond:     parseInt(h.Get(HeaderTotalPerSecond)),
		RemainingPerSecond: parseInt(h.Get(HeaderRemainingPerSecond)),
		PerSecondReset:     parseFloat(h.Get(HeaderPerSecondReset)),
		RetryAfter:         parseInt(h.Get(HeaderRetryAfter)),
	}
}

// DailyBudgetRemaining reports whether the server declared a daily allowance
// that is not yet used up. An absent counter counts as exhausted.
func (r RateLimits) DailyBudgetRemaining() bool {
	return r.RemainingPerDay != nil && *r.RemainingPerDay > 0
}

// ThrottleDelay is how long to pause before retrying a request rejected by the
// per-second window. The reset counter wins over Retry-After; with neither
// present the delay falls back to one second.
func (r RateLimits) ThrottleDelay(epsilon time.Duration) time.Duration {
	switch {
	case r.PerSecondReset != nil && *r.PerSecondReset >= 0:
		return time.Duration(*r.PerSecondReset*float64(time.Second)) + epsilon
	case r.RetryAfter != nil && *r.RetryAfter >= 0:
		return time.Duration(*r.RetryAfter)*time.Second + epsilon
	default:
		return time.Second + epsilon
	}
}

// IsZero reports whether no rate-limit header was present.
func (r RateLimits) IsZero() bool {
	return r.TotalPerDay == nil && r.RemainingPerDay == nil && r.PerDayReset == nil &&
		r.TotalPerSecond == nil && r.RemainingPerSecond == nil && r.PerSecondReset == nil &&
		r.RetryAfter == nil
}

func (r RateLimits) String() string {
	return fmt.Sprintf("day=%s/%s reset=%ss second=%s/%s reset=%ss",
		intString(r.RemainingPerDay), intString(r.TotalPerDay), intString(r.PerDayReset),
		intString(r.RemainingPerSecond), intString(r.TotalPerSecond), floatString(r.PerSecondReset))
}

func parseInt(v string) *int {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// Some gateways send integral counters as "12.0".
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return nil
		}
		n = int(f)
	}
	return &n
}

func parseFloat(v string) *float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func intString(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func floatString(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
