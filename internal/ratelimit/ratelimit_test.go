package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	h := http.Header{}
	h.Set("x-ratelimit-tpdlimit", "5000")
	h.Set("X-RateLimit-TpdRemaining", "4321")
	h.Set("X-RateLimit-TpdReset", "3600")
	h.Set("X-RateLimit-TpsLimit", "10")
	h.Set("X-RateLimit-TpsRemaining", "0")
	h.Set("X-RateLimit-TpsReset", "0.75")
	h.Set("X-Unrelated", "whatever")

	limits := Parse(h)

	require.NotNil(t, limits.TotalPerDay)
	assert.Equal(t, 5000, *limits.TotalPerDay)
	require.NotNil(t, limits.RemainingPerDay)
	assert.Equal(t, 4321, *limits.RemainingPerDay)
	require.NotNil(t, limits.PerDayReset)
	assert.Equal(t, 3600, *limits.PerDayReset)
	require.NotNil(t, limits.TotalPerSecond)
	assert.Equal(t, 10, *limits.TotalPerSecond)
	require.NotNil(t, limits.RemainingPerSecond)
	assert.Equal(t, 0, *limits.RemainingPerSecond)
	require.NotNil(t, limits.PerSecondReset)
	assert.InDelta(t, 0.75, *limits.PerSecondReset, 1e-9)
	assert.Nil(t, limits.RetryAfter)
}

func TestParseMissingAndMalformed(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{name: "nil header", header: nil},
		{name: "empty header", header: http.Header{}},
		{name: "garbage values", header: http.Header{
			"X-Ratelimit-Tpdremaining": []string{"lots"},
			"X-Ratelimit-Tpsreset":     []string{"soon"},
			"Retry-After":              []string{"Wed, 21 Oct 2015 07:28:00 GMT"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := Parse(tt.header)
			assert.True(t, limits.IsZero())
			assert.False(t, limits.DailyBudgetRemaining())
		})
	}
}

func TestDailyBudgetRemaining(t *testing.T) {
	five, zero := 5, 0
	assert.True(t, RateLimits{RemainingPerDay: &five}.DailyBudgetRemaining())
	assert.False(t, RateLimits{RemainingPerDay: &zero}.DailyBudgetRemaining())
	assert.False(t, RateLimits{}.DailyBudgetRemaining())
}

func TestThrottleDelay(t *testing.T) {
	reset := 2.0
	retry := 3
	eps := 200 * time.Millisecond

	assert.Equal(t, 2200*time.Millisecond, RateLimits{PerSecondReset: &reset, RetryAfter: &retry}.ThrottleDelay(eps))
	assert.Equal(t, 3200*time.Millisecond, RateLimits{RetryAfter: &retry}.ThrottleDelay(eps))
	assert.Equal(t, 1200*time.Millisecond, RateLimits{}.ThrottleDelay(eps))
}

func TestString(t *testing.T) {
	remaining, total := 3, 10
	s := RateLimits{RemainingPerDay: &remaining, TotalPerDay: &total}.String()
	assert.Contains(t, s, "day=3/10")
	assert.Contains(t, s, "second=-/-")
}
