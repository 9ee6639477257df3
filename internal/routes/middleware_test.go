package routes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestIPRateLimiter_ReusesLimiterPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)

	a := l.GetLimiter("10.0.0.1")
	assert.Same(t, a, l.GetLimiter("10.0.0.1"))
	assert.NotSame(t, a, l.GetLimiter("10.0.0.2"))
	assert.Equal(t, 2, l.Len())
}

func TestIPRateLimiter_EvictsIdleIPs(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, 50*time.Millisecond)

	first := l.GetLimiter("10.0.0.1")
	assert.True(t, first.Allow())
	assert.False(t, first.Allow())

	assert.Eventually(t, func() bool { return l.Len() == 0 }, 2*time.Second, 20*time.Millisecond)

	fresh := l.GetLimiter("10.0.0.1")
	assert.NotSame(t, first, fresh)
	assert.True(t, fresh.Allow())
}
