package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time               { return c.now }
func (c *fakeClock) advance(d time.Duration)      { c.now = c.now.Add(d) }
func newFakeClock() *fakeClock                    { return &fakeClock{now: time.Unix(1700000000, 0)} }
func newLimiter(c *fakeClock, caps Caps) *Limiter {
	return New(WithClock(c.Now), WithDefaultCaps(caps))
}

func TestCanSendUnderCap(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 3, PerMinute: 10, PerHour: 100})

	for i := 0; i < 3; i++ {
		require.True(t, l.CanSend("binance"))
		l.Record("binance")
		c.advance(100 * time.Millisecond)
	}
}

func TestPerSecondCapBlocksUntilWindowExit(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 2, PerMinute: 100, PerHour: 1000})

	l.Record("binance")
	c.advance(200 * time.Millisecond)
	l.Record("binance")

	assert.False(t, l.CanSend("binance"))

	// cooldown block is armed; one second later the first stamp has also
	// left the window
	c.advance(1001 * time.Millisecond)
	assert.True(t, l.CanSend("binance"))
}

func TestFailedCheckArmsCooldown(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 1, PerMinute: 100, PerHour: 1000})

	l.Record("kraken")
	require.False(t, l.CanSend("kraken"))

	// stamp exits the 1s window at +1s, but the cooldown armed by the
	// failed check holds until then too
	c.advance(500 * time.Millisecond)
	assert.False(t, l.CanSend("kraken"))
	assert.Greater(t, l.WaitTime("kraken"), time.Duration(0))

	c.advance(501 * time.Millisecond)
	assert.True(t, l.CanSend("kraken"))
}

func TestWaitTimeIsMaxAcrossWindows(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 10, PerMinute: 2, PerHour: 1000})

	l.Record("binance")
	c.advance(time.Second)
	l.Record("binance")

	// minute window is full; the oldest stamp exits 59s from now
	got := l.WaitTime("binance")
	assert.Equal(t, 59*time.Second, got)
}

func TestWaitTimeZeroWhenClear(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 5, PerMinute: 50, PerHour: 500})
	assert.Equal(t, time.Duration(0), l.WaitTime("binance"))
}

func TestExchangesAreIndependent(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 1, PerMinute: 10, PerHour: 100})

	l.Record("binance")
	assert.False(t, l.CanSend("binance"))
	assert.True(t, l.CanSend("kraken"))
}

func TestPerExchangeCapsOverride(t *testing.T) {
	c := newFakeClock()
	l := New(
		WithClock(c.Now),
		WithDefaultCaps(Caps{PerSecond: 1, PerMinute: 10, PerHour: 100}),
		WithCaps("kraken", Caps{PerSecond: 5, PerMinute: 50, PerHour: 500}),
	)

	for i := 0; i < 5; i++ {
		require.True(t, l.CanSend("kraken"), "request %d", i)
		l.Record("kraken")
	}
	assert.False(t, l.CanSend("kraken"))
}

func TestHourWindowPruning(t *testing.T) {
	c := newFakeClock()
	l := newLimiter(c, Caps{PerSecond: 0, PerMinute: 0, PerHour: 2})

	l.Record("binance")
	l.Record("binance")
	require.False(t, l.CanSend("binance"))

	c.advance(time.Hour + time.Second)
	assert.True(t, l.CanSend("binance"))
}

func TestConcurrentRecordNotLost(t *testing.T) {
	l := New(WithDefaultCaps(Caps{PerHour: 10000}))
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				l.Record("binance")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.m["binance"].stamps, 800)
}
