package timer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	draftID   uuid.UUID
	remaining time.Duration
	total     time.Duration
}

type expiry struct {
	draftID uuid.UUID
	gen     uint64
}

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock, chan recorded, chan expiry) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	ticks := make(chan recorded, 64)
	expiries := make(chan expiry, 8)

	r := NewRegistry(clock,
		func(id uuid.UUID, remaining, total time.Duration) {
			ticks <- recorded{draftID: id, remaining: remaining, total: total}
		},
		func(ctx context.Context, id uuid.UUID, gen uint64) {
			expiries <- expiry{draftID: id, gen: gen}
		},
	)
	return r, clock, ticks, expiries
}

func waitTick(t *testing.T, ch chan recorded) recorded {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return recorded{}
	}
}

func waitExpiry(t *testing.T, ch chan expiry) expiry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry")
		return expiry{}
	}
}

func TestTicksCountDown(t *testing.T) {
	r, clock, ticks, _ := newTestRegistry(t)
	draftID := uuid.New()

	r.Start(draftID, 3*time.Second)
	clock.BlockUntil(1)

	clock.Advance(time.Second)
	tick := waitTick(t, ticks)
	assert.Equal(t, draftID, tick.draftID)
	assert.Equal(t, 2*time.Second, tick.remaining)
	assert.Equal(t, 3*time.Second, tick.total)

	clock.Advance(time.Second)
	tick = waitTick(t, ticks)
	assert.Equal(t, time.Second, tick.remaining)

	assert.True(t, r.Active(draftID))
	remaining, total, ok := r.Remaining(draftID)
	require.True(t, ok)
	assert.Equal(t, time.Second, remaining)
	assert.Equal(t, 3*time.Second, total)
}

func TestExpiryFiresOnceAndClaims(t *testing.T) {
	r, clock, _, expiries := newTestRegistry(t)
	draftID := uuid.New()

	r.Start(draftID, 2*time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.Advance(time.Second)

	e := waitExpiry(t, expiries)
	assert.Equal(t, draftID, e.draftID)

	// The expiry handler claims the timer exactly once.
	assert.True(t, r.Claim(draftID, e.gen))
	assert.False(t, r.Claim(draftID, e.gen))
	assert.False(t, r.Active(draftID))

	select {
	case <-expiries:
		t.Fatal("expiry fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopSuppressesExpiry(t *testing.T) {
	r, clock, _, expiries := newTestRegistry(t)
	draftID := uuid.New()

	r.Start(draftID, 2*time.Second)
	clock.BlockUntil(1)

	r.Stop(draftID)
	assert.False(t, r.Active(draftID))

	clock.Advance(5 * time.Second)
	select {
	case <-expiries:
		t.Fatal("stopped timer still expired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopBeatsInFlightClaim(t *testing.T) {
	r, clock, _, expiries := newTestRegistry(t)
	draftID := uuid.New()

	r.Start(draftID, time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	e := waitExpiry(t, expiries)

	// A manual pick stops the timer before the expiry handler gets to its
	// serialization point; the late Claim must fail.
	r.Stop(draftID)
	assert.False(t, r.Claim(draftID, e.gen))
}

func TestStartReplacesExistingTimer(t *testing.T) {
	r, clock, _, expiries := newTestRegistry(t)
	draftID := uuid.New()

	r.Start(draftID, time.Second)
	clock.BlockUntil(1)

	// Replacement invalidates the first timer's generation.
	r.Start(draftID, 10*time.Second)
	clock.BlockUntil(1)

	clock.Advance(time.Second)
	select {
	case e := <-expiries:
		assert.False(t, r.Claim(draftID, e.gen), "stale generation must not claim")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, r.Active(draftID))
	remaining, _, ok := r.Remaining(draftID)
	require.True(t, ok)
	assert.Equal(t, 9*time.Second, remaining)
}

func TestIndependentDrafts(t *testing.T) {
	r, clock, _, expiries := newTestRegistry(t)
	a, b := uuid.New(), uuid.New()

	r.Start(a, time.Second)
	r.Start(b, time.Hour)
	clock.BlockUntil(2)

	clock.Advance(time.Second)
	e := waitExpiry(t, expiries)
	assert.Equal(t, a, e.draftID)
	assert.True(t, r.Active(b))
}
