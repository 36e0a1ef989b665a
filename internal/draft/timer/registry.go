// Package timer owns the per-draft countdown lifecycle. One logical timer
// exists per draft, keyed in a process-wide registry; timers are liveness
// caches, not sources of truth, and are simply absent after a process
// restart until a client action re-requests state.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ExpireFunc is invoked when a timer counts down to zero. The generation
// token must be passed back to Claim before acting on the expiry; Claim
// failing means a pick or a Stop beat the expiry and the callback must be a
// no-op.
type ExpireFunc func(ctx context.Context, draftID uuid.UUID, gen uint64)

// TickFunc receives the once-per-second countdown broadcast.
type TickFunc func(draftID uuid.UUID, remaining, total time.Duration)

type pickTimer struct {
	gen      uint64
	deadline time.Time
	total    time.Duration
	cancel   context.CancelFunc
}

// Registry runs one countdown per draft. Start replaces, Stop removes
// synchronously: once Stop returns, the stopped timer's expiry can no longer
// Claim.
type Registry struct {
	clock    clockwork.Clock
	interval time.Duration
	onTick   TickFunc
	onExpire ExpireFunc

	mu      sync.Mutex
	timers  map[uuid.UUID]*pickTimer
	lastGen uint64
}

// NewRegistry creates a timer registry. onTick may be nil.
func NewRegistry(clock clockwork.Clock, onTick TickFunc, onExpire ExpireFunc) *Registry {
	return &Registry{
		clock:    clock,
		interval: time.Second,
		onTick:   onTick,
		onExpire: onExpire,
		timers:   make(map[uuid.UUID]*pickTimer),
	}
}

// Start begins a countdown for the draft, cancelling and replacing any timer
// already registered for it.
func (r *Registry) Start(draftID uuid.UUID, total time.Duration) {
	r.mu.Lock()
	if existing, ok := r.timers[draftID]; ok {
		existing.cancel()
		log.Debug().Str("draft_id", draftID.String()).Msg("replaced existing timer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.lastGen++
	t := &pickTimer{
		gen:      r.lastGen,
		deadline: r.clock.Now().Add(total),
		total:    total,
		cancel:   cancel,
	}
	r.timers[draftID] = t
	r.mu.Unlock()

	go r.run(ctx, draftID, t)

	log.Debug().
		Str("draft_id", draftID.String()).
		Dur("total", total).
		Msg("timer started")
}

// Stop cancels and deregisters the draft's timer. Safe to call when no timer
// exists. Removal happens under the registry lock, so an in-flight expiry
// for the stopped timer will fail its Claim.
func (r *Registry) Stop(draftID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[draftID]; ok {
		t.cancel()
		delete(r.timers, draftID)
		log.Debug().Str("draft_id", draftID.String()).Msg("timer stopped")
	}
}

// Active reports whether a timer is currently registered for the draft.
func (r *Registry) Active(draftID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[draftID]
	return ok
}

// Remaining returns the time left on the draft's timer.
func (r *Registry) Remaining(draftID uuid.UUID) (remaining, total time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[draftID]
	if !ok {
		return 0, 0, false
	}
	remaining = t.deadline.Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, t.total, true
}

// Claim atomically deregisters the timer iff it still carries the given
// generation. Expiry handlers must hold their own serialization point and
// call Claim before committing an auto-pick; false means the timer was
// stopped or replaced after the expiry fired.
func (r *Registry) Claim(draftID uuid.UUID, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[draftID]
	if !ok || t.gen != gen {
		return false
	}
	t.cancel()
	delete(r.timers, draftID)
	return true
}

func (r *Registry) run(ctx context.Context, draftID uuid.UUID, t *pickTimer) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			remaining := t.deadline.Sub(r.clock.Now())
			if remaining > 0 {
				if r.onTick != nil {
					r.onTick(draftID, remaining, t.total)
				}
				continue
			}
			// The expiry callback gets a fresh context: it outlives any
			// inbound request and must acquire its own store handles.
			if r.onExpire != nil {
				r.onExpire(context.Background(), draftID, t.gen)
			}
			return
		}
	}
}
