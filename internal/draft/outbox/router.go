package outbox

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/events"
)

// Inserter is the staging half of the router; *Store satisfies it.
type Inserter interface {
	Insert(ctx context.Context, ev events.Event) error
}

// Router is the engine's events.Publisher. State-change events go through
// the outbox so they survive crashes between commit and broadcast. TimerTick
// and PickRejected never change state: a lost tick is replaced one second
// later and a rejection matters only to the caller who is still connected,
// so both go straight to the live publisher and are never worth a table
// write.
type Router struct {
	staging Inserter
	live    events.Publisher
}

var _ events.Publisher = (*Router)(nil)

func NewRouter(staging Inserter, live events.Publisher) *Router {
	return &Router{staging: staging, live: live}
}

func (r *Router) Publish(ctx context.Context, ev events.Event) error {
	if ev.Type == events.TypeTimerTick || ev.Type == events.TypePickRejected {
		if err := r.live.Publish(ctx, ev); err != nil {
			log.Debug().Err(err).
				Str("draft_id", ev.DraftID).
				Str("event_type", string(ev.Type)).
				Msg("dropped live-only event")
		}
		return nil
	}
	return r.staging.Insert(ctx, ev)
}
