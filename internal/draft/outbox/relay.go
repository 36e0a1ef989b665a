package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/events"
)

type RelayConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // channel the outbox trigger notifies on
	FallbackInterval time.Duration // poll period for rows whose NOTIFY was missed
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Relay drains the outbox to the live publisher. NOTIFY wakes it per row;
// the fallback poll catches anything a dropped connection lost. Delivery is
// at-least-once; JetStream's duplicate window absorbs the repeats.
type Relay struct {
	store    *Store
	listener *pq.Listener
	live     events.Publisher
	cfg      RelayConfig
}

func NewRelay(store *Store, live events.Publisher, cfg RelayConfig) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("outbox listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("listen on channel %s: %w", cfg.NotifyChannel, err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for outbox notifications")

	return &Relay{
		store:    store,
		listener: l,
		live:     live,
		cfg:      cfg,
	}, nil
}

func (r *Relay) Start(ctx context.Context) error {
	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Drain whatever accumulated while the relay was down.
	if err := r.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("initial outbox drain failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// Connection was re-established; the fallback poll covers
				// anything missed in between.
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("handle outbox notification")
			}
		case <-fallbackTicker.C:
			if err := r.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("process unsent outbox events")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("ping outbox listener")
			}
		}
	}
}

func (r *Relay) Stop() error {
	return r.listener.Close()
}

// handleNotification relays the single row named by the NOTIFY payload.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification %q: %w", extra, err)
	}

	row, err := r.store.FetchUnsentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			// Fallback poll already sent it.
			return nil
		}
		return err
	}
	return r.relayRow(ctx, *row)
}

func (r *Relay) processUnsent(ctx context.Context) error {
	unsent, err := r.store.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, row := range unsent {
		if err := r.relayRow(ctx, row); err != nil {
			log.Error().Err(err).Str("event_id", row.ID.String()).Msg("relay outbox event")
		}
	}
	return nil
}

func (r *Relay) relayRow(ctx context.Context, row Row) error {
	ev, err := row.Event()
	if err != nil {
		return err
	}
	if err := r.publishWithRetry(ctx, ev); err != nil {
		return err
	}
	if err := r.store.MarkSent(ctx, row.ID); err != nil {
		return err
	}
	log.Debug().
		Str("event_id", row.ID.String()).
		Str("event_type", row.EventType).
		Msg("outbox event relayed")
	return nil
}

func (r *Relay) publishWithRetry(ctx context.Context, ev events.Event) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := r.live.Publish(ctx, ev); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", ev.ID).
				Msg("publish failed, retrying")
			continue
		}
		return nil
	}
	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
