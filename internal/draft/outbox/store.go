// Package outbox implements transactional event delivery. Durable draft
// events are written to an outbox table alongside the state change that
// produced them, then relayed to NATS JetStream by a LISTEN/NOTIFY-driven
// relay with a polling fallback.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/draft/events"
)

// ErrEventNotFound is returned when an outbox row does not exist or has
// already been marked sent.
var ErrEventNotFound = errors.New("outbox event not found")

// Row is an outbox table row. Payload holds the full event envelope so the
// relay can republish it verbatim.
type Row struct {
	ID        uuid.UUID       `json:"id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Event reconstructs the envelope stored in the row's payload.
func (r Row) Event() (events.Event, error) {
	var ev events.Event
	if err := json.Unmarshal(r.Payload, &ev); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal outbox payload %s: %w", r.ID, err)
	}
	return ev, nil
}

// Store reads and writes the draft_outbox table. An AFTER INSERT trigger on
// the table emits a pg_notify carrying the row ID, which wakes the relay.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert stages an event for delivery. Runs inside the caller's transaction
// when one is passed, so an event is durable iff the state change it
// describes committed.
func (s *Store) Insert(ctx context.Context, ev events.Event) error {
	return insert(ctx, s.db, ev)
}

// InsertTx stages an event inside an open transaction.
func (s *Store) InsertTx(ctx context.Context, tx *sql.Tx, ev events.Event) error {
	return insert(ctx, tx, ev)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO draft_outbox (id, draft_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		ev.ID, ev.DraftID, string(ev.Type), payload,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", ev.Type, err)
	}
	return nil
}

// FetchUnsent returns up to limit unsent events, oldest first.
func (s *Store) FetchUnsent(ctx context.Context, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draft_id, event_type, payload, created_at, sent_at
		FROM draft_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.DraftID, &r.EventType, &r.Payload, &r.CreatedAt, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchUnsentByID returns the row iff it exists and has not been sent.
func (s *Store) FetchUnsentByID(ctx context.Context, id uuid.UUID) (*Row, error) {
	var r Row
	err := s.db.QueryRowContext(ctx, `
		SELECT id, draft_id, event_type, payload, created_at, sent_at
		FROM draft_outbox
		WHERE id = $1 AND sent_at IS NULL`, id).
		Scan(&r.ID, &r.DraftID, &r.EventType, &r.Payload, &r.CreatedAt, &r.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch outbox event %s: %w", id, err)
	}
	return &r, nil
}

// MarkSent stamps the row as delivered. Idempotent.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE draft_outbox SET sent_at = NOW()
		WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %s sent: %w", id, err)
	}
	return nil
}
