// Package events defines the outbound draft event envelope and payloads
// shared by the engine, the outbox relay and the gateway.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a draft event.
type Type string

const (
	TypeDraftStarted   Type = "DraftStarted"
	TypeTurnChanged    Type = "TurnChanged"
	TypeTimerTick      Type = "TimerTick"
	TypePlayerDrafted  Type = "PlayerDrafted"
	TypeDraftCompleted Type = "DraftCompleted"
	TypeDraftPaused    Type = "DraftPaused"
	TypeDraftResumed   Type = "DraftResumed"
	TypeDraftReset     Type = "DraftReset"
	// TypePickRejected is caller-directed only; it is never broadcast to a
	// draft's subscribers.
	TypePickRejected Type = "PickRejected"
)

// Event is the wire envelope for all draft events.
type Event struct {
	ID        string          `json:"id"`
	DraftID   string          `json:"draft_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an envelope around a marshaled payload.
func New(draftID uuid.UUID, t Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		ID:        uuid.New().String(),
		DraftID:   draftID.String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Publisher delivers events to subscribers of a draft. Delivery is
// best-effort and one-directional; a failed publish never rolls back the
// state change it describes.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
