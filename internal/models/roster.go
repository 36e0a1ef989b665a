package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AcquisitionType represents how a player landed on a roster.
type AcquisitionType string

const (
	AcquisitionTypeDraft     AcquisitionType = "DRAFT"
	AcquisitionTypeAutoDraft AcquisitionType = "AUTO_DRAFT"
)

// RosterEntry is a denormalized projection of a DraftPick, keyed by the
// selecting team. It is created in the same transaction as the pick and is
// not independently authoritative.
type RosterEntry struct {
	ID              uuid.UUID       `json:"id"`
	TeamID          uuid.UUID       `json:"team_id"`
	DraftID         uuid.UUID       `json:"draft_id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	PlayerName      string          `json:"player_name"`
	Position        string          `json:"position"`
	SourceLeague    string          `json:"source_league"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
	AcquiredAt      time.Time       `json:"acquired_at"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}
