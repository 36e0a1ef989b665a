package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceLeague identifies which professional league a player comes from.
type SourceLeague string

const (
	SourceLeagueNFL SourceLeague = "NFL"
	SourceLeagueMLB SourceLeague = "MLB"
	SourceLeagueNBA SourceLeague = "NBA"
)

// Player is a draftable candidate in the shared pool. Identity is the UUID;
// pool filtering keys on it, never on display names.
type Player struct {
	ID           uuid.UUID    `json:"id"`
	FullName     string       `json:"full_name"`
	Position     string       `json:"position"` // 'QB', 'RB', 'C', 'SS', ...
	ProTeam      string       `json:"pro_team"` // pro team abbreviation
	SourceLeague SourceLeague `json:"source_league"`
	CreatedAt    time.Time    `json:"created_at"`
}
