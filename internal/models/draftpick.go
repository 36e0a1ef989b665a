package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftPick represents a single completed selection in a draft. Picks are
// immutable once created; only a full draft reset removes them.
//
// OverallPick is the zero-based global sequence index. For a given draft the
// stored OverallPick values form a dense, gap-free sequence starting at 0,
// and (DraftID, OverallPick) is unique at commit time.
type DraftPick struct {
	ID           uuid.UUID `json:"id"`
	DraftID      uuid.UUID `json:"draft_id"`
	TeamID       uuid.UUID `json:"team_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	Position     string    `json:"position"`
	ProTeam      string    `json:"pro_team"`
	SourceLeague string    `json:"source_league"`
	Round        int       `json:"round"`      // 1-based
	RoundPick    int       `json:"round_pick"` // 1-based position within the round
	OverallPick  int       `json:"overall_pick"`
	AutoDrafted  bool      `json:"auto_drafted"`
	PickedAt     time.Time `json:"picked_at"`
}
