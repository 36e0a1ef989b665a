package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the status of a draft.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// DraftSettings holds JSONB configuration for drafts. DraftOrder is fixed at
// creation; its length is the team count.
type DraftSettings struct {
	Rounds         int         `json:"rounds"`
	TimePerPickSec int         `json:"time_per_pick_sec"`
	DraftOrder     []uuid.UUID `json:"draft_order"`
}

// Draft represents a snake draft instance. At most one non-completed draft
// exists per league at a time.
//
// CurrentRound and CurrentPickIndex are display hints refreshed on each
// commit; the authoritative turn is always recomputed from the persisted pick
// count, never read back from these fields.
type Draft struct {
	ID               uuid.UUID     `json:"id"`
	LeagueID         uuid.UUID     `json:"league_id"`
	Status           DraftStatus   `json:"status"`
	Settings         DraftSettings `json:"settings"`
	CurrentRound     int           `json:"current_round"`
	CurrentPickIndex int           `json:"current_pick_index"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TeamCount returns the number of participating teams.
func (d *Draft) TeamCount() int {
	return len(d.Settings.DraftOrder)
}

// MaxPicks returns the total number of picks across all rounds.
func (d *Draft) MaxPicks() int {
	return d.Settings.Rounds * len(d.Settings.DraftOrder)
}

// TimePerPick returns the per-turn limit as a duration.
func (d *Draft) TimePerPick() time.Duration {
	return time.Duration(d.Settings.TimePerPickSec) * time.Second
}
