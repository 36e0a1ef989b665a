package events

import "time"

// DraftStartedPayload is the payload for a DraftStarted event.
type DraftStartedPayload struct {
	DraftID        string    `json:"draft_id"`
	CurrentRound   int       `json:"current_round"`
	CurrentTeamID  string    `json:"current_team_id"`
	DraftOrder     []string  `json:"draft_order"`
	TimePerPickSec int       `json:"time_per_pick_sec"`
	StartedAt      time.Time `json:"started_at"`
}

// TurnChangedPayload is the payload for TurnChanged and DraftResumed events.
type TurnChangedPayload struct {
	CurrentTeamID  string `json:"current_team_id"`
	Round          int    `json:"round"`
	RoundPick      int    `json:"round_pick"`
	TimePerPickSec int    `json:"time_per_pick_sec"`
}

// TimerTickPayload carries the countdown broadcast once per second while a
// turn timer is running.
type TimerTickPayload struct {
	RemainingSec int       `json:"remaining_sec"`
	TotalSec     int       `json:"total_sec"`
	TickedAt     time.Time `json:"ticked_at"`
}

// DraftedPlayer is the player descriptor embedded in PlayerDrafted events.
type DraftedPlayer struct {
	PlayerID     string `json:"player_id"`
	PlayerName   string `json:"player_name"`
	Position     string `json:"position"`
	ProTeam      string `json:"pro_team"`
	SourceLeague string `json:"source_league"`
}

// PlayerDraftedPayload is the payload for a PlayerDrafted event.
type PlayerDraftedPayload struct {
	TeamID      string        `json:"team_id"`
	Player      DraftedPlayer `json:"player"`
	Round       int           `json:"round"`
	RoundPick   int           `json:"round_pick"`
	PickNumber  int           `json:"pick_number"`
	AutoDrafted bool          `json:"auto_drafted"`
	PickedAt    time.Time     `json:"picked_at"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event.
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	TotalPicks  int       `json:"total_picks"`
	CompletedAt time.Time `json:"completed_at"`
}

// DraftPausedPayload is the payload for a DraftPaused event.
type DraftPausedPayload struct {
	DraftID  string    `json:"draft_id"`
	PausedAt time.Time `json:"paused_at"`
}

// DraftResetPayload is the payload for a DraftReset event.
type DraftResetPayload struct {
	DraftID string    `json:"draft_id"`
	ResetAt time.Time `json:"reset_at"`
}

// PickRejectedPayload is sent only to the team whose pick attempt failed a
// turn-legality check; the gateway delivers it to that team's connections
// instead of broadcasting.
type PickRejectedPayload struct {
	TeamID        string `json:"team_id"`
	Reason        string `json:"reason"`
	CurrentTeamID string `json:"current_team_id"`
}
