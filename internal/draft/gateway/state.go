package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/draft/sequence"
	"github.com/mcdev12/draftroom/internal/draft/store"
)

// StateProvider serves the reconnect snapshot.
type StateProvider interface {
	DraftState(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error)
}

// DraftStateResponse is everything a reconnecting client needs to redraw the
// board: draft status, the team on the clock, and the pick history.
type DraftStateResponse struct {
	DraftID        string           `json:"draft_id"`
	LeagueID       string           `json:"league_id"`
	Status         string           `json:"status"`
	DraftOrder     []string         `json:"draft_order"`
	TotalRounds    int              `json:"total_rounds"`
	TimePerPickSec int              `json:"time_per_pick_sec"`
	CurrentTurn    *CurrentTurnInfo `json:"current_turn,omitempty"`
	Picks          []PickInfo       `json:"picks"`
	CompletedPicks int              `json:"completed_picks"`
	TotalPicks     int              `json:"total_picks"`
}

// CurrentTurnInfo identifies the team on the clock.
type CurrentTurnInfo struct {
	TeamID      string `json:"team_id"`
	Round       int    `json:"round"`
	RoundPick   int    `json:"round_pick"`
	OverallPick int    `json:"overall_pick"`
}

// PickInfo is one committed pick in the history.
type PickInfo struct {
	TeamID      string    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	Position    string    `json:"position"`
	Round       int       `json:"round"`
	RoundPick   int       `json:"round_pick"`
	OverallPick int       `json:"overall_pick"`
	AutoDrafted bool      `json:"auto_drafted"`
	PickedAt    time.Time `json:"picked_at"`
}

// StoreStateProvider reads the snapshot straight from the store. The gateway
// never touches timers; pick deadlines are client-side concerns driven by
// TimerTick events.
type StoreStateProvider struct {
	store store.Store
}

var _ StateProvider = (*StoreStateProvider)(nil)

func NewStoreStateProvider(st store.Store) *StoreStateProvider {
	return &StoreStateProvider{store: st}
}

func (p *StoreStateProvider) DraftState(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error) {
	draft, err := p.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	picks, err := p.store.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}

	order := make([]string, len(draft.Settings.DraftOrder))
	for i, id := range draft.Settings.DraftOrder {
		order[i] = id.String()
	}

	resp := &DraftStateResponse{
		DraftID:        draft.ID.String(),
		LeagueID:       draft.LeagueID.String(),
		Status:         string(draft.Status),
		DraftOrder:     order,
		TotalRounds:    draft.Settings.Rounds,
		TimePerPickSec: draft.Settings.TimePerPickSec,
		Picks:          make([]PickInfo, len(picks)),
		CompletedPicks: len(picks),
		TotalPicks:     draft.MaxPicks(),
	}
	for i, pick := range picks {
		resp.Picks[i] = PickInfo{
			TeamID:      pick.TeamID.String(),
			PlayerID:    pick.PlayerID.String(),
			PlayerName:  pick.PlayerName,
			Position:    pick.Position,
			Round:       pick.Round,
			RoundPick:   pick.RoundPick,
			OverallPick: pick.OverallPick,
			AutoDrafted: pick.AutoDrafted,
			PickedAt:    pick.PickedAt,
		}
	}

	if turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, len(picks), draft.Settings.Rounds); ok {
		resp.CurrentTurn = &CurrentTurnInfo{
			TeamID:      turn.TeamID.String(),
			Round:       turn.Round,
			RoundPick:   turn.RoundPick,
			OverallPick: turn.OverallPick,
		}
	}
	return resp, nil
}
