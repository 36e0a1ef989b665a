// Package engine orchestrates snake drafts: turn legality, pick commits,
// timer lifecycle, auto-draft fallback and event emission. Every mutating
// operation re-derives the authoritative turn from the persisted pick count
// at the moment of mutation; the stored current-turn fields are display
// hints only.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/events"
	"github.com/mcdev12/draftroom/internal/draft/sequence"
	"github.com/mcdev12/draftroom/internal/draft/store"
	"github.com/mcdev12/draftroom/internal/draft/timer"
	"github.com/mcdev12/draftroom/internal/models"
)

// Engine coordinates all draft mutations. Per-draft operations serialize on
// a draft-scoped mutex so a manual pick and an expiring timer can never
// interleave inside one process; across processes the store's unique
// (draft_id, overall_pick) claim breaks the tie.
type Engine struct {
	store  store.Store
	strat  autopick.Strategy
	pub    events.Publisher
	clock  clockwork.Clock
	timers *timer.Registry

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New wires an Engine and its timer registry. The registry's tick broadcast
// and expiry callback both route through the engine.
func New(st store.Store, strat autopick.Strategy, pub events.Publisher, clock clockwork.Clock) *Engine {
	e := &Engine{
		store: st,
		strat: strat,
		pub:   pub,
		clock: clock,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
	e.timers = timer.NewRegistry(clock, e.broadcastTick, e.handleTimerExpiry)
	return e
}

// Timers exposes the registry for wiring-level introspection (state sync).
func (e *Engine) Timers() *timer.Registry {
	return e.timers
}

func (e *Engine) lockFor(draftID uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[draftID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[draftID] = l
	}
	return l
}

// State is a read-only snapshot for clients (re)connecting to a draft.
type State struct {
	Draft        *models.Draft  `json:"draft"`
	PicksMade    int            `json:"picks_made"`
	CurrentTurn  *sequence.Turn `json:"current_turn,omitempty"`
	RemainingSec *int           `json:"remaining_sec,omitempty"`
}

// CreateDraft creates a draft in its pre-start state after validating
// settings. At most one non-completed draft may exist per league.
func (e *Engine) CreateDraft(ctx context.Context, leagueID uuid.UUID, settings models.DraftSettings) (*models.Draft, error) {
	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	draft, err := e.store.CreateDraft(ctx, store.CreateDraftRequest{
		ID:       uuid.New(),
		LeagueID: leagueID,
		Settings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("league_id", leagueID.String()).
		Int("rounds", settings.Rounds).
		Int("teams", len(settings.DraftOrder)).
		Msg("draft created")
	return draft, nil
}

func validateSettings(s models.DraftSettings) error {
	if s.Rounds <= 0 {
		return errors.New("rounds must be positive")
	}
	if s.TimePerPickSec <= 0 {
		return errors.New("time per pick must be positive")
	}
	if len(s.DraftOrder) == 0 {
		return errors.New("draft order is empty")
	}
	seen := make(map[uuid.UUID]bool, len(s.DraftOrder))
	for _, teamID := range s.DraftOrder {
		if seen[teamID] {
			return fmt.Errorf("team %s appears twice in draft order", teamID)
		}
		seen[teamID] = true
	}
	return nil
}

// ActiveDraftForLeague resolves the league's current non-completed draft.
func (e *Engine) ActiveDraftForLeague(ctx context.Context, leagueID uuid.UUID) (*models.Draft, error) {
	return e.store.GetActiveDraftByLeague(ctx, leagueID)
}

// IsMember reports whether a team participates in the draft. Used by the
// gateway's identity check, independent of turn legality.
func (e *Engine) IsMember(ctx context.Context, draftID, teamID uuid.UUID) (bool, error) {
	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return false, err
	}
	for _, id := range draft.Settings.DraftOrder {
		if id == teamID {
			return true, nil
		}
	}
	return false, nil
}

// Start activates a non-completed draft and arms the first turn timer.
// Idempotent while already running: current state is re-emitted and no
// second timer is created.
func (e *Engine) Start(ctx context.Context, draftID uuid.UUID) error {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status == models.DraftStatusCompleted {
		return ErrDraftCompleted
	}

	if draft.Status != models.DraftStatusInProgress {
		now := e.clock.Now()
		if draft.StartedAt == nil {
			draft.StartedAt = &now
		}
		draft.Status = models.DraftStatusInProgress
		if err := e.store.UpdateDraft(ctx, draft); err != nil {
			return fmt.Errorf("activate draft: %w", err)
		}
		log.Info().Str("draft_id", draftID.String()).Msg("draft started")
	}

	picksMade, err := e.store.CountPicks(ctx, draftID)
	if err != nil {
		return fmt.Errorf("count picks: %w", err)
	}
	turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if !ok {
		// Every slot is already filled; close the draft out.
		return e.completeDraft(ctx, draft, picksMade)
	}

	order := make([]string, len(draft.Settings.DraftOrder))
	for i, id := range draft.Settings.DraftOrder {
		order[i] = id.String()
	}
	e.publish(ctx, draftID, events.TypeDraftStarted, events.DraftStartedPayload{
		DraftID:        draftID.String(),
		CurrentRound:   turn.Round,
		CurrentTeamID:  turn.TeamID.String(),
		DraftOrder:     order,
		TimePerPickSec: draft.Settings.TimePerPickSec,
		StartedAt:      *draft.StartedAt,
	})
	e.publish(ctx, draftID, events.TypeTurnChanged, turnChangedPayload(draft, turn))

	if !e.timers.Active(draftID) {
		e.timers.Start(draftID, draft.TimePerPick())
	}
	return nil
}

// RequestState recomputes and emits the current picker without any mutation.
// Reconnecting clients call it; it also re-arms a missing timer (e.g. after
// a process restart), but never replaces a running one.
func (e *Engine) RequestState(ctx context.Context, draftID uuid.UUID) (*State, error) {
	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	picksMade, err := e.store.CountPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("count picks: %w", err)
	}

	state := &State{Draft: draft, PicksMade: picksMade}
	turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if !ok || draft.Status == models.DraftStatusCompleted {
		return state, nil
	}
	state.CurrentTurn = &turn

	if draft.Status == models.DraftStatusInProgress {
		if !e.timers.Active(draftID) {
			e.timers.Start(draftID, draft.TimePerPick())
		}
		if remaining, _, ok := e.timers.Remaining(draftID); ok {
			sec := int(remaining / time.Second)
			state.RemainingSec = &sec
		}
		e.publish(ctx, draftID, events.TypeTurnChanged, turnChangedPayload(draft, turn))
	}
	return state, nil
}

// MakePick commits a manual selection for the team on the clock. Out-of-turn
// attempts additionally emit a PickRejected event addressed to the caller so
// connected clients see the rejection without polling.
func (e *Engine) MakePick(ctx context.Context, draftID, teamID, playerID uuid.UUID) (*models.DraftPick, error) {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	pick, err := e.commitPick(ctx, draftID, teamID, playerID, false)
	var notYourTurn *NotYourTurnError
	if errors.As(err, &notYourTurn) {
		e.publish(ctx, draftID, events.TypePickRejected, events.PickRejectedPayload{
			TeamID:        teamID.String(),
			Reason:        notYourTurn.Error(),
			CurrentTeamID: notYourTurn.CurrentTeamID.String(),
		})
	}
	return pick, err
}

// commitPick is the single commit path shared by manual picks and
// timer-fired auto-picks. Callers hold the draft lock.
func (e *Engine) commitPick(ctx context.Context, draftID, teamID, playerID uuid.UUID, auto bool) (*models.DraftPick, error) {
	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !pickEligible(draft.Status) {
		if draft.Status == models.DraftStatusCompleted {
			return nil, ErrDraftCompleted
		}
		return nil, ErrDraftNotActive
	}

	// Re-read the persisted count; never trust anything computed earlier.
	picksMade, err := e.store.CountPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("count picks: %w", err)
	}
	turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if !ok {
		return nil, ErrDraftCompleted
	}
	if turn.TeamID != teamID {
		return nil, &NotYourTurnError{AttemptedTeamID: teamID, CurrentTeamID: turn.TeamID}
	}

	player, err := e.availablePlayer(ctx, draftID, playerID)
	if err != nil {
		return nil, err
	}

	// Stop the turn timer before committing so a concurrently-firing expiry
	// cannot double-commit this pick index. All validation happens above
	// this line: a rejected pick must leave the countdown running. Keep the
	// remaining time so a failed commit can put it back.
	remaining, _, hadTimer := e.timers.Remaining(draftID)
	e.timers.Stop(draftID)

	now := e.clock.Now()
	pick := models.DraftPick{
		ID:           uuid.New(),
		DraftID:      draftID,
		TeamID:       teamID,
		PlayerID:     player.ID,
		PlayerName:   player.FullName,
		Position:     player.Position,
		ProTeam:      player.ProTeam,
		SourceLeague: string(player.SourceLeague),
		Round:        turn.Round,
		RoundPick:    turn.RoundPick,
		OverallPick:  turn.OverallPick,
		AutoDrafted:  auto,
		PickedAt:     now,
	}
	if err := e.store.AppendPick(ctx, pick, rosterEntryFor(pick)); err != nil {
		if hadTimer {
			e.timers.Start(draftID, remaining)
		}
		return nil, err
	}

	log.Info().
		Str("draft_id", draftID.String()).
		Str("team_id", teamID.String()).
		Str("player", player.FullName).
		Int("pick_number", pick.OverallPick).
		Bool("auto", auto).
		Msg("pick committed")

	e.publish(ctx, draftID, events.TypePlayerDrafted, events.PlayerDraftedPayload{
		TeamID: teamID.String(),
		Player: events.DraftedPlayer{
			PlayerID:     player.ID.String(),
			PlayerName:   player.FullName,
			Position:     player.Position,
			ProTeam:      player.ProTeam,
			SourceLeague: string(player.SourceLeague),
		},
		Round:       pick.Round,
		RoundPick:   pick.RoundPick,
		PickNumber:  pick.OverallPick,
		AutoDrafted: auto,
		PickedAt:    now,
	})

	if err := e.advanceTurn(ctx, draft, picksMade+1); err != nil {
		return nil, err
	}
	return &pick, nil
}

// advanceTurn refreshes the draft's display hints after a commit, detects
// completion, and arms the next turn timer. Callers hold the draft lock.
func (e *Engine) advanceTurn(ctx context.Context, draft *models.Draft, picksMade int) error {
	next, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if !ok {
		return e.completeDraft(ctx, draft, picksMade)
	}

	draft.CurrentRound = next.Round
	draft.CurrentPickIndex = slotInOrder(draft.Settings.DraftOrder, next.TeamID)
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return fmt.Errorf("update draft turn hints: %w", err)
	}

	e.publish(ctx, draft.ID, events.TypeTurnChanged, turnChangedPayload(draft, next))
	if draft.Status == models.DraftStatusInProgress {
		e.timers.Start(draft.ID, draft.TimePerPick())
	}
	return nil
}

func (e *Engine) completeDraft(ctx context.Context, draft *models.Draft, totalPicks int) error {
	now := e.clock.Now()
	draft.Status = models.DraftStatusCompleted
	draft.CompletedAt = &now
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return fmt.Errorf("complete draft: %w", err)
	}
	e.timers.Stop(draft.ID)

	log.Info().
		Str("draft_id", draft.ID.String()).
		Int("total_picks", totalPicks).
		Msg("draft completed")

	e.publish(ctx, draft.ID, events.TypeDraftCompleted, events.DraftCompletedPayload{
		DraftID:     draft.ID.String(),
		TotalPicks:  totalPicks,
		CompletedAt: now,
	})
	return nil
}

// handleTimerExpiry is the timer registry callback. It re-resolves state
// under the same serialization point manual picks use; if a manual pick (or
// a Stop) won the race the Claim fails and the expiry is a no-op.
func (e *Engine) handleTimerExpiry(ctx context.Context, draftID uuid.UUID, gen uint64) {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	if !e.timers.Claim(draftID, gen) {
		log.Debug().Str("draft_id", draftID.String()).Msg("timer expiry superseded, skipping auto-pick")
		return
	}
	if err := e.autoPick(ctx, draftID); err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("auto-pick failed")
	}
}

// autoPick selects a fallback player for the team on the clock and commits
// it through the normal pick path. A lost cross-process race retries once
// against the refreshed count. Callers hold the draft lock.
func (e *Engine) autoPick(ctx context.Context, draftID uuid.UUID) error {
	for attempt := 0; attempt < 2; attempt++ {
		draft, err := e.store.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if draft.Status != models.DraftStatusInProgress {
			// Completed, paused or reset since the timer was armed.
			log.Debug().
				Str("draft_id", draftID.String()).
				Str("status", string(draft.Status)).
				Msg("draft no longer running, skipping auto-pick")
			return nil
		}
		picksMade, err := e.store.CountPicks(ctx, draftID)
		if err != nil {
			return fmt.Errorf("count picks: %w", err)
		}
		turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
		if !ok {
			return e.completeDraft(ctx, draft, picksMade)
		}

		player, err := e.strat.SelectPlayer(ctx, draftID, turn.TeamID)
		if err != nil {
			if errors.Is(err, autopick.ErrPoolExhausted) {
				// Pool misconfiguration; leave draft state untouched.
				log.Error().
					Str("draft_id", draftID.String()).
					Int("picks_made", picksMade).
					Msg("auto-pick pool exhausted before draft completion")
				return nil
			}
			return fmt.Errorf("select auto-pick player: %w", err)
		}

		_, err = e.commitPick(ctx, draftID, turn.TeamID, player.ID, true)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrPickConflict) && attempt == 0 {
			log.Warn().
				Str("draft_id", draftID.String()).
				Int("pick_number", picksMade).
				Msg("auto-pick lost commit race, retrying against refreshed state")
			continue
		}
		return err
	}
	return nil
}

// CompleteAllRemaining bulk-fills every remaining slot with random available
// players in one transaction, bypassing per-turn timers, and emits a single
// completion event.
func (e *Engine) CompleteAllRemaining(ctx context.Context, draftID uuid.UUID) error {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status == models.DraftStatusCompleted {
		return ErrDraftCompleted
	}

	e.timers.Stop(draftID)

	picksMade, err := e.store.CountPicks(ctx, draftID)
	if err != nil {
		return fmt.Errorf("count picks: %w", err)
	}
	turns := sequence.Remaining(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if len(turns) > 0 {
		available, err := e.store.ListAvailablePlayers(ctx, draftID)
		if err != nil {
			return fmt.Errorf("list available players: %w", err)
		}
		if len(available) < len(turns) {
			return fmt.Errorf("pool has %d players but %d slots remain: %w",
				len(available), len(turns), autopick.ErrPoolExhausted)
		}

		rng := rand.New(rand.NewSource(e.clock.Now().UnixNano()))
		rng.Shuffle(len(available), func(i, j int) {
			available[i], available[j] = available[j], available[i]
		})

		now := e.clock.Now()
		picks := make([]models.DraftPick, len(turns))
		entries := make([]models.RosterEntry, len(turns))
		for i, turn := range turns {
			player := available[i]
			picks[i] = models.DraftPick{
				ID:           uuid.New(),
				DraftID:      draftID,
				TeamID:       turn.TeamID,
				PlayerID:     player.ID,
				PlayerName:   player.FullName,
				Position:     player.Position,
				ProTeam:      player.ProTeam,
				SourceLeague: string(player.SourceLeague),
				Round:        turn.Round,
				RoundPick:    turn.RoundPick,
				OverallPick:  turn.OverallPick,
				AutoDrafted:  true,
				PickedAt:     now,
			}
			entries[i] = rosterEntryFor(picks[i])
		}
		if err := e.store.AppendPicksBatch(ctx, picks, entries); err != nil {
			return fmt.Errorf("bulk-fill picks: %w", err)
		}
	}

	return e.completeDraft(ctx, draft, draft.MaxPicks())
}

// Pause stops the turn timer without changing pick state.
func (e *Engine) Pause(ctx context.Context, draftID uuid.UUID) error {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status != models.DraftStatusInProgress {
		return ErrDraftNotActive
	}

	e.timers.Stop(draftID)
	draft.Status = models.DraftStatusPaused
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return fmt.Errorf("pause draft: %w", err)
	}

	log.Info().Str("draft_id", draftID.String()).Msg("draft paused")
	e.publish(ctx, draftID, events.TypeDraftPaused, events.DraftPausedPayload{
		DraftID:  draftID.String(),
		PausedAt: e.clock.Now(),
	})
	return nil
}

// Resume recomputes the current picker and starts a fresh, full-duration
// turn timer.
func (e *Engine) Resume(ctx context.Context, draftID uuid.UUID) error {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status != models.DraftStatusPaused {
		return ErrDraftNotPaused
	}

	draft.Status = models.DraftStatusInProgress
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return fmt.Errorf("resume draft: %w", err)
	}

	picksMade, err := e.store.CountPicks(ctx, draftID)
	if err != nil {
		return fmt.Errorf("count picks: %w", err)
	}
	turn, ok := sequence.TurnAt(draft.Settings.DraftOrder, picksMade, draft.Settings.Rounds)
	if !ok {
		return e.completeDraft(ctx, draft, picksMade)
	}

	log.Info().Str("draft_id", draftID.String()).Msg("draft resumed")
	e.publish(ctx, draftID, events.TypeDraftResumed, turnChangedPayload(draft, turn))
	e.timers.Start(draftID, draft.TimePerPick())
	return nil
}

// Reset deletes all picks and roster projections and returns the draft to
// its pre-start state. Operator use only; irreversible.
func (e *Engine) Reset(ctx context.Context, draftID uuid.UUID) error {
	l := e.lockFor(draftID)
	l.Lock()
	defer l.Unlock()

	draft, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}

	e.timers.Stop(draftID)
	deleted, err := e.store.DeletePicks(ctx, draftID)
	if err != nil {
		return fmt.Errorf("delete picks: %w", err)
	}

	draft.Status = models.DraftStatusNotStarted
	draft.CurrentRound = 1
	draft.CurrentPickIndex = 0
	draft.StartedAt = nil
	draft.CompletedAt = nil
	if err := e.store.UpdateDraft(ctx, draft); err != nil {
		return fmt.Errorf("reset draft: %w", err)
	}

	log.Info().
		Str("draft_id", draftID.String()).
		Int("picks_deleted", deleted).
		Msg("draft reset")
	e.publish(ctx, draftID, events.TypeDraftReset, events.DraftResetPayload{
		DraftID: draftID.String(),
		ResetAt: e.clock.Now(),
	})
	return nil
}

func (e *Engine) availablePlayer(ctx context.Context, draftID, playerID uuid.UUID) (*models.Player, error) {
	players, err := e.store.ListAvailablePlayers(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list available players: %w", err)
	}
	for i := range players {
		if players[i].ID == playerID {
			return &players[i], nil
		}
	}
	return nil, ErrPlayerUnavailable
}

// broadcastTick relays the registry countdown as a TimerTick event.
func (e *Engine) broadcastTick(draftID uuid.UUID, remaining, total time.Duration) {
	e.publish(context.Background(), draftID, events.TypeTimerTick, events.TimerTickPayload{
		RemainingSec: int(remaining / time.Second),
		TotalSec:     int(total / time.Second),
		TickedAt:     e.clock.Now(),
	})
}

// publish is best-effort: a failed publish is logged, never propagated, so
// event plumbing can't corrupt draft state.
func (e *Engine) publish(ctx context.Context, draftID uuid.UUID, t events.Type, payload any) {
	event, err := events.New(draftID, t, payload)
	if err != nil {
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("build event")
		return
	}
	if err := e.pub.Publish(ctx, event); err != nil {
		log.Error().Err(err).
			Str("draft_id", draftID.String()).
			Str("event_type", string(t)).
			Msg("publish event")
	}
}

// pickEligible reports whether picks may be committed in this status. Pausing
// is a presentation-layer convenience: it stops the countdown but does not
// block manual picks.
func pickEligible(status models.DraftStatus) bool {
	return status == models.DraftStatusInProgress || status == models.DraftStatusPaused
}

func turnChangedPayload(draft *models.Draft, turn sequence.Turn) events.TurnChangedPayload {
	return events.TurnChangedPayload{
		CurrentTeamID:  turn.TeamID.String(),
		Round:          turn.Round,
		RoundPick:      turn.RoundPick,
		TimePerPickSec: draft.Settings.TimePerPickSec,
	}
}

func slotInOrder(order []uuid.UUID, teamID uuid.UUID) int {
	for i, id := range order {
		if id == teamID {
			return i
		}
	}
	return 0
}

func rosterEntryFor(pick models.DraftPick) models.RosterEntry {
	acquisition := models.AcquisitionTypeDraft
	if pick.AutoDrafted {
		acquisition = models.AcquisitionTypeAutoDraft
	}
	return models.RosterEntry{
		ID:              uuid.New(),
		TeamID:          pick.TeamID,
		DraftID:         pick.DraftID,
		PlayerID:        pick.PlayerID,
		PlayerName:      pick.PlayerName,
		Position:        pick.Position,
		SourceLeague:    pick.SourceLeague,
		AcquisitionType: acquisition,
		AcquiredAt:      pick.PickedAt,
	}
}
