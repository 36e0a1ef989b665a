package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/events"
	"github.com/mcdev12/draftroom/internal/draft/store"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/pool"
)

type capturePub struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePub) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePub) byType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *capturePub, *clockwork.FakeClock) {
	t.Helper()
	st := store.NewMemoryStore()
	pub := &capturePub{}
	clock := clockwork.NewFakeClock()
	strat := autopick.NewRandomStrategy(pool.NewStoreProvider(st))
	return New(st, strat, pub, clock), st, pub, clock
}

func seedPlayers(t *testing.T, st *store.MemoryStore, names ...string) []models.Player {
	t.Helper()
	players := make([]models.Player, len(names))
	for i, name := range names {
		players[i] = models.Player{
			ID:           uuid.New(),
			FullName:     name,
			Position:     "RB",
			ProTeam:      "FA",
			SourceLeague: models.SourceLeagueNFL,
		}
		require.NoError(t, st.CreatePlayer(context.Background(), players[i]))
	}
	return players
}

func newDraft(t *testing.T, e *Engine, teams int, rounds int, timePerPickSec int) *models.Draft {
	t.Helper()
	order := make([]uuid.UUID, teams)
	for i := range order {
		order[i] = uuid.New()
	}
	draft, err := e.CreateDraft(context.Background(), uuid.New(), models.DraftSettings{
		Rounds:         rounds,
		TimePerPickSec: timePerPickSec,
		DraftOrder:     order,
	})
	require.NoError(t, err)
	return draft
}

func pickAnyAvailable(t *testing.T, e *Engine, st *store.MemoryStore, draftID, teamID uuid.UUID) *models.DraftPick {
	t.Helper()
	available, err := st.ListAvailablePlayers(context.Background(), draftID)
	require.NoError(t, err)
	require.NotEmpty(t, available)
	pick, err := e.MakePick(context.Background(), draftID, teamID, available[0].ID)
	require.NoError(t, err)
	return pick
}

func TestFullDraftRunThrough(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs")
	draft := newDraft(t, e, 2, 2, 3600)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))

	// Snake order for 2 teams over 2 rounds: A, B, B, A.
	for _, teamID := range []uuid.UUID{a, b, b, a} {
		pickAnyAvailable(t, e, st, draft.ID, teamID)
	}

	got, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	picks, err := st.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, picks, 4)
	for i, pick := range picks {
		assert.Equal(t, i, pick.OverallPick, "pick numbers must be dense and gap-free")
		assert.False(t, pick.AutoDrafted)
	}
	assert.Equal(t, []uuid.UUID{a, b, b, a}, []uuid.UUID{
		picks[0].TeamID, picks[1].TeamID, picks[2].TeamID, picks[3].TeamID,
	})
	assert.Equal(t, 2, picks[2].Round)
	assert.Equal(t, 1, picks[2].RoundPick)

	require.Len(t, pub.byType(events.TypeDraftCompleted), 1)
	assert.Len(t, pub.byType(events.TypePlayerDrafted), 4)
	assert.False(t, e.Timers().Active(draft.ID))
}

func TestPickOutOfTurnRejected(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 3600)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))

	_, err := e.MakePick(ctx, draft.ID, b, players[0].ID)
	var notYourTurn *NotYourTurnError
	require.ErrorAs(t, err, &notYourTurn)
	assert.Equal(t, a, notYourTurn.CurrentTeamID)
	assert.Equal(t, b, notYourTurn.AttemptedTeamID)

	count, err := st.CountPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected pick must not persist")

	rejected := pub.byType(events.TypePickRejected)
	require.Len(t, rejected, 1)
	var payload events.PickRejectedPayload
	require.NoError(t, json.Unmarshal(rejected[0].Data, &payload))
	assert.Equal(t, b.String(), payload.TeamID)
	assert.Equal(t, a.String(), payload.CurrentTeamID)
}

func TestPickUnavailablePlayer(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 3600)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))

	_, err := e.MakePick(ctx, draft.ID, a, players[0].ID)
	require.NoError(t, err)

	_, err = e.MakePick(ctx, draft.ID, b, players[0].ID)
	assert.ErrorIs(t, err, ErrPlayerUnavailable)
}

func TestFailedPickLeavesTimerRunning(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams", "Barkley", "Chase")
	draft := newDraft(t, e, 2, 1, 30)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))

	_, err := e.MakePick(ctx, draft.ID, a, players[0].ID)
	require.NoError(t, err)
	require.True(t, e.Timers().Active(draft.ID))

	// B on the clock picks the player A already took. The rejection must not
	// kill B's countdown, or the turn would sit with no auto-pick fallback.
	_, err = e.MakePick(ctx, draft.ID, b, players[0].ID)
	require.ErrorIs(t, err, ErrPlayerUnavailable)
	assert.True(t, e.Timers().Active(draft.ID), "failed pick attempt must leave the turn timer running")

	// Same for an out-of-turn attempt.
	_, err = e.MakePick(ctx, draft.ID, a, players[2].ID)
	var notYourTurn *NotYourTurnError
	require.ErrorAs(t, err, &notYourTurn)
	assert.True(t, e.Timers().Active(draft.ID))

	// The turn is still live: B's legal pick lands.
	_, err = e.MakePick(ctx, draft.ID, b, players[1].ID)
	require.NoError(t, err)
}

// conflictOnceStore fails the first AppendPick with the conflict another
// process would produce by claiming the same pick number.
type conflictOnceStore struct {
	store.Store
	conflicted bool
}

func (s *conflictOnceStore) AppendPick(ctx context.Context, pick models.DraftPick, entry models.RosterEntry) error {
	if !s.conflicted {
		s.conflicted = true
		return store.ErrPickConflict
	}
	return s.Store.AppendPick(ctx, pick, entry)
}

func TestPickConflictRestartsTimer(t *testing.T) {
	mem := store.NewMemoryStore()
	st := &conflictOnceStore{Store: mem}
	pub := &capturePub{}
	e := New(st, autopick.NewRandomStrategy(pool.NewStoreProvider(mem)), pub, clockwork.NewFakeClock())
	ctx := context.Background()

	players := seedPlayers(t, mem, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 30)
	a := draft.Settings.DraftOrder[0]

	require.NoError(t, e.Start(ctx, draft.ID))
	require.True(t, e.Timers().Active(draft.ID))

	_, err := e.MakePick(ctx, draft.ID, a, players[0].ID)
	require.ErrorIs(t, err, store.ErrPickConflict)
	assert.True(t, e.Timers().Active(draft.ID), "lost pick race must re-arm the countdown")

	// The retry goes through and stops the restarted timer as usual.
	_, err = e.MakePick(ctx, draft.ID, a, players[0].ID)
	require.NoError(t, err)
}

func TestPickBeforeStartRejected(t *testing.T) {
	e, st, _, _ := newTestEngine(t)

	players := seedPlayers(t, st, "Adams")
	draft := newDraft(t, e, 1, 1, 3600)

	_, err := e.MakePick(context.Background(), draft.ID, draft.Settings.DraftOrder[0], players[0].ID)
	assert.ErrorIs(t, err, ErrDraftNotActive)
}

func TestTimerExpiryAutoDrafts(t *testing.T) {
	e, st, pub, clock := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 2)

	require.NoError(t, e.Start(ctx, draft.ID))
	clock.BlockUntil(1)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return len(pub.byType(events.TypeTimerTick)) > 0
	}, 2*time.Second, 10*time.Millisecond, "countdown must broadcast ticks")

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		n, err := st.CountPicks(ctx, draft.ID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond, "expiry must commit an auto-pick")

	picks, err := st.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, picks[0].AutoDrafted)
	assert.Equal(t, draft.Settings.DraftOrder[0], picks[0].TeamID)

	// The next turn's timer is armed as part of the auto-pick commit.
	assert.Eventually(t, func() bool {
		return e.Timers().Active(draft.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManualFinalPickLeavesNoLiveTimer(t *testing.T) {
	e, st, _, clock := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams")
	draft := newDraft(t, e, 1, 1, 2)

	require.NoError(t, e.Start(ctx, draft.ID))
	clock.BlockUntil(1)

	_, err := e.MakePick(ctx, draft.ID, draft.Settings.DraftOrder[0], players[0].ID)
	require.NoError(t, err)
	assert.False(t, e.Timers().Active(draft.ID))

	// A stale expiry after the manual pick must not double-commit.
	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)
	count, err := st.CountPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConcurrentPicksClaimSlotExactlyOnce(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs", "Ekeler", "Fields", "Gibbs", "Hall")
	draft := newDraft(t, e, 2, 4, 3600)
	a := draft.Settings.DraftOrder[0]

	require.NoError(t, e.Start(ctx, draft.ID))

	// Eight callers race for the same turn with distinct players.
	var wg sync.WaitGroup
	results := make(chan error, len(players))
	for _, p := range players {
		wg.Add(1)
		go func(playerID uuid.UUID) {
			defer wg.Done()
			_, err := e.MakePick(ctx, draft.ID, a, playerID)
			results <- err
		}(p.ID)
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var notYourTurn *NotYourTurnError
		require.ErrorAs(t, err, &notYourTurn)
	}
	assert.Equal(t, 1, successes, "exactly one caller may claim the slot")

	picks, err := st.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 0, picks[0].OverallPick)
}

func TestPauseAndResume(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs")
	draft := newDraft(t, e, 2, 2, 3600)
	a := draft.Settings.DraftOrder[0]

	require.NoError(t, e.Start(ctx, draft.ID))
	require.NoError(t, e.Pause(ctx, draft.ID))

	got, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPaused, got.Status)
	assert.False(t, e.Timers().Active(draft.ID), "pause must stop the countdown")
	require.Len(t, pub.byType(events.TypeDraftPaused), 1)

	// Pausing stops the clock, not the draft: manual picks still land.
	pick := pickAnyAvailable(t, e, st, draft.ID, a)
	assert.Equal(t, 0, pick.OverallPick)
	assert.False(t, e.Timers().Active(draft.ID), "no timer while paused")

	require.NoError(t, e.Resume(ctx, draft.ID))
	got, err = st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, got.Status)
	assert.True(t, e.Timers().Active(draft.ID), "resume re-arms a full timer")
	require.Len(t, pub.byType(events.TypeDraftResumed), 1)

	assert.ErrorIs(t, e.Resume(ctx, draft.ID), ErrDraftNotPaused)
}

func TestPauseRequiresRunningDraft(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	draft := newDraft(t, e, 2, 1, 3600)

	assert.ErrorIs(t, e.Pause(context.Background(), draft.ID), ErrDraftNotActive)
}

func TestResetReturnsDraftToPreStartState(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs")
	draft := newDraft(t, e, 2, 2, 3600)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))
	pickAnyAvailable(t, e, st, draft.ID, a)
	pickAnyAvailable(t, e, st, draft.ID, b)

	require.NoError(t, e.Reset(ctx, draft.ID))

	got, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusNotStarted, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, e.Timers().Active(draft.ID))

	count, err := st.CountPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	require.Len(t, pub.byType(events.TypeDraftReset), 1)

	// All players are back in the pool and the draft restarts from slot zero.
	available, err := st.ListAvailablePlayers(ctx, draft.ID)
	require.NoError(t, err)
	assert.Len(t, available, 4)

	require.NoError(t, e.Start(ctx, draft.ID))
	pick := pickAnyAvailable(t, e, st, draft.ID, a)
	assert.Equal(t, 0, pick.OverallPick)
}

func TestStartIsIdempotent(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 3600)

	require.NoError(t, e.Start(ctx, draft.ID))
	started, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	firstStart := *started.StartedAt

	require.NoError(t, e.Start(ctx, draft.ID))
	again, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, firstStart, *again.StartedAt, "second start must not reset the start time")
	assert.True(t, e.Timers().Active(draft.ID))
}

func TestStartCompletedDraftRejected(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	players := seedPlayers(t, st, "Adams")
	draft := newDraft(t, e, 1, 1, 3600)

	require.NoError(t, e.Start(ctx, draft.ID))
	_, err := e.MakePick(ctx, draft.ID, draft.Settings.DraftOrder[0], players[0].ID)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Start(ctx, draft.ID), ErrDraftCompleted)
}

func TestCompleteAllRemaining(t *testing.T) {
	e, st, pub, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs", "Ekeler", "Fields")
	draft := newDraft(t, e, 3, 2, 3600)
	a := draft.Settings.DraftOrder[0]

	require.NoError(t, e.Start(ctx, draft.ID))
	pickAnyAvailable(t, e, st, draft.ID, a)

	require.NoError(t, e.CompleteAllRemaining(ctx, draft.ID))

	got, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, got.Status)
	assert.False(t, e.Timers().Active(draft.ID))

	picks, err := st.ListPicks(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, picks, 6)
	seen := make(map[uuid.UUID]bool)
	for i, pick := range picks {
		assert.Equal(t, i, pick.OverallPick)
		assert.False(t, seen[pick.PlayerID], "no player may be drafted twice")
		seen[pick.PlayerID] = true
		if i > 0 {
			assert.True(t, pick.AutoDrafted)
		}
	}
	require.Len(t, pub.byType(events.TypeDraftCompleted), 1)

	assert.ErrorIs(t, e.CompleteAllRemaining(ctx, draft.ID), ErrDraftCompleted)
}

func TestCompleteAllRemainingPoolTooSmall(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams")
	draft := newDraft(t, e, 2, 2, 3600)

	require.NoError(t, e.Start(ctx, draft.ID))
	err := e.CompleteAllRemaining(ctx, draft.ID)
	require.ErrorIs(t, err, autopick.ErrPoolExhausted)

	// Nothing was committed and the draft is still open.
	count, err := st.CountPicks(ctx, draft.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	got, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusInProgress, got.Status)
}

func TestRequestState(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley", "Chase", "Diggs")
	draft := newDraft(t, e, 2, 2, 30)
	a, b := draft.Settings.DraftOrder[0], draft.Settings.DraftOrder[1]

	require.NoError(t, e.Start(ctx, draft.ID))
	pickAnyAvailable(t, e, st, draft.ID, a)

	state, err := e.RequestState(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.PicksMade)
	require.NotNil(t, state.CurrentTurn)
	assert.Equal(t, b, state.CurrentTurn.TeamID)
	require.NotNil(t, state.RemainingSec)
	assert.Equal(t, 30, *state.RemainingSec)
}

func TestRequestStateRearmsMissingTimer(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	ctx := context.Background()

	seedPlayers(t, st, "Adams", "Barkley")
	draft := newDraft(t, e, 2, 1, 30)

	// Simulate a process restart: the draft is running but no timer exists.
	loaded, err := st.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	now := time.Now()
	loaded.Status = models.DraftStatusInProgress
	loaded.StartedAt = &now
	require.NoError(t, st.UpdateDraft(ctx, loaded))

	state, err := e.RequestState(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentTurn)
	assert.True(t, e.Timers().Active(draft.ID), "state sync must re-arm the countdown")
}

func TestCreateDraftValidation(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	teamA, teamB := uuid.New(), uuid.New()

	cases := []struct {
		name     string
		settings models.DraftSettings
	}{
		{"zero rounds", models.DraftSettings{Rounds: 0, TimePerPickSec: 30, DraftOrder: []uuid.UUID{teamA}}},
		{"zero pick clock", models.DraftSettings{Rounds: 1, TimePerPickSec: 0, DraftOrder: []uuid.UUID{teamA}}},
		{"empty order", models.DraftSettings{Rounds: 1, TimePerPickSec: 30, DraftOrder: nil}},
		{"duplicate team", models.DraftSettings{Rounds: 1, TimePerPickSec: 30, DraftOrder: []uuid.UUID{teamA, teamB, teamA}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateDraft(ctx, uuid.New(), tc.settings)
			assert.Error(t, err)
		})
	}
}

func TestCreateDraftRejectsSecondActiveDraft(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	leagueID := uuid.New()

	settings := models.DraftSettings{Rounds: 1, TimePerPickSec: 30, DraftOrder: []uuid.UUID{uuid.New()}}
	_, err := e.CreateDraft(ctx, leagueID, settings)
	require.NoError(t, err)

	_, err = e.CreateDraft(ctx, leagueID, settings)
	assert.ErrorIs(t, err, store.ErrActiveDraftExists)
}

func TestIsMember(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	draft := newDraft(t, e, 2, 1, 30)

	ok, err := e.IsMember(ctx, draft.ID, draft.Settings.DraftOrder[1])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.IsMember(ctx, draft.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
