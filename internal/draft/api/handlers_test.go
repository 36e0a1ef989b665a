package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/engine"
	"github.com/mcdev12/draftroom/internal/draft/events"
	"github.com/mcdev12/draftroom/internal/draft/store"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/pool"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, ev events.Event) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	e := engine.New(st, autopick.NewRandomStrategy(pool.NewStoreProvider(st)), nopPublisher{}, clockwork.NewFakeClock())

	mux := http.NewServeMux()
	NewHandler(e, 60).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateStartAndPickOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	playerA := models.Player{ID: uuid.New(), FullName: "Bijan Robinson", Position: "RB", SourceLeague: models.SourceLeagueNFL}
	playerB := models.Player{ID: uuid.New(), FullName: "CeeDee Lamb", Position: "WR", SourceLeague: models.SourceLeagueNFL}
	require.NoError(t, st.CreatePlayer(ctx, playerA))
	require.NoError(t, st.CreatePlayer(ctx, playerB))

	teamA, teamB := uuid.New(), uuid.New()
	resp := postJSON(t, srv.URL+"/api/drafts", map[string]any{
		"league_id":         uuid.New(),
		"rounds":            1,
		"time_per_pick_sec": 30,
		"draft_order":       []uuid.UUID{teamA, teamB},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var draft models.Draft
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&draft))
	require.NotEqual(t, uuid.Nil, draft.ID)

	base := srv.URL + "/api/drafts/" + draft.ID.String()
	resp = postJSON(t, base+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Out-of-turn pick is rejected with the authoritative picker.
	resp = postJSON(t, base+"/picks", map[string]any{"team_id": teamB, "player_id": playerA.ID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var rejected events.PickRejectedPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rejected))
	assert.Equal(t, teamA.String(), rejected.CurrentTeamID)
	assert.Equal(t, teamB.String(), rejected.TeamID)

	// In-turn pick lands.
	resp = postJSON(t, base+"/picks", map[string]any{"team_id": teamA, "player_id": playerA.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pick models.DraftPick
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pick))
	assert.Equal(t, 0, pick.OverallPick)
	assert.Equal(t, "Bijan Robinson", pick.PlayerName)

	// State shows one pick made and team B on the clock.
	stateResp, err := http.Get(base + "/state")
	require.NoError(t, err)
	defer stateResp.Body.Close()
	require.Equal(t, http.StatusOK, stateResp.StatusCode)
	var state engine.State
	require.NoError(t, json.NewDecoder(stateResp.Body).Decode(&state))
	assert.Equal(t, 1, state.PicksMade)
	require.NotNil(t, state.CurrentTurn)
	assert.Equal(t, teamB, state.CurrentTurn.TeamID)
}

func TestPickOnUnknownDraft(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/drafts/"+uuid.New().String()+"/picks",
		map[string]any{"team_id": uuid.New(), "player_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateDraftRejectsBadSettings(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/drafts", map[string]any{
		"league_id":         uuid.New(),
		"rounds":            0,
		"time_per_pick_sec": 30,
		"draft_order":       []uuid.UUID{uuid.New()},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
