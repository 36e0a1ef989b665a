// Package api exposes the draft engine's operations over HTTP. Commands are
// POSTs returning JSON; turn-legality failures map to 409 with a
// PickRejected body so callers can show the authoritative picker.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/engine"
	"github.com/mcdev12/draftroom/internal/draft/events"
	"github.com/mcdev12/draftroom/internal/draft/store"
	"github.com/mcdev12/draftroom/internal/models"
)

// Handler mounts the draft command and query endpoints.
type Handler struct {
	engine *engine.Engine
	// defaultPickClockSec fills in time_per_pick_sec when a create request
	// omits it.
	defaultPickClockSec int
}

func NewHandler(e *engine.Engine, defaultPickClockSec int) *Handler {
	return &Handler{engine: e, defaultPickClockSec: defaultPickClockSec}
}

// RegisterRoutes mounts the API on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/drafts", h.handleCreateDraft)
	mux.HandleFunc("GET /api/drafts/active", h.handleActiveDraft)
	mux.HandleFunc("GET /api/drafts/{id}/state", h.handleState)
	mux.HandleFunc("POST /api/drafts/{id}/start", h.handleStart)
	mux.HandleFunc("POST /api/drafts/{id}/picks", h.handleMakePick)
	mux.HandleFunc("POST /api/drafts/{id}/pause", h.handlePause)
	mux.HandleFunc("POST /api/drafts/{id}/resume", h.handleResume)
	mux.HandleFunc("POST /api/drafts/{id}/reset", h.handleReset)
	mux.HandleFunc("POST /api/drafts/{id}/complete", h.handleCompleteAll)
}

type createDraftRequest struct {
	LeagueID       uuid.UUID   `json:"league_id"`
	Rounds         int         `json:"rounds"`
	TimePerPickSec int         `json:"time_per_pick_sec"`
	DraftOrder     []uuid.UUID `json:"draft_order"`
}

func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TimePerPickSec == 0 {
		req.TimePerPickSec = h.defaultPickClockSec
	}

	draft, err := h.engine.CreateDraft(r.Context(), req.LeagueID, models.DraftSettings{
		Rounds:         req.Rounds,
		TimePerPickSec: req.TimePerPickSec,
		DraftOrder:     req.DraftOrder,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *Handler) handleActiveDraft(w http.ResponseWriter, r *http.Request) {
	leagueID, err := uuid.Parse(r.URL.Query().Get("league_id"))
	if err != nil {
		http.Error(w, "valid league_id is required", http.StatusBadRequest)
		return
	}
	draft, err := h.engine.ActiveDraftForLeague(r.Context(), leagueID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFromPath(w, r)
	if !ok {
		return
	}
	state, err := h.engine.RequestState(r.Context(), draftID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.engine.Start)
}

type makePickRequest struct {
	TeamID   uuid.UUID `json:"team_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

func (h *Handler) handleMakePick(w http.ResponseWriter, r *http.Request) {
	draftID, ok := draftIDFromPath(w, r)
	if !ok {
		return
	}
	var req makePickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pick, err := h.engine.MakePick(r.Context(), draftID, req.TeamID, req.PlayerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.engine.Pause)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.engine.Resume)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.engine.Reset)
}

func (h *Handler) handleCompleteAll(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.engine.CompleteAllRemaining)
}

// command runs a body-less draft operation identified by the path ID.
func (h *Handler) command(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, draftID uuid.UUID) error) {
	draftID, ok := draftIDFromPath(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), draftID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func draftIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	draftID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid draft ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return draftID, true
}

// writeError maps engine and store errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var notYourTurn *engine.NotYourTurnError
	switch {
	case errors.As(err, &notYourTurn):
		writeJSON(w, http.StatusConflict, events.PickRejectedPayload{
			TeamID:        notYourTurn.AttemptedTeamID.String(),
			Reason:        notYourTurn.Error(),
			CurrentTeamID: notYourTurn.CurrentTeamID.String(),
		})
	case errors.Is(err, engine.ErrInvalidSettings):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrDraftNotFound):
		http.Error(w, "draft not found", http.StatusNotFound)
	case errors.Is(err, store.ErrActiveDraftExists):
		http.Error(w, "league already has an active draft", http.StatusConflict)
	case errors.Is(err, store.ErrPickConflict):
		http.Error(w, "pick slot already claimed", http.StatusConflict)
	case errors.Is(err, engine.ErrPlayerUnavailable):
		http.Error(w, "player is not available", http.StatusConflict)
	case errors.Is(err, engine.ErrDraftNotActive),
		errors.Is(err, engine.ErrDraftCompleted),
		errors.Is(err, engine.ErrDraftNotPaused):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, autopick.ErrPoolExhausted):
		http.Error(w, "player pool exhausted", http.StatusConflict)
	default:
		log.Error().Err(err).Msg("unhandled API error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
