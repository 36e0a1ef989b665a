package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/store"
)

// Memberships answers whether a team belongs to a draft; the engine
// satisfies it.
type Memberships interface {
	IsMember(ctx context.Context, draftID, teamID uuid.UUID) (bool, error)
}

// WebSocketHandler upgrades client connections after a membership check.
// Identity establishes who may subscribe; turn legality is enforced by the
// engine per pick, never at connect time.
type WebSocketHandler struct {
	manager     *ConnectionManager
	memberships Memberships
}

func NewWebSocketHandler(cm *ConnectionManager, m Memberships) *WebSocketHandler {
	return &WebSocketHandler{manager: cm, memberships: m}
}

// HandleDraftConnection serves GET /ws/draft?draft_id=...&team_id=...
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(r.URL.Query().Get("draft_id"))
	if err != nil {
		http.Error(w, "valid draft_id is required", http.StatusBadRequest)
		return
	}
	teamID, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		http.Error(w, "valid team_id is required", http.StatusBadRequest)
		return
	}

	ok, err := h.memberships.IsMember(r.Context(), draftID, teamID)
	if err != nil {
		if errors.Is(err, store.ErrDraftNotFound) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("membership check failed")
		http.Error(w, "membership check failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "team is not part of this draft", http.StatusForbidden)
		return
	}

	if err := h.manager.Upgrade(w, r, teamID, draftID); err != nil {
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Str("team_id", teamID.String()).
			Msg("websocket upgrade failed")
	}
}

// HandleConnectionStats serves GET /ws/stats.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.manager.Stats()); err != nil {
		log.Error().Err(err).Msg("encode connection stats")
	}
}

// StateHandler serves the reconnect snapshot.
type StateHandler struct {
	provider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleGetDraftState serves GET /api/drafts/{id}/state.
func (h *StateHandler) HandleGetDraftState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/drafts/"), "/state")
	draftID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid draft ID", http.StatusBadRequest)
		return
	}

	state, err := h.provider.DraftState(r.Context(), draftID)
	if err != nil {
		if errors.Is(err, store.ErrDraftNotFound) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("get draft state")
		http.Error(w, "failed to get draft state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("encode draft state")
	}
}
