package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDraftNotActive is returned for operations that require a started,
	// non-completed draft.
	ErrDraftNotActive = errors.New("draft is not active")

	// ErrDraftCompleted is returned when a pick is attempted after the
	// final pick number has been claimed.
	ErrDraftCompleted = errors.New("draft is already completed")

	// ErrDraftNotPaused is returned by Resume when the draft is not paused.
	ErrDraftNotPaused = errors.New("draft is not paused")

	// ErrPlayerUnavailable is returned when the requested player is not in
	// the remaining pool for this draft.
	ErrPlayerUnavailable = errors.New("player is not available in this draft")

	// ErrInvalidSettings is returned by CreateDraft for malformed settings.
	ErrInvalidSettings = errors.New("invalid draft settings")
)

// NotYourTurnError rejects a pick by a team that is not the authoritative
// current picker. It carries both identities so the rejection can be routed
// back to the attempting team with the picker displayed.
type NotYourTurnError struct {
	AttemptedTeamID uuid.UUID
	CurrentTeamID   uuid.UUID
}

func (e *NotYourTurnError) Error() string {
	return fmt.Sprintf("not your turn: team %s is on the clock", e.CurrentTeamID)
}
