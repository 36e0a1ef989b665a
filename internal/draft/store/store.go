// Package store is the persistence boundary for the draft engine. The engine
// re-reads authoritative state through it at the moment of every mutation;
// implementations must enforce uniqueness of (draft_id, overall_pick) at
// commit time so that only one of two racing claims for the same pick number
// succeeds.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

var (
	// ErrDraftNotFound is returned when no draft matches the lookup.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrPickConflict is returned when a concurrent commit already claimed
	// the overall pick number this attempt targeted.
	ErrPickConflict = errors.New("pick number already claimed")

	// ErrActiveDraftExists is returned when creating a draft for a league
	// that already has a non-completed one.
	ErrActiveDraftExists = errors.New("league already has a non-completed draft")
)

// CreateDraftRequest carries the fields needed to create a draft in its
// pre-start state.
type CreateDraftRequest struct {
	ID       uuid.UUID
	LeagueID uuid.UUID
	Settings models.DraftSettings
}

// Store is what the engine needs from persistence.
type Store interface {
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetActiveDraftByLeague(ctx context.Context, leagueID uuid.UUID) (*models.Draft, error)
	// UpdateDraft persists the draft's mutable fields (status, display
	// hints, timestamps).
	UpdateDraft(ctx context.Context, draft *models.Draft) error

	// CountPicks returns the number of committed picks for a draft. This is
	// the value the engine derives "whose turn" from.
	CountPicks(ctx context.Context, draftID uuid.UUID) (int, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error)
	// AppendPick commits a pick and its roster projection in one
	// transaction. Returns ErrPickConflict if (DraftID, OverallPick) is
	// already taken.
	AppendPick(ctx context.Context, pick models.DraftPick, entry models.RosterEntry) error
	// AppendPicksBatch commits several picks and projections in one
	// transaction; used by the bulk-fill path.
	AppendPicksBatch(ctx context.Context, picks []models.DraftPick, entries []models.RosterEntry) error
	// DeletePicks removes all picks and roster projections for a draft and
	// reports how many picks were removed.
	DeletePicks(ctx context.Context, draftID uuid.UUID) (int, error)

	CreatePlayer(ctx context.Context, player models.Player) error
	// ListAvailablePlayers returns pool candidates not yet taken in this
	// draft, filtered by player ID.
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error)
	ListRosterByTeam(ctx context.Context, draftID, teamID uuid.UUID) ([]models.RosterEntry, error)
}
