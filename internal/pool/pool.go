// Package pool exposes the draftable-candidate pool. The engine consumes it;
// it never mutates draft state.
package pool

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// Provider supplies the set of candidates not yet taken in a draft, filtered
// by player ID against the draft's full pick history.
type Provider interface {
	AvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error)
}

// PlayerLister is the slice of the store the pool needs.
type PlayerLister interface {
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error)
}

// StoreProvider backs the pool with the draft record store.
type StoreProvider struct {
	players PlayerLister
}

var _ Provider = (*StoreProvider)(nil)

func NewStoreProvider(players PlayerLister) *StoreProvider {
	return &StoreProvider{players: players}
}

func (p *StoreProvider) AvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error) {
	return p.players.ListAvailablePlayers(ctx, draftID)
}
