// Package autopick chooses a fallback player when a turn timer expires.
package autopick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/pool"
)

// ErrPoolExhausted is returned when no candidates remain. With a correctly
// sized pool this cannot happen while picks remain, so callers treat it as a
// configuration error, not a normal branch.
var ErrPoolExhausted = errors.New("no available players in pool")

// Strategy selects exactly one player for a team whose timer expired.
type Strategy interface {
	SelectPlayer(ctx context.Context, draftID, teamID uuid.UUID) (*models.Player, error)
}

// RandomStrategy picks uniformly from the remaining pool.
type RandomStrategy struct {
	pool pool.Provider
	rng  *rand.Rand
}

var _ Strategy = (*RandomStrategy)(nil)

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy(p pool.Provider) *RandomStrategy {
	return &RandomStrategy{
		pool: p,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *RandomStrategy) SelectPlayer(ctx context.Context, draftID, teamID uuid.UUID) (*models.Player, error) {
	players, err := s.pool.AvailablePlayers(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list available players: %w", err)
	}
	if len(players) == 0 {
		return nil, ErrPoolExhausted
	}
	choice := players[s.rng.Intn(len(players))]
	return &choice, nil
}

// RosterSource is the slice of the store position-aware selection needs.
type RosterSource interface {
	ListRosterByTeam(ctx context.Context, draftID, teamID uuid.UUID) ([]models.RosterEntry, error)
}

// PositionNeedStrategy prefers positions the team has drafted least,
// breaking ties randomly within the chosen position. Falls back to a uniform
// pick when roster state cannot be read.
type PositionNeedStrategy struct {
	pool    pool.Provider
	rosters RosterSource
	rng     *rand.Rand
}

var _ Strategy = (*PositionNeedStrategy)(nil)

func NewPositionNeedStrategy(p pool.Provider, rosters RosterSource) *PositionNeedStrategy {
	return &PositionNeedStrategy{
		pool:    p,
		rosters: rosters,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *PositionNeedStrategy) SelectPlayer(ctx context.Context, draftID, teamID uuid.UUID) (*models.Player, error) {
	players, err := s.pool.AvailablePlayers(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("list available players: %w", err)
	}
	if len(players) == 0 {
		return nil, ErrPoolExhausted
	}

	entries, err := s.rosters.ListRosterByTeam(ctx, draftID, teamID)
	if err != nil {
		log.Warn().Err(err).
			Str("draft_id", draftID.String()).
			Str("team_id", teamID.String()).
			Msg("roster unavailable for position-need selection, picking randomly")
		choice := players[s.rng.Intn(len(players))]
		return &choice, nil
	}

	filled := make(map[string]int, len(entries))
	for _, e := range entries {
		filled[e.Position]++
	}

	// Group candidates by position, then draft from the position the team
	// has the fewest of.
	byPosition := make(map[string][]models.Player)
	for _, p := range players {
		byPosition[p.Position] = append(byPosition[p.Position], p)
	}

	bestPosition := ""
	bestCount := -1
	for position := range byPosition {
		count := filled[position]
		if bestCount == -1 || count < bestCount || (count == bestCount && position < bestPosition) {
			bestPosition = position
			bestCount = count
		}
	}

	candidates := byPosition[bestPosition]
	choice := candidates[s.rng.Intn(len(candidates))]
	return &choice, nil
}
