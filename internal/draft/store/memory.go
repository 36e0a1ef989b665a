package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// MemoryStore is an in-process Store with the same conflict semantics as the
// Postgres implementation. Engine tests run against it.
type MemoryStore struct {
	mu      sync.Mutex
	drafts  map[uuid.UUID]models.Draft
	picks   map[uuid.UUID][]models.DraftPick   // keyed by draft ID
	rosters map[uuid.UUID][]models.RosterEntry // keyed by draft ID
	players map[uuid.UUID]models.Player
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:  make(map[uuid.UUID]models.Draft),
		picks:   make(map[uuid.UUID][]models.DraftPick),
		rosters: make(map[uuid.UUID][]models.RosterEntry),
		players: make(map[uuid.UUID]models.Player),
	}
}

func (s *MemoryStore) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.drafts {
		if d.LeagueID == req.LeagueID && d.Status != models.DraftStatusCompleted {
			return nil, ErrActiveDraftExists
		}
	}

	now := time.Now()
	draft := models.Draft{
		ID:        req.ID,
		LeagueID:  req.LeagueID,
		Status:    models.DraftStatusNotStarted,
		Settings:  req.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.drafts[draft.ID] = draft
	out := draft
	return &out, nil
}

func (s *MemoryStore) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	out := draft
	return &out, nil
}

func (s *MemoryStore) GetActiveDraftByLeague(ctx context.Context, leagueID uuid.UUID) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.drafts {
		if d.LeagueID == leagueID && d.Status != models.DraftStatusCompleted {
			out := d
			return &out, nil
		}
	}
	return nil, ErrDraftNotFound
}

func (s *MemoryStore) UpdateDraft(ctx context.Context, draft *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[draft.ID]; !ok {
		return ErrDraftNotFound
	}
	updated := *draft
	updated.UpdatedAt = time.Now()
	s.drafts[draft.ID] = updated
	return nil
}

func (s *MemoryStore) CountPicks(ctx context.Context, draftID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.picks[draftID]), nil
}

func (s *MemoryStore) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	picks := make([]models.DraftPick, len(s.picks[draftID]))
	copy(picks, s.picks[draftID])
	sort.Slice(picks, func(i, j int) bool { return picks[i].OverallPick < picks[j].OverallPick })
	return picks, nil
}

func (s *MemoryStore) AppendPick(ctx context.Context, pick models.DraftPick, entry models.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(pick, entry)
}

func (s *MemoryStore) AppendPicksBatch(ctx context.Context, picks []models.DraftPick, entries []models.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// All-or-nothing, like the SQL transaction.
	for i, pick := range picks {
		for _, existing := range s.picks[pick.DraftID] {
			if existing.OverallPick == pick.OverallPick {
				return ErrPickConflict
			}
		}
		for _, later := range picks[i+1:] {
			if later.DraftID == pick.DraftID && later.OverallPick == pick.OverallPick {
				return ErrPickConflict
			}
		}
	}
	for i, pick := range picks {
		if err := s.appendLocked(pick, entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) appendLocked(pick models.DraftPick, entry models.RosterEntry) error {
	for _, existing := range s.picks[pick.DraftID] {
		if existing.OverallPick == pick.OverallPick {
			return ErrPickConflict
		}
	}
	s.picks[pick.DraftID] = append(s.picks[pick.DraftID], pick)
	s.rosters[pick.DraftID] = append(s.rosters[pick.DraftID], entry)
	return nil
}

func (s *MemoryStore) DeletePicks(ctx context.Context, draftID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.picks[draftID])
	delete(s.picks, draftID)
	delete(s.rosters, draftID)
	return n, nil
}

func (s *MemoryStore) CreatePlayer(ctx context.Context, player models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	return nil
}

func (s *MemoryStore) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[uuid.UUID]bool, len(s.picks[draftID]))
	for _, pick := range s.picks[draftID] {
		taken[pick.PlayerID] = true
	}

	var available []models.Player
	for _, p := range s.players {
		if !taken[p.ID] {
			available = append(available, p)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].FullName < available[j].FullName })
	return available, nil
}

func (s *MemoryStore) ListRosterByTeam(ctx context.Context, draftID, teamID uuid.UUID) ([]models.RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []models.RosterEntry
	for _, e := range s.rosters[draftID] {
		if e.TeamID == teamID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
