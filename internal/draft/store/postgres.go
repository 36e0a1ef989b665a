package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/sqlutil"
)

// PostgresStore implements Store against Postgres via database/sql.
//
// The pick-number claim relies on the UNIQUE (draft_id, overall_pick)
// constraint on draft_picks; unique violations surface as ErrPickConflict.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const draftColumns = `id, league_id, status, settings, current_round, current_pick_index, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	settings, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO drafts (id, league_id, status, settings, current_round, current_pick_index)
		VALUES ($1, $2, $3, $4, 1, 0)
		RETURNING `+draftColumns,
		req.ID, req.LeagueID, models.DraftStatusNotStarted, settings,
	)
	draft, err := scanDraft(row)
	if err != nil {
		// Partial unique index on (league_id) WHERE status <> 'COMPLETED'
		// enforces one live draft per league.
		if isUniqueViolation(err) {
			return nil, ErrActiveDraftExists
		}
		return nil, fmt.Errorf("create draft: %w", err)
	}
	return draft, nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id)
	draft, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return draft, nil
}

func (s *PostgresStore) GetActiveDraftByLeague(ctx context.Context, leagueID uuid.UUID) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+` FROM drafts
		WHERE league_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1`,
		leagueID, models.DraftStatusCompleted,
	)
	draft, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("get active draft by league: %w", err)
	}
	return draft, nil
}

func (s *PostgresStore) UpdateDraft(ctx context.Context, draft *models.Draft) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts
		SET status = $2,
		    current_round = $3,
		    current_pick_index = $4,
		    started_at = $5,
		    completed_at = $6,
		    updated_at = NOW()
		WHERE id = $1`,
		draft.ID, draft.Status, draft.CurrentRound, draft.CurrentPickIndex,
		nullTime(draft.StartedAt), nullTime(draft.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func (s *PostgresStore) CountPicks(ctx context.Context, draftID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM draft_picks WHERE draft_id = $1`, draftID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count picks: %w", err)
	}
	return n, nil
}

const pickColumns = `id, draft_id, team_id, player_id, player_name, position, pro_team, source_league, round, round_pick, overall_pick, auto_drafted, picked_at`

func (s *PostgresStore) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pickColumns+` FROM draft_picks
		WHERE draft_id = $1
		ORDER BY overall_pick`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.DraftPick
	for rows.Next() {
		var p models.DraftPick
		if err := rows.Scan(
			&p.ID, &p.DraftID, &p.TeamID, &p.PlayerID, &p.PlayerName,
			&p.Position, &p.ProTeam, &p.SourceLeague,
			&p.Round, &p.RoundPick, &p.OverallPick, &p.AutoDrafted, &p.PickedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

func (s *PostgresStore) AppendPick(ctx context.Context, pick models.DraftPick, entry models.RosterEntry) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertPick(ctx, tx, pick); err != nil {
			return err
		}
		return insertRosterEntry(ctx, tx, entry)
	})
}

func (s *PostgresStore) AppendPicksBatch(ctx context.Context, picks []models.DraftPick, entries []models.RosterEntry) error {
	if len(picks) != len(entries) {
		return fmt.Errorf("append picks batch: %d picks but %d roster entries", len(picks), len(entries))
	}
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		for i, pick := range picks {
			if err := insertPick(ctx, tx, pick); err != nil {
				return err
			}
			if err := insertRosterEntry(ctx, tx, entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertPick(ctx context.Context, tx *sql.Tx, p models.DraftPick) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO draft_picks (`+pickColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.DraftID, p.TeamID, p.PlayerID, p.PlayerName,
		p.Position, p.ProTeam, p.SourceLeague,
		p.Round, p.RoundPick, p.OverallPick, p.AutoDrafted, p.PickedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPickConflict
		}
		return fmt.Errorf("insert pick: %w", err)
	}
	return nil
}

func insertRosterEntry(ctx context.Context, tx *sql.Tx, e models.RosterEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO roster_entries (id, team_id, draft_id, player_id, player_name, position, source_league, acquisition_type, acquired_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TeamID, e.DraftID, e.PlayerID, e.PlayerName,
		e.Position, e.SourceLeague, e.AcquisitionType, e.AcquiredAt,
		pqtype.NullRawMessage{RawMessage: e.Metadata, Valid: len(e.Metadata) > 0},
	)
	if err != nil {
		return fmt.Errorf("insert roster entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePicks(ctx context.Context, draftID uuid.UUID) (int, error) {
	var deleted int
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM roster_entries WHERE draft_id = $1`, draftID,
		); err != nil {
			return fmt.Errorf("delete roster entries: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM draft_picks WHERE draft_id = $1`, draftID,
		)
		if err != nil {
			return fmt.Errorf("delete picks: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete picks rows affected: %w", err)
		}
		deleted = int(n)
		return nil
	})
	return deleted, err
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, player models.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, full_name, position, pro_team, source_league)
		VALUES ($1, $2, $3, $4, $5)`,
		player.ID, player.FullName, player.Position, player.ProTeam, player.SourceLeague,
	)
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.full_name, p.position, p.pro_team, p.source_league, p.created_at
		FROM players p
		WHERE p.id NOT IN (
			SELECT dp.player_id FROM draft_picks dp WHERE dp.draft_id = $1
		)
		ORDER BY p.full_name`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("list available players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.FullName, &p.Position, &p.ProTeam, &p.SourceLeague, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) ListRosterByTeam(ctx context.Context, draftID, teamID uuid.UUID) ([]models.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, draft_id, player_id, player_name, position, source_league, acquisition_type, acquired_at, metadata
		FROM roster_entries
		WHERE draft_id = $1 AND team_id = $2
		ORDER BY acquired_at`,
		draftID, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster by team: %w", err)
	}
	defer rows.Close()

	var entries []models.RosterEntry
	for rows.Next() {
		var e models.RosterEntry
		var metadata pqtype.NullRawMessage
		if err := rows.Scan(
			&e.ID, &e.TeamID, &e.DraftID, &e.PlayerID, &e.PlayerName,
			&e.Position, &e.SourceLeague, &e.AcquisitionType, &e.AcquiredAt, &metadata,
		); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		if metadata.Valid {
			e.Metadata = metadata.RawMessage
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		d         models.Draft
		settings  []byte
		startedAt sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.LeagueID, &d.Status, &settings,
		&d.CurrentRound, &d.CurrentPickIndex,
		&startedAt, &completed, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &d.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	if completed.Valid {
		d.CompletedAt = &completed.Time
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
