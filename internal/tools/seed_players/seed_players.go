// Seeds the players table from a JSON pool file. Usage:
//
//	go run ./internal/tools/seed_players [players.json]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/draftroom/internal/dbconfig"
)

// Player mirrors the JSON pool layout; IDs are generated when absent so the
// same file can be re-seeded idempotently by name+league.
type Player struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	Position     string    `json:"position"`
	ProTeam      string    `json:"pro_team"`
	SourceLeague string    `json:"source_league"`
}

func main() {
	ctx := context.Background()

	path := "players.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var players []Player
	if err := json.Unmarshal(data, &players); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal players: %v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.FromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	total, inserted, skipped, errs := len(players), 0, 0, 0
	for _, p := range players {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		tag, err := pool.Exec(ctx, `
            INSERT INTO players (id, full_name, position, pro_team, source_league)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (full_name, source_league) DO NOTHING
        `, p.ID, p.FullName, p.Position, p.ProTeam, p.SourceLeague)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf("Players seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs)
}
