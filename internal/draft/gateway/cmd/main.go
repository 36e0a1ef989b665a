// The draft gateway process: consumes the JetStream event stream and fans it
// out to WebSocket clients, and serves the reconnect state endpoint.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/dbconfig"
	"github.com/mcdev12/draftroom/internal/draft/gateway"
	"github.com/mcdev12/draftroom/internal/draft/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	dbCfg := dbconfig.FromEnv()
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", natsURL).
		Str("port", port).
		Msg("starting draft gateway")

	draftStore := store.NewPostgresStore(db)

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.ConsumerConfig.URL = natsURL

	service, err := gateway.NewService(
		gatewayCfg,
		gateway.NewStoreStateProvider(draftStore),
		storeMemberships{draftStore},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("create gateway service")
	}

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := service.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("draft gateway shutdown complete")
}

// storeMemberships answers membership checks straight off the draft record.
type storeMemberships struct {
	store store.Store
}

func (m storeMemberships) IsMember(ctx context.Context, draftID, teamID uuid.UUID) (bool, error) {
	draft, err := m.store.GetDraft(ctx, draftID)
	if err != nil {
		return false, err
	}
	for _, id := range draft.Settings.DraftOrder {
		if id == teamID {
			return true, nil
		}
	}
	return false, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
