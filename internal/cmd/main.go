// The draftroom API service: hosts the draft engine and its HTTP command
// surface. Events flow out through the transactional outbox (relayed to NATS
// by the outbox cmd) except timer ticks, which publish live.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/api"
	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/engine"
	"github.com/mcdev12/draftroom/internal/draft/outbox"
	"github.com/mcdev12/draftroom/internal/draft/store"
	"github.com/mcdev12/draftroom/internal/pool"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "draftroom.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := setupDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("setup database")
	}
	defer db.Close()

	// Live publisher for timer ticks; durable events go through the outbox
	// table and are relayed by the outbox process.
	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = getEnv("NATS_URL", jsCfg.URL)
	jsCfg.StreamName = config.Nats.StreamName
	jsCfg.SubjectPrefix = config.Nats.SubjectPrefix
	livePublisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer livePublisher.Close()

	draftStore := store.NewPostgresStore(db)
	publisher := outbox.NewRouter(outbox.NewStore(db), livePublisher)

	strategy := buildStrategy(config, draftStore)
	draftEngine := engine.New(draftStore, strategy, publisher, clockwork.NewRealClock())

	handler := api.NewHandler(draftEngine, config.Draft.DefaultTimePerPickSec)
	server := setupServer(handler)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func buildStrategy(config *Config, st store.Store) autopick.Strategy {
	provider := pool.NewStoreProvider(st)
	switch config.Draft.AutopickStrategy {
	case "random":
		return autopick.NewRandomStrategy(provider)
	case "position_need", "":
		return autopick.NewPositionNeedStrategy(provider, st)
	default:
		log.Warn().
			Str("strategy", config.Draft.AutopickStrategy).
			Msg("unknown autopick strategy, using random")
		return autopick.NewRandomStrategy(provider)
	}
}
