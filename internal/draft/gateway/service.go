package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the connection manager, the JetStream consumer and the
// HTTP handlers into one startable unit.
type Service struct {
	manager       *ConnectionManager
	wsHandler     *WebSocketHandler
	eventConsumer *EventConsumer
	stateHandler  *StateHandler
}

type Config struct {
	ConnectionConfig ConnectionConfig
	ConsumerConfig   ConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ConsumerConfig:   DefaultConsumerConfig(),
	}
}

func NewService(config Config, provider StateProvider, memberships Memberships) (*Service, error) {
	manager := NewConnectionManager(config.ConnectionConfig)

	consumer, err := NewEventConsumer(manager, config.ConsumerConfig)
	if err != nil {
		return nil, fmt.Errorf("create event consumer: %w", err)
	}

	return &Service{
		manager:       manager,
		wsHandler:     NewWebSocketHandler(manager, memberships),
		eventConsumer: consumer,
		stateHandler:  NewStateHandler(provider),
	}, nil
}

// Start runs the fan-out loop and the stream consumer until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("draft gateway service starting")

	go s.manager.Start(ctx)
	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Service) Stop() error {
	if err := s.eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("stop event consumer")
	}
	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes mounts the gateway endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/draft", s.wsHandler.HandleDraftConnection)
	mux.HandleFunc("/ws/stats", s.wsHandler.HandleConnectionStats)
	mux.HandleFunc("/api/drafts/", func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > len("/api/drafts/") && r.URL.Path[len(r.URL.Path)-6:] == "/state" {
			s.stateHandler.HandleGetDraftState(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func (s *Service) Stats() Stats {
	return s.manager.Stats()
}
