package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/events"
)

// Broadcaster receives events the consumer pulled off the stream;
// *ConnectionManager satisfies it.
type Broadcaster interface {
	BroadcastToDraft(draftID uuid.UUID, ev events.Event)
	SendToTeam(draftID, teamID uuid.UUID, ev events.Event)
}

type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_EVENTS",
		ConsumerName:  "draft-gateway",
		SubjectFilter: "draft.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer reads the draft event stream from JetStream and hands each
// envelope to the broadcaster.
type EventConsumer struct {
	broadcaster Broadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      ConsumerConfig
}

func NewEventConsumer(b Broadcaster, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{broadcaster: b, nc: nc, js: js, config: config}
	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
			Name:          ec.config.ConsumerName,
			Durable:       ec.config.ConsumerName,
			Description:   "Draft gateway WebSocket consumer",
			FilterSubject: ec.config.SubjectFilter,
			DeliverPolicy: jetstream.DeliverNewPolicy,
			AckPolicy:     jetstream.AckExplicitPolicy,
			MaxDeliver:    ec.config.MaxDeliver,
			AckWait:       ec.config.AckWait,
			MaxAckPending: ec.config.MaxAckPending,
			ReplayPolicy:  jetstream.ReplayInstantPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("created JetStream consumer")
	}

	ec.consumer = consumer
	return nil
}

// Start consumes until the context is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("event consumer started")

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := ec.dispatch(msg.Data()); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("process message")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("NAK message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return nil
}

// dispatch routes one stream message to the draft's connections. PickRejected
// goes only to the team it concerns; everything else is broadcast.
func (ec *EventConsumer) dispatch(data []byte) error {
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	draftID, err := uuid.Parse(ev.DraftID)
	if err != nil {
		return fmt.Errorf("parse draft ID %q: %w", ev.DraftID, err)
	}

	if ev.Type == events.TypePickRejected {
		var payload events.PickRejectedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return fmt.Errorf("unmarshal PickRejected payload: %w", err)
		}
		teamID, err := uuid.Parse(payload.TeamID)
		if err != nil {
			return fmt.Errorf("parse rejected team ID %q: %w", payload.TeamID, err)
		}
		ec.broadcaster.SendToTeam(draftID, teamID, ev)
		return nil
	}

	ec.broadcaster.BroadcastToDraft(draftID, ev)
	return nil
}

func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
