package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"quizroom/internal/domain"
)

// EventRoomConcluded is the event type of a published recap
const EventRoomConcluded = "room.concluded"

// NopPublisher drops every recap. Used when no event feed is configured.
type NopPublisher struct{}

// PublishRecap does nothing
func (NopPublisher) PublishRecap(context.Context, *domain.Recap) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }

// JetStreamConfig configures the recap event feed
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	Replicas        int
	DuplicateWindow time.Duration
}

// DefaultJetStreamConfig returns a config for a local single-node server
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "QUIZROOM_EVENTS",
		SubjectPrefix:   "quizroom.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Envelope wraps every published event
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomCode  string          `json:"roomCode"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// JetStreamPublisher publishes concluded-room recaps to a JetStream stream
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
	logger zerolog.Logger
}

// NewJetStreamPublisher connects to NATS and makes sure the stream exists
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig, logger zerolog.Logger) (*JetStreamPublisher, error) {
	logger = logger.With().Str("component", "publisher").Logger()

	opts := []nats.Option{
		nats.Name("quizroom"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg, logger: logger}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := StreamConfig(p.config)
	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return err
	}
	p.logger.Info().Str("stream", sc.Name).Strs("subjects", sc.Subjects).Msg("JetStream stream ready")
	return nil
}

// StreamConfig is the stream definition derived from cfg
func StreamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Concluded quiz room recaps",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     -1,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

// Subject returns the subject an event type is published on
func Subject(prefix, eventType string) string {
	return prefix + "." + eventType
}

// RecapMsgID is the deduplication id of a recap. A room concludes once, so
// code and end time identify it.
func RecapMsgID(recap *domain.Recap) string {
	return fmt.Sprintf("recap-%s-%d", recap.RoomCode, recap.EndedAt.UnixNano())
}

// NewRecapMessage builds the NATS message for recap
func NewRecapMessage(prefix string, recap *domain.Recap) (*nats.Msg, error) {
	payload, err := json.Marshal(recap)
	if err != nil {
		return nil, fmt.Errorf("marshal recap: %w", err)
	}

	env := Envelope{
		EventID:   uuid.NewString(),
		EventType: EventRoomConcluded,
		RoomCode:  recap.RoomCode,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, EventRoomConcluded),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{EventRoomConcluded},
			"Event-ID":   []string{env.EventID},
			"Room-Code":  []string{recap.RoomCode},
		},
	}, nil
}

// PublishRecap publishes a room.concluded event carrying recap
func (p *JetStreamPublisher) PublishRecap(ctx context.Context, recap *domain.Recap) error {
	msg, err := NewRecapMessage(p.config.SubjectPrefix, recap)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(RecapMsgID(recap)))
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}

	p.logger.Debug().
		Str("room_code", recap.RoomCode).
		Str("stream", ack.Stream).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("recap published")
	return nil
}

// Close drains the NATS connection
func (p *JetStreamPublisher) Close() error {
	return p.nc.Drain()
}
