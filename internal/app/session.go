package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizroom/internal/domain"
)

const (
	eventQueueSize = 256
	inboxSize      = 64

	// DefaultPublishTimeout bounds one recap publish
	DefaultPublishTimeout = 5 * time.Second
)

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(event *domain.GameEvent) error
	ConnectionID() string
	Close() error
}

// RecapPublisher receives the recap of every concluded room
type RecapPublisher interface {
	PublishRecap(ctx context.Context, recap *domain.Recap) error
}

// SessionOptions configures a RoomSession
type SessionOptions struct {
	Clock          clockwork.Clock
	GracePeriod    time.Duration
	NewID          domain.IDGenerator
	Publisher      RecapPublisher
	PublishTimeout time.Duration
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	return o
}

// SessionStats is a summary of the room readable outside its event loop
type SessionStats struct {
	Players      int
	Connected    int
	Started      bool
	Concluded    bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// RoomSession owns one room. Every mutation runs on a single event loop, and
// outbound events are fanned out to registered clients from a second loop.
type RoomSession struct {
	room           *domain.Room
	code           string
	timer          *RoundTimer
	clock          clockwork.Clock
	newID          domain.IDGenerator
	publisher      RecapPublisher
	publishTimeout time.Duration
	logger         zerolog.Logger

	clients   map[string]ClientConnection // connection id -> client
	clientsMu sync.RWMutex

	stats   SessionStats
	statsMu sync.RWMutex

	inbox     chan func()
	events    chan *domain.GameEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewRoomSession creates a session for room and starts its loops
func NewRoomSession(room *domain.Room, opts SessionOptions, logger zerolog.Logger) *RoomSession {
	opts = opts.withDefaults()

	s := &RoomSession{
		room:           room,
		code:           room.Code,
		clock:          opts.Clock,
		newID:          opts.NewID,
		publisher:      opts.Publisher,
		publishTimeout: opts.PublishTimeout,
		logger:         logger.With().Str("room_code", room.Code).Logger(),
		clients:        make(map[string]ClientConnection),
		inbox:          make(chan func(), inboxSize),
		events:         make(chan *domain.GameEvent, eventQueueSize),
		done:           make(chan struct{}),
	}
	s.timer = NewRoundTimer(opts.Clock, opts.GracePeriod, s.enqueue, TimerHooks{
		OnTick:   s.onTimerTick,
		OnTimeUp: s.onTimeUp,
		OnExpire: s.onTimerExpired,
	})
	s.stats = SessionStats{CreatedAt: room.CreatedAt, LastActivity: room.CreatedAt}

	go s.run()
	go s.eventLoop()

	return s
}

// Code returns the room code
func (s *RoomSession) Code() string {
	return s.code
}

// Done is closed when the session shuts down
func (s *RoomSession) Done() <-chan struct{} {
	return s.done
}

// Stats returns the latest room summary
func (s *RoomSession) Stats() SessionStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// RegisterClient registers a client connection
func (s *RoomSession) RegisterClient(client ClientConnection) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ConnectionID()] = client
}

// UnregisterClient removes a client connection
func (s *RoomSession) UnregisterClient(connID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, connID)
}

// ClientCount returns the number of registered connections
func (s *RoomSession) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Join binds a connection to a seat in the room
func (s *RoomSession) Join(req domain.JoinRequest) (domain.BindResult, error) {
	var res domain.BindResult
	err := s.do(func(now time.Time) error {
		if req.Avatar == "" {
			req.Avatar = RandomAvatarExcluding(s.room.UsedAvatars())
		}

		var err error
		res, err = s.room.Bind(req, s.newID, now)
		if err != nil {
			return err
		}

		s.queueEvent(domain.NewIdentityEvent(s.code, req.ConnectionID, res))
		if res.StaleConnID != "" {
			s.dropClient(res.StaleConnID)
		}
		if res.Reconnected && !res.Duplicate {
			s.queueEvent(domain.NewPresenceEvent(s.code, true, res.PublicID, res.Name, res.Role == domain.RoleGameMaster))
		}

		s.logger.Info().
			Str("connection_id", req.ConnectionID).
			Str("player_id", res.PublicID).
			Str("role", res.Role.String()).
			Bool("reconnected", res.Reconnected).
			Msg("connection bound")

		s.broadcastSnapshot(now)
		return nil
	})
	return res, err
}

// Disconnect marks the participant on connID inactive
func (s *RoomSession) Disconnect(connID string) error {
	return s.do(func(now time.Time) error {
		res, ok := s.room.Disconnect(connID, now)
		if !ok {
			return nil
		}

		s.queueEvent(domain.NewPresenceEvent(s.code, false, res.PublicID, res.Name, res.Role == domain.RoleGameMaster))
		s.logger.Info().Str("connection_id", connID).Str("player_id", res.PublicID).Msg("connection lost")
		s.broadcastSnapshot(now)
		return nil
	})
}

// StartGame opens the first round (game master only)
func (s *RoomSession) StartGame(connID string) error {
	return s.do(func(now time.Time) error {
		if err := s.room.Start(connID, now); err != nil {
			return err
		}
		s.startRoundTimer()
		s.broadcastSnapshot(now)
		return nil
	})
}

// SubmitAnswer records an answer. Stale submissions are ignored without error.
func (s *RoomSession) SubmitAnswer(connID string, round int, text string, hasDrawing bool, drawing string) error {
	return s.do(func(now time.Time) error {
		accepted, err := s.room.SubmitAnswer(connID, round, text, hasDrawing, drawing, now)
		if err != nil {
			return err
		}
		if !accepted {
			s.logger.Debug().Str("connection_id", connID).Int("round", round).Msg("stale submission ignored")
			return nil
		}

		if s.room.AllAnswered() {
			s.timer.Cancel()
			s.room.FinalizeRound(now)
		}
		s.broadcastSnapshot(now)
		return nil
	})
}

// UpdateBoard relays a live board update. Out-of-round updates are dropped.
func (s *RoomSession) UpdateBoard(connID string, round int, data string) error {
	return s.do(func(now time.Time) error {
		board, ok := s.room.UpdateBoard(connID, round, data, now)
		if !ok {
			return nil
		}

		playerID := s.room.GameMasterPublicID
		if p, found := s.room.Players[board.PersistentID]; found {
			playerID = p.ID
		}
		s.queueEvent(domain.NewBoardUpdatedEvent(s.code, playerID, board))
		return nil
	})
}

// CastVote records a community vote
func (s *RoomSession) CastVote(connID, targetID string) error {
	return s.do(func(now time.Time) error {
		if err := s.room.CastVote(connID, targetID); err != nil {
			return err
		}
		s.broadcastSnapshot(now)
		return nil
	})
}

// Evaluate marks an answer correct or incorrect (game master only)
func (s *RoomSession) Evaluate(connID, targetID string, correct bool) error {
	return s.do(func(now time.Time) error {
		if err := s.room.Evaluate(connID, targetID, correct); err != nil {
			return err
		}
		s.broadcastSnapshot(now)
		return nil
	})
}

// NextRound cancels the timer and advances to the next question, concluding
// after the last one (game master only)
func (s *RoomSession) NextRound(connID string) error {
	return s.do(func(now time.Time) error {
		if err := s.room.RequireGameMaster(connID); err != nil {
			return err
		}

		s.timer.Cancel()
		concluded, err := s.room.Advance(connID, now)
		if err != nil {
			return err
		}
		if concluded {
			s.finishGame(now)
			return nil
		}

		s.startRoundTimer()
		s.broadcastSnapshot(now)
		return nil
	})
}

// EndRoundEarly closes submissions immediately without a grace period (game master only)
func (s *RoomSession) EndRoundEarly(connID string) error {
	return s.do(func(now time.Time) error {
		if err := s.room.RequireGameMaster(connID); err != nil {
			return err
		}
		if !s.room.Started {
			return domain.ErrGameNotStarted
		}
		if s.room.IsConcluded {
			return domain.ErrGameConcluded
		}

		s.timer.Cancel()
		filled := s.room.FinalizeRound(now)
		s.logger.Info().Int("round", s.room.CurrentQuestionIndex).Int("auto_submitted", len(filled)).Msg("round ended early")
		s.broadcastSnapshot(now)
		return nil
	})
}

// Kick removes a player and notifies its connection (game master only)
func (s *RoomSession) Kick(connID, targetID, reason string) error {
	return s.do(func(now time.Time) error {
		removed, err := s.room.Kick(connID, targetID)
		if err != nil {
			return err
		}

		s.queueEvent(domain.NewKickedEvent(s.code, removed.ConnectionID, reason))
		s.logger.Info().Str("player_id", removed.ID).Str("connection_id", removed.ConnectionID).Msg("player kicked")

		if s.room.Phase() == domain.PhaseAnswering && s.room.AllAnswered() {
			s.timer.Cancel()
			s.room.FinalizeRound(now)
		}
		s.broadcastSnapshot(now)
		return nil
	})
}

// Conclude ends the game and publishes the recap. Concluding twice is a no-op.
func (s *RoomSession) Conclude(connID string) error {
	return s.do(func(now time.Time) error {
		if err := s.room.RequireGameMaster(connID); err != nil {
			return err
		}
		s.finishGame(now)
		return nil
	})
}

// RequireGameMaster returns ErrNotGameMaster unless connID holds the GM seat
func (s *RoomSession) RequireGameMaster(connID string) error {
	return s.do(func(time.Time) error {
		return s.room.RequireGameMaster(connID)
	})
}

// Snapshot returns the current client view of the room
func (s *RoomSession) Snapshot() (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.do(func(now time.Time) error {
		snap = domain.BuildSnapshot(s.room, now)
		return nil
	})
	return snap, err
}

// Recap returns the recap once the room has concluded
func (s *RoomSession) Recap() (*domain.Recap, bool) {
	var (
		recap *domain.Recap
		ok    bool
	)
	_ = s.do(func(time.Time) error {
		recap, ok = s.room.Recap()
		return nil
	})
	return recap, ok
}

// TimerStats returns the round timer's lifecycle counters
func (s *RoomSession) TimerStats() TimerStats {
	var stats TimerStats
	_ = s.do(func(time.Time) error {
		stats = s.timer.Stats()
		return nil
	})
	return stats
}

func (s *RoomSession) startRoundTimer() {
	if s.timer.Start(s.room.CurrentQuestionIndex, s.room.Settings.TimeLimit) {
		s.logger.Debug().Int("round", s.room.CurrentQuestionIndex).Stringer("limit", s.room.Settings.TimeLimit).Msg("round timer started")
	}
}

func (s *RoomSession) onTimerTick(round, remaining int) {
	s.queueEvent(domain.NewTimerTickEvent(s.code, round, remaining))
}

func (s *RoomSession) onTimeUp(round int) {
	s.queueEvent(domain.NewTimeUpEvent(s.code, round, s.timer.Grace()))
}

func (s *RoomSession) onTimerExpired(round int) {
	if round != s.room.CurrentQuestionIndex {
		return
	}
	now := s.clock.Now()
	filled := s.room.FinalizeRound(now)
	s.logger.Info().Int("round", round).Int("auto_submitted", len(filled)).Msg("round finalized")
	s.broadcastSnapshot(now)
}

func (s *RoomSession) finishGame(now time.Time) {
	s.timer.Cancel()
	if !s.room.Conclude(now) {
		return
	}

	s.queueEvent(domain.NewGameOverEvent(s.code))
	recap, _ := s.room.Recap()
	s.queueEvent(domain.NewRecapEvent(recap))
	s.broadcastSnapshot(now)
	s.logger.Info().Int("players", len(recap.Players)).Int("rounds", len(recap.Rounds)).Msg("game concluded")

	s.publishRecap(recap)
}

func (s *RoomSession) publishRecap(recap *domain.Recap) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.publisher.PublishRecap(ctx, recap); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish recap")
		}
	}()
}

func (s *RoomSession) broadcastSnapshot(now time.Time) {
	s.queueEvent(domain.NewSnapshotEvent(domain.BuildSnapshot(s.room, now)))
}

// dropClient closes a connection that was replaced by a reconnect
func (s *RoomSession) dropClient(connID string) {
	s.clientsMu.Lock()
	client, ok := s.clients[connID]
	delete(s.clients, connID)
	s.clientsMu.Unlock()

	if ok {
		client.Close()
	}
}

// do runs fn on the event loop and waits for its result
func (s *RoomSession) do(fn func(now time.Time) error) error {
	result := make(chan error, 1)
	cmd := func() {
		err := domain.ErrInternal
		defer func() {
			s.refreshStats()
			result <- err
		}()
		err = fn(s.clock.Now())
	}

	select {
	case <-s.done:
		return domain.ErrRoomClosed
	default:
	}

	select {
	case s.inbox <- cmd:
	case <-s.done:
		return domain.ErrRoomClosed
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		return domain.ErrRoomClosed
	}
}

// enqueue posts fn to the event loop without waiting for it
func (s *RoomSession) enqueue(fn func(), abort <-chan struct{}) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-abort:
		return false
	case <-s.done:
		return false
	}
}

// run is the room's single writer
func (s *RoomSession) run() {
	for {
		select {
		case <-s.done:
			s.timer.Cancel()
			return
		case fn := <-s.inbox:
			s.exec(fn)
		}
	}
}

func (s *RoomSession) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Err(fmt.Errorf("%w: %v", domain.ErrInternal, rec)).Msg("room action panicked")
		}
		s.refreshStats()
	}()
	fn()
}

func (s *RoomSession) refreshStats() {
	stats := SessionStats{
		Players:      len(s.room.Players),
		Connected:    s.room.ConnectedCount(),
		Started:      s.room.Started,
		Concluded:    s.room.IsConcluded,
		CreatedAt:    s.room.CreatedAt,
		LastActivity: s.clock.Now(),
	}

	s.statsMu.Lock()
	s.stats = stats
	s.statsMu.Unlock()
}

// queueEvent adds an event to the broadcast queue
func (s *RoomSession) queueEvent(event *domain.GameEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("event queue full, dropping event")
	}
}

// eventLoop processes events and broadcasts to clients
func (s *RoomSession) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.broadcastEvent(event)
		}
	}
}

// broadcastEvent sends an event to appropriate clients
func (s *RoomSession) broadcastEvent(event *domain.GameEvent) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	// If connection-specific, send only to that connection
	if event.IsTargeted() {
		if client, ok := s.clients[event.ConnectionID]; ok {
			if err := client.Send(event); err != nil {
				s.logger.Debug().Err(err).Str("connection_id", event.ConnectionID).Str("event_type", string(event.Type)).Msg("failed to send to client")
			}
		}
		return
	}

	// Broadcast to all clients
	for connID, client := range s.clients {
		if err := client.Send(event); err != nil {
			s.logger.Debug().Err(err).Str("connection_id", connID).Str("event_type", string(event.Type)).Msg("failed to send to client")
		}
	}
}

// Close shuts down the session
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	// Close all client connections
	s.clientsMu.Lock()
	clients := s.clients
	s.clients = make(map[string]ClientConnection)
	s.clientsMu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
