package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizroom/internal/domain"
	"quizroom/internal/transport/ws"
)

var (
	// ErrNotConnected is returned when sending without a live connection
	ErrNotConnected = errors.New("not connected")

	// ErrRoomGone is returned by a Dialer when the server no longer knows the room
	ErrRoomGone = errors.New("room no longer exists")
)

// Conn is the subset of *websocket.Conn the manager uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to the server
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket
type WebSocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer
func (d WebSocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %v", ErrRoomGone, err)
		}
		return nil, err
	}
	return conn, nil
}

// Event is one decoded server event
type Event struct {
	Type      domain.EventType `json:"type"`
	RoomCode  string           `json:"roomCode"`
	Payload   json.RawMessage  `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// Options configures a Manager
type Options struct {
	URL         string // WebSocket endpoint, e.g. ws://localhost:8080/ws
	Store       Store
	Dialer      Dialer
	Clock       clockwork.Clock
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Logger      zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = &MemoryStore{}
	}
	if o.Dialer == nil {
		o.Dialer = WebSocketDialer{}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// Manager keeps one connection to the server alive. It presents stored
// credentials on every dial, rejoins the last room after each connect and
// backs off between failed dials.
type Manager struct {
	opts   Options
	logger zerolog.Logger

	mu            sync.Mutex
	state         State
	conn          Conn
	everConnected bool

	writeMu sync.Mutex

	events    chan Event
	states    chan State
	retry     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager. Call Start to connect.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "connection").Logger(),
		state:  StateDisconnected,
		events: make(chan Event, 64),
		states: make(chan State, 16),
		retry:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start runs the connection loop until ctx is cancelled or Close is called
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)
	go func() {
		select {
		case <-ctx.Done():
			m.Close()
		case <-m.done:
		}
	}()
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Events delivers every server event in arrival order
func (m *Manager) Events() <-chan Event {
	return m.events
}

// States delivers state changes. Changes are dropped if nobody reads them.
func (m *Manager) States() <-chan State {
	return m.states
}

// Retry leaves a terminal state and dials again
func (m *Manager) Retry() {
	select {
	case m.retry <- struct{}{}:
	default:
	}
}

// Close stops the manager and closes the connection
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send writes one message to the server
func (m *Manager) Send(msgType ws.MessageType, payload interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = data
	}
	data, err := json.Marshal(ws.ClientMessage{Type: msgType, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// JoinRoom remembers the room and joins it now if connected, otherwise on the next connect
func (m *Manager) JoinRoom(roomCode, name string, spectator bool) error {
	session, err := m.opts.Store.Load()
	if err != nil {
		return err
	}
	session.LastRoomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	session.DisplayName = name
	session.Spectator = spectator
	if err := m.opts.Store.Save(session); err != nil {
		return err
	}

	if err := m.sendJoin(session); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// CreateRoom asks the server for a new room seated by this connection
func (m *Manager) CreateRoom(payload ws.CreateRoomPayload) error {
	return m.Send(ws.MsgCreateRoom, payload)
}

func (m *Manager) run(ctx context.Context) {
	defer m.setState(StateDisconnected)

	attempt := 0
	for {
		if m.stopped(ctx) {
			return
		}

		if m.everConnected || attempt > 0 {
			m.setState(StateReconnecting)
		} else {
			m.setState(StateConnecting)
		}

		conn, err := m.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrRoomGone) {
				m.logger.Info().Err(err).Msg("stored room is gone, connecting without it")
				if m.forgetRoom() == nil {
					continue
				}
				// the room is still stored, so the next dial would hit the same wall
			}

			attempt++
			m.logger.Warn().Err(err).Int("attempt", attempt).Msg("dial failed")
			if attempt >= m.opts.MaxAttempts {
				if m.everConnected {
					m.setState(StateReconnectFailed)
				} else {
					m.setState(StateError)
				}
				if !m.waitRetry(ctx) {
					return
				}
				attempt = 0
				continue
			}

			if !m.sleep(ctx, Backoff(attempt, m.opts.BaseDelay, m.opts.MaxDelay)) {
				return
			}
			continue
		}

		attempt = 0
		if !m.setConn(conn) {
			conn.Close()
			return
		}
		m.everConnected = true
		m.setState(StateConnected)
		m.rejoin()

		kicked := m.readLoop(conn)
		m.setConn(nil)
		conn.Close()

		if kicked {
			m.setState(StateKicked)
			if !m.waitRetry(ctx) {
				return
			}
		}
	}
}

// dial connects presenting the stored identity and display name as credentials
func (m *Manager) dial(ctx context.Context) (Conn, error) {
	session, err := m.opts.Store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load session, dialing without it")
	}

	u, err := DialURL(m.opts.URL, session)
	if err != nil {
		return nil, err
	}
	return m.opts.Dialer.Dial(ctx, u)
}

// DialURL adds the session credentials to the endpoint query
func DialURL(endpoint string, session Session) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	q := u.Query()
	if session.DisplayName != "" {
		q.Set("name", session.DisplayName)
	}
	if session.LastRoomCode != "" {
		q.Set("roomCode", session.LastRoomCode)
		if id := session.PlayerID(session.LastRoomCode); id != "" {
			q.Set("playerId", id)
		}
		if session.Spectator {
			q.Set("spectator", strconv.FormatBool(true))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// rejoin re-announces room membership after every connect
func (m *Manager) rejoin() {
	session, err := m.opts.Store.Load()
	if err != nil || session.LastRoomCode == "" {
		return
	}
	if err := m.sendJoin(session); err != nil {
		m.logger.Warn().Err(err).Str("room_code", session.LastRoomCode).Msg("rejoin failed")
	}
}

func (m *Manager) sendJoin(session Session) error {
	return m.Send(ws.MsgJoinRoom, ws.JoinRoomPayload{
		RoomCode:  session.LastRoomCode,
		PlayerID:  session.PlayerID(session.LastRoomCode),
		Name:      session.DisplayName,
		Spectator: session.Spectator,
	})
}

// readLoop forwards events until the connection drops. It returns true when kicked.
func (m *Manager) readLoop(conn Conn) bool {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.logger.Debug().Err(err).Msg("connection lost")
			return false
		}

		for _, line := range bytes.Split(data, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				m.logger.Warn().Err(err).Msg("malformed server event")
				continue
			}

			m.handleEvent(ev)
			if !m.deliver(ev) {
				return false
			}
			if ev.Type == domain.EventKicked {
				return true
			}
		}
	}
}

// handleEvent keeps the stored session in step with the server
func (m *Manager) handleEvent(ev Event) {
	switch ev.Type {
	case domain.EventIdentity:
		var id domain.IdentityPayload
		if err := json.Unmarshal(ev.Payload, &id); err != nil || id.RoomCode == "" {
			return
		}
		m.updateSession(func(s Session) Session {
			s.LastRoomCode = id.RoomCode
			if s.DisplayName == "" {
				s.DisplayName = id.Name
			}
			return s.WithPlayerID(id.RoomCode, id.PersistentPlayerID)
		})
	case domain.EventKicked:
		m.updateSession(func(s Session) Session {
			room := ev.RoomCode
			if room == "" {
				room = s.LastRoomCode
			}
			s = s.WithPlayerID(room, "")
			if strings.EqualFold(s.LastRoomCode, room) {
				s.LastRoomCode = ""
			}
			return s
		})
	}
}

func (m *Manager) forgetRoom() error {
	return m.updateSession(func(s Session) Session {
		s = s.WithPlayerID(s.LastRoomCode, "")
		s.LastRoomCode = ""
		return s
	})
}

func (m *Manager) updateSession(fn func(Session) Session) error {
	session, err := m.opts.Store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to load session")
	}
	if err := m.opts.Store.Save(fn(session)); err != nil {
		m.logger.Warn().Err(err).Msg("failed to save session")
		return err
	}
	return nil
}

func (m *Manager) deliver(ev Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// setConn publishes conn for Send and Close. It refuses once the manager is closed.
func (m *Manager) setConn(conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		m.conn = nil
		return false
	default:
	}
	m.conn = conn
	return true
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Debug().Str("state", string(state)).Msg("connection state changed")
	select {
	case m.states <- state:
	default:
	}
}

func (m *Manager) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-m.opts.Clock.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	}
}

func (m *Manager) waitRetry(ctx context.Context) bool {
	select {
	case <-m.retry:
		return true
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	}
}
