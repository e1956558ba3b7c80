package app

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizroom/internal/domain"
)

const (
	// DefaultRoomCodeLength is the default length for room codes
	DefaultRoomCodeLength = 4

	// DefaultIdleTimeout is how long a room without connections is kept
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultCleanupInterval is how often idle rooms are swept
	DefaultCleanupInterval = time.Minute
)

// RoomCodeChars are characters used for room codes (no ambiguous chars)
const RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RegistryOptions configures a Registry
type RegistryOptions struct {
	RoomCodeLength  int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	Session         SessionOptions
}

// CreatedRoom is handed back to the room creator
type CreatedRoom struct {
	Session         *RoomSession
	Code            string
	GameMasterToken string
}

// Registry manages all active rooms. Instances are independent of each other.
type Registry struct {
	sessions map[string]*RoomSession
	mu       sync.RWMutex
	opts     RegistryOptions
	clock    clockwork.Clock
	logger   zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its cleanup loop
func NewRegistry(opts RegistryOptions, logger zerolog.Logger) *Registry {
	opts.Session = opts.Session.withDefaults()
	if opts.RoomCodeLength <= 0 {
		opts.RoomCodeLength = DefaultRoomCodeLength
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	r := &Registry{
		sessions: make(map[string]*RoomSession),
		opts:     opts,
		clock:    opts.Session.Clock,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Start cleanup goroutine
	ticker := r.clock.NewTicker(opts.CleanupInterval)
	go r.cleanupLoop(ticker)

	return r
}

// CreateRoom creates a room in the lobby and returns the GM seat token
func (r *Registry) CreateRoom(gmName string, settings domain.RoomSettings, questions []domain.Question) (*CreatedRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return nil, domain.ErrRoomClosed
	default:
	}

	// Generate unique room code
	var roomCode string
	for attempts := 0; attempts < 10; attempts++ {
		code, err := r.generateRoomCode()
		if err != nil {
			return nil, err
		}
		if _, exists := r.sessions[code]; !exists {
			roomCode = code
			break
		}
	}
	if roomCode == "" {
		return nil, fmt.Errorf("failed to generate unique room code")
	}

	newID := r.opts.Session.NewID
	token := newID()
	room := domain.NewRoom(roomCode, settings, questions, token, newID(), gmName, r.clock.Now())
	session := NewRoomSession(room, r.opts.Session, r.logger)
	r.sessions[roomCode] = session

	r.logger.Info().Str("room_code", roomCode).Int("questions", len(questions)).Msg("room created")

	return &CreatedRoom{Session: session, Code: roomCode, GameMasterToken: token}, nil
}

// Get returns a room by code, ignoring case and surrounding spaces
func (r *Registry) Get(roomCode string) (*RoomSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[NormalizeRoomCode(roomCode)]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	return session, nil
}

// Delete closes and removes a room
func (r *Registry) Delete(roomCode string) {
	roomCode = NormalizeRoomCode(roomCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[roomCode]; ok {
		session.Close()
		delete(r.sessions, roomCode)
		r.logger.Info().Str("room_code", roomCode).Msg("room deleted")
	}
}

// RoomCount returns the number of active rooms
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PlayerCount returns the total number of players across all rooms
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, session := range r.sessions {
		total += session.Stats().Players
	}
	return total
}

// Close shuts down the registry and all rooms
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		session.Close()
	}
	r.sessions = make(map[string]*RoomSession)
}

// NormalizeRoomCode returns the canonical form of a typed room code
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateRoomCode generates a random room code
func (r *Registry) generateRoomCode() (string, error) {
	b := make([]byte, r.opts.RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := make([]byte, r.opts.RoomCodeLength)
	for i := range code {
		code[i] = RoomCodeChars[int(b[i])%len(RoomCodeChars)]
	}

	return string(code), nil
}

// cleanupLoop periodically removes idle rooms
func (r *Registry) cleanupLoop(ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.Chan():
			r.cleanupIdleRooms()
		}
	}
}

// cleanupIdleRooms removes rooms with no live connections for longer than the idle timeout
func (r *Registry) cleanupIdleRooms() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	idle := make([]string, 0)

	for roomCode, session := range r.sessions {
		stats := session.Stats()
		if stats.Connected == 0 && session.ClientCount() == 0 && now.Sub(stats.LastActivity) > r.opts.IdleTimeout {
			idle = append(idle, roomCode)
		}
	}

	for _, roomCode := range idle {
		if session, ok := r.sessions[roomCode]; ok {
			session.Close()
			delete(r.sessions, roomCode)
			r.logger.Info().Str("room_code", roomCode).Msg("idle room cleaned up")
		}
	}
}
