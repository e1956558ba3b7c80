package domain

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType represents the type of room event
type EventType string

const (
	EventIdentity             EventType = "identity"
	EventStateSnapshot        EventType = "state_snapshot"
	EventTimerTick            EventType = "timer_tick"
	EventTimeUp               EventType = "time_up"
	EventPlayerReconnected    EventType = "player_reconnected"
	EventPlayerDisconnected   EventType = "player_disconnected"
	EventBoardUpdated         EventType = "board_updated"
	EventGameOverPendingRecap EventType = "game_over_pending_recap"
	EventGameRecap            EventType = "game_recap"
	EventKicked               EventType = "kicked"
	EventError                EventType = "error"
	EventPong                 EventType = "pong"
)

// GameEvent is an outbound event. ConnectionID targets a single connection when set.
type GameEvent struct {
	Type         EventType   `json:"type"`
	RoomCode     string      `json:"roomCode,omitempty"`
	ConnectionID string      `json:"-"`
	Payload      interface{} `json:"payload,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`

	encodeOnce sync.Once
	encoded    []byte
	encodeErr  error
}

// NewEvent creates a new room-wide event
func NewEvent(eventType EventType, roomCode string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		RoomCode:  roomCode,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewConnectionEvent creates an event for a single connection
func NewConnectionEvent(eventType EventType, roomCode, connID string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:         eventType,
		RoomCode:     roomCode,
		ConnectionID: connID,
		Payload:      payload,
		Timestamp:    time.Now(),
	}
}

// IsTargeted returns true if the event is meant for one connection
func (e *GameEvent) IsTargeted() bool {
	return e.ConnectionID != ""
}

// Encode returns the JSON form of the event. It is marshalled once and the
// bytes are shared by every connection the event is fanned out to, so callers
// must not modify them.
func (e *GameEvent) Encode() ([]byte, error) {
	e.encodeOnce.Do(func() {
		e.encoded, e.encodeErr = json.Marshal(e)
	})
	return e.encoded, e.encodeErr
}

// Payload types for different events

// IdentityPayload confirms the identity a connection is bound to
type IdentityPayload struct {
	RoomCode           string `json:"roomCode"`
	PersistentPlayerID string `json:"persistentPlayerId"`
	PlayerID           string `json:"playerId"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	Reconnected        bool   `json:"reconnected"`
}

// TimerTickPayload is sent every second while a round timer runs
type TimerTickPayload struct {
	RoundIndex int `json:"roundIndex"`
	Remaining  int `json:"remaining"`
}

// TimeUpPayload is sent when the round timer reaches zero
type TimeUpPayload struct {
	RoundIndex  int `json:"roundIndex"`
	GraceMillis int `json:"graceMillis"`
}

// PresencePayload is sent when a participant connects or drops
type PresencePayload struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	IsGameMaster bool   `json:"isGameMaster"`
	IsActive     bool   `json:"isActive"`
}

// BoardUpdatedPayload carries one live board update
type BoardUpdatedPayload struct {
	ConnectionID string    `json:"connectionId"`
	Board        BoardView `json:"board"`
}

// GameOverPayload announces that the recap is being prepared
type GameOverPayload struct {
	RoomCode string `json:"roomCode"`
}

// KickedPayload tells a connection it was removed
type KickedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DefaultKickReason is used when the game master gives none
const DefaultKickReason = "removed by the game master"

// NewIdentityEvent confirms a bind to the connection that joined
func NewIdentityEvent(roomCode, connID string, res BindResult) *GameEvent {
	return NewConnectionEvent(EventIdentity, roomCode, connID, &IdentityPayload{
		RoomCode:           roomCode,
		PersistentPlayerID: res.PersistentID,
		PlayerID:           res.PublicID,
		Name:               res.Name,
		Role:               res.Role,
		Reconnected:        res.Reconnected,
	})
}

// NewSnapshotEvent wraps a snapshot, filling nil collections for older clients
func NewSnapshotEvent(s Snapshot) *GameEvent {
	if s.Players == nil {
		s.Players = make([]PlayerView, 0)
	}
	if s.Answers == nil {
		s.Answers = make(map[string]AnswerView)
	}
	if s.Votes == nil {
		s.Votes = make(map[string]string)
	}
	if s.VoteCounts == nil {
		s.VoteCounts = make(map[string]int)
	}
	if s.Boards == nil {
		s.Boards = make(map[string]BoardView)
	}
	return NewEvent(EventStateSnapshot, s.RoomCode, &s)
}

// NewTimerTickEvent reports whole seconds left, never negative
func NewTimerTickEvent(roomCode string, round, remaining int) *GameEvent {
	if remaining < 0 {
		remaining = 0
	}
	return NewEvent(EventTimerTick, roomCode, &TimerTickPayload{RoundIndex: round, Remaining: remaining})
}

// NewTimeUpEvent announces the end of a round's time
func NewTimeUpEvent(roomCode string, round int, grace time.Duration) *GameEvent {
	return NewEvent(EventTimeUp, roomCode, &TimeUpPayload{RoundIndex: round, GraceMillis: int(grace.Milliseconds())})
}

// NewPresenceEvent reports a participant connecting or dropping
func NewPresenceEvent(roomCode string, connected bool, playerID, name string, gm bool) *GameEvent {
	eventType := EventPlayerDisconnected
	if connected {
		eventType = EventPlayerReconnected
	}
	return NewEvent(eventType, roomCode, &PresencePayload{
		PlayerID:     playerID,
		Name:         name,
		IsGameMaster: gm,
		IsActive:     connected,
	})
}

// NewBoardUpdatedEvent carries a live board update
func NewBoardUpdatedEvent(roomCode, playerID string, b *Board) *GameEvent {
	return NewEvent(EventBoardUpdated, roomCode, &BoardUpdatedPayload{
		ConnectionID: b.ConnectionID,
		Board: BoardView{
			PlayerID:   playerID,
			RoundIndex: b.RoundIndex,
			Data:       b.Data,
			Timestamp:  b.Timestamp,
		},
	})
}

// NewKickedEvent notifies a removed connection
func NewKickedEvent(roomCode, connID, reason string) *GameEvent {
	if reason == "" {
		reason = DefaultKickReason
	}
	return NewConnectionEvent(EventKicked, roomCode, connID, &KickedPayload{Reason: reason})
}

// NewErrorEvent reports an error to one connection
func NewErrorEvent(roomCode, connID, code, message string) *GameEvent {
	return NewConnectionEvent(EventError, roomCode, connID, &ErrorPayload{Code: code, Message: message})
}

// NewGameOverEvent tells clients the recap is on its way
func NewGameOverEvent(roomCode string) *GameEvent {
	return NewEvent(EventGameOverPendingRecap, roomCode, &GameOverPayload{RoomCode: roomCode})
}

// NewRecapEvent carries the final recap
func NewRecapEvent(recap *Recap) *GameEvent {
	if recap.Players == nil {
		recap.Players = make([]PlayerSummary, 0)
	}
	if recap.Rounds == nil {
		recap.Rounds = make([]RoundRecap, 0)
	}
	return NewEvent(EventGameRecap, recap.RoomCode, recap)
}
