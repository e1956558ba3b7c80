package domain

import "time"

// ConnectionStatus represents a player's connection state
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
)

// Player represents one logical participant in a room.
// ID is public and appears in snapshots; PersistentID is only ever sent to the owning client.
type Player struct {
	ID           string
	PersistentID string
	ConnectionID string
	Name         string
	Avatar       string
	Lives        int
	IsActive     bool
	IsSpectator  bool
	Score        int
	Streak       int
	Answers      []*Answer // indexed by round
	JoinedAt     time.Time
	LastSeenAt   time.Time
}

// NewPlayer creates an active player bound to connID
func NewPlayer(id, persistentID, connID, name string, lives int, spectator bool, now time.Time) *Player {
	if spectator {
		lives = 0
	}
	return &Player{
		ID:           id,
		PersistentID: persistentID,
		ConnectionID: connID,
		Name:         name,
		Lives:        lives,
		IsActive:     true,
		IsSpectator:  spectator,
		Answers:      make([]*Answer, 0),
		JoinedAt:     now,
		LastSeenAt:   now,
	}
}

// IsEliminated returns true once the player has no lives left
func (p *Player) IsEliminated() bool {
	return p.Lives <= 0
}

// Status returns the connection status shown to other players
func (p *Player) Status() ConnectionStatus {
	if p.IsActive {
		return StatusConnected
	}
	return StatusDisconnected
}

// Role returns the player's role in the room
func (p *Player) Role() Role {
	if p.IsSpectator {
		return RoleSpectator
	}
	return RolePlayer
}

// AnswerFor returns the answer recorded for round, or nil
func (p *Player) AnswerFor(round int) *Answer {
	if round < 0 || round >= len(p.Answers) {
		return nil
	}
	return p.Answers[round]
}

func (p *Player) setAnswer(round int, a *Answer) {
	for len(p.Answers) <= round {
		p.Answers = append(p.Answers, nil)
	}
	p.Answers[round] = a
}

// Disconnect marks the player as disconnected
func (p *Player) Disconnect(now time.Time) {
	p.IsActive = false
	p.LastSeenAt = now
}

// Reconnect binds the player to a new connection
func (p *Player) Reconnect(connID string, now time.Time) {
	p.ConnectionID = connID
	p.IsActive = true
	p.LastSeenAt = now
}

// applyEvaluation updates score, streak and lives for an evaluated answer
func (p *Player) applyEvaluation(correct, pointsMode bool) {
	if correct {
		if pointsMode {
			p.Score += 1 + p.Streak
		}
		p.Streak++
		return
	}
	p.Streak = 0
	if !pointsMode && p.Lives > 0 {
		p.Lives--
	}
}
