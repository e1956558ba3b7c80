package domain

import (
	"sort"
	"strings"
	"time"
)

// QuestionKind tells clients which input to render
type QuestionKind string

const (
	QuestionText    QuestionKind = "text"
	QuestionDrawing QuestionKind = "drawing"
)

// Question is one round's prompt. Answer stays server-side until the round's submissions close.
type Question struct {
	Text     string       `json:"text" yaml:"text"`
	Answer   string       `json:"answer,omitempty" yaml:"answer"`
	Kind     QuestionKind `json:"kind,omitempty" yaml:"kind"`
	Category string       `json:"category,omitempty" yaml:"category"`
	ImageURL string       `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

// RoomSettings holds configurable room parameters
type RoomSettings struct {
	TimeLimit       TimeLimit `json:"timeLimit"`
	StartingLives   int       `json:"startingLives"`
	CommunityVoting bool      `json:"communityVoting"`
	PointsMode      bool      `json:"pointsMode"`
	GameMasterPlays bool      `json:"gameMasterPlays"`
	MaxPlayers      int       `json:"maxPlayers"`
}

// DefaultRoomSettings returns the default room settings
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		TimeLimit:     LimitSeconds(30),
		StartingLives: 3,
		MaxPlayers:    50,
	}
}

// Room is the authoritative state of one game room.
// It is not safe for concurrent use; a RoomSession owns it.
type Room struct {
	Code      string
	Settings  RoomSettings
	Questions []Question

	GameMasterID       string // token presented by the GM to reclaim the seat
	GameMasterPublicID string
	GameMasterName     string
	GameMasterConnID   string
	GameMasterActive   bool

	Started              bool
	IsConcluded          bool
	CurrentQuestionIndex int
	QuestionStartTime    time.Time
	SubmissionPhaseOver  bool
	roundFinalized       bool

	Players         map[string]*Player // keyed by persistent id
	connections     map[string]string  // connection id -> persistent id
	RoundAnswers    map[string]*Answer // keyed by persistent id, current round only
	Votes           map[string]string  // voter public id -> target public id
	Boards          map[string]*Board  // keyed by connection id
	boardArchive    map[string]map[int]*Board
	GameMasterBoard *Board
	gmSeat          *Player // the GM's own standing when it plays

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	recap *Recap
}

// NewRoom creates a room in the lobby. gmToken reclaims the GM seat on reconnect.
func NewRoom(code string, settings RoomSettings, questions []Question, gmToken, gmPublicID, gmName string, now time.Time) *Room {
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = DefaultRoomSettings().MaxPlayers
	}
	if settings.StartingLives <= 0 {
		settings.StartingLives = DefaultRoomSettings().StartingLives
	}
	gmName = strings.TrimSpace(gmName)
	if gmName == "" {
		gmName = "Game Master"
	}
	r := &Room{
		Code:               strings.ToUpper(code),
		Settings:           settings,
		Questions:          append([]Question(nil), questions...),
		GameMasterID:       gmToken,
		GameMasterPublicID: gmPublicID,
		GameMasterName:     gmName,
		Players:            make(map[string]*Player),
		connections:        make(map[string]string),
		RoundAnswers:       make(map[string]*Answer),
		Votes:              make(map[string]string),
		Boards:             make(map[string]*Board),
		boardArchive:       make(map[string]map[int]*Board),
		CreatedAt:          now,
	}
	if r.GameMasterPlays() {
		r.gmSeat = NewPlayer(gmPublicID, gmToken, "", gmName, settings.StartingLives, false, now)
		r.gmSeat.IsActive = false
	}
	return r
}

// GameMasterPlays returns true if the GM answers and is voted on like a player.
// Only community-voting rooms have a playing GM.
func (r *Room) GameMasterPlays() bool {
	return r.Settings.CommunityVoting && r.Settings.GameMasterPlays
}

// GameMasterSeat returns the GM's player record, or nil when the GM does not play
func (r *Room) GameMasterSeat() *Player {
	return r.gmSeat
}

// GameMasterScore returns the score of a playing GM
func (r *Room) GameMasterScore() int {
	if r.gmSeat == nil {
		return 0
	}
	return r.gmSeat.Score
}

// answerer returns the player record that answers for connID, the GM seat included
func (r *Room) answerer(connID string) (*Player, error) {
	if r.IsGameMasterConn(connID) {
		if r.gmSeat == nil {
			return nil, ErrSpectatorAction
		}
		return r.gmSeat, nil
	}
	p, ok := r.PlayerByConnection(connID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

// answererByPublicID looks up a player or the playing GM by public ID
func (r *Room) answererByPublicID(id string) (*Player, bool) {
	if r.gmSeat != nil && r.gmSeat.ID == id {
		return r.gmSeat, true
	}
	return r.PlayerByPublicID(id)
}

// Answerers returns players in join order followed by the playing GM, if any
func (r *Room) Answerers() []*Player {
	players := r.PlayersInOrder()
	if r.gmSeat != nil {
		players = append(players, r.gmSeat)
	}
	return players
}

// Phase derives the current phase from room state
func (r *Room) Phase() Phase {
	switch {
	case r.IsConcluded:
		return PhaseConcluded
	case !r.Started:
		return PhaseLobby
	case r.SubmissionPhaseOver:
		return PhaseReviewing
	default:
		return PhaseAnswering
	}
}

// CurrentQuestion returns the open question, or nil before the game starts
func (r *Room) CurrentQuestion() *Question {
	if !r.Started || r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex >= len(r.Questions) {
		return nil
	}
	return &r.Questions[r.CurrentQuestionIndex]
}

// IsGameMasterConn returns true if connID is the bound GM connection
func (r *Room) IsGameMasterConn(connID string) bool {
	return connID != "" && r.GameMasterActive && r.GameMasterConnID == connID
}

// RequireGameMaster returns ErrNotGameMaster unless connID is the GM
func (r *Room) RequireGameMaster(connID string) error {
	if !r.IsGameMasterConn(connID) {
		return ErrNotGameMaster
	}
	return nil
}

// PlayerByConnection returns the player currently bound to connID
func (r *Room) PlayerByConnection(connID string) (*Player, bool) {
	pid, ok := r.connections[connID]
	if !ok {
		return nil, false
	}
	p, ok := r.Players[pid]
	if !ok || p.ConnectionID != connID {
		return nil, false
	}
	return p, true
}

// PlayerByPublicID returns a player by public ID
func (r *Room) PlayerByPublicID(id string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PlayersInOrder returns players sorted by join time, then persistent id
func (r *Room) PlayersInOrder() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].PersistentID < players[j].PersistentID
	})
	return players
}

// ActivePlayerCount returns the number of connected non-spectator players
func (r *Room) ActivePlayerCount() int {
	count := 0
	for _, p := range r.Players {
		if p.IsActive && !p.IsSpectator {
			count++
		}
	}
	return count
}

// ConnectedCount returns the number of live connections, GM included
func (r *Room) ConnectedCount() int {
	count := 0
	for _, p := range r.Players {
		if p.IsActive {
			count++
		}
	}
	if r.GameMasterActive {
		count++
	}
	return count
}

// UsedAvatars returns the avatars already taken in the room
func (r *Room) UsedAvatars() []string {
	used := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Avatar != "" {
			used = append(used, p.Avatar)
		}
	}
	return used
}

// Start opens the first round
func (r *Room) Start(connID string, now time.Time) error {
	if err := r.RequireGameMaster(connID); err != nil {
		return err
	}
	if r.IsConcluded {
		return ErrGameConcluded
	}
	if r.Started {
		return ErrGameAlreadyStarted
	}
	if len(r.Questions) == 0 {
		return ErrNoQuestions
	}
	if !r.Phase().CanTransitionTo(PhaseAnswering) {
		return ErrInvalidTransition
	}

	r.Started = true
	r.StartedAt = now
	r.openRound(0, now)
	return nil
}

// Advance finalizes the current round, resolves community votes, and opens the next question.
// It returns true when the questions are exhausted and the room concluded.
func (r *Room) Advance(connID string, now time.Time) (bool, error) {
	if err := r.RequireGameMaster(connID); err != nil {
		return false, err
	}
	if !r.Started {
		return false, ErrGameNotStarted
	}
	if r.IsConcluded {
		return false, ErrGameConcluded
	}

	r.FinalizeRound(now)
	r.closeVoting()

	next := r.CurrentQuestionIndex + 1
	if next >= len(r.Questions) {
		r.Conclude(now)
		return true, nil
	}
	r.openRound(next, now)
	return false, nil
}

// UpdateBoard stores a live board for connID. Boards for other rounds are ignored.
func (r *Room) UpdateBoard(connID string, round int, data string, now time.Time) (*Board, bool) {
	if !r.Started || r.IsConcluded || round != r.CurrentQuestionIndex {
		return nil, false
	}

	if r.IsGameMasterConn(connID) {
		r.GameMasterBoard = &Board{
			ConnectionID: connID,
			PersistentID: r.GameMasterID,
			RoundIndex:   round,
			Data:         data,
			Timestamp:    now,
		}
		if r.gmSeat != nil {
			r.archiveBoard(r.GameMasterID, r.GameMasterBoard)
		}
		return r.GameMasterBoard, true
	}

	p, ok := r.PlayerByConnection(connID)
	if !ok || p.IsSpectator {
		return nil, false
	}

	board := &Board{
		ConnectionID: connID,
		PersistentID: p.PersistentID,
		RoundIndex:   round,
		Data:         data,
		Timestamp:    now,
	}
	r.Boards[connID] = board
	r.archiveBoard(p.PersistentID, board)
	return board, true
}

func (r *Room) archiveBoard(persistentID string, board *Board) {
	rounds, ok := r.boardArchive[persistentID]
	if !ok {
		rounds = make(map[int]*Board)
		r.boardArchive[persistentID] = rounds
	}
	rounds[board.RoundIndex] = board
}

// ArchivedBoard returns the last board a player drew during round
func (r *Room) ArchivedBoard(persistentID string, round int) *Board {
	return r.boardArchive[persistentID][round]
}

// LiveBoard returns the board on the player's current connection
func (r *Room) LiveBoard(p *Player) *Board {
	if p == r.gmSeat {
		return r.GameMasterBoard
	}
	return r.Boards[p.ConnectionID]
}

// Kick removes a player from the room and returns the removed record
func (r *Room) Kick(connID, targetID string) (*Player, error) {
	if err := r.RequireGameMaster(connID); err != nil {
		return nil, err
	}
	p, ok := r.PlayerByPublicID(targetID)
	if !ok {
		return nil, ErrInvalidTarget
	}

	delete(r.Players, p.PersistentID)
	delete(r.RoundAnswers, p.PersistentID)
	delete(r.Boards, p.ConnectionID)
	delete(r.boardArchive, p.PersistentID)
	for conn, pid := range r.connections {
		if pid == p.PersistentID {
			delete(r.connections, conn)
		}
	}
	delete(r.Votes, p.ID)
	for voter, target := range r.Votes {
		if target == p.ID {
			delete(r.Votes, voter)
		}
	}
	return p, nil
}

// Conclude ends the game and caches the recap. It returns false if already concluded.
func (r *Room) Conclude(now time.Time) bool {
	if r.IsConcluded {
		return false
	}
	r.IsConcluded = true
	r.SubmissionPhaseOver = true
	r.EndedAt = now
	r.recap = BuildRecap(r)
	return true
}

// Recap returns the recap built when the room concluded
func (r *Room) Recap() (*Recap, bool) {
	if !r.IsConcluded || r.recap == nil {
		return nil, false
	}
	return r.recap, true
}
