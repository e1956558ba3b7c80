package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"quizroom/internal/domain"
)

// MessageType represents the type of an inbound WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgCreateRoom     MessageType = "create_room"
	MsgJoinRoom       MessageType = "join_room"
	MsgStartGame      MessageType = "start_game"
	MsgSubmitAnswer   MessageType = "submit_answer"
	MsgUpdateBoard    MessageType = "update_board"
	MsgCastVote       MessageType = "cast_vote"
	MsgEvaluateAnswer MessageType = "evaluate_answer"
	MsgNextRound      MessageType = "next_round"
	MsgEndRound       MessageType = "end_round"
	MsgKickPlayer     MessageType = "kick_player"
	MsgConcludeGame   MessageType = "conclude_game"
	MsgPing           MessageType = "ping"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client message payloads

// CreateRoomPayload is the payload for create_room. Omitted settings keep the server defaults.
type CreateRoomPayload struct {
	Name      string              `json:"name"`
	Settings  domain.RoomSettings `json:"settings"`
	Questions []domain.Question   `json:"questions"`
}

// JoinRoomPayload is the payload for join_room
type JoinRoomPayload struct {
	RoomCode  string `json:"roomCode"`
	PlayerID  string `json:"playerId,omitempty"` // persistent id from an earlier identity event
	Name      string `json:"name"`
	Spectator bool   `json:"spectator,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// SubmitAnswerPayload is the payload for submit_answer
type SubmitAnswerPayload struct {
	RoundIndex  int    `json:"roundIndex"`
	Answer      string `json:"answer"`
	HasDrawing  bool   `json:"hasDrawing,omitempty"`
	DrawingData string `json:"drawingData,omitempty"`
}

// UpdateBoardPayload is the payload for update_board
type UpdateBoardPayload struct {
	RoundIndex int    `json:"roundIndex"`
	Data       string `json:"data"`
}

// CastVotePayload is the payload for cast_vote
type CastVotePayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

// EvaluateAnswerPayload is the payload for evaluate_answer
type EvaluateAnswerPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
	IsCorrect      bool   `json:"isCorrect"`
}

// KickPlayerPayload is the payload for kick_player
type KickPlayerPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
	Reason         string `json:"reason,omitempty"`
}

// decodePayload decodes raw into v. A missing payload leaves v untouched.
func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeRoomNotFound   = "ROOM_NOT_FOUND"
	ErrCodeRoomFull       = "ROOM_FULL"
	ErrCodeRoomClosed     = "ROOM_CLOSED"
	ErrCodeNotInRoom      = "NOT_IN_ROOM"
	ErrCodeNotGameMaster  = "NOT_GAME_MASTER"
	ErrCodeNameRequired   = "NAME_REQUIRED"
	ErrCodePlayerNotFound = "PLAYER_NOT_FOUND"
	ErrCodeInvalidAction  = "INVALID_ACTION"
	ErrCodeCannotVoteSelf = "CANNOT_VOTE_SELF"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

var errNotInRoom = errors.New("connection has not joined a room")

// ErrorCode maps an error to its wire code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, domain.ErrRoomFull):
		return ErrCodeRoomFull
	case errors.Is(err, domain.ErrRoomClosed):
		return ErrCodeRoomClosed
	case errors.Is(err, errNotInRoom):
		return ErrCodeNotInRoom
	case errors.Is(err, domain.ErrNotGameMaster):
		return ErrCodeNotGameMaster
	case errors.Is(err, domain.ErrNameRequired):
		return ErrCodeNameRequired
	case errors.Is(err, domain.ErrPlayerNotFound), errors.Is(err, domain.ErrInvalidTarget):
		return ErrCodePlayerNotFound
	case errors.Is(err, domain.ErrCannotVoteSelf):
		return ErrCodeCannotVoteSelf
	case errors.Is(err, domain.ErrGameNotStarted),
		errors.Is(err, domain.ErrGameAlreadyStarted),
		errors.Is(err, domain.ErrGameConcluded),
		errors.Is(err, domain.ErrNoQuestions),
		errors.Is(err, domain.ErrAlreadyEvaluated),
		errors.Is(err, domain.ErrAnswerNotFound),
		errors.Is(err, domain.ErrVotingDisabled),
		errors.Is(err, domain.ErrVotingClosed),
		errors.Is(err, domain.ErrSpectatorAction),
		errors.Is(err, domain.ErrEliminated),
		errors.Is(err, domain.ErrInvalidTransition):
		return ErrCodeInvalidAction
	default:
		return ErrCodeInternalError
	}
}

// ErrorMessage returns the text shown to the client. Internal errors are not leaked.
func ErrorMessage(err error) string {
	if ErrorCode(err) == ErrCodeInternalError {
		return "internal server error"
	}
	return err.Error()
}
