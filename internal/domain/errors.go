package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomClosed         = errors.New("room is closed")
	ErrNotGameMaster      = errors.New("only the game master can perform this action")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrNameRequired       = errors.New("player name is required")
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameConcluded      = errors.New("game is concluded")
	ErrNoQuestions        = errors.New("room has no questions")
	ErrAlreadyEvaluated   = errors.New("answer already evaluated")
	ErrAnswerNotFound     = errors.New("answer not found")
	ErrVotingDisabled     = errors.New("community voting is disabled")
	ErrVotingClosed       = errors.New("voting is not open")
	ErrCannotVoteSelf     = errors.New("cannot vote for yourself")
	ErrSpectatorAction    = errors.New("spectators cannot perform this action")
	ErrEliminated         = errors.New("player is eliminated")
	ErrInvalidTarget      = errors.New("invalid target player")
	ErrInvalidTransition  = errors.New("invalid phase transition")
	ErrInternal           = errors.New("internal error")
)
