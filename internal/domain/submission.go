package domain

import (
	"strings"
	"time"
)

// PlaceholderAnswer is recorded for players who did not answer before finalization
const PlaceholderAnswer = "-"

// Answer is one player's submission for one round
type Answer struct {
	Text          string
	HasDrawing    bool
	DrawingData   string
	IsCorrect     *bool // nil until evaluated
	Timestamp     time.Time
	AutoSubmitted bool
}

// NewAnswer creates a submitted answer
func NewAnswer(text string, hasDrawing bool, drawing string, now time.Time) *Answer {
	text = strings.TrimSpace(text)
	if text == "" {
		text = PlaceholderAnswer
	}
	return &Answer{
		Text:        text,
		HasDrawing:  hasDrawing || drawing != "",
		DrawingData: drawing,
		Timestamp:   now,
	}
}

// newPlaceholderAnswer creates the answer recorded on finalization
func newPlaceholderAnswer(board *Board, now time.Time) *Answer {
	a := &Answer{
		Text:          PlaceholderAnswer,
		Timestamp:     now,
		AutoSubmitted: true,
	}
	if board.HasContent() {
		a.HasDrawing = true
		a.DrawingData = board.Data
	}
	return a
}

// IsEvaluated returns true once the answer has been marked correct or incorrect
func (a *Answer) IsEvaluated() bool {
	return a.IsCorrect != nil
}

// Board is a live drawing surface for one connection
type Board struct {
	ConnectionID string
	PersistentID string
	RoundIndex   int
	Data         string
	Timestamp    time.Time
}

// HasContent returns true if the board carries drawing data
func (b *Board) HasContent() bool {
	return b != nil && b.Data != ""
}
