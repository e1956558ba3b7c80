package domain

import (
	"sort"
	"time"
)

// openRound resets per-round state for question index
func (r *Room) openRound(index int, now time.Time) {
	r.CurrentQuestionIndex = index
	r.QuestionStartTime = now
	r.SubmissionPhaseOver = false
	r.roundFinalized = false
	r.RoundAnswers = make(map[string]*Answer)
	r.Votes = make(map[string]string)
	r.Boards = make(map[string]*Board)
	r.GameMasterBoard = nil
}

// IsEligible returns true if p is expected to answer the current round
func (r *Room) IsEligible(p *Player) bool {
	if !p.IsActive || !p.Role().CanAnswer() {
		return false
	}
	return r.Settings.PointsMode || !p.IsEliminated()
}

// SubmitAnswer records an answer for the player bound to connID, or for the GM
// when it plays. Stale submissions (past round, closed phase, duplicate) return
// false and no error.
func (r *Room) SubmitAnswer(connID string, round int, text string, hasDrawing bool, drawing string, now time.Time) (bool, error) {
	p, err := r.answerer(connID)
	if err != nil {
		return false, err
	}
	if p.IsSpectator {
		return false, ErrSpectatorAction
	}
	if !r.Started {
		return false, ErrGameNotStarted
	}
	if r.IsConcluded || round != r.CurrentQuestionIndex || r.SubmissionPhaseOver {
		return false, nil
	}
	if _, answered := r.RoundAnswers[p.PersistentID]; answered {
		return false, nil
	}
	if !r.Settings.PointsMode && p.IsEliminated() {
		return false, ErrEliminated
	}

	a := NewAnswer(text, hasDrawing, drawing, now)
	if a.HasDrawing && a.DrawingData == "" {
		if board := r.LiveBoard(p); board.HasContent() && board.RoundIndex == round {
			a.DrawingData = board.Data
		}
	}
	r.RoundAnswers[p.PersistentID] = a
	p.setAnswer(round, a)
	return true, nil
}

// AllAnswered returns true once every eligible player has an answer for the current round
func (r *Room) AllAnswered() bool {
	eligible := 0
	for _, p := range r.Answerers() {
		if !r.IsEligible(p) {
			continue
		}
		eligible++
		if _, ok := r.RoundAnswers[p.PersistentID]; !ok {
			return false
		}
	}
	return eligible > 0
}

// FinalizeRound closes submissions and records a placeholder answer for every
// eligible player without one. Eliminated players in lives mode are out of the
// game and get nothing. It returns the players that were auto-submitted; a second
// call for the same round does nothing.
func (r *Room) FinalizeRound(now time.Time) []*Player {
	if !r.Started || r.IsConcluded || r.roundFinalized {
		return nil
	}
	r.roundFinalized = true
	r.SubmissionPhaseOver = true

	round := r.CurrentQuestionIndex
	filled := make([]*Player, 0)
	for _, p := range r.Answerers() {
		if !r.IsEligible(p) {
			continue
		}
		if _, ok := r.RoundAnswers[p.PersistentID]; ok {
			continue
		}
		board := r.LiveBoard(p)
		if board != nil && board.RoundIndex != round {
			board = nil
		}
		a := newPlaceholderAnswer(board, now)
		r.RoundAnswers[p.PersistentID] = a
		p.setAnswer(round, a)
		filled = append(filled, p)
	}
	return filled
}

// Evaluate marks a player's answer for the current round. Evaluated answers are immutable.
func (r *Room) Evaluate(connID, targetID string, correct bool) error {
	if err := r.RequireGameMaster(connID); err != nil {
		return err
	}
	if !r.Started {
		return ErrGameNotStarted
	}
	if r.IsConcluded {
		return ErrGameConcluded
	}
	p, ok := r.answererByPublicID(targetID)
	if !ok {
		return ErrInvalidTarget
	}
	a, ok := r.RoundAnswers[p.PersistentID]
	if !ok {
		return ErrAnswerNotFound
	}
	if a.IsEvaluated() {
		return ErrAlreadyEvaluated
	}

	a.IsCorrect = &correct
	p.applyEvaluation(correct, r.Settings.PointsMode)
	return nil
}

// RoundsWithAnswers returns the sorted round indexes with at least one answer
func RoundsWithAnswers(players []*Player) []int {
	seen := make(map[int]bool)
	for _, p := range players {
		for i, a := range p.Answers {
			if a != nil {
				seen[i] = true
			}
		}
	}
	rounds := make([]int, 0, len(seen))
	for i := range seen {
		rounds = append(rounds, i)
	}
	sort.Ints(rounds)
	return rounds
}
