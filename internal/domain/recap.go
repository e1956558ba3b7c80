package domain

import (
	"sort"
	"time"
)

// Recap is the end-of-game summary sent to every client
type Recap struct {
	RoomCode     string          `json:"roomCode"`
	StartedAt    time.Time       `json:"startedAt"`
	EndedAt      time.Time       `json:"endedAt"`
	IsPointsMode bool            `json:"isPointsMode"`
	Winner       *PlayerSummary  `json:"winner"`
	Players      []PlayerSummary `json:"players"`
	Rounds       []RoundRecap    `json:"rounds"`
}

// PlayerSummary is one row of the final standings
type PlayerSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Rank         int    `json:"rank"`
	Lives        int    `json:"lives"`
	Score        int    `json:"score"`
	Streak       int    `json:"streak"`
	IsActive     bool   `json:"isActive"`
	IsSpectator  bool   `json:"isSpectator"`
	IsEliminated bool   `json:"isEliminated"`
	IsGameMaster bool   `json:"isGameMaster"`
}

// RoundRecap reconstructs one played round
type RoundRecap struct {
	Index       int               `json:"index"`
	Question    Question          `json:"question"`
	Submissions []SubmissionRecap `json:"submissions"`
}

// SubmissionRecap is one player's answer in a round
type SubmissionRecap struct {
	PlayerID      string    `json:"playerId"`
	PlayerName    string    `json:"playerName"`
	Answer        string    `json:"answer"`
	HasDrawing    bool      `json:"hasDrawing"`
	DrawingData   string    `json:"drawingData,omitempty"`
	IsCorrect     *bool     `json:"isCorrect"`
	AutoSubmitted bool      `json:"autoSubmitted"`
	Timestamp     time.Time `json:"timestamp"`
}

// BuildRecap reduces a room into its recap. It only reads room state.
// A playing GM is ranked and reconstructed like any other player.
func BuildRecap(r *Room) *Recap {
	players := RankPlayers(r.Answerers(), r.Settings.PointsMode)

	recap := &Recap{
		RoomCode:     r.Code,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		IsPointsMode: r.Settings.PointsMode,
		Players:      make([]PlayerSummary, 0, len(players)),
		Rounds:       make([]RoundRecap, 0),
	}
	for i, p := range players {
		summary := newPlayerSummary(p, i+1)
		summary.IsGameMaster = p == r.gmSeat
		recap.Players = append(recap.Players, summary)
	}
	if w := DetermineWinner(players); w != nil {
		for _, s := range recap.Players {
			if s.ID == w.ID {
				winner := s
				recap.Winner = &winner
				break
			}
		}
	}

	last := LastAnsweredRound(players)
	if last >= len(r.Questions) {
		last = len(r.Questions) - 1
	}
	for round := 0; round <= last; round++ {
		rr := RoundRecap{
			Index:       round,
			Question:    r.Questions[round],
			Submissions: make([]SubmissionRecap, 0, len(players)),
		}
		for _, p := range players {
			a := p.AnswerFor(round)
			if a == nil {
				continue
			}
			data, hasDrawing := ResolveDrawing(r, p, round, a)
			rr.Submissions = append(rr.Submissions, SubmissionRecap{
				PlayerID:      p.ID,
				PlayerName:    p.Name,
				Answer:        a.Text,
				HasDrawing:    hasDrawing,
				DrawingData:   data,
				IsCorrect:     a.IsCorrect,
				AutoSubmitted: a.AutoSubmitted,
				Timestamp:     a.Timestamp,
			})
		}
		recap.Rounds = append(recap.Rounds, rr)
	}

	return recap
}

func newPlayerSummary(p *Player, rank int) PlayerSummary {
	avatar := p.Avatar
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return PlayerSummary{
		ID:           p.ID,
		Name:         p.Name,
		Avatar:       avatar,
		Rank:         rank,
		Lives:        p.Lives,
		Score:        p.Score,
		Streak:       p.Streak,
		IsActive:     p.IsActive,
		IsSpectator:  p.IsSpectator,
		IsEliminated: p.IsEliminated(),
	}
}

// LastAnsweredRound returns the highest round index with any answer, or -1
func LastAnsweredRound(players []*Player) int {
	rounds := RoundsWithAnswers(players)
	if len(rounds) == 0 {
		return -1
	}
	return rounds[len(rounds)-1]
}

// ResolveDrawing finds the drawing for a player's answer in round. Sources in order:
//  1. the drawing carried by the answer
//  2. the board archived for the player's persistent id and round
//  3. the live board on the player's current connection, if drawn for round
//
// When the answer claims a drawing and no source has one, hasDrawing is false.
func ResolveDrawing(r *Room, p *Player, round int, a *Answer) (string, bool) {
	if a.DrawingData != "" {
		return a.DrawingData, true
	}
	if !a.HasDrawing {
		return "", false
	}
	if b := r.ArchivedBoard(p.PersistentID, round); b.HasContent() {
		return b.Data, true
	}
	if b := r.LiveBoard(p); b.HasContent() && b.RoundIndex == round {
		return b.Data, true
	}
	return "", false
}

// RankPlayers sorts players for the standings: active non-spectators with lives first,
// then by remaining lives, then by persistent id. In points mode score breaks lives ties.
func RankPlayers(players []*Player, pointsMode bool) []*Player {
	ranked := append([]*Player(nil), players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := standingTier(ranked[i]), standingTier(ranked[j])
		if ti != tj {
			return ti < tj
		}
		if ranked[i].Lives != ranked[j].Lives {
			return ranked[i].Lives > ranked[j].Lives
		}
		if pointsMode && ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].PersistentID < ranked[j].PersistentID
	})
	return ranked
}

func standingTier(p *Player) int {
	if isContender(p) {
		return 0
	}
	return 1
}

func isContender(p *Player) bool {
	return p.IsActive && !p.IsSpectator && p.Lives > 0
}

// DetermineWinner returns the only player still in contention, or nil when there
// are zero or several.
func DetermineWinner(players []*Player) *Player {
	var winner *Player
	for _, p := range players {
		if !isContender(p) {
			continue
		}
		if winner != nil {
			return nil
		}
		winner = p
	}
	return winner
}
