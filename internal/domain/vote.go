package domain

import "sort"

// VoteResult is the tally for one vote target
type VoteResult struct {
	PlayerID  string   `json:"playerId"`
	VoteCount int      `json:"voteCount"`
	VotedBy   []string `json:"votedBy"`
}

// CastVote records a community vote from the player or GM bound to connID.
// Votes open once submissions close and can be changed until the round advances.
func (r *Room) CastVote(connID, targetID string) error {
	if !r.Settings.CommunityVoting {
		return ErrVotingDisabled
	}
	if !r.Started || r.IsConcluded || !r.SubmissionPhaseOver {
		return ErrVotingClosed
	}

	voterID, err := r.voterID(connID)
	if err != nil {
		return err
	}
	if voterID == targetID {
		return ErrCannotVoteSelf
	}
	if !r.isVoteTarget(targetID) {
		return ErrInvalidTarget
	}

	r.Votes[voterID] = targetID
	return nil
}

func (r *Room) voterID(connID string) (string, error) {
	if r.IsGameMasterConn(connID) {
		if r.gmSeat == nil {
			return "", ErrSpectatorAction
		}
		return r.gmSeat.ID, nil
	}
	p, ok := r.PlayerByConnection(connID)
	if !ok {
		return "", ErrPlayerNotFound
	}
	if p.IsSpectator {
		return "", ErrSpectatorAction
	}
	return p.ID, nil
}

func (r *Room) isVoteTarget(id string) bool {
	if r.gmSeat != nil && id == r.gmSeat.ID {
		return true
	}
	p, ok := r.PlayerByPublicID(id)
	return ok && !p.IsSpectator
}

// TallyVotes counts votes per target, sorted by count then player id
func TallyVotes(votes map[string]string) []VoteResult {
	byTarget := make(map[string]*VoteResult)
	for voter, target := range votes {
		res, ok := byTarget[target]
		if !ok {
			res = &VoteResult{PlayerID: target, VotedBy: make([]string, 0, 1)}
			byTarget[target] = res
		}
		res.VoteCount++
		res.VotedBy = append(res.VotedBy, voter)
	}

	results := make([]VoteResult, 0, len(byTarget))
	for _, res := range byTarget {
		sort.Strings(res.VotedBy)
		results = append(results, *res)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].PlayerID < results[j].PlayerID
	})
	return results
}

// closeVoting settles the community votes of the round that is closing.
// When any vote was cast, every unevaluated answer of the round is resolved:
// answers whose author drew the most votes are correct, all others incorrect.
// In lives mode the result runs through the normal evaluation (streak, lives).
// In points mode each received vote is one point and the top-voted streak grows.
func (r *Room) closeVoting() {
	defer func() { r.Votes = make(map[string]string) }()
	if !r.Settings.CommunityVoting || len(r.Votes) == 0 {
		return
	}

	tally := TallyVotes(r.Votes)
	received := make(map[string]int, len(tally))
	for _, res := range tally {
		received[res.PlayerID] = res.VoteCount
	}
	top := tally[0].VoteCount

	for _, p := range r.Answerers() {
		if r.Settings.PointsMode {
			p.Score += received[p.ID]
		}
		a, ok := r.RoundAnswers[p.PersistentID]
		if !ok || a.IsEvaluated() {
			continue
		}
		correct := received[p.ID] == top
		a.IsCorrect = &correct
		if r.Settings.PointsMode {
			if correct {
				p.Streak++
			} else {
				p.Streak = 0
			}
			continue
		}
		p.applyEvaluation(correct, false)
	}
}
