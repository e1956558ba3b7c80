package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineWinner(t *testing.T) {
	tests := []struct {
		name    string
		players []*Player
		want    string
	}{
		{
			name: "single contender",
			players: []*Player{
				{PersistentID: "a", IsActive: true, Lives: 2},
				{PersistentID: "b", IsActive: false, IsSpectator: true, Lives: 0},
			},
			want: "a",
		},
		{
			name: "two contenders",
			players: []*Player{
				{PersistentID: "a", IsActive: true, Lives: 1},
				{PersistentID: "b", IsActive: true, Lives: 3},
			},
		},
		{
			name: "nobody left",
			players: []*Player{
				{PersistentID: "a", IsActive: true, Lives: 0},
				{PersistentID: "b", IsActive: false, Lives: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineWinner(tt.players)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.PersistentID)
		})
	}
}

func TestRankPlayers(t *testing.T) {
	players := []*Player{
		{PersistentID: "watcher", IsActive: true, IsSpectator: true, Lives: 0},
		{PersistentID: "z-low", IsActive: true, Lives: 1},
		{PersistentID: "away", IsActive: false, Lives: 3},
		{PersistentID: "b-high", IsActive: true, Lives: 3},
		{PersistentID: "a-high", IsActive: true, Lives: 3},
		{PersistentID: "out", IsActive: true, Lives: 0},
	}

	ranked := RankPlayers(players, false)

	got := make([]string, 0, len(ranked))
	for _, p := range ranked {
		got = append(got, p.PersistentID)
	}
	assert.Equal(t, []string{"a-high", "b-high", "z-low", "away", "out", "watcher"}, got)
}

func TestRankPlayers_PointsModeUsesScore(t *testing.T) {
	players := []*Player{
		{PersistentID: "a", IsActive: true, Lives: 3, Score: 1},
		{PersistentID: "b", IsActive: true, Lives: 3, Score: 4},
	}

	ranked := RankPlayers(players, true)
	assert.Equal(t, "b", ranked[0].PersistentID)
}

func TestBuildRecap_ExcludesRoundsAfterLastAnswer(t *testing.T) {
	r, joined := startedRoom(t, DefaultRoomSettings(), "alice", "bob")
	_, err := r.SubmitAnswer("conn-alice", 0, "paris", false, "", testEpoch)
	require.NoError(t, err)

	require.True(t, r.Conclude(testEpoch.Add(time.Minute)))
	recap, ok := r.Recap()
	require.True(t, ok)

	require.Len(t, recap.Rounds, 1)
	assert.Equal(t, "Q0", recap.Rounds[0].Question.Text)
	require.Len(t, recap.Rounds[0].Submissions, 1)
	assert.Equal(t, joined[0].PublicID, recap.Rounds[0].Submissions[0].PlayerID)
	assert.Equal(t, "ABCD", recap.RoomCode)
	assert.Equal(t, testEpoch, recap.StartedAt)
	assert.Equal(t, testEpoch.Add(time.Minute), recap.EndedAt)
}

func TestBuildRecap_MatchesAnswersAcrossReconnects(t *testing.T) {
	r, joined := startedRoom(t, DefaultRoomSettings(), "alice")
	_, err := r.SubmitAnswer("conn-alice", 0, "paris", false, "", testEpoch)
	require.NoError(t, err)

	_, err = r.Bind(JoinRequest{ConnectionID: "conn-alice-2", PresentedID: joined[0].PersistentID}, sequentialIDs("x"), testEpoch)
	require.NoError(t, err)
	r.Conclude(testEpoch)

	recap, _ := r.Recap()
	require.Len(t, recap.Rounds, 1)
	require.Len(t, recap.Rounds[0].Submissions, 1)
	assert.Equal(t, "paris", recap.Rounds[0].Submissions[0].Answer)
}

func TestBuildRecap_WinnerAndConcludeOnce(t *testing.T) {
	r, joined := startedRoom(t, DefaultRoomSettings(), "alice", "bob")
	r.Players[joined[1].PersistentID].Lives = 0

	require.True(t, r.Conclude(testEpoch))
	first, _ := r.Recap()
	assert.False(t, r.Conclude(testEpoch.Add(time.Hour)))
	second, _ := r.Recap()

	assert.Same(t, first, second)
	require.NotNil(t, first.Winner)
	assert.Equal(t, joined[0].PublicID, first.Winner.ID)
	assert.Equal(t, 1, first.Players[0].Rank)
}

func TestBuildRecap_IncludesPlayingGameMaster(t *testing.T) {
	settings := DefaultRoomSettings()
	settings.CommunityVoting = true
	settings.GameMasterPlays = true
	settings.PointsMode = true
	r, joined := startedRoom(t, settings, "alice")

	_, ok := r.UpdateBoard("gm-conn", 0, "host-sketch", testEpoch)
	require.True(t, ok)
	_, err := r.SubmitAnswer("gm-conn", 0, "host-answer", true, "", testEpoch)
	require.NoError(t, err)
	_, err = r.SubmitAnswer("conn-alice", 0, "alice-answer", false, "", testEpoch)
	require.NoError(t, err)
	r.FinalizeRound(testEpoch)
	require.NoError(t, r.CastVote("conn-alice", "gm-public"))

	_, err = r.Advance("gm-conn", testEpoch)
	require.NoError(t, err)
	// the next round's board replaces the live one; the recap must use the archive
	_, ok = r.UpdateBoard("gm-conn", 1, "round-one", testEpoch)
	require.True(t, ok)
	require.True(t, r.Conclude(testEpoch.Add(time.Minute)))

	recap, ok := r.Recap()
	require.True(t, ok)
	require.Len(t, recap.Players, 2)
	host := recap.Players[0]
	assert.Equal(t, "gm-public", host.ID)
	assert.True(t, host.IsGameMaster)
	assert.Equal(t, 1, host.Score)
	assert.False(t, recap.Players[1].IsGameMaster)
	assert.Equal(t, joined[0].PublicID, recap.Players[1].ID)

	require.Len(t, recap.Rounds, 1)
	byPlayer := make(map[string]SubmissionRecap)
	for _, sub := range recap.Rounds[0].Submissions {
		byPlayer[sub.PlayerID] = sub
	}
	require.Contains(t, byPlayer, "gm-public")
	assert.Equal(t, "host-answer", byPlayer["gm-public"].Answer)
	assert.True(t, byPlayer["gm-public"].HasDrawing)
	assert.Equal(t, "host-sketch", byPlayer["gm-public"].DrawingData)
	require.NotNil(t, byPlayer["gm-public"].IsCorrect)
	assert.True(t, *byPlayer["gm-public"].IsCorrect)
	assert.Equal(t, "alice-answer", byPlayer[joined[0].PublicID].Answer)
}

func TestResolveDrawing(t *testing.T) {
	r, joined := startedRoom(t, DefaultRoomSettings(), "alice")
	p := r.Players[joined[0].PersistentID]

	tests := []struct {
		name        string
		answer      *Answer
		setup       func()
		wantData    string
		wantDrawing bool
	}{
		{
			name:        "answer carries data",
			answer:      &Answer{HasDrawing: true, DrawingData: "inline"},
			wantData:    "inline",
			wantDrawing: true,
		},
		{
			name:   "no drawing",
			answer: &Answer{Text: "x"},
		},
		{
			name:        "live board fallback",
			answer:      &Answer{HasDrawing: true},
			setup:       func() { r.Boards[p.ConnectionID] = &Board{ConnectionID: p.ConnectionID, RoundIndex: 0, Data: "live"} },
			wantData:    "live",
			wantDrawing: true,
		},
		{
			name:        "archive wins over live board",
			answer:      &Answer{HasDrawing: true},
			setup:       func() { _, _ = r.UpdateBoard(p.ConnectionID, 0, "archived", testEpoch) },
			wantData:    "archived",
			wantDrawing: true,
		},
		{
			name:   "nothing found flips flag",
			answer: &Answer{HasDrawing: true},
			setup: func() {
				r.Boards = map[string]*Board{}
				delete(r.boardArchive, p.PersistentID)
			},
		},
		{
			name:   "live board from another round ignored",
			answer: &Answer{HasDrawing: true},
			setup:  func() { r.Boards[p.ConnectionID] = &Board{RoundIndex: 4, Data: "old"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			data, hasDrawing := ResolveDrawing(r, p, 0, tt.answer)
			assert.Equal(t, tt.wantData, data)
			assert.Equal(t, tt.wantDrawing, hasDrawing)
		})
	}
}
