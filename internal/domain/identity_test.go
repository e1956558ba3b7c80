package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newTestRoom(t *testing.T, settings RoomSettings, questions ...Question) *Room {
	t.Helper()
	if len(questions) == 0 {
		questions = []Question{{Text: "Q0", Answer: "A0"}, {Text: "Q1", Answer: "A1"}, {Text: "Q2", Answer: "A2"}}
	}
	r := NewRoom("abcd", settings, questions, "gm-token", "gm-public", "Host", testEpoch)
	_, err := r.Bind(JoinRequest{ConnectionID: "gm-conn", PresentedID: "gm-token"}, sequentialIDs("unused-"), testEpoch)
	require.NoError(t, err)
	return r
}

func joinPlayer(t *testing.T, r *Room, ids IDGenerator, connID, name string) BindResult {
	t.Helper()
	res, err := r.Bind(JoinRequest{ConnectionID: connID, Name: name}, ids, testEpoch)
	require.NoError(t, err)
	return res
}

func TestBind_FreshJoinIssuesIdentity(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())
	ids := sequentialIDs("id-")

	res := joinPlayer(t, r, ids, "conn-1", "Alice")

	assert.Equal(t, RolePlayer, res.Role)
	assert.False(t, res.Reconnected)
	assert.NotEmpty(t, res.PersistentID)
	assert.NotEqual(t, res.PersistentID, res.PublicID)
	require.Len(t, r.Players, 1)

	p := r.Players[res.PersistentID]
	assert.Equal(t, "conn-1", p.ConnectionID)
	assert.True(t, p.IsActive)
	assert.Equal(t, 3, p.Lives)
}

func TestBind_ReconnectLifecycle(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())
	ids := sequentialIDs("id-")

	first := joinPlayer(t, r, ids, "conn-1", "Alice")
	p1 := first.PersistentID
	assert.True(t, r.Players[p1].IsActive)

	left, ok := r.Disconnect("conn-1", testEpoch.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, first.PublicID, left.PublicID)
	assert.False(t, r.Players[p1].IsActive)

	again, err := r.Bind(JoinRequest{ConnectionID: "conn-2", PresentedID: p1, Name: "Alice"}, ids, testEpoch.Add(2*time.Second))
	require.NoError(t, err)

	assert.True(t, again.Reconnected)
	assert.Equal(t, "conn-1", again.StaleConnID)
	assert.Equal(t, p1, again.PersistentID)
	assert.Len(t, r.Players, 1)
	assert.True(t, r.Players[p1].IsActive)
	assert.Equal(t, "conn-2", r.Players[p1].ConnectionID)
}

func TestBind_DuplicateReconnectIsIdempotent(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())
	ids := sequentialIDs("id-")
	first := joinPlayer(t, r, ids, "conn-1", "Alice")

	for i := 0; i < 3; i++ {
		res, err := r.Bind(JoinRequest{ConnectionID: "conn-2", PresentedID: first.PersistentID}, ids, testEpoch)
		require.NoError(t, err)
		assert.Equal(t, first.PersistentID, res.PersistentID)
		assert.Equal(t, i > 0, res.Duplicate)
	}
	assert.Len(t, r.Players, 1)
}

func TestBind_UnknownIDCreatesExactlyOnePlayer(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())
	ids := sequentialIDs("id-")

	res, err := r.Bind(JoinRequest{ConnectionID: "conn-1", PresentedID: "from-another-room", Name: "Bob"}, ids, testEpoch)
	require.NoError(t, err)

	assert.False(t, res.Reconnected)
	assert.NotEqual(t, "from-another-room", res.PersistentID)
	assert.Len(t, r.Players, 1)
}

func TestBind_GameMasterTokenRebindsSeat(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())

	_, ok := r.Disconnect("gm-conn", testEpoch)
	require.True(t, ok)
	assert.False(t, r.GameMasterActive)
	assert.ErrorIs(t, r.RequireGameMaster("gm-conn"), ErrNotGameMaster)

	res, err := r.Bind(JoinRequest{ConnectionID: "gm-conn-2", PresentedID: "gm-token"}, sequentialIDs("x"), testEpoch)
	require.NoError(t, err)

	assert.Equal(t, RoleGameMaster, res.Role)
	assert.True(t, res.Reconnected)
	assert.NoError(t, r.RequireGameMaster("gm-conn-2"))
	assert.Empty(t, r.Players)
}

func TestBind_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *Room)
		req     JoinRequest
		wantErr error
	}{
		{
			name:    "missing name",
			req:     JoinRequest{ConnectionID: "c1", Name: "  "},
			wantErr: ErrNameRequired,
		},
		{
			name: "room full",
			setup: func(r *Room) {
				r.Settings.MaxPlayers = 1
				_, _ = r.Bind(JoinRequest{ConnectionID: "c0", Name: "First"}, sequentialIDs("f"), testEpoch)
			},
			req:     JoinRequest{ConnectionID: "c1", Name: "Second"},
			wantErr: ErrRoomFull,
		},
		{
			name:    "concluded room",
			setup:   func(r *Room) { r.Conclude(testEpoch) },
			req:     JoinRequest{ConnectionID: "c1", Name: "Late"},
			wantErr: ErrGameConcluded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRoom(t, DefaultRoomSettings())
			if tt.setup != nil {
				tt.setup(r)
			}
			_, err := r.Bind(tt.req, sequentialIDs("id-"), testEpoch)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBind_SpectatorWithoutNameIsAllowed(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())

	res, err := r.Bind(JoinRequest{ConnectionID: "c1", Spectator: true}, sequentialIDs("id-"), testEpoch)
	require.NoError(t, err)

	assert.Equal(t, RoleSpectator, res.Role)
	assert.Equal(t, "Spectator", res.Name)
}

func TestDisconnect_StaleConnectionIgnored(t *testing.T) {
	r := newTestRoom(t, DefaultRoomSettings())
	ids := sequentialIDs("id-")
	first := joinPlayer(t, r, ids, "conn-1", "Alice")

	_, err := r.Bind(JoinRequest{ConnectionID: "conn-2", PresentedID: first.PersistentID}, ids, testEpoch)
	require.NoError(t, err)

	_, ok := r.Disconnect("conn-1", testEpoch)
	assert.False(t, ok)
	assert.True(t, r.Players[first.PersistentID].IsActive)
}
