package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom/internal/domain"
)

func newTestRegistry(t *testing.T) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	r := NewRegistry(RegistryOptions{
		IdleTimeout:     10 * time.Minute,
		CleanupInterval: time.Minute,
		Session:         SessionOptions{Clock: clock, NewID: sequentialIDs()},
	}, zerolog.Nop())
	t.Cleanup(r.Close)
	return r, clock
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t)

	created, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), []domain.Question{{Text: "Q"}})
	require.NoError(t, err)

	assert.Len(t, created.Code, DefaultRoomCodeLength)
	assert.NotEmpty(t, created.GameMasterToken)
	for _, c := range created.Code {
		assert.Contains(t, RoomCodeChars, string(c))
	}

	got, err := r.Get("  " + strings.ToLower(created.Code) + " ")
	require.NoError(t, err)
	assert.Same(t, created.Session, got)

	_, err = r.Get("NOPE")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRegistry_GameMasterTokenBindsSeat(t *testing.T) {
	r, _ := newTestRegistry(t)
	created, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), []domain.Question{{Text: "Q"}})
	require.NoError(t, err)

	res, err := created.Session.Join(domain.JoinRequest{ConnectionID: "gm", PresentedID: created.GameMasterToken})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleGameMaster, res.Role)
	assert.NoError(t, created.Session.RequireGameMaster("gm"))
}

func TestRegistry_CountsAndDelete(t *testing.T) {
	r, _ := newTestRegistry(t)

	a, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	require.NoError(t, err)
	_, err = r.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	require.NoError(t, err)

	for _, conn := range []string{"c1", "c2"} {
		_, err := a.Session.Join(domain.JoinRequest{ConnectionID: conn, Name: conn})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, r.RoomCount())
	assert.Equal(t, 2, r.PlayerCount())

	r.Delete(strings.ToLower(a.Code))
	assert.Equal(t, 1, r.RoomCount())
	assert.Equal(t, 0, r.PlayerCount())

	_, err = a.Session.Snapshot()
	assert.ErrorIs(t, err, domain.ErrRoomClosed)
}

func TestRegistry_IndependentInstances(t *testing.T) {
	r1, _ := newTestRegistry(t)
	r2, _ := newTestRegistry(t)

	created, err := r1.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	require.NoError(t, err)

	_, err = r2.Get(created.Code)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Zero(t, r2.RoomCount())
}

func TestRegistry_IdleRoomsAreCleanedUp(t *testing.T) {
	r, clock := newTestRegistry(t)

	idle, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	require.NoError(t, err)
	busy, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	require.NoError(t, err)
	_, err = busy.Session.Join(domain.JoinRequest{ConnectionID: "c1", Name: "Alice"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for i := 0; i < 11; i++ {
		clock.Advance(time.Minute)
	}

	require.Eventually(t, func() bool { return r.RoomCount() == 1 }, time.Second, time.Millisecond)
	_, err = r.Get(idle.Code)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = r.Get(busy.Code)
	assert.NoError(t, err)
}

func TestRegistry_CloseRejectsNewRooms(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Close()

	_, err := r.CreateRoom("Host", domain.DefaultRoomSettings(), nil)
	assert.ErrorIs(t, err, domain.ErrRoomClosed)
}
