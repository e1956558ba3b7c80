package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom/internal/domain"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrRoomNotFound, ErrCodeRoomNotFound},
		{domain.ErrRoomFull, ErrCodeRoomFull},
		{domain.ErrRoomClosed, ErrCodeRoomClosed},
		{errNotInRoom, ErrCodeNotInRoom},
		{domain.ErrNotGameMaster, ErrCodeNotGameMaster},
		{fmt.Errorf("kick: %w", domain.ErrNotGameMaster), ErrCodeNotGameMaster},
		{domain.ErrNameRequired, ErrCodeNameRequired},
		{domain.ErrInvalidTarget, ErrCodePlayerNotFound},
		{domain.ErrCannotVoteSelf, ErrCodeCannotVoteSelf},
		{domain.ErrVotingClosed, ErrCodeInvalidAction},
		{domain.ErrEliminated, ErrCodeInvalidAction},
		{domain.ErrInternal, ErrCodeInternalError},
		{errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage_HidesInternalErrors(t *testing.T) {
	assert.Equal(t, domain.ErrCannotVoteSelf.Error(), ErrorMessage(domain.ErrCannotVoteSelf))
	assert.Equal(t, "internal server error", ErrorMessage(errors.New("nil map write")))
}

func TestDecodePayload_KeepsDefaults(t *testing.T) {
	payload := CreateRoomPayload{Settings: domain.DefaultRoomSettings()}
	raw := json.RawMessage(`{"name":"Host","settings":{"pointsMode":true,"timeLimit":99999}}`)

	require.NoError(t, decodePayload(raw, &payload))

	assert.Equal(t, "Host", payload.Name)
	assert.True(t, payload.Settings.PointsMode)
	assert.True(t, payload.Settings.TimeLimit.IsUntimed())
	assert.Equal(t, 3, payload.Settings.StartingLives)
	assert.Equal(t, 50, payload.Settings.MaxPlayers)
}

func TestDecodePayload_EmptyAndInvalid(t *testing.T) {
	var p CastVotePayload
	assert.NoError(t, decodePayload(nil, &p))
	assert.NoError(t, decodePayload(json.RawMessage("null"), &p))
	assert.Error(t, decodePayload(json.RawMessage(`{"targetPlayerId":7}`), &p))
}
