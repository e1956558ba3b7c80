package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom/internal/app"
	"quizroom/internal/domain"
)

var (
	_ app.RecapPublisher = NopPublisher{}
	_ app.RecapPublisher = (*JetStreamPublisher)(nil)
)

func testRecap() *domain.Recap {
	ended := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return &domain.Recap{
		RoomCode:     "QUIZ",
		StartedAt:    ended.Add(-10 * time.Minute),
		EndedAt:      ended,
		IsPointsMode: true,
		Winner:       &domain.PlayerSummary{ID: "p1", Name: "Alice", Rank: 1, Score: 4},
		Players:      []domain.PlayerSummary{{ID: "p1", Name: "Alice", Rank: 1, Score: 4}},
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.PublishRecap(context.Background(), testRecap()))
	assert.NoError(t, p.Close())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "quizroom.events.room.concluded", Subject("quizroom.events", EventRoomConcluded))
}

func TestStreamConfig_CoversSubjects(t *testing.T) {
	sc := StreamConfig(DefaultJetStreamConfig())

	assert.Equal(t, "QUIZROOM_EVENTS", sc.Name)
	assert.Equal(t, []string{"quizroom.events.>"}, sc.Subjects)
	assert.Equal(t, jetstream.FileStorage, sc.Storage)
	assert.Equal(t, 2*time.Hour, sc.Duplicates)
}

func TestRecapMsgID_StablePerConclusion(t *testing.T) {
	a := testRecap()
	b := testRecap()
	assert.Equal(t, RecapMsgID(a), RecapMsgID(b))

	b.EndedAt = b.EndedAt.Add(time.Second)
	assert.NotEqual(t, RecapMsgID(a), RecapMsgID(b))
}

func TestNewRecapMessage(t *testing.T) {
	recap := testRecap()

	msg, err := NewRecapMessage("quizroom.events", recap)
	require.NoError(t, err)

	assert.Equal(t, "quizroom.events.room.concluded", msg.Subject)
	assert.Equal(t, "QUIZ", msg.Header.Get("Room-Code"))
	assert.Equal(t, EventRoomConcluded, msg.Header.Get("Event-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, EventRoomConcluded, env.EventType)
	assert.Equal(t, "QUIZ", env.RoomCode)
	assert.Equal(t, msg.Header.Get("Event-ID"), env.EventID)

	var got domain.Recap
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "Alice", got.Winner.Name)
	assert.True(t, got.EndedAt.Equal(recap.EndedAt))
}
