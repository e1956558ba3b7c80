package app

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom/internal/domain"
)

func TestRemaining_IgnoresTickJitter(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{
		-300 * time.Millisecond,
		0,
		1200 * time.Millisecond,
		2100 * time.Millisecond,
		2900 * time.Millisecond,
		4400 * time.Millisecond,
		5300 * time.Millisecond,
		7 * time.Second,
	}

	got := make([]int, 0, len(offsets))
	for _, off := range offsets {
		got = append(got, Remaining(5, start, start.Add(off)))
	}

	assert.Equal(t, []int{5, 5, 4, 3, 2, 1, 0, 0}, got)
}

func TestTimerState_String(t *testing.T) {
	assert.Equal(t, "idle", TimerIdle.String())
	assert.Equal(t, "running", TimerRunning.String())
	assert.Equal(t, "expiring", TimerExpiring.String())
}

func TestSessionTimer_TicksFiveToZeroThenFinalizes(t *testing.T) {
	h := newHarness(t, withTimeLimit(domain.LimitSeconds(5)))
	alice := h.join("conn-alice", "Alice")

	require.NoError(t, h.session.StartGame(h.gm.ConnectionID()))

	for i := 1; i <= 5; i++ {
		h.clock.Advance(time.Second)
		want := i + 1
		require.Eventually(t, func() bool { return len(h.gm.ticks()) == want }, time.Second, time.Millisecond)
	}
	assert.Equal(t, []int{5, 4, 3, 2, 1, 0}, h.gm.ticks())

	require.Eventually(t, func() bool { return len(h.gm.ofType(domain.EventTimeUp)) == 1 }, time.Second, time.Millisecond)
	snap, err := h.session.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.SubmissionPhaseOver, "grace period keeps submissions open")

	h.clock.Advance(DefaultGracePeriod)
	require.Eventually(t, func() bool {
		snap, err := h.session.Snapshot()
		return err == nil && snap.SubmissionPhaseOver
	}, time.Second, time.Millisecond)

	snap, err = h.session.Snapshot()
	require.NoError(t, err)
	require.Contains(t, snap.Answers, alice.PublicID)
	assert.Equal(t, domain.PlaceholderAnswer, snap.Answers[alice.PublicID].Answer)
	assert.True(t, snap.Answers[alice.PublicID].AutoSubmitted)

	stats := h.session.TimerStats()
	assert.Equal(t, TimerStats{Started: 1, Completed: 1}, stats)
	assert.Zero(t, stats.Active())
}

func TestSessionTimer_SubmissionDuringGraceIsHonored(t *testing.T) {
	h := newHarness(t, withTimeLimit(domain.LimitSeconds(1)))
	alice := h.join("conn-alice", "Alice")
	h.join("conn-bob", "Bob")

	require.NoError(t, h.session.StartGame(h.gm.ConnectionID()))
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(h.gm.ofType(domain.EventTimeUp)) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.session.SubmitAnswer("conn-alice", 0, "just in time", false, ""))

	h.clock.Advance(DefaultGracePeriod)
	require.Eventually(t, func() bool {
		snap, err := h.session.Snapshot()
		return err == nil && snap.SubmissionPhaseOver
	}, time.Second, time.Millisecond)

	snap, err := h.session.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "just in time", snap.Answers[alice.PublicID].Answer)
	assert.False(t, snap.Answers[alice.PublicID].AutoSubmitted)
}

func TestSessionTimer_AtMostOneHandle(t *testing.T) {
	h := newHarness(t, withTimeLimit(domain.LimitSeconds(5)))
	h.join("conn-alice", "Alice")
	gm := h.gm.ConnectionID()

	steps := []struct {
		name string
		act  func() error
	}{
		{"start", func() error { return h.session.StartGame(gm) }},
		{"next round", func() error { return h.session.NextRound(gm) }},
		{"end early", func() error { return h.session.EndRoundEarly(gm) }},
		{"next round again", func() error { return h.session.NextRound(gm) }},
		{"conclude", func() error { return h.session.Conclude(gm) }},
	}

	for _, step := range steps {
		require.NoError(t, step.act(), step.name)
		stats := h.session.TimerStats()
		assert.LessOrEqual(t, stats.Active(), 1, step.name)
		assert.GreaterOrEqual(t, stats.Active(), 0, step.name)
	}

	final := h.session.TimerStats()
	assert.Equal(t, 3, final.Started)
	assert.Equal(t, 3, final.Cancelled)
	assert.Zero(t, final.Active())
}

func TestSessionTimer_AdvanceCancelsOldRound(t *testing.T) {
	h := newHarness(t, withTimeLimit(domain.LimitSeconds(2)))
	h.join("conn-alice", "Alice")
	gm := h.gm.ConnectionID()

	require.NoError(t, h.session.StartGame(gm))
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(h.gm.ticks()) == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.session.NextRound(gm))
	for i := 0; i < 4; i++ {
		h.clock.Advance(time.Second)
	}
	require.Eventually(t, func() bool { return len(h.gm.ofType(domain.EventTimeUp)) == 1 }, time.Second, time.Millisecond)

	for _, ev := range h.gm.ofType(domain.EventTimeUp) {
		assert.Equal(t, 1, ev.Payload.(*domain.TimeUpPayload).RoundIndex)
	}
}

func TestSessionTimer_UntimedNeverStarts(t *testing.T) {
	h := newHarness(t, withTimeLimit(domain.Untimed()))
	h.join("conn-alice", "Alice")

	require.NoError(t, h.session.StartGame(h.gm.ConnectionID()))
	h.clock.Advance(time.Minute)

	assert.Zero(t, h.session.TimerStats().Started)
	assert.Empty(t, h.gm.ticks())
}

func TestRoundTimer_StaleGenerationIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var ticks []int
	rt := NewRoundTimer(clock, time.Second, func(fn func(), abort <-chan struct{}) bool { return false }, TimerHooks{
		OnTick:   func(_, remaining int) { ticks = append(ticks, remaining) },
		OnTimeUp: func(int) {},
		OnExpire: func(int) { t.Fatal("expired after cancel") },
	})

	require.True(t, rt.Start(0, domain.LimitSeconds(1)))
	gen := rt.gen
	require.True(t, rt.Cancel())

	clock.Advance(time.Second)
	rt.handleTick(gen)
	rt.handleGraceElapsed(gen)

	assert.Equal(t, []int{1}, ticks)
	assert.Equal(t, TimerIdle, rt.State())
	assert.False(t, rt.Cancel())
}
