package app

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quizroom/internal/domain"
)

const (
	// TickInterval is the cadence of timer_tick broadcasts
	TickInterval = time.Second

	// DefaultGracePeriod is how long late submissions are honored after time is up
	DefaultGracePeriod = time.Second
)

// TimerState is the round timer state machine: Idle -> Running -> Expiring -> Idle
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerExpiring
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerExpiring:
		return "expiring"
	default:
		return "idle"
	}
}

// TimerStats counts timer handle lifecycles. Started minus Cancelled minus Completed
// is the number of live handles and never exceeds one.
type TimerStats struct {
	Started   int
	Cancelled int
	Completed int
}

// Active returns the number of live timer handles
func (s TimerStats) Active() int {
	return s.Started - s.Cancelled - s.Completed
}

// TimerHooks are invoked on the room event loop
type TimerHooks struct {
	OnTick   func(round, remaining int)
	OnTimeUp func(round int)
	OnExpire func(round int)
}

// Remaining returns the whole seconds left of limit, measured from an absolute start
func Remaining(limit int, startedAt, now time.Time) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	left := limit - int(math.Round(elapsed.Seconds()))
	if left < 0 {
		return 0
	}
	return left
}

// scheduledTask is the single cancellable handle a RoundTimer holds
type scheduledTask struct {
	stop chan struct{}
	once sync.Once
}

func newScheduledTask() *scheduledTask {
	return &scheduledTask{stop: make(chan struct{})}
}

func (t *scheduledTask) cancel() {
	t.once.Do(func() { close(t.stop) })
}

// poster enqueues fn on the owning event loop; it gives up when abort closes
type poster func(fn func(), abort <-chan struct{}) bool

// RoundTimer runs the countdown for one room. It is owned by the room's event loop:
// Start and Cancel must be called from it, and scheduled work posts back into it.
type RoundTimer struct {
	clock clockwork.Clock
	grace time.Duration
	post  poster
	hooks TimerHooks

	state     TimerState
	round     int
	limit     int
	startedAt time.Time
	gen       uint64
	task      *scheduledTask
	stats     TimerStats
}

// NewRoundTimer creates an idle timer
func NewRoundTimer(clock clockwork.Clock, grace time.Duration, post poster, hooks TimerHooks) *RoundTimer {
	if grace < 0 {
		grace = 0
	}
	return &RoundTimer{
		clock: clock,
		grace: grace,
		post:  post,
		hooks: hooks,
	}
}

// State returns the current state
func (rt *RoundTimer) State() TimerState {
	return rt.state
}

// Stats returns lifecycle counters
func (rt *RoundTimer) Stats() TimerStats {
	return rt.stats
}

// Grace returns the grace period
func (rt *RoundTimer) Grace() time.Duration {
	return rt.grace
}

// Start cancels any live handle and starts counting down round. Untimed limits
// leave the timer idle and return false.
func (rt *RoundTimer) Start(round int, limit domain.TimeLimit) bool {
	rt.Cancel()

	secs, ok := limit.Seconds()
	if !ok {
		return false
	}

	rt.gen++
	rt.state = TimerRunning
	rt.round = round
	rt.limit = secs
	rt.startedAt = rt.clock.Now()
	rt.stats.Started++
	rt.task = rt.runTicker(rt.gen)

	rt.hooks.OnTick(round, secs)
	return true
}

// Cancel stops a running or expiring timer. It returns false when idle.
func (rt *RoundTimer) Cancel() bool {
	if rt.state == TimerIdle {
		return false
	}
	if rt.task != nil {
		rt.task.cancel()
		rt.task = nil
	}
	rt.gen++
	rt.state = TimerIdle
	rt.stats.Cancelled++
	return true
}

func (rt *RoundTimer) runTicker(gen uint64) *scheduledTask {
	task := newScheduledTask()
	ticker := rt.clock.NewTicker(TickInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-task.stop:
				return
			case <-ticker.Chan():
				if !rt.post(func() { rt.handleTick(gen) }, task.stop) {
					return
				}
			}
		}
	}()

	return task
}

func (rt *RoundTimer) runGrace(gen uint64) *scheduledTask {
	task := newScheduledTask()
	timer := rt.clock.NewTimer(rt.grace)

	go func() {
		defer timer.Stop()
		select {
		case <-task.stop:
		case <-timer.Chan():
			rt.post(func() { rt.handleGraceElapsed(gen) }, task.stop)
		}
	}()

	return task
}

func (rt *RoundTimer) handleTick(gen uint64) {
	if gen != rt.gen || rt.state != TimerRunning {
		return
	}

	remaining := Remaining(rt.limit, rt.startedAt, rt.clock.Now())
	rt.hooks.OnTick(rt.round, remaining)
	if remaining > 0 {
		return
	}

	rt.task.cancel()
	rt.state = TimerExpiring
	rt.task = rt.runGrace(gen)
	rt.hooks.OnTimeUp(rt.round)
}

func (rt *RoundTimer) handleGraceElapsed(gen uint64) {
	if gen != rt.gen || rt.state != TimerExpiring {
		return
	}

	rt.task = nil
	rt.state = TimerIdle
	rt.stats.Completed++
	rt.hooks.OnExpire(rt.round)
}
