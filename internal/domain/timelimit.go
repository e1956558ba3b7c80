package domain

import (
	"encoding/json"
	"time"
)

// NoTimeLimitWire is the value clients send and expect for an untimed round
const NoTimeLimitWire = 99999

// TimeLimit is an optional per-round limit in whole seconds. The zero value is untimed.
type TimeLimit struct {
	seconds int
	set     bool
}

// Untimed returns a limit that never starts a round timer
func Untimed() TimeLimit {
	return TimeLimit{}
}

// LimitSeconds returns a finite limit, or Untimed for n <= 0 and the wire sentinel
func LimitSeconds(n int) TimeLimit {
	if n <= 0 || n >= NoTimeLimitWire {
		return Untimed()
	}
	return TimeLimit{seconds: n, set: true}
}

// Seconds returns the limit and whether it is finite
func (t TimeLimit) Seconds() (int, bool) {
	return t.seconds, t.set
}

// IsUntimed reports whether the round has no limit
func (t TimeLimit) IsUntimed() bool {
	return !t.set
}

// Duration returns the limit as a duration, zero when untimed
func (t TimeLimit) Duration() time.Duration {
	return time.Duration(t.seconds) * time.Second
}

// Wire returns the integer representation used on the wire
func (t TimeLimit) Wire() int {
	if !t.set {
		return NoTimeLimitWire
	}
	return t.seconds
}

func (t TimeLimit) String() string {
	if !t.set {
		return "untimed"
	}
	return t.Duration().String()
}

// MarshalJSON encodes the limit as an integer, using the sentinel for untimed
func (t TimeLimit) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Wire())
}

// UnmarshalJSON accepts an integer or null
func (t *TimeLimit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Untimed()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = LimitSeconds(n)
	return nil
}
