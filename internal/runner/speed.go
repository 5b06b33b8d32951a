package runner

import (
	"fmt"
	"time"
)

// Speed is a named auto-run interval.
type Speed string

const (
	Slow     Speed = "slow"
	Medium   Speed = "medium"
	Fast     Speed = "fast"
	VeryFast Speed = "very-fast"
)

// DefaultSpeed is the speed of a new runner.
const DefaultSpeed = Medium

// SettleDelay is the pause between cancelling the old timer and arming the
// new one when the speed changes mid-run.
const SettleDelay = 50 * time.Millisecond

// Interval returns the delay between two steps. Unknown speeds run at the
// default interval.
func (s Speed) Interval() time.Duration {
	switch s {
	case Slow:
		return 1000 * time.Millisecond
	case Fast:
		return 200 * time.Millisecond
	case VeryFast:
		return 50 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// ParseSpeed parses slow, medium, fast or very-fast.
func ParseSpeed(s string) (Speed, error) {
	switch sp := Speed(s); sp {
	case Slow, Medium, Fast, VeryFast:
		return sp, nil
	default:
		return "", fmt.Errorf("invalid speed %q: must be slow, medium, fast or very-fast", s)
	}
}

// Speeds lists all speeds from slowest to fastest.
func Speeds() []Speed {
	return []Speed{Slow, Medium, Fast, VeryFast}
}
