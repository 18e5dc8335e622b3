// Package backoff paces polling against a provider's rate-limit window.
//
// The delay curve spends most of the window's quota early, when a fast
// response matters, and slows down as the window ages. For a window of
// 1000 calls per 60 minutes the first quarter of the window polls about
// twice as often as a uniform schedule and the last fifth about four times
// less often, while the cumulative schedule never makes more than the
// remaining calls before the window resets.
package backoff

import (
	"math"
	"sync"
	"time"
)

// Window is a rate-limit observation: Count calls remain and the window
// resets Minutes after When.
type Window struct {
	Count   int
	Minutes float64
	When    time.Time
}

// Remaining returns the time left in the window at now.
func (w Window) Remaining(now time.Time) time.Duration {
	left := time.Duration(w.Minutes*float64(time.Minute)) - now.Sub(w.When)
	if left < 0 {
		return 0
	}
	return left
}

// Delay returns the pause before the next call at now.
func (w Window) Delay(now time.Time) time.Duration {
	elapsed := now.Sub(w.When)
	if elapsed < 0 {
		elapsed = 0
	}
	return Delay(elapsed, w.Count, w.Minutes)
}

// lead shifts each minute step forward so the slower rate of the next
// minute applies slightly early.
const lead = 15 * time.Second

// Delay computes the biased pause after elapsed time in a window that
// started with count calls spread over minutes.
//
// With count exhausted the whole remainder of the window is returned.
// Otherwise the delay, in minutes, is ln(minutes)*m/count where m is the
// current (one-based, rounded up) minute of the window plus one half.
// Windows shorter than e minutes use a log factor of one.
func Delay(elapsed time.Duration, count int, minutes float64) time.Duration {
	if count <= 0 {
		left := time.Duration(minutes*float64(time.Minute)) - elapsed
		if left < 0 {
			return 0
		}
		return left
	}
	seconds := math.Ceil(elapsed.Seconds())
	m := toMinutes(seconds+lead.Seconds()) + 0.5
	factor := math.Log(math.Max(minutes, math.E))
	delayMinutes := factor * m / float64(count)
	return time.Duration(math.Round(60000*delayMinutes)) * time.Millisecond
}

// Uniform is the pause that spreads count calls evenly over minutes.
func Uniform(count int, minutes float64) time.Duration {
	if count <= 0 {
		return time.Duration(minutes * float64(time.Minute))
	}
	return time.Duration(math.Ceil(60000*minutes/float64(count))) * time.Millisecond
}

func toMinutes(seconds float64) float64 {
	return math.Ceil(math.Max(0, seconds) / 60)
}

// Tracker caches the window seen by one poller. A new observation replaces
// the cached window only when it signals a new quota period: more calls
// remaining than cached, or a later reset. Otherwise the cached window keeps
// aging.
type Tracker struct {
	mu     sync.Mutex
	window Window
	now    func() time.Time
}

// NewTracker returns a tracker with an empty window anchored at the current
// time. A nil now uses time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, window: Window{When: now()}}
}

// Observe applies an observation of remaining count and minutes until reset.
// It reports whether the cached window was replaced.
func (t *Tracker) Observe(count int, minutes float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	newCount := count > t.window.Count
	newReset := minutes > t.window.Minutes
	if !newCount && !newReset {
		return false
	}
	t.window = Window{Count: count, Minutes: minutes, When: t.now()}
	return true
}

// Window returns the cached window.
func (t *Tracker) Window() Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Delay returns the biased pause for the cached window at the current time.
func (t *Tracker) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.Delay(t.now())
}

// Exhausted returns the time until the cached window resets, for use when
// the provider reports the quota is spent.
func (t *Tracker) Exhausted() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.Remaining(t.now())
}

// MinutesUntil converts a reset timestamp into whole minutes from now, the
// way providers report windows.
func MinutesUntil(reset, now time.Time) float64 {
	m := toMinutes(float64(reset.Unix())) - toMinutes(float64(now.Unix()))
	return math.Max(m, 0)
}
