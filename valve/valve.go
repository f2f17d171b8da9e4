// Package valve implements keyed call throttling using the Fixed Window
// Counter algorithm. A Valve tracks, per key, how many calls were allowed in
// the current window and denies calls once the configured limit is reached.
package valve

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidConfig is returned when a non-positive window or limit is passed
// to Check, Remaining or Wrap. Configuration errors are reported eagerly and
// never silently clamped.
var ErrInvalidConfig = errors.New("non-positive window or limit")

// KeyFunc derives the accounting key for a value and decides whether the
// value is subject to limiting at all. Returning ok == false excludes the
// value: the call is allowed unconditionally and consumes no quota. The
// returned key must be usable as a map key.
type KeyFunc func(value any) (key any, ok bool)

// keyState is the per-key record. count is the number of calls allowed in
// the window starting at windowStart.
type keyState struct {
	windowStart time.Time
	count       int64
}

// Valve tracks per-key call counts over fixed windows. The zero value is not
// usable; create instances with New.
//
// A single mutex guards the whole registry. The critical section is one
// clock read and a few field updates, so whole-registry locking keeps the
// implementation simple without measurable contention at the intended scale.
type Valve struct {
	mu     sync.Mutex
	states map[any]*keyState
	now    func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// Option configures a Valve.
type Option func(*Valve)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Valve) {
		v.now = now
	}
}

// WithSweep starts a background janitor that removes entries whose window
// started at least maxAge ago, every interval. Stop it with Close.
func WithSweep(interval, maxAge time.Duration) Option {
	return func(v *Valve) {
		v.sweepStop = make(chan struct{})
		v.sweepDone = make(chan struct{})
		go v.sweepLoop(interval, maxAge)
	}
}

// New creates an empty Valve. Key state is created lazily on first Check.
func New(opts ...Option) *Valve {
	v := &Valve{
		states: make(map[any]*keyState),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check decides whether the current call for value is allowed under the
// given window and limit, and records it if so.
//
// The key is derived from value via keyFn; a nil keyFn uses value itself as
// the key. If keyFn excludes the value, the call is allowed and nothing is
// counted. Denied calls leave the state unchanged, so a saturated key
// recovers as soon as its window rolls over.
//
// A call landing exactly on the window boundary belongs to the new window.
func (v *Valve) Check(window time.Duration, limit int64, value any, keyFn KeyFunc) (bool, error) {
	if window <= 0 || limit <= 0 {
		return false, fmt.Errorf("check window=%s limit=%d: %w", window, limit, ErrInvalidConfig)
	}

	key := value
	if keyFn != nil {
		derived, ok := keyFn(value)
		if !ok {
			return true, nil
		}
		key = derived
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	state, exists := v.states[key]
	if !exists {
		state = &keyState{windowStart: now}
		v.states[key] = state
	} else if now.Sub(state.windowStart) >= window {
		state.windowStart = now
		state.count = 0
	}

	if state.count < limit {
		state.count++
		return true, nil
	}
	return false, nil
}

// Remaining reports how much quota is left for value in its current window
// without consuming any. Excluded values report the full limit.
func (v *Valve) Remaining(window time.Duration, limit int64, value any, keyFn KeyFunc) (int64, error) {
	if window <= 0 || limit <= 0 {
		return 0, fmt.Errorf("remaining window=%s limit=%d: %w", window, limit, ErrInvalidConfig)
	}

	key := value
	if keyFn != nil {
		derived, ok := keyFn(value)
		if !ok {
			return limit, nil
		}
		key = derived
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	state, exists := v.states[key]
	if !exists || v.now().Sub(state.windowStart) >= window {
		return limit, nil
	}
	left := limit - state.count
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Reset clears state. With no arguments the whole registry is cleared;
// otherwise only the named keys are. Unknown keys are ignored.
func (v *Valve) Reset(keys ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(keys) == 0 {
		v.states = make(map[any]*keyState)
		return
	}
	for _, key := range keys {
		delete(v.states, key)
	}
}

// Len reports the number of keys currently tracked.
func (v *Valve) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.states)
}

// EvictStale removes entries whose window started at least maxAge ago and
// returns how many were removed. It is a maintenance operation, separate
// from the Check hot path; evicting a key whose window has elapsed is
// indistinguishable from the rollover reset Check would perform anyway.
func (v *Valve) EvictStale(maxAge time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	removed := 0
	for key, state := range v.states {
		if now.Sub(state.windowStart) >= maxAge {
			delete(v.states, key)
			removed++
		}
	}
	return removed
}

// Close stops the sweep janitor, if one was started with WithSweep. It is
// safe to call more than once and on a Valve without a janitor.
func (v *Valve) Close() error {
	if v.sweepStop == nil {
		return nil
	}
	v.closeOnce.Do(func() {
		close(v.sweepStop)
		<-v.sweepDone
	})
	return nil
}

func (v *Valve) sweepLoop(interval, maxAge time.Duration) {
	defer close(v.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-v.sweepStop:
			return
		case <-ticker.C:
			if removed := v.EvictStale(maxAge); removed > 0 {
				log.Debug().Int("removed", removed).Dur("max_age", maxAge).Msg("Valve: swept stale keys")
			}
		}
	}
}
