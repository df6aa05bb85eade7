package app

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// phaseTimer is the single pending timer of a session. It is only touched while the owning
// engine's lock is held; callbacks re-acquire that lock and compare generations, so a firing that
// lost the race against a manual transition is ignored.
type phaseTimer struct {
	clock    clockwork.Clock
	timer    clockwork.Timer
	stop     chan struct{}
	gen      uint64
	deadline time.Time
}

func newPhaseTimer(clock clockwork.Clock) *phaseTimer {
	return &phaseTimer{clock: clock}
}

// schedule cancels any pending timer and arms a new one that calls fire with its generation.
func (t *phaseTimer) schedule(d time.Duration, fire func(gen uint64)) {
	t.cancel()

	gen := t.gen
	timer := t.clock.NewTimer(d)
	stop := make(chan struct{})
	t.timer = timer
	t.stop = stop
	t.deadline = t.clock.Now().Add(d)

	go func() {
		select {
		case <-timer.Chan():
			fire(gen)
		case <-stop:
		}
	}()
}

// cancel stops the pending timer, if any, and invalidates callbacks already in flight.
func (t *phaseTimer) cancel() {
	if t.timer != nil {
		stopAndDrainTimer(t.timer)
		close(t.stop)
		t.timer = nil
		t.stop = nil
	}
	t.deadline = time.Time{}
	t.gen++
}

// current reports whether gen belongs to the timer that is still armed.
func (t *phaseTimer) current(gen uint64) bool {
	return t.timer != nil && gen == t.gen
}

// fired clears the armed timer after its callback has been accepted.
func (t *phaseTimer) fired() {
	t.timer = nil
	t.stop = nil
	t.deadline = time.Time{}
}

// remaining is the time left until the pending timer fires.
func (t *phaseTimer) remaining() time.Duration {
	if t.timer == nil {
		return 0
	}
	left := t.deadline.Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
