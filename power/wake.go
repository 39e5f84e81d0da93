// Package power coordinates the host's low-power halt with the modem's
// sleep mode and the sources that wake the host up again.
package power

import (
	"context"
	"sync"
	"time"
)

// Wake is a single-shot, re-armable wake-up event. It is the only state
// shared between the control flow and interrupt-like sources such as a pin
// watcher or a timer.
//
// Wake also implements sync.Locker as an interrupt mask: while locked, a
// Fire is recorded and delivered on Unlock. Masking is not a mutex and
// does not nest.
type Wake struct {
	mu      sync.Mutex
	armed   bool
	masked  bool
	pending bool
	fired   chan struct{}
}

// Arm enables the next Fire. Arming an armed event has no effect.
func (w *Wake) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return
	}
	w.armed = true
	w.pending = false
	w.fired = make(chan struct{})
}

// Armed reports whether a Fire would be accepted.
func (w *Wake) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Fire delivers a wake-up and disarms the event. It is a no-op returning
// false when the event is not armed, so at most one wake-up is delivered
// per Arm.
func (w *Wake) Fire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return false
	}
	if w.masked {
		w.pending = true
		return true
	}
	w.deliver()
	return true
}

func (w *Wake) deliver() {
	w.armed = false
	w.pending = false
	close(w.fired)
}

// Wait blocks until the armed event fires or ctx is done. A wake-up that
// fired before Wait was called is returned at once.
func (w *Wake) Wait(ctx context.Context) error {
	w.mu.Lock()
	fired := w.fired
	w.mu.Unlock()
	if fired == nil {
		return ErrNotArmed
	}

	select {
	case <-fired:
		w.mu.Lock()
		if w.fired == fired {
			w.fired = nil
		}
		w.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lock masks wake-ups.
func (w *Wake) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.masked = true
}

// Unlock unmasks wake-ups and delivers one that fired while masked.
func (w *Wake) Unlock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.masked = false
	if w.pending && w.armed {
		w.deliver()
	}
}

// ArmTimer schedules a Fire after d. Stop the returned timer to cancel it.
func (w *Wake) ArmTimer(d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() { w.Fire() })
}
