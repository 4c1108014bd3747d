// Package timer provides the one-shot and periodic software timers that drive
// the device loop. Callbacks run on timer goroutines and must only post an
// event; Manual is the test double.
package timer

import (
	"sync"
	"time"
)

// Timer is a restartable software timer. Start on a running timer
// reprograms it; the previous callback will not fire afterwards.
type Timer interface {
	Start(d time.Duration, fire func())
	Stop()
}

// OneShot fires once, d after Start.
type OneShot struct {
	mu sync.Mutex
	t  *time.Timer
}

// NewOneShot creates a stopped one-shot timer.
func NewOneShot() *OneShot {
	return &OneShot{}
}

// Start arms the timer, replacing any pending expiry.
func (o *OneShot) Start(d time.Duration, fire func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
	}
	o.t = time.AfterFunc(d, fire)
}

// Stop cancels a pending expiry.
func (o *OneShot) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.t != nil {
		o.t.Stop()
		o.t = nil
	}
}

// Periodic fires every d after Start until stopped.
type Periodic struct {
	mu   sync.Mutex
	done chan struct{}
}

// NewPeriodic creates a stopped periodic timer.
func NewPeriodic() *Periodic {
	return &Periodic{}
}

// Start (re)starts the timer with period d.
func (p *Periodic) Start(d time.Duration, fire func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	done := make(chan struct{})
	p.done = done
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fire()
			}
		}
	}()
}

// Stop halts the timer.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Periodic) stopLocked() {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}
