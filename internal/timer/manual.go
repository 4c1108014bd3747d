package timer

import "time"

// Manual is a Timer that only fires when the test says so.
type Manual struct {
	// Periodic keeps the timer running after Fire.
	Periodic bool

	// Running reports whether the timer is armed.
	Running bool

	// Period is the duration of the last Start.
	Period time.Duration

	// Starts and Stops count calls.
	Starts int
	Stops  int

	fire func()
}

// NewManual creates a stopped manual timer.
func NewManual(periodic bool) *Manual {
	return &Manual{Periodic: periodic}
}

// Start records the programming.
func (m *Manual) Start(d time.Duration, fire func()) {
	m.Running = true
	m.Period = d
	m.Starts++
	m.fire = fire
}

// Stop disarms the timer.
func (m *Manual) Stop() {
	m.Running = false
	m.Stops++
}

// Fire runs the callback if armed. A one-shot disarms itself first.
// Returns false if the timer was not running.
func (m *Manual) Fire() bool {
	if !m.Running {
		return false
	}
	if !m.Periodic {
		m.Running = false
	}
	m.fire()
	return true
}
