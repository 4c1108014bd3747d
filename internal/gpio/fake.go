package gpio

import "fmt"

// FakeButton is a test double with a scripted level.
type FakeButton struct {
	// Held is the logical level returned by Pressed.
	Held bool

	// EdgesEnabled mirrors edge detection on the line.
	EdgesEnabled bool

	// Disables and Enables count edge reconfigurations.
	Disables int
	Enables  int

	// ReadError, if set, will be returned by Pressed()
	ReadError error

	// Closed tracks if Close was called
	Closed bool

	onEdge EdgeFunc
}

// NewFakeButton creates a released button with edges enabled. onEdge may
// be nil.
func NewFakeButton(onEdge EdgeFunc) *FakeButton {
	return &FakeButton{EdgesEnabled: true, onEdge: onEdge}
}

// Press drives the line low and reports a falling edge if enabled.
// Returns whether the edge was delivered.
func (f *FakeButton) Press() bool {
	f.Held = true
	return f.emit(true)
}

// Release lets the line go high. Rising edges are not watched.
func (f *FakeButton) Release() {
	f.Held = false
}

func (f *FakeButton) emit(falling bool) bool {
	if !f.EdgesEnabled || f.onEdge == nil {
		return false
	}
	f.onEdge(falling)
	return true
}

// Pressed returns the scripted level.
func (f *FakeButton) Pressed() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Held, nil
}

// DisableEdge turns off edge delivery.
func (f *FakeButton) DisableEdge() error {
	f.EdgesEnabled = false
	f.Disables++
	return nil
}

// EnableEdge turns edge delivery back on.
func (f *FakeButton) EnableEdge() error {
	f.EdgesEnabled = true
	f.Enables++
	return nil
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.Closed = true
	return nil
}

// PinWrite is one recorded Set call.
type PinWrite struct {
	Pin   int
	Level bool
}

// FakeOutputs records output writes.
type FakeOutputs struct {
	// Levels holds the current level of every requested pin.
	Levels map[int]bool

	// Writes lists every successful Set in order.
	Writes []PinWrite

	// SetError, if set, will be returned by Set()
	SetError error

	Closed bool
}

// NewFakeOutputs creates outputs for the pins in initial.
func NewFakeOutputs(initial map[int]bool) *FakeOutputs {
	levels := make(map[int]bool, len(initial))
	for pin, v := range initial {
		levels[pin] = v
	}
	return &FakeOutputs{Levels: levels}
}

// Set records the write.
func (f *FakeOutputs) Set(pin int, level bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if _, ok := f.Levels[pin]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	f.Levels[pin] = level
	f.Writes = append(f.Writes, PinWrite{Pin: pin, Level: level})
	return nil
}

// WritesTo returns the recorded writes for pin.
func (f *FakeOutputs) WritesTo(pin int) []bool {
	var out []bool
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w.Level)
		}
	}
	return out
}

// Close marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.Closed = true
	return nil
}
