package logic

import "time"

// Classifier debounces a falling edge on the button and classifies the press
// as short or long by re-sampling the pin level after two timed windows.
type Classifier struct {
	shortWindow time.Duration
	longWindow  time.Duration

	state          PressState
	shortPressMade bool
	counts         PressCounts
}

// NewClassifier creates a classifier with the debounce and long-press windows.
func NewClassifier(shortWindow, longWindow time.Duration) *Classifier {
	return &Classifier{
		shortWindow: shortWindow,
		longWindow:  longWindow,
	}
}

// Edge handles an edge interrupt on the button pin.
// Only a falling edge seen while idle starts a classification; anything else
// is counted and ignored so at most one classification is ever in flight.
func (c *Classifier) Edge(falling bool) ButtonStep {
	if !falling || c.state != PressIdle {
		c.counts.IgnoredEdges++
		return ButtonStep{}
	}
	c.state = PressDebouncing
	return ButtonStep{
		DisableEdge: true,
		Arm:         c.shortWindow,
	}
}

// Expire handles expiry of the button timer. pressed is the pin level sampled
// at expiry (true = held down).
func (c *Classifier) Expire(pressed bool) ButtonStep {
	switch c.state {
	case PressDebouncing:
		if !pressed {
			return c.finish(PressShort)
		}
		c.shortPressMade = true
		c.state = PressWaitingLong
		return ButtonStep{Arm: c.longWindow}

	case PressWaitingLong:
		if pressed {
			return c.finish(PressLong)
		}
		return c.finish(PressShort)
	}

	// Stale expiry with nothing in flight
	return ButtonStep{}
}

func (c *Classifier) finish(kind PressKind) ButtonStep {
	c.state = PressIdle
	c.shortPressMade = false
	switch kind {
	case PressShort:
		c.counts.Short++
	case PressLong:
		c.counts.Long++
	}
	return ButtonStep{
		EnableEdge: true,
		Press:      kind,
	}
}

// State returns the current classification state.
func (c *Classifier) State() PressState {
	return c.state
}

// Busy reports whether a classification is in flight.
func (c *Classifier) Busy() bool {
	return c.state != PressIdle
}

// ShortPressMade reports whether the first window saw the button still held.
func (c *Classifier) ShortPressMade() bool {
	return c.shortPressMade
}

// Counts returns classification counts since startup.
func (c *Classifier) Counts() PressCounts {
	return c.counts
}
