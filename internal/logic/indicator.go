package logic

import "time"

// IndicatorPeriods holds the toggle period per blinking mode.
type IndicatorPeriods struct {
	Fast        time.Duration
	Slow        time.Duration
	Advertising time.Duration
	Connected   time.Duration
}

// DefaultIndicatorPeriods are the board's blink periods.
var DefaultIndicatorPeriods = IndicatorPeriods{
	Fast:        250 * time.Millisecond,
	Slow:        1000 * time.Millisecond,
	Advertising: 500 * time.Millisecond,
	Connected:   750 * time.Millisecond,
}

// IndicatorStep is what the caller must do to the LED timer after SetMode.
type IndicatorStep struct {
	// Stop means stop the period timer; Period is zero in that case.
	Stop   bool
	Period time.Duration
	// Generation identifies ticks belonging to this timer programming.
	Generation uint64
	// Level is the LED level to apply now, if Force is set.
	Force bool
	Level bool
}

// Indicator drives one binary output through named blink patterns.
type Indicator struct {
	periods    IndicatorPeriods
	mode       IndicationMode
	level      bool
	generation uint64
}

// NewIndicator creates an indicator in NONE with the output off.
func NewIndicator(periods IndicatorPeriods) *Indicator {
	return &Indicator{periods: periods}
}

// Period returns the toggle period of a mode; zero for NONE.
func (ind *Indicator) Period(m IndicationMode) time.Duration {
	switch m {
	case IndicationFast:
		return ind.periods.Fast
	case IndicationSlow:
		return ind.periods.Slow
	case IndicationAdvertising:
		return ind.periods.Advertising
	case IndicationConnected:
		return ind.periods.Connected
	}
	return 0
}

// SetMode switches the blink pattern. Last write wins; re-entering the same
// mode restarts the same period.
func (ind *Indicator) SetMode(m IndicationMode) IndicatorStep {
	ind.mode = m
	ind.generation++

	period := ind.Period(m)
	if period == 0 {
		ind.mode = IndicationNone
		ind.level = false
		return IndicatorStep{Stop: true, Generation: ind.generation, Force: true, Level: false}
	}
	return IndicatorStep{Period: period, Generation: ind.generation}
}

// Tick toggles the output for a period tick. Ticks from an earlier timer
// programming, or while in NONE, are dropped and ok is false.
func (ind *Indicator) Tick(generation uint64) (level bool, ok bool) {
	if generation != ind.generation || ind.mode == IndicationNone {
		return ind.level, false
	}
	ind.level = !ind.level
	return ind.level, true
}

// Mode returns the current indication mode.
func (ind *Indicator) Mode() IndicationMode {
	return ind.mode
}

// Level returns the current output level.
func (ind *Indicator) Level() bool {
	return ind.level
}

// Generation returns the current timer programming id.
func (ind *Indicator) Generation() uint64 {
	return ind.generation
}
