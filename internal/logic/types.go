// Package logic contains the pure state of the peripheral: the register bank,
// the button classifier, the LED indicator, the RSSI filter and the ADC maths.
// This package has NO external dependencies (no GPIO, BLE, MQTT, OS, or timers).
// Durations are returned as effects for the caller to arm.
package logic

import "time"

// Register identifies one of the byte-wide registers of the bank.
type Register int

const (
	RegOut1 Register = iota
	RegOut2
	RegIn
)

func (r Register) String() string {
	switch r {
	case RegOut1:
		return "out1"
	case RegOut2:
		return "out2"
	case RegIn:
		return "in"
	}
	return "unknown"
}

// Bits of the input register.
const (
	BitShortPress byte = 1 << 0
	BitLongPress  byte = 1 << 1
)

// BitLED is the LED status bit in out2.
const BitLED byte = 1 << 4

// BitsPerRegister is the width of every register.
const BitsPerRegister = 8

// NoPin marks a register bit with no physical pin behind it.
const NoPin = -1

// PressKind is the outcome of a button classification.
type PressKind int

const (
	PressNone PressKind = iota
	PressShort
	PressLong
)

func (k PressKind) String() string {
	switch k {
	case PressShort:
		return "SHORT"
	case PressLong:
		return "LONG"
	}
	return "NONE"
}

// PressState is the classifier's position in the debounce sequence.
type PressState int

const (
	PressIdle PressState = iota
	PressDebouncing
	PressWaitingLong
)

func (s PressState) String() string {
	switch s {
	case PressDebouncing:
		return "DEBOUNCING"
	case PressWaitingLong:
		return "WAITING_LONG_WINDOW"
	}
	return "IDLE"
}

// IndicationMode is the named blink pattern of the status LED.
type IndicationMode int

const (
	IndicationNone IndicationMode = iota
	IndicationFast
	IndicationSlow
	IndicationAdvertising
	IndicationConnected
)

func (m IndicationMode) String() string {
	switch m {
	case IndicationNone:
		return "NONE"
	case IndicationFast:
		return "FAST"
	case IndicationSlow:
		return "SLOW"
	case IndicationAdvertising:
		return "ADVERTISING"
	case IndicationConnected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// ParseIndicationMode maps a mode name back to its value.
func ParseIndicationMode(s string) (IndicationMode, bool) {
	for m := IndicationNone; m <= IndicationConnected; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return IndicationNone, false
}

// BitChange is one differing bit between two register values.
type BitChange struct {
	Bit   int
	Level bool
}

// PinChange is a physical output that must be driven to Level.
type PinChange struct {
	Register Register
	Bit      int
	Pin      int
	Level    bool
}

// ButtonStep lists the side effects the caller must perform after feeding
// the classifier an edge or a timer expiry.
type ButtonStep struct {
	DisableEdge bool
	EnableEdge  bool
	// Arm is the one-shot timer duration to start; zero means none.
	Arm   time.Duration
	Press PressKind
}

// PressCounts tracks the number of classifications since startup.
type PressCounts struct {
	Short        int
	Long         int
	IgnoredEdges int
}
