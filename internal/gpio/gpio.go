// Package gpio provides the button input and the digital outputs with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// EdgeFunc receives edge notifications from the line watcher goroutine.
// It must only hand the event off.
type EdgeFunc func(falling bool)

// Button is the press input. The line is pulled up and the button pulls it
// low, so a press is a falling edge.
type Button interface {
	// Pressed returns the logical level (true = held down).
	Pressed() (bool, error)

	// DisableEdge stops edge notifications while a press is classified.
	DisableEdge() error

	// EnableEdge restores falling-edge notifications.
	EnableEdge() error

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the output lines requested at construction.
type Outputs interface {
	// Set drives pin to the physical level.
	Set(pin int, level bool) error

	// Close releases GPIO resources.
	Close() error
}

// ErrUnknownPin is returned by Set for a pin that was not requested.
var ErrUnknownPin = errors.New("gpio: pin not requested as output")

// Pin definitions (BCM numbering)
const (
	PinButton   = 26 // press input, pull-up
	PinLED      = 25 // status LED, active high
	PinBiasHigh = 24 // analog front-end bias, driven high
	PinBiasLow  = 19 // analog front-end bias, driven low
	PinOut1Bit0 = 28 // out1 bit 0
)

// DefaultChip is the Raspberry Pi header GPIO controller.
const DefaultChip = "gpiochip0"

// activeLowRaw is the raw value of a held button.
const activeLowRaw = 0
