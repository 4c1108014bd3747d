//go:build !linux

package gpio

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int, onEdge EdgeFunc, log logrus.FieldLogger) (*RealButton, error) {
	return nil, errUnsupported
}

// Pressed is not implemented on non-Linux platforms.
func (b *RealButton) Pressed() (bool, error) { return false, errUnsupported }

// DisableEdge is not implemented on non-Linux platforms.
func (b *RealButton) DisableEdge() error { return errUnsupported }

// EnableEdge is not implemented on non-Linux platforms.
func (b *RealButton) EnableEdge() error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error { return nil }

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(chipName string, initial map[int]bool, log logrus.FieldLogger) (*RealOutputs, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutputs) Set(pin int, level bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (o *RealOutputs) Close() error { return nil }
