//go:build linux

package gpio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// RealButton watches the button line on the GPIO character device.
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	log  logrus.FieldLogger
}

// NewRealButton requests pin as an input with pull-up and falling-edge
// detection. Edges are reported to onEdge from the gpiocdev watcher.
func NewRealButton(chipName string, pin int, onEdge EdgeFunc, log logrus.FieldLogger) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButton{chip: chip, log: log.WithField("module", "gpio")}
	handler := func(evt gpiocdev.LineEvent) {
		if onEdge != nil {
			onEdge(evt.Type == gpiocdev.LineEventFallingEdge)
		}
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line
	b.log.WithField("pin", pin).Debug("button ready")
	return b, nil
}

// Pressed returns true while the line is held low.
func (b *RealButton) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == activeLowRaw, nil
}

// DisableEdge turns off edge detection on the line.
func (b *RealButton) DisableEdge() error {
	if err := b.line.Reconfigure(gpiocdev.WithoutEdges); err != nil {
		return fmt.Errorf("disable button edges: %w", err)
	}
	return nil
}

// EnableEdge turns falling-edge detection back on.
func (b *RealButton) EnableEdge() error {
	if err := b.line.Reconfigure(gpiocdev.WithFallingEdge); err != nil {
		return fmt.Errorf("enable button edges: %w", err)
	}
	return nil
}

// Close releases the line and chip.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs drives output lines on the GPIO character device.
type RealOutputs struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	log   logrus.FieldLogger
}

// NewRealOutputs requests every pin in initial as an output driven to its
// initial physical level.
func NewRealOutputs(chipName string, initial map[int]bool, log logrus.FieldLogger) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	o := &RealOutputs{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line, len(initial)),
		log:   log.WithField("module", "gpio"),
	}

	pins := make([]int, 0, len(initial))
	for pin := range initial {
		pins = append(pins, pin)
	}
	sort.Ints(pins)

	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(rawLevel(initial[pin])))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		o.lines[pin] = line
	}
	o.log.WithField("pins", pins).Debug("outputs ready")
	return o, nil
}

// Set drives pin to level.
func (o *RealOutputs) Set(pin int, level bool) error {
	o.mu.Lock()
	line, ok := o.lines[pin]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	if err := line.SetValue(rawLevel(level)); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing so nothing stays driven after shutdown.
func (o *RealOutputs) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for pin, line := range o.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	o.lines = nil
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		o.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func rawLevel(level bool) int {
	if level {
		return 1
	}
	return 0
}
