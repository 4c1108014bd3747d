package logic

import (
	"errors"
	"fmt"
)

// ErrUnknownRegister is returned for writes to a register id the bank does not have.
var ErrUnknownRegister = errors.New("unknown register")

// PinTable maps each bit of a register to a physical pin (NoPin if unused).
type PinTable [BitsPerRegister]int

// EmptyPinTable returns a table with no assigned pins.
func EmptyPinTable() PinTable {
	var t PinTable
	for i := range t {
		t[i] = NoPin
	}
	return t
}

// Mask returns the bits that have a pin behind them.
func (t PinTable) Mask() byte {
	var m byte
	for i, pin := range t {
		if pin != NoPin {
			m |= 1 << i
		}
	}
	return m
}

// Bank is the byte-level shadow of the output and input registers.
type Bank struct {
	out1, out2, in byte
	out1Pins       PinTable
	out2Pins       PinTable
}

// NewBank creates a bank with the given pin tables and boot values.
// Boot values are masked so reserved bits start at zero.
func NewBank(out1Pins, out2Pins PinTable, out1, out2, in byte) *Bank {
	return &Bank{
		out1Pins: out1Pins,
		out2Pins: out2Pins,
		out1:     out1 & out1Pins.Mask(),
		out2:     out2 & (out2Pins.Mask() | BitLED),
		in:       in & (BitShortPress | BitLongPress),
	}
}

// Value returns the current byte of a register.
func (b *Bank) Value(reg Register) (byte, error) {
	switch reg {
	case RegOut1:
		return b.out1, nil
	case RegOut2:
		return b.out2, nil
	case RegIn:
		return b.in, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownRegister, reg)
}

// Diff returns the bits that differ between old and new, lowest bit first.
func Diff(old, new byte) []BitChange {
	changed := old ^ new
	if changed == 0 {
		return nil
	}
	var out []BitChange
	for i := 0; i < BitsPerRegister; i++ {
		mask := byte(1) << i
		if changed&mask != 0 {
			out = append(out, BitChange{Bit: i, Level: new&mask != 0})
		}
	}
	return out
}

// ApplyWrite applies an inbound write to an output register. Only bits that
// differ from the current value and have a pin assigned produce a change;
// unaffected pins are left alone.
func (b *Bank) ApplyWrite(reg Register, value byte) ([]PinChange, error) {
	var cur *byte
	var pins PinTable
	switch reg {
	case RegOut1:
		cur, pins = &b.out1, b.out1Pins
	case RegOut2:
		cur, pins = &b.out2, b.out2Pins
	default:
		return nil, fmt.Errorf("%w: %s is not writable", ErrUnknownRegister, reg)
	}

	writable := pins.Mask()
	// The LED bit is owned by the indicator, keep whatever it holds.
	next := (*cur &^ writable) | (value & writable)

	var changes []PinChange
	for _, c := range Diff(*cur, next) {
		changes = append(changes, PinChange{Register: reg, Bit: c.Bit, Pin: pins[c.Bit], Level: c.Level})
	}
	*cur = next
	return changes, nil
}

// Revert restores the bit of a change that could not be driven, so the
// register keeps tracking the pin.
func (b *Bank) Revert(c PinChange) {
	var cur *byte
	switch c.Register {
	case RegOut1:
		cur = &b.out1
	case RegOut2:
		cur = &b.out2
	default:
		return
	}
	mask := byte(1) << c.Bit
	if c.Level {
		*cur &^= mask
	} else {
		*cur |= mask
	}
}

// RecordPress applies a classification to the input register and returns the
// new value. The bit of the classified kind toggles, the other is cleared.
func (b *Bank) RecordPress(kind PressKind) byte {
	switch kind {
	case PressShort:
		b.in ^= BitShortPress
		b.in &^= BitLongPress
	case PressLong:
		b.in ^= BitLongPress
		b.in &^= BitShortPress
	}
	return b.in
}

// SetLED mirrors the LED level into out2.
func (b *Bank) SetLED(on bool) {
	if on {
		b.out2 |= BitLED
	} else {
		b.out2 &^= BitLED
	}
}

// LED reports the LED bit of out2.
func (b *Bank) LED() bool {
	return b.out2&BitLED != 0
}

// Snapshot returns the three register values.
func (b *Bank) Snapshot() (out1, out2, in byte) {
	return b.out1, b.out2, b.in
}
