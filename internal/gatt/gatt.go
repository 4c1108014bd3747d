// Package gatt keeps local characteristic values replicated into the GATT
// attribute database and notifies the connected peer when they change.
// The real link uses BlueZ through tinygo.org/x/bluetooth.
// FakeLink allows testing without a radio.
package gatt

import (
	"errors"
	"fmt"
)

// ID names a characteristic exposed by the peripheral.
type ID int

const (
	CharOut1 ID = iota
	CharOut2
	CharInput
	CharADC
	CharRSSI
	CharBattery
	CharTxPower
)

// Characteristic describes the wire shape of one characteristic.
type Characteristic struct {
	ID     ID
	Name   string
	Short  uint16 // vendor short UUID; 0 for SIG characteristics
	Size   int
	Write  bool
	Notify bool
}

// Characteristics is the attribute table in registration order.
var Characteristics = []Characteristic{
	{ID: CharOut1, Name: "out1", Short: 0x0002, Size: 1, Write: true},
	{ID: CharOut2, Name: "out2", Short: 0x0004, Size: 1, Write: true},
	{ID: CharInput, Name: "in", Short: 0x0008, Size: 1, Notify: true},
	{ID: CharADC, Name: "adc", Short: 0x000F, Size: 2, Notify: true},
	{ID: CharRSSI, Name: "rssi", Short: 0x0020, Size: 1, Notify: true},
	{ID: CharBattery, Name: "battery", Size: 1, Notify: true},
	{ID: CharTxPower, Name: "tx_power", Size: 1},
}

// Lookup returns the descriptor of a characteristic.
func Lookup(id ID) (Characteristic, bool) {
	for _, c := range Characteristics {
		if c.ID == id {
			return c, true
		}
	}
	return Characteristic{}, false
}

func (id ID) String() string {
	if c, ok := Lookup(id); ok {
		return c.Name
	}
	return fmt.Sprintf("char(%d)", int(id))
}

// ServiceShortUUID is the vendor service id.
const ServiceShortUUID = 0x7446

// VendorUUID expands a short id onto the vendor base UUID. The base is
// 45 56 74 46 0a bf 48 11 98 32 95 2e 90 8e bb cc in little-endian order and
// the short id replaces bytes 12..13.
func VendorUUID(short uint16) string {
	return fmt.Sprintf("ccbb%04x-2e95-3298-1148-bf0a46745645", short)
}

var (
	// ErrNotConnected is returned after a successful database write when no
	// peer is linked. It is expected and not a transport fault.
	ErrNotConnected = errors.New("gatt: no active link")

	// ErrInvalidState is returned by a link layer asked to notify without a
	// live connection handle.
	ErrInvalidState = errors.New("gatt: invalid state")

	// ErrUnknownCharacteristic is returned for an id with no attribute.
	ErrUnknownCharacteristic = errors.New("gatt: unknown characteristic")
)

// IsBenign reports whether err is the expected no-link condition.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrInvalidState)
}

// Link is the attribute database and notification transport.
type Link interface {
	// SetValue writes value into the local attribute database.
	SetValue(id ID, value []byte) error

	// Notify pushes value to the connected peer.
	Notify(id ID, value []byte) error
}
