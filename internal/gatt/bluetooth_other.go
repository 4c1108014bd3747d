//go:build !linux

package gatt

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Handlers receive inbound events from the GATT server.
type Handlers struct {
	OnWrite   func(id ID, data []byte)
	OnConnect func(connected bool)
	OnRSSI    func(rssi int8)
}

// BluetoothConfig configures the GATT server.
type BluetoothConfig struct {
	Adapter   string
	LocalName string
	Initial   Initial
	ScanRSSI  bool
}

// BluetoothLink is not available on non-Linux platforms.
type BluetoothLink struct{}

// NewBluetoothLink returns an error on non-Linux platforms.
func NewBluetoothLink(cfg BluetoothConfig, h Handlers, log logrus.FieldLogger) (*BluetoothLink, error) {
	return nil, errors.New("gatt: peripheral role not supported on this platform (requires Linux/BlueZ)")
}

// SetValue is not implemented on non-Linux platforms.
func (l *BluetoothLink) SetValue(id ID, value []byte) error {
	return errors.New("gatt: not supported")
}

// Notify is not implemented on non-Linux platforms.
func (l *BluetoothLink) Notify(id ID, value []byte) error {
	return errors.New("gatt: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *BluetoothLink) Close() error {
	return nil
}
