//go:build linux

package gatt

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Handlers receive inbound events from the GATT server. They are called on
// BlueZ callback goroutines and must only hand the event off.
type Handlers struct {
	OnWrite   func(id ID, data []byte)
	OnConnect func(connected bool)
	OnRSSI    func(rssi int8)
}

// BluetoothConfig configures the GATT server.
type BluetoothConfig struct {
	Adapter   string // e.g. "hci0"
	LocalName string
	Initial   Initial

	// ScanRSSI samples the connected peer's signal strength from its
	// advertisements while linked.
	ScanRSSI bool
}

// BluetoothLink serves the attribute table over BlueZ.
type BluetoothLink struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	chars   map[ID]*bluetooth.Characteristic
	log     logrus.FieldLogger

	mu       sync.Mutex
	peer     bluetooth.Address
	linked   bool
	scanning bool
}

// NewBluetoothLink enables the adapter, registers the vendor, battery and
// TX power services, and starts advertising.
func NewBluetoothLink(cfg BluetoothConfig, h Handlers, log logrus.FieldLogger) (*BluetoothLink, error) {
	l := &BluetoothLink{
		adapter: bluetooth.NewAdapter(cfg.Adapter),
		chars:   make(map[ID]*bluetooth.Characteristic),
		log:     log.WithField("module", "sq"),
	}

	if err := l.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter %s: %w", cfg.Adapter, err)
	}

	l.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		l.mu.Lock()
		l.peer = device.Address
		l.linked = connected
		l.mu.Unlock()
		l.log.WithFields(logrus.Fields{
			"peer":      device.Address.String(),
			"connected": connected,
		}).Info("link state")
		if h.OnConnect != nil {
			h.OnConnect(connected)
		}
	})

	serviceUUID, err := bluetooth.ParseUUID(VendorUUID(ServiceShortUUID))
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}

	initial := initialBytes(cfg.Initial)
	var vendor []bluetooth.CharacteristicConfig
	for _, c := range Characteristics {
		if c.Short == 0 {
			continue
		}
		uuid, err := bluetooth.ParseUUID(VendorUUID(c.Short))
		if err != nil {
			return nil, fmt.Errorf("parse %s uuid: %w", c.Name, err)
		}
		vendor = append(vendor, l.config(c, uuid, initial[c.ID], h))
	}

	if err := l.adapter.AddService(&bluetooth.Service{
		UUID:            serviceUUID,
		Characteristics: vendor,
	}); err != nil {
		return nil, fmt.Errorf("add sq service: %w", err)
	}

	battery, _ := Lookup(CharBattery)
	if err := l.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDBattery,
		Characteristics: []bluetooth.CharacteristicConfig{
			l.config(battery, bluetooth.CharacteristicUUIDBatteryLevel, initial[CharBattery], h),
		},
	}); err != nil {
		return nil, fmt.Errorf("add battery service: %w", err)
	}

	txPower, _ := Lookup(CharTxPower)
	if err := l.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDTxPower,
		Characteristics: []bluetooth.CharacteristicConfig{
			l.config(txPower, bluetooth.CharacteristicUUIDTxPowerLevel, initial[CharTxPower], h),
		},
	}); err != nil {
		return nil, fmt.Errorf("add tx power service: %w", err)
	}

	l.adv = l.adapter.DefaultAdvertisement()
	if err := l.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    cfg.LocalName,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}); err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}
	if err := l.adv.Start(); err != nil {
		return nil, fmt.Errorf("start advertisement: %w", err)
	}
	l.log.WithField("name", cfg.LocalName).Info("advertising")

	if cfg.ScanRSSI && h.OnRSSI != nil {
		l.scanning = true
		go l.scan(h.OnRSSI)
	}

	return l, nil
}

// scan reports the RSSI of every advertisement seen from the linked peer.
// Scan blocks until StopScan.
func (l *BluetoothLink) scan(report func(int8)) {
	err := l.adapter.Scan(func(_ *bluetooth.Adapter, found bluetooth.ScanResult) {
		l.mu.Lock()
		match := l.linked && found.Address == l.peer
		l.mu.Unlock()
		if match {
			report(clampRSSI(found.RSSI))
		}
	})
	if err != nil {
		l.log.WithError(err).Warn("rssi scan stopped")
	}
}

func clampRSSI(v int16) int8 {
	switch {
	case v < -128:
		return -128
	case v > 127:
		return 127
	}
	return int8(v)
}

func (l *BluetoothLink) config(c Characteristic, uuid bluetooth.UUID, value []byte, h Handlers) bluetooth.CharacteristicConfig {
	handle := &bluetooth.Characteristic{}
	l.chars[c.ID] = handle

	flags := bluetooth.CharacteristicReadPermission
	if c.Write {
		flags |= bluetooth.CharacteristicWritePermission
	}
	if c.Notify {
		flags |= bluetooth.CharacteristicNotifyPermission
	}

	cfg := bluetooth.CharacteristicConfig{
		Handle: handle,
		UUID:   uuid,
		Value:  value,
		Flags:  flags,
	}
	if c.Write && h.OnWrite != nil {
		id := c.ID
		cfg.WriteEvent = func(client bluetooth.Connection, offset int, value []byte) {
			if offset != 0 {
				return
			}
			h.OnWrite(id, append([]byte(nil), value...))
		}
	}
	return cfg
}

// SetValue updates the characteristic value served to readers.
func (l *BluetoothLink) SetValue(id ID, value []byte) error {
	c, ok := l.chars[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, id)
	}
	if _, err := c.Write(value); err != nil {
		return err
	}
	return nil
}

// Notify is satisfied by SetValue: BlueZ emits the notification to every
// subscribed peer when the value property changes. It only fails for an
// unknown characteristic; transport errors surface from SetValue.
func (l *BluetoothLink) Notify(id ID, value []byte) error {
	if _, ok := l.chars[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacteristic, id)
	}
	return nil
}

// Close stops scanning and advertising.
func (l *BluetoothLink) Close() error {
	if l.scanning {
		if err := l.adapter.StopScan(); err != nil {
			l.log.WithError(err).Debug("stop scan")
		}
	}
	if l.adv != nil {
		return l.adv.Stop()
	}
	return nil
}

func initialBytes(in Initial) map[ID][]byte {
	return map[ID][]byte{
		CharOut1:    encodeUint8(in.Out1),
		CharOut2:    encodeUint8(in.Out2),
		CharInput:   encodeUint8(in.Input),
		CharADC:     encodeUint16(in.ADC),
		CharRSSI:    encodeInt8(in.RSSI),
		CharBattery: encodeUint8(in.Battery),
		CharTxPower: encodeInt8(in.TxPower),
	}
}
