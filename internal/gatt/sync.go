package gatt

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Shadow is the last value written to the attribute database.
type Shadow[T comparable] struct {
	Value T
	Valid bool
}

// Initial holds the values the attribute table is registered with.
type Initial struct {
	Out1    uint8
	Out2    uint8
	Input   uint8
	ADC     uint16
	RSSI    int8
	Battery uint8
	TxPower int8
}

// Update is passed to the write hook after each successful database write.
type Update struct {
	ID    ID
	Value int
	Raw   []byte
}

// Stats counts traffic through the sync layer.
type Stats struct {
	Writes        int
	Notifications int
	Suppressed    int
	Failures      int
}

// Values is a copy of every shadow.
type Values struct {
	Out1    uint8
	Out2    uint8
	Input   uint8
	ADC     uint16
	RSSI    int8
	Battery uint8
}

// Sync replicates local values into the attribute database, writing only on
// change and notifying only while a peer is linked.
// Not safe for concurrent use; it is owned by the device loop.
type Sync struct {
	link      Link
	log       logrus.FieldLogger
	connected bool
	onWrite   func(Update)

	out1    Shadow[uint8]
	out2    Shadow[uint8]
	input   Shadow[uint8]
	adc     Shadow[uint16]
	rssi    Shadow[int8]
	battery Shadow[uint8]

	stats Stats
}

// NewSync creates a Sync whose shadows start at the registered values.
func NewSync(link Link, initial Initial, log logrus.FieldLogger) *Sync {
	return &Sync{
		link:    link,
		log:     log.WithField("module", "sq"),
		out1:    Shadow[uint8]{Value: initial.Out1, Valid: true},
		out2:    Shadow[uint8]{Value: initial.Out2, Valid: true},
		input:   Shadow[uint8]{Value: initial.Input, Valid: true},
		adc:     Shadow[uint16]{Value: initial.ADC, Valid: true},
		rssi:    Shadow[int8]{Value: initial.RSSI, Valid: true},
		battery: Shadow[uint8]{Value: initial.Battery, Valid: true},
	}
}

// OnWrite registers a hook called after every successful database write.
func (s *Sync) OnWrite(fn func(Update)) {
	s.onWrite = fn
}

// SetConnected records whether a peer is linked.
func (s *Sync) SetConnected(connected bool) {
	s.connected = connected
}

// Connected reports whether a peer is linked.
func (s *Sync) Connected() bool {
	return s.connected
}

// PublishADC updates the ADC millivolt characteristic (2 bytes, little-endian).
func (s *Sync) PublishADC(mv uint16) error {
	return publish(s, CharADC, &s.adc, mv, encodeUint16, int(mv))
}

// PublishInput updates the input register characteristic.
func (s *Sync) PublishInput(v uint8) error {
	return publish(s, CharInput, &s.input, v, encodeUint8, int(v))
}

// PublishRSSI updates the link-quality characteristic.
func (s *Sync) PublishRSSI(v int8) error {
	return publish(s, CharRSSI, &s.rssi, v, encodeInt8, int(v))
}

// PublishBattery updates the battery level characteristic.
func (s *Sync) PublishBattery(percent uint8) error {
	return publish(s, CharBattery, &s.battery, percent, encodeUint8, int(percent))
}

// PublishRegister brings an output register characteristic in line with the
// bank after a remote write was applied (reserved bits masked off).
func (s *Sync) PublishRegister(id ID, v uint8) error {
	switch id {
	case CharOut1:
		return publish(s, id, &s.out1, v, encodeUint8, int(v))
	case CharOut2:
		return publish(s, id, &s.out2, v, encodeUint8, int(v))
	}
	return fmt.Errorf("%w: %s is not a register", ErrUnknownCharacteristic, id)
}

// Observe records a register value the peer wrote straight into the
// database, so the shadow keeps matching it until PublishRegister corrects
// the reserved bits.
func (s *Sync) Observe(id ID, v uint8) error {
	switch id {
	case CharOut1:
		s.out1 = Shadow[uint8]{Value: v, Valid: true}
	case CharOut2:
		s.out2 = Shadow[uint8]{Value: v, Valid: true}
	default:
		return fmt.Errorf("%w: %s is not writable", ErrUnknownCharacteristic, id)
	}
	return nil
}

// Values returns a copy of every shadow.
func (s *Sync) Values() Values {
	return Values{
		Out1:    s.out1.Value,
		Out2:    s.out2.Value,
		Input:   s.input.Value,
		ADC:     s.adc.Value,
		RSSI:    s.rssi.Value,
		Battery: s.battery.Value,
	}
}

// Stats returns traffic counters.
func (s *Sync) Stats() Stats {
	return s.stats
}

func publish[T comparable](s *Sync, id ID, sh *Shadow[T], v T, encode func(T) []byte, logged int) error {
	if sh.Valid && sh.Value == v {
		s.stats.Suppressed++
		return nil
	}

	raw := encode(v)
	if err := s.link.SetValue(id, raw); err != nil {
		s.stats.Failures++
		return fmt.Errorf("set %s value: %w", id, err)
	}
	sh.Value = v
	sh.Valid = true
	s.stats.Writes++
	s.log.WithFields(logrus.Fields{"characteristic": id.String(), "value": logged}).Debug("database updated")

	if s.onWrite != nil {
		s.onWrite(Update{ID: id, Value: logged, Raw: raw})
	}

	if c, ok := Lookup(id); ok && !c.Notify {
		return nil
	}
	if !s.connected {
		return ErrNotConnected
	}
	if err := s.link.Notify(id, raw); err != nil {
		s.stats.Failures++
		return fmt.Errorf("notify %s: %w", id, err)
	}
	s.stats.Notifications++
	return nil
}

func encodeUint8(v uint8) []byte {
	return []byte{v}
}

func encodeInt8(v int8) []byte {
	return []byte{byte(v)}
}

func encodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
