// Package status provides a thread-safe status tracker for the sq-peripheral
// daemon. The device loop writes it; HTTP handlers and lifecycle events read
// snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sq-peripheral/internal/gatt"
	"github.com/sweeney/sq-peripheral/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	LocalName        string
	ShortWindowMs    int64
	LongWindowMs     int64
	SamplePeriodMs   int64
	BatteryIntervalS int64
	Broker           string
	HTTPAddr         string
}

// Registers is the byte value of each register.
type Registers struct {
	Out1 uint8
	Out2 uint8
	In   uint8
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Registers     Registers
	Presses       logic.PressCounts
	Mode          logic.IndicationMode
	LED           bool
	Connected     bool
	Reading       logic.Reading
	Sampled       bool
	RSSI          int8
	Sync          gatt.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetRegisters records the register bytes.
func (t *Tracker) SetRegisters(out1, out2, in uint8) {
	t.mu.Lock()
	t.snap.Registers = Registers{Out1: out1, Out2: out2, In: in}
	t.mu.Unlock()
}

// SetPresses records the classifier counters.
func (t *Tracker) SetPresses(c logic.PressCounts) {
	t.mu.Lock()
	t.snap.Presses = c
	t.mu.Unlock()
}

// SetIndication records the indication mode and LED level.
func (t *Tracker) SetIndication(mode logic.IndicationMode, led bool) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.LED = led
	t.mu.Unlock()
}

// SetConnected records the BLE link state.
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	t.snap.Connected = connected
	t.mu.Unlock()
}

// SetReading records the latest conversion.
func (t *Tracker) SetReading(r logic.Reading) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.Sampled = true
	t.mu.Unlock()
}

// SetRSSI records the filtered signal strength.
func (t *Tracker) SetRSSI(v int8) {
	t.mu.Lock()
	t.snap.RSSI = v
	t.mu.Unlock()
}

// SetSync records the replication counters.
func (t *Tracker) SetSync(s gatt.Stats) {
	t.mu.Lock()
	t.snap.Sync = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
