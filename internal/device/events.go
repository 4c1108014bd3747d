package device

import (
	"github.com/sweeney/sq-peripheral/internal/adc"
	"github.com/sweeney/sq-peripheral/internal/logic"
)

// Event is anything the dispatch loop consumes.
type Event interface {
	event()
}

// EdgeEvent is an edge on the button line.
type EdgeEvent struct {
	Pin     int
	Falling bool
}

// ButtonTimerEvent is the expiry of the debounce or long-press window.
type ButtonTimerEvent struct{}

// IndicatorTickEvent is one period of the LED timer programming identified
// by Generation.
type IndicatorTickEvent struct {
	Generation uint64
}

// SampleTickEvent starts a periodic conversion.
type SampleTickEvent struct{}

// BatteryTickEvent starts an extra conversion to refresh the battery level.
type BatteryTickEvent struct{}

// ConversionDoneEvent carries a filled ADC buffer.
type ConversionDoneEvent struct {
	Buffer *adc.Buffer
}

// RemoteWriteEvent is a peer write to an output register.
type RemoteWriteEvent struct {
	Register logic.Register
	Data     []byte
}

// ConnectEvent reports the BLE link going up or down.
type ConnectEvent struct {
	Connected bool
}

// RSSIEvent is one signal strength report of the linked peer.
type RSSIEvent struct {
	Value int8
}

// IndicationEvent selects an LED pattern.
type IndicationEvent struct {
	Mode logic.IndicationMode
}

func (EdgeEvent) event()           {}
func (ButtonTimerEvent) event()    {}
func (IndicatorTickEvent) event()  {}
func (SampleTickEvent) event()     {}
func (BatteryTickEvent) event()    {}
func (ConversionDoneEvent) event() {}
func (RemoteWriteEvent) event()    {}
func (ConnectEvent) event()        {}
func (RSSIEvent) event()           {}
func (IndicationEvent) event()     {}
