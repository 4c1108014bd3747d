package internal

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/sq-peripheral/internal/adc"
	"github.com/sweeney/sq-peripheral/internal/device"
	"github.com/sweeney/sq-peripheral/internal/gatt"
	"github.com/sweeney/sq-peripheral/internal/gpio"
	"github.com/sweeney/sq-peripheral/internal/logic"
	"github.com/sweeney/sq-peripheral/internal/mqtt"
	"github.com/sweeney/sq-peripheral/internal/status"
	"github.com/sweeney/sq-peripheral/internal/timer"
)

type rig struct {
	q         *device.Queue
	dev       *device.Device
	button    *gpio.FakeButton
	outputs   *gpio.FakeOutputs
	source    *adc.FakeSource
	link      *gatt.FakeLink
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker

	btnTimer *timer.Manual
	ledTimer *timer.Manual
	sampler  *timer.Manual
	battery  *timer.Manual
}

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newRig(t *testing.T) *rig {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	out1 := logic.EmptyPinTable()
	out1[0] = 28
	opts := device.Options{
		Out1Pins:        out1,
		Out2Pins:        logic.EmptyPinTable(),
		LEDPin:          25,
		LEDActiveHigh:   true,
		ShortWindow:     100 * time.Millisecond,
		LongWindow:      250 * time.Millisecond,
		Periods:         logic.DefaultIndicatorPeriods,
		SamplePeriod:    time.Second,
		BatteryInterval: 2 * time.Minute,
		Conversion:      logic.DefaultConversion,
	}

	r := &rig{
		q:         device.NewQueue(0),
		outputs:   gpio.NewFakeOutputs(map[int]bool{28: false, 25: false}),
		source:    adc.NewFakeSource([adc.Channels]int16{838, 512}),
		link:      gatt.NewFakeLink(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(fixedNow, status.Config{LocalName: "sq-peripheral"}),
		btnTimer:  timer.NewManual(false),
		ledTimer:  timer.NewManual(true),
		sampler:   timer.NewManual(true),
		battery:   timer.NewManual(true),
	}
	r.button = gpio.NewFakeButton(func(falling bool) {
		r.q.Post(device.EdgeEvent{Pin: gpio.PinButton, Falling: falling})
	})
	r.source.OnDone = func(buf *adc.Buffer) {
		r.q.Post(device.ConversionDoneEvent{Buffer: buf})
	}

	dev, err := device.New(r.q,
		device.Hardware{Button: r.button, Outputs: r.outputs, ADC: r.source, Link: r.link},
		device.Timers{Button: r.btnTimer, Indicator: r.ledTimer, Sample: r.sampler, Battery: r.battery},
		opts, r.tracker, log)
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	dev.OnWrite(mqtt.NewMirror(r.publisher, func() time.Time { return fixedNow }, log).Forward)
	if err := dev.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.dev = dev
	return r
}

// drain handles every queued event.
func (r *rig) drain(t *testing.T) {
	t.Helper()
	for {
		select {
		case ev := <-r.q.Events():
			if err := r.dev.Handle(ev); err != nil {
				t.Fatalf("handle %T: %v", ev, err)
			}
		default:
			return
		}
	}
}

func (r *rig) shortPress(t *testing.T) {
	t.Helper()
	if !r.button.Press() {
		t.Fatal("edge not delivered")
	}
	r.drain(t)
	r.button.Release()
	r.btnTimer.Fire()
	r.drain(t)
}

// TestIntegrationSessionFlow runs a peer session: connect, sample, press,
// write an output and disconnect.
func TestIntegrationSessionFlow(t *testing.T) {
	r := newRig(t)

	r.q.Post(device.ConnectEvent{Connected: true})
	r.drain(t)

	r.sampler.Fire()
	r.drain(t)
	r.shortPress(t)
	r.q.Post(device.RemoteWriteEvent{Register: logic.RegOut1, Data: []byte{0x01}})
	r.drain(t)
	r.q.Post(device.ConnectEvent{Connected: false})
	r.drain(t)

	if got := r.outputs.Levels[28]; !got {
		t.Error("pin 28 should be high after out1=0x01")
	}
	if n := len(r.link.NotificationsFor(gatt.CharInput)); n != 1 {
		t.Errorf("input notifications: got %d, want 1", n)
	}
	if n := len(r.link.NotificationsFor(gatt.CharADC)); n != 1 {
		t.Errorf("adc notifications: got %d, want 1", n)
	}

	// Mirror: adc, battery and in changed; out1 already held the peer's value.
	for _, name := range []string{"adc", "battery", "in"} {
		if len(r.publisher.Named(name)) != 1 {
			t.Errorf("mirror %s: got %d events, want 1", name, len(r.publisher.Named(name)))
		}
	}
	if n := len(r.publisher.Named("out1")); n != 0 {
		t.Errorf("mirror out1: got %d events, want 0", n)
	}

	snap := r.tracker.Snapshot()
	if snap.Connected {
		t.Error("expected disconnected at end")
	}
	if snap.Mode != logic.IndicationAdvertising {
		t.Errorf("Mode: got %s, want ADVERTISING", snap.Mode)
	}
	if snap.Registers.Out1 != 0x01 || snap.Registers.In != logic.BitShortPress {
		t.Errorf("Registers: got %+v", snap.Registers)
	}
}

func TestIntegrationMirrorPayloadFormat(t *testing.T) {
	r := newRig(t)
	r.shortPress(t)

	if len(r.publisher.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(r.publisher.Payloads))
	}
	var p mqtt.Payload
	if err := json.Unmarshal(r.publisher.Payloads[0], &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	c := p.Characteristic
	if c.Name != "in" || c.Value != 1 || c.Raw != "01" {
		t.Errorf("payload: got %+v", c)
	}
	if c.Timestamp != "2026-01-01T12:00:00Z" {
		t.Errorf("Timestamp: got %q", c.Timestamp)
	}
}

func TestIntegrationMirrorFailureDoesNotStopDevice(t *testing.T) {
	r := newRig(t)
	r.publisher.PublishError = errors.New("broker down")

	r.shortPress(t)
	r.shortPress(t)

	if got := r.tracker.Snapshot().Presses.Short; got != 2 {
		t.Errorf("Presses.Short: got %d, want 2", got)
	}
	if n := len(r.link.WritesFor(gatt.CharInput)); n != 2 {
		t.Errorf("input writes: got %d, want 2", n)
	}
}

func TestIntegrationLEDBlinkMirrorsOut2(t *testing.T) {
	r := newRig(t)

	for i := 0; i < 4; i++ {
		r.ledTimer.Fire()
	}
	r.drain(t)

	out2 := r.publisher.Named("out2")
	if len(out2) != 4 {
		t.Fatalf("out2 events: got %d, want 4", len(out2))
	}
	want := []int{0x10, 0x00, 0x10, 0x00}
	for i, ev := range out2 {
		if ev.Value != want[i] {
			t.Errorf("out2[%d]: got %#x, want %#x", i, ev.Value, want[i])
		}
	}
}

func TestIntegrationStatusEventAfterActivity(t *testing.T) {
	r := newRig(t)
	r.sampler.Fire()
	r.drain(t)
	r.shortPress(t)

	data := status.FormatStatusEvent(r.tracker.Snapshot(), "SHUTDOWN", "SIGTERM")
	var sj status.StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := sj.Status
	if s.Event != "SHUTDOWN" || s.Reason != "SIGTERM" {
		t.Errorf("event: got %q/%q", s.Event, s.Reason)
	}
	if s.Registers.In != "0x01" {
		t.Errorf("Registers.In: got %q, want 0x01", s.Registers.In)
	}
	if s.Analog == nil || s.Analog.InputMilliVolts != 1800 {
		t.Errorf("Analog: got %+v", s.Analog)
	}
	if s.Indication != "ADVERTISING" {
		t.Errorf("Indication: got %q", s.Indication)
	}
}
