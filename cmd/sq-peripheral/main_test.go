package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/sq-peripheral/internal/config"
	"github.com/sweeney/sq-peripheral/internal/gatt"
	"github.com/sweeney/sq-peripheral/internal/logic"
	"github.com/sweeney/sq-peripheral/internal/mqtt"
	"github.com/sweeney/sq-peripheral/internal/status"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func strPtr(s string) *string { return &s }

func TestApplyFlagsOverrides(t *testing.T) {
	cfg := config.Default()
	err := applyFlags(cfg, overrides{
		LogLevel: strPtr("debug"),
		HTTP:     strPtr(":9090"),
		Broker:   strPtr("tcp://broker:1883"),
	})
	if err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want debug", cfg.LogLevel)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr: got %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("MQTT.Broker: got %q", cfg.MQTT.Broker)
	}
}

func TestApplyFlagsUnsetKeepsConfig(t *testing.T) {
	cfg := config.Default()
	if err := applyFlags(cfg, overrides{}); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q, want default :8080", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want info", cfg.LogLevel)
	}
}

func TestApplyFlagsOffDisables(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://broker:1883"
	if err := applyFlags(cfg, overrides{HTTP: strPtr("off"), Broker: strPtr("off")}); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.HTTP.Addr != "" || cfg.MQTT.Broker != "" {
		t.Errorf("expected both disabled, got http=%q broker=%q", cfg.HTTP.Addr, cfg.MQTT.Broker)
	}
}

func TestApplyFlagsRejectsBadLevel(t *testing.T) {
	cfg := config.Default()
	if err := applyFlags(cfg, overrides{LogLevel: strPtr("loud")}); err == nil {
		t.Error("expected validation error for log level")
	}
}

func TestDeviceOptions(t *testing.T) {
	cfg := config.Default()
	opts := deviceOptions(cfg)

	if opts.Out1Pins[0] != 28 {
		t.Errorf("Out1Pins[0]: got %d, want 28", opts.Out1Pins[0])
	}
	for bit := 1; bit < logic.BitsPerRegister; bit++ {
		if opts.Out1Pins[bit] != logic.NoPin {
			t.Errorf("Out1Pins[%d]: got %d, want unassigned", bit, opts.Out1Pins[bit])
		}
	}
	if opts.Out2Pins != logic.EmptyPinTable() {
		t.Errorf("Out2Pins: got %v, want empty", opts.Out2Pins)
	}
	if opts.ShortWindow != 100*time.Millisecond || opts.LongWindow != 250*time.Millisecond {
		t.Errorf("windows: got %v/%v", opts.ShortWindow, opts.LongWindow)
	}
	if opts.Periods != logic.DefaultIndicatorPeriods {
		t.Errorf("Periods: got %+v", opts.Periods)
	}
	if opts.Conversion != logic.DefaultConversion {
		t.Errorf("Conversion: got %+v", opts.Conversion)
	}
	if opts.LEDPin != 25 || !opts.LEDActiveHigh {
		t.Errorf("LED: got pin %d activeHigh=%v", opts.LEDPin, opts.LEDActiveHigh)
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://broker:1883"
	sc := statusConfig(cfg)

	if sc.LocalName != "sq-peripheral" {
		t.Errorf("LocalName: got %q", sc.LocalName)
	}
	if sc.ShortWindowMs != 100 || sc.LongWindowMs != 250 || sc.SamplePeriodMs != 1000 {
		t.Errorf("timings: got %+v", sc)
	}
	if sc.BatteryIntervalS != 120 {
		t.Errorf("BatteryIntervalS: got %d, want 120", sc.BatteryIntervalS)
	}
	if sc.Broker != "tcp://broker:1883" || sc.HTTPAddr != ":8080" {
		t.Errorf("addresses: got %q %q", sc.Broker, sc.HTTPAddr)
	}
}

func TestOutputLevels(t *testing.T) {
	cfg := config.Default()
	cfg.Registers.Out1 = 0xFF
	levels := outputLevels(cfg)

	want := map[int]bool{
		24: true,  // bias high
		19: false, // bias low
		25: false, // LED off, active high
		28: true,  // out1 bit 0 at boot
	}
	if len(levels) != len(want) {
		t.Errorf("got %d lines, want %d: %v", len(levels), len(want), levels)
	}
	for pin, level := range want {
		if got, ok := levels[pin]; !ok || got != level {
			t.Errorf("pin %d: got %v (present=%v), want %v", pin, got, ok, level)
		}
	}
}

func TestOutputLevelsActiveLowLED(t *testing.T) {
	cfg := config.Default()
	cfg.GPIO.LEDActiveHigh = false
	if !outputLevels(cfg)[cfg.GPIO.LED] {
		t.Error("active-low LED must boot high to stay off")
	}
}

func TestRegisterFor(t *testing.T) {
	tests := []struct {
		id   gatt.ID
		reg  logic.Register
		want bool
	}{
		{gatt.CharOut1, logic.RegOut1, true},
		{gatt.CharOut2, logic.RegOut2, true},
		{gatt.CharInput, 0, false},
		{gatt.CharADC, 0, false},
		{gatt.CharTxPower, 0, false},
	}
	for _, tt := range tests {
		reg, ok := registerFor(tt.id)
		if ok != tt.want || (ok && reg != tt.reg) {
			t.Errorf("registerFor(%s): got %v/%v, want %v/%v", tt.id, reg, ok, tt.reg, tt.want)
		}
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q", got)
	}
}

func TestPublishLifecycle(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(time.Now(), status.Config{LocalName: "sq"})

	publishLifecycle(pub, pub, tracker, "SHUTDOWN", "SIGTERM", quietLog())

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	ev := pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "SIGTERM" || !ev.Retained {
		t.Errorf("event: got %+v", ev)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(ev.RawPayload, &parsed); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT connected in payload")
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q", parsed.Status.Reason)
	}
}

func TestPublishLifecycleDisabled(t *testing.T) {
	tracker := status.NewTracker(time.Now(), status.Config{})
	// Must not panic with the mirror disabled.
	publishLifecycle(nil, nil, tracker, "STARTUP", "", quietLog())
}

func TestPublishLifecycleErrorLogged(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")
	tracker := status.NewTracker(time.Now(), status.Config{})

	publishLifecycle(pub, pub, tracker, "STARTUP", "", quietLog())
	if len(pub.SystemEvents) != 0 {
		t.Errorf("expected no recorded events, got %d", len(pub.SystemEvents))
	}
}

func TestFormatState(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	formatState(&buf, false, logic.Reading{SupplyMilliVolts: 2946, InputMilliVolts: 1800, BatteryPercent: 69})
	out := buf.String()
	for _, want := range []string{"Button: RELEASED", "Supply: 2946 mV", "Input: 1800 mV", "Battery: 69%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	formatState(&buf, true, logic.Reading{})
	if !strings.Contains(buf.String(), "Button: PRESSED") {
		t.Errorf("expected PRESSED, got:\n%s", buf.String())
	}
}
