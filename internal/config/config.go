// Package config loads the daemon configuration: a YAML file laid over struct
// tag defaults, then validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/sq-peripheral/internal/gpio"
	"github.com/sweeney/sq-peripheral/internal/logic"
)

// Config is the daemon configuration.
type Config struct {
	LogLevel  string    `yaml:"log_level" default:"info"`
	BLE       BLE       `yaml:"ble"`
	GPIO      GPIO      `yaml:"gpio"`
	Timing    Timing    `yaml:"timing"`
	ADC       ADC       `yaml:"adc"`
	Registers Registers `yaml:"registers"`
	MQTT      MQTT      `yaml:"mqtt"`
	HTTP      HTTP      `yaml:"http"`
}

// BLE configures the GATT server.
type BLE struct {
	Adapter   string `yaml:"adapter" default:"hci0"`
	LocalName string `yaml:"local_name" default:"sq-peripheral"`
	TxPower   int8   `yaml:"tx_power" default:"-8"`
	ScanRSSI  bool   `yaml:"scan_rssi" default:"true"`
}

// GPIO configures the board pins (BCM numbering).
type GPIO struct {
	Chip          string `yaml:"chip" default:"gpiochip0"`
	Button        int    `yaml:"button"`
	LED           int    `yaml:"led"`
	LEDActiveHigh bool   `yaml:"led_active_high" default:"true"`
	BiasHigh      int    `yaml:"bias_high"`
	BiasLow       int    `yaml:"bias_low"`

	// Out1Pins and Out2Pins map register bits 0..7 to pins; -1 is unassigned.
	Out1Pins []int `yaml:"out1_pins"`
	Out2Pins []int `yaml:"out2_pins"`
}

// Timing holds every software timer period.
type Timing struct {
	ShortWindow     time.Duration `yaml:"short_window" default:"100ms"`
	LongWindow      time.Duration `yaml:"long_window" default:"250ms"`
	Fast            time.Duration `yaml:"fast" default:"250ms"`
	Slow            time.Duration `yaml:"slow" default:"1000ms"`
	Advertising     time.Duration `yaml:"advertising" default:"500ms"`
	Connected       time.Duration `yaml:"connected" default:"750ms"`
	SamplePeriod    time.Duration `yaml:"sample_period" default:"1000ms"`
	BatteryInterval time.Duration `yaml:"battery_interval" default:"120s"`
}

// ADC configures the analog source and the conversion.
type ADC struct {
	Device        string `yaml:"device" default:"/sys/bus/iio/devices/iio:device0"`
	SupplyChannel int    `yaml:"supply_channel" default:"0"`
	InputChannel  int    `yaml:"input_channel" default:"1"`
	Resolution    int    `yaml:"resolution" default:"1024"`
	RefMilliVolts int    `yaml:"ref_mv" default:"600"`
	Prescale      int    `yaml:"prescale" default:"6"`
	DiodeOffset   int    `yaml:"diode_offset_mv" default:"0"`
}

// Registers holds the boot values of the register bank.
type Registers struct {
	Out1 uint8 `yaml:"out1"`
	Out2 uint8 `yaml:"out2"`
	In   uint8 `yaml:"in"`
}

// MQTT configures the telemetry mirror. An empty broker disables it.
type MQTT struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id" default:"sq-peripheral"`
	Prefix     string `yaml:"prefix" default:"sq/peripheral"`
	BufferSize int    `yaml:"buffer_size" default:"256"`
}

// HTTP configures the status page. An empty address disables it.
type HTTP struct {
	Addr string `yaml:"addr" default:":8080"`
}

// ledBit is the out2 bit position of logic.BitLED.
const ledBit = 4

// DefaultOut1Pins drives the board output from out1 bit 0.
var DefaultOut1Pins = []int{gpio.PinOut1Bit0, -1, -1, -1, -1, -1, -1, -1}

// Default returns the configuration with every default applied.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.GPIO.Button = gpio.PinButton
	c.GPIO.LED = gpio.PinLED
	c.GPIO.BiasHigh = gpio.PinBiasHigh
	c.GPIO.BiasLow = gpio.PinBiasLow
	c.GPIO.Out1Pins = append([]int(nil), DefaultOut1Pins...)
	return c
}

// Load reads path over the defaults and validates the result. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field that could make the device misbehave.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.BLE.LocalName == "" {
		errs = append(errs, errors.New("ble.local_name: must not be empty"))
	}

	for name, pin := range map[string]int{
		"gpio.button":    c.GPIO.Button,
		"gpio.led":       c.GPIO.LED,
		"gpio.bias_high": c.GPIO.BiasHigh,
		"gpio.bias_low":  c.GPIO.BiasLow,
	} {
		if pin < 0 {
			errs = append(errs, fmt.Errorf("%s: pin %d must be >= 0", name, pin))
		}
	}
	if err := checkPins("gpio.out1_pins", c.GPIO.Out1Pins); err != nil {
		errs = append(errs, err)
	}
	if err := checkPins("gpio.out2_pins", c.GPIO.Out2Pins); err != nil {
		errs = append(errs, err)
	}
	if len(c.GPIO.Out2Pins) > ledBit && c.GPIO.Out2Pins[ledBit] != logic.NoPin {
		errs = append(errs, errors.New("gpio.out2_pins: bit 4 is the LED status bit"))
	}
	errs = append(errs, c.duplicatePins()...)

	for name, d := range map[string]time.Duration{
		"timing.short_window":     c.Timing.ShortWindow,
		"timing.long_window":      c.Timing.LongWindow,
		"timing.fast":             c.Timing.Fast,
		"timing.slow":             c.Timing.Slow,
		"timing.advertising":      c.Timing.Advertising,
		"timing.connected":        c.Timing.Connected,
		"timing.sample_period":    c.Timing.SamplePeriod,
		"timing.battery_interval": c.Timing.BatteryInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be > 0", name))
		}
	}

	if c.ADC.Resolution <= 0 {
		errs = append(errs, errors.New("adc.resolution: must be > 0"))
	}
	if c.ADC.RefMilliVolts <= 0 || c.ADC.Prescale <= 0 {
		errs = append(errs, errors.New("adc.ref_mv and adc.prescale: must be > 0"))
	}
	if c.ADC.SupplyChannel < 0 || c.ADC.InputChannel < 0 {
		errs = append(errs, errors.New("adc channels: must be >= 0"))
	}

	return errors.Join(errs...)
}

func checkPins(name string, pins []int) error {
	if len(pins) > logic.BitsPerRegister {
		return fmt.Errorf("%s: at most %d entries", name, logic.BitsPerRegister)
	}
	for bit, pin := range pins {
		if pin < logic.NoPin {
			return fmt.Errorf("%s[%d]: pin %d must be >= 0 or -1", name, bit, pin)
		}
	}
	return nil
}

// duplicatePins reports every pin claimed by more than one role.
func (c *Config) duplicatePins() []error {
	type role struct {
		name string
		pin  int
	}
	roles := []role{
		{"gpio.button", c.GPIO.Button},
		{"gpio.led", c.GPIO.LED},
		{"gpio.bias_high", c.GPIO.BiasHigh},
		{"gpio.bias_low", c.GPIO.BiasLow},
	}
	for bit, pin := range c.GPIO.Out1Pins {
		roles = append(roles, role{fmt.Sprintf("gpio.out1_pins[%d]", bit), pin})
	}
	for bit, pin := range c.GPIO.Out2Pins {
		roles = append(roles, role{fmt.Sprintf("gpio.out2_pins[%d]", bit), pin})
	}

	var errs []error
	owner := make(map[int]string, len(roles))
	for _, r := range roles {
		if r.pin < 0 {
			continue
		}
		if prev, ok := owner[r.pin]; ok {
			errs = append(errs, fmt.Errorf("%s: pin %d already used by %s", r.name, r.pin, prev))
			continue
		}
		owner[r.pin] = r.name
	}
	return errs
}

// PinTable converts a bit-to-pin list into a register pin table.
func PinTable(pins []int) logic.PinTable {
	t := logic.EmptyPinTable()
	copy(t[:], pins)
	return t
}

// Conversion returns the ADC conversion parameters.
func (c *Config) Conversion() logic.Conversion {
	return logic.Conversion{
		Resolution:       c.ADC.Resolution,
		RefMilliVolts:    c.ADC.RefMilliVolts,
		PrescaleComp:     c.ADC.Prescale,
		OffsetMilliVolts: c.ADC.DiodeOffset,
	}
}

// IndicatorPeriods returns the LED blink periods.
func (c *Config) IndicatorPeriods() logic.IndicatorPeriods {
	return logic.IndicatorPeriods{
		Fast:        c.Timing.Fast,
		Slow:        c.Timing.Slow,
		Advertising: c.Timing.Advertising,
		Connected:   c.Timing.Connected,
	}
}

// NewLogger builds the root logger at the given level.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return l, nil
}
