// Command sq-peripheral serves the sq GATT service: it exposes two output
// registers, an input register fed by the push button, an analog reading and
// the link quality, and blinks the status LED for the link state.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/sq-peripheral/internal/adc"
	"github.com/sweeney/sq-peripheral/internal/config"
	"github.com/sweeney/sq-peripheral/internal/device"
	"github.com/sweeney/sq-peripheral/internal/gatt"
	"github.com/sweeney/sq-peripheral/internal/gpio"
	"github.com/sweeney/sq-peripheral/internal/logic"
	"github.com/sweeney/sq-peripheral/internal/mqtt"
	"github.com/sweeney/sq-peripheral/internal/status"
	"github.com/sweeney/sq-peripheral/internal/timer"
	"github.com/sweeney/sq-peripheral/internal/web"
)

var rootCmd = &cobra.Command{
	Use:   "sq-peripheral",
	Short: "BLE peripheral for the sq register service",
	Long: `sq-peripheral advertises the sq GATT service and keeps it in step with the board:

- out1/out2 writes drive the mapped output pins
- button presses are classified SHORT or LONG into the input register
- the analog input and battery level are sampled periodically
- the status LED blinks for advertising and connected states`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.Flags().String("config", "", "Path to YAML config file")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("http", "", "HTTP status address (overrides config, \"off\" disables)")
	rootCmd.Flags().String("broker", "", "MQTT broker address (overrides config, \"off\" disables)")
	rootCmd.Flags().Bool("print-state", false, "Print button and analog state and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flagOverrides(cmd)); err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	if ps, _ := cmd.Flags().GetBool("print-state"); ps {
		return printState(cmd.OutOrStdout(), cfg, log)
	}
	return run(cmd.Context(), cfg, log)
}

// overrides holds command-line values that replace config fields when set.
type overrides struct {
	LogLevel *string
	HTTP     *string
	Broker   *string
}

func flagOverrides(cmd *cobra.Command) overrides {
	var o overrides
	get := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	o.LogLevel = get("log-level")
	o.HTTP = get("http")
	o.Broker = get("broker")
	return o
}

// applyFlags lays command-line overrides over cfg and re-validates it.
// "off" disables the HTTP server or the MQTT mirror.
func applyFlags(cfg *config.Config, o overrides) error {
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
	if o.HTTP != nil {
		cfg.HTTP.Addr = offToEmpty(*o.HTTP)
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = offToEmpty(*o.Broker)
	}
	return cfg.Validate()
}

func offToEmpty(v string) string {
	if v == "off" {
		return ""
	}
	return v
}

func deviceOptions(cfg *config.Config) device.Options {
	return device.Options{
		Out1Pins: config.PinTable(cfg.GPIO.Out1Pins),
		Out2Pins: config.PinTable(cfg.GPIO.Out2Pins),
		Boot: device.Registers{
			Out1: cfg.Registers.Out1,
			Out2: cfg.Registers.Out2,
			In:   cfg.Registers.In,
		},
		LEDPin:          cfg.GPIO.LED,
		LEDActiveHigh:   cfg.GPIO.LEDActiveHigh,
		ShortWindow:     cfg.Timing.ShortWindow,
		LongWindow:      cfg.Timing.LongWindow,
		Periods:         cfg.IndicatorPeriods(),
		SamplePeriod:    cfg.Timing.SamplePeriod,
		BatteryInterval: cfg.Timing.BatteryInterval,
		Conversion:      cfg.Conversion(),
		TxPower:         cfg.BLE.TxPower,
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		LocalName:        cfg.BLE.LocalName,
		ShortWindowMs:    cfg.Timing.ShortWindow.Milliseconds(),
		LongWindowMs:     cfg.Timing.LongWindow.Milliseconds(),
		SamplePeriodMs:   cfg.Timing.SamplePeriod.Milliseconds(),
		BatteryIntervalS: int64(cfg.Timing.BatteryInterval / time.Second),
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
	}
}

// outputLevels returns the boot level of every output line: the bias pair,
// the LED off, and each register pin at its boot bit.
func outputLevels(cfg *config.Config) map[int]bool {
	levels := map[int]bool{
		cfg.GPIO.BiasHigh: true,
		cfg.GPIO.BiasLow:  false,
		cfg.GPIO.LED:      !cfg.GPIO.LEDActiveHigh,
	}
	opts := deviceOptions(cfg)
	initial := device.Initial(opts)
	setLevels(levels, opts.Out1Pins, initial.Out1)
	setLevels(levels, opts.Out2Pins, initial.Out2)
	return levels
}

func setLevels(levels map[int]bool, pins logic.PinTable, value uint8) {
	for bit, pin := range pins {
		if pin != logic.NoPin {
			levels[pin] = value&(1<<bit) != 0
		}
	}
}

// registerFor maps a writable characteristic to its register.
func registerFor(id gatt.ID) (logic.Register, bool) {
	switch id {
	case gatt.CharOut1:
		return logic.RegOut1, true
	case gatt.CharOut2:
		return logic.RegOut2, true
	}
	return 0, false
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := device.NewQueue(device.DefaultQueueSize)
	defer q.Close()
	opts := deviceOptions(cfg)

	outputs, err := gpio.NewRealOutputs(cfg.GPIO.Chip, outputLevels(cfg), log)
	if err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	defer outputs.Close()

	button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.Button, func(falling bool) {
		q.Post(device.EdgeEvent{Pin: cfg.GPIO.Button, Falling: falling})
	}, log)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	source, err := adc.NewIIOSource(iioConfig(cfg), func(buf *adc.Buffer) {
		q.Post(device.ConversionDoneEvent{Buffer: buf})
	}, log)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer source.Close()

	link, err := gatt.NewBluetoothLink(gatt.BluetoothConfig{
		Adapter:   cfg.BLE.Adapter,
		LocalName: cfg.BLE.LocalName,
		Initial:   device.Initial(opts),
		ScanRSSI:  cfg.BLE.ScanRSSI,
	}, gatt.Handlers{
		OnWrite: func(id gatt.ID, data []byte) {
			reg, ok := registerFor(id)
			if !ok {
				return
			}
			q.Post(device.RemoteWriteEvent{Register: reg, Data: append([]byte(nil), data...)})
		},
		OnConnect: func(connected bool) {
			q.Post(device.ConnectEvent{Connected: connected})
		},
		OnRSSI: func(rssi int8) {
			q.Post(device.RSSIEvent{Value: rssi})
		},
	}, log)
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer link.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	dev, err := device.New(q,
		device.Hardware{Button: button, Outputs: outputs, ADC: source, Link: link},
		device.Timers{
			Button:    timer.NewOneShot(),
			Indicator: timer.NewPeriodic(),
			Sample:    timer.NewPeriodic(),
			Battery:   timer.NewPeriodic(),
		},
		opts, tracker, log)
	if err != nil {
		return err
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Config{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Prefix:     cfg.MQTT.Prefix,
			BufferSize: cfg.MQTT.BufferSize,
		}, log)
		defer rp.Close()
		publisher, mqttStatus = rp, rp
		dev.OnWrite(mqtt.NewMirror(rp, time.Now, log).Forward)
		go watchMQTT(ctx, rp, tracker)
	}
	publishLifecycle(publisher, mqttStatus, tracker, "STARTUP", "", log)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).WithField("module", "web").Error("http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	if err := dev.Start(); err != nil {
		return err
	}
	defer dev.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- dev.Run(ctx) }()

	var reason string
	select {
	case s := <-sigCh:
		log.WithField("signal", s.String()).Info("shutting down")
		reason = signalName(s)
		cancel()
		err = <-errCh
	case err = <-errCh:
		reason = "ERROR"
	case <-ctx.Done():
		reason = "CANCELED"
		err = <-errCh
	}

	publishLifecycle(publisher, mqttStatus, tracker, "SHUTDOWN", reason, log)
	return err
}

func iioConfig(cfg *config.Config) adc.IIOConfig {
	return adc.IIOConfig{
		Device:   cfg.ADC.Device,
		Channels: [adc.Channels]int{cfg.ADC.SupplyChannel, cfg.ADC.InputChannel},
	}
}

// watchMQTT keeps the tracker's broker state current.
func watchMQTT(ctx context.Context, s mqtt.ConnectionStatus, tracker *status.Tracker) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tracker.SetMQTTConnected(s.IsConnected())
		}
	}
}

// publishLifecycle sends a retained system event carrying a status snapshot.
// A nil publisher means the mirror is disabled.
func publishLifecycle(pub mqtt.Publisher, ms mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, log logrus.FieldLogger) {
	if pub == nil {
		return
	}
	if ms != nil {
		tracker.SetMQTTConnected(ms.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	l := log.WithFields(logrus.Fields{"module": "mqtt", "event": event})
	if err := pub.PublishSystem(ev); err != nil {
		l.WithError(err).Warn("publish system event")
		return
	}
	l.Info("published system event")
}

func printState(w io.Writer, cfg *config.Config, log logrus.FieldLogger) error {
	button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.Button, func(bool) {}, log)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	pressed, err := button.Pressed()
	if err != nil {
		return fmt.Errorf("read button: %w", err)
	}

	source, err := adc.NewIIOSource(iioConfig(cfg), nil, log)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer source.Close()

	buf, err := source.Read()
	if err != nil {
		return fmt.Errorf("read adc: %w", err)
	}
	formatState(w, pressed, cfg.Conversion().Convert(buf.Raw[0], buf.Raw[1]))
	return nil
}

func formatState(w io.Writer, pressed bool, r logic.Reading) {
	label := color.New(color.FgCyan)
	state := color.New(color.FgGreen).Sprint("RELEASED")
	if pressed {
		state = color.New(color.FgYellow).Sprint("PRESSED")
	}
	battery := color.New(color.FgGreen)
	if r.BatteryPercent < 20 {
		battery = color.New(color.FgRed)
	}

	label.Fprint(w, "Button: ")
	fmt.Fprintln(w, state)
	label.Fprint(w, "Supply: ")
	fmt.Fprintf(w, "%d mV\n", r.SupplyMilliVolts)
	label.Fprint(w, "Input: ")
	fmt.Fprintf(w, "%d mV\n", r.InputMilliVolts)
	label.Fprint(w, "Battery: ")
	battery.Fprintf(w, "%d%%\n", r.BatteryPercent)
}
