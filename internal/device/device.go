// Package device owns all peripheral state and runs the single dispatch loop
// that ties the button, LED, ADC and BLE link together.
//
// Hardware callbacks never touch state. They post events to a Queue; Run
// consumes them one at a time and applies the pure state machines from
// internal/logic, driving outputs and the sync layer with the results.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/sq-peripheral/internal/adc"
	"github.com/sweeney/sq-peripheral/internal/gatt"
	"github.com/sweeney/sq-peripheral/internal/gpio"
	"github.com/sweeney/sq-peripheral/internal/logic"
	"github.com/sweeney/sq-peripheral/internal/status"
	"github.com/sweeney/sq-peripheral/internal/timer"
)

// ErrRequeue is returned by Handle and Run when a consumed ADC buffer cannot
// be handed back to the source. Sampling cannot continue after it.
var ErrRequeue = errors.New("adc buffer re-queue failed")

// Hardware are the device's collaborators.
type Hardware struct {
	Button  gpio.Button
	Outputs gpio.Outputs
	ADC     adc.Source
	Link    gatt.Link
}

// Timers are the software timers the loop programs.
type Timers struct {
	Button    timer.Timer
	Indicator timer.Timer
	Sample    timer.Timer
	Battery   timer.Timer
}

// Registers are the boot values of the register bank.
type Registers struct {
	Out1, Out2, In uint8
}

// Options are the board constants and periods.
type Options struct {
	Out1Pins logic.PinTable
	Out2Pins logic.PinTable
	Boot     Registers

	LEDPin        int
	LEDActiveHigh bool

	ShortWindow     time.Duration
	LongWindow      time.Duration
	Periods         logic.IndicatorPeriods
	SamplePeriod    time.Duration
	BatteryInterval time.Duration

	Conversion logic.Conversion
	TxPower    int8
}

// Initial returns the characteristic values the attribute table must be
// registered with so the sync shadows start equal to the database.
func Initial(opts Options) gatt.Initial {
	bank := logic.NewBank(opts.Out1Pins, opts.Out2Pins, opts.Boot.Out1, opts.Boot.Out2, opts.Boot.In)
	out1, out2, in := bank.Snapshot()
	return gatt.Initial{
		Out1:    out1,
		Out2:    out2,
		Input:   in,
		TxPower: opts.TxPower,
	}
}

// Device is the peripheral.
type Device struct {
	q      *Queue
	hw     Hardware
	timers Timers
	opts   Options

	bank       *logic.Bank
	classifier *logic.Classifier
	indicator  *logic.Indicator
	filter     *logic.Filter
	sync       *gatt.Sync
	bufs       [adc.QueueDepth]adc.Buffer

	tracker *status.Tracker

	log    logrus.FieldLogger
	btnLog logrus.FieldLogger
	ledLog logrus.FieldLogger
	adcLog logrus.FieldLogger
	sqLog  logrus.FieldLogger
}

// New creates a device consuming q. A nil tracker gets a private one.
func New(q *Queue, hw Hardware, timers Timers, opts Options, tracker *status.Tracker, log logrus.FieldLogger) (*Device, error) {
	if hw.Button == nil || hw.Outputs == nil || hw.ADC == nil || hw.Link == nil {
		return nil, errors.New("device: missing hardware")
	}
	if timers.Button == nil || timers.Indicator == nil || timers.Sample == nil || timers.Battery == nil {
		return nil, errors.New("device: missing timers")
	}
	if tracker == nil {
		tracker = status.NewTracker(time.Now(), status.Config{})
	}

	d := &Device{
		q:          q,
		hw:         hw,
		timers:     timers,
		opts:       opts,
		bank:       logic.NewBank(opts.Out1Pins, opts.Out2Pins, opts.Boot.Out1, opts.Boot.Out2, opts.Boot.In),
		classifier: logic.NewClassifier(opts.ShortWindow, opts.LongWindow),
		indicator:  logic.NewIndicator(opts.Periods),
		filter:     logic.NewFilter(),
		sync:       gatt.NewSync(hw.Link, Initial(opts), log),
		tracker:    tracker,
		log:        log,
		btnLog:     log.WithField("module", "gpio"),
		ledLog:     log.WithField("module", "led"),
		adcLog:     log.WithField("module", "adc"),
		sqLog:      log.WithField("module", "sq"),
	}
	d.updateStatus()
	return d, nil
}

// OnWrite registers a hook for every attribute database write.
func (d *Device) OnWrite(fn func(gatt.Update)) {
	d.sync.OnWrite(fn)
}

// Tracker returns the status tracker the device writes.
func (d *Device) Tracker() *status.Tracker {
	return d.tracker
}

// Start queues both ADC buffers, starts sampling, forces the LED off and
// enters ADVERTISING. Call it once advertising has started.
func (d *Device) Start() error {
	for i := range d.bufs {
		if err := d.hw.ADC.Queue(&d.bufs[i]); err != nil {
			return fmt.Errorf("queue adc buffer %d: %w", i, err)
		}
	}
	if err := d.hw.Outputs.Set(d.opts.LEDPin, d.physical(false)); err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	d.bank.SetLED(false)
	out2, _ := d.bank.Value(logic.RegOut2)
	d.report(d.sync.PublishRegister(gatt.CharOut2, out2), "publish out2")

	d.timers.Sample.Start(d.opts.SamplePeriod, func() { d.q.Post(SampleTickEvent{}) })
	d.setMode(logic.IndicationAdvertising)
	d.updateStatus()

	d.log.WithFields(logrus.Fields{
		"sample_period": d.opts.SamplePeriod,
		"short_window":  d.opts.ShortWindow,
		"long_window":   d.opts.LongWindow,
	}).Info("device started")
	return nil
}

// Stop halts every timer and turns the LED off.
func (d *Device) Stop() {
	d.timers.Button.Stop()
	d.timers.Indicator.Stop()
	d.timers.Sample.Stop()
	d.timers.Battery.Stop()
	if err := d.hw.Outputs.Set(d.opts.LEDPin, d.physical(false)); err != nil {
		d.ledLog.WithError(err).Warn("led off")
	}
}

// Run dispatches events until ctx is done or a fatal error occurs.
func (d *Device) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.q.Events():
			if err := d.Handle(ev); err != nil {
				d.log.WithError(err).Error("dispatch stopped")
				return err
			}
		}
	}
}

// Handle applies one event. Only fatal errors are returned; everything else
// is logged and absorbed.
func (d *Device) Handle(ev Event) error {
	var err error
	switch e := ev.(type) {
	case EdgeEvent:
		d.applyButton(d.classifier.Edge(e.Falling))
	case ButtonTimerEvent:
		pressed, rerr := d.hw.Button.Pressed()
		if rerr != nil {
			// Treat as released so the press completes and edges come back.
			d.btnLog.WithError(rerr).Warn("read button")
		}
		d.applyButton(d.classifier.Expire(pressed))
	case IndicatorTickEvent:
		if level, ok := d.indicator.Tick(e.Generation); ok {
			d.driveLED(level)
		}
	case IndicationEvent:
		d.setMode(e.Mode)
	case ConnectEvent:
		d.connect(e.Connected)
	case SampleTickEvent, BatteryTickEvent:
		if terr := d.hw.ADC.Trigger(); terr != nil {
			d.adcLog.WithError(terr).Warn("trigger conversion")
		}
	case ConversionDoneEvent:
		err = d.conversionDone(e.Buffer)
	case RemoteWriteEvent:
		d.remoteWrite(e.Register, e.Data)
	case RSSIEvent:
		d.filter.Push(e.Value)
		avg := d.filter.Average()
		d.tracker.SetRSSI(avg)
		d.report(d.sync.PublishRSSI(avg), "publish rssi")
	default:
		d.log.WithField("event", fmt.Sprintf("%T", ev)).Warn("unknown event")
	}
	d.updateStatus()
	return err
}

func (d *Device) applyButton(step logic.ButtonStep) {
	if step.DisableEdge {
		if err := d.hw.Button.DisableEdge(); err != nil {
			d.btnLog.WithError(err).Warn("disable edge")
		}
	}
	if step.Arm > 0 {
		d.timers.Button.Start(step.Arm, func() { d.q.Post(ButtonTimerEvent{}) })
	}
	if step.EnableEdge {
		if err := d.hw.Button.EnableEdge(); err != nil {
			d.btnLog.WithError(err).Warn("enable edge")
		}
	}
	if step.Press == logic.PressNone {
		return
	}

	in := d.bank.RecordPress(step.Press)
	d.btnLog.WithFields(logrus.Fields{"press": step.Press.String(), "in": status.HexByte(in)}).Info("button press")
	d.report(d.sync.PublishInput(in), "publish input")
}

func (d *Device) setMode(m logic.IndicationMode) {
	step := d.indicator.SetMode(m)
	if step.Stop {
		d.timers.Indicator.Stop()
	} else {
		gen := step.Generation
		d.timers.Indicator.Start(step.Period, func() { d.q.Post(IndicatorTickEvent{Generation: gen}) })
	}
	if step.Force {
		d.driveLED(step.Level)
	}
	d.ledLog.WithFields(logrus.Fields{"mode": m.String(), "period": step.Period}).Debug("indication")
}

func (d *Device) driveLED(on bool) {
	if err := d.hw.Outputs.Set(d.opts.LEDPin, d.physical(on)); err != nil {
		d.ledLog.WithError(err).Warn("drive led")
		return
	}
	d.bank.SetLED(on)
	out2, _ := d.bank.Value(logic.RegOut2)
	d.report(d.sync.PublishRegister(gatt.CharOut2, out2), "publish out2")
}

func (d *Device) physical(on bool) bool {
	return on == d.opts.LEDActiveHigh
}

func (d *Device) connect(connected bool) {
	d.sync.SetConnected(connected)
	d.sqLog.WithField("connected", connected).Info("link")
	if connected {
		d.setMode(logic.IndicationConnected)
		d.timers.Battery.Start(d.opts.BatteryInterval, func() { d.q.Post(BatteryTickEvent{}) })
		return
	}
	d.timers.Battery.Stop()
	d.setMode(logic.IndicationAdvertising)
}

func (d *Device) conversionDone(buf *adc.Buffer) error {
	if buf == nil {
		return nil
	}
	raw := buf.Raw
	if err := d.hw.ADC.Queue(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrRequeue, err)
	}

	r := d.opts.Conversion.Convert(raw[0], raw[1])
	d.tracker.SetReading(r)
	d.adcLog.WithFields(logrus.Fields{
		"supply_mv": r.SupplyMilliVolts,
		"input_mv":  r.InputMilliVolts,
		"battery":   r.BatteryPercent,
	}).Debug("conversion")

	d.report(d.sync.PublishADC(r.InputMilliVolts), "publish adc")
	d.report(d.sync.PublishBattery(r.BatteryPercent), "publish battery")
	return nil
}

func (d *Device) remoteWrite(reg logic.Register, data []byte) {
	log := d.sqLog.WithField("register", reg.String())
	if len(data) != 1 {
		log.WithField("len", len(data)).Warn("remote write ignored: want 1 byte")
		return
	}

	id, ok := registerChar(reg)
	if !ok {
		log.Warn("remote write ignored: register not writable")
		return
	}
	if err := d.sync.Observe(id, data[0]); err != nil {
		log.WithError(err).Warn("remote write")
		return
	}

	changes, err := d.bank.ApplyWrite(reg, data[0])
	if err != nil {
		log.WithError(err).Warn("remote write")
		return
	}
	for _, c := range changes {
		if err := d.hw.Outputs.Set(c.Pin, c.Level); err != nil {
			d.btnLog.WithError(err).WithField("pin", c.Pin).Warn("drive output")
			d.bank.Revert(c)
			continue
		}
		d.btnLog.WithFields(logrus.Fields{
			"register": reg.String(),
			"bit":      c.Bit,
			"pin":      c.Pin,
			"level":    c.Level,
		}).Info("output")
	}

	v, _ := d.bank.Value(reg)
	d.report(d.sync.PublishRegister(id, v), "publish register")
}

func registerChar(reg logic.Register) (gatt.ID, bool) {
	switch reg {
	case logic.RegOut1:
		return gatt.CharOut1, true
	case logic.RegOut2:
		return gatt.CharOut2, true
	}
	return 0, false
}

// report logs a sync error by class: no-link at debug, transport at warn.
func (d *Device) report(err error, what string) {
	if err == nil {
		return
	}
	if gatt.IsBenign(err) {
		d.sqLog.WithError(err).Debug(what)
		return
	}
	d.sqLog.WithError(err).Warn(what)
}

func (d *Device) updateStatus() {
	out1, out2, in := d.bank.Snapshot()
	d.tracker.SetRegisters(out1, out2, in)
	d.tracker.SetPresses(d.classifier.Counts())
	d.tracker.SetIndication(d.indicator.Mode(), d.indicator.Level())
	d.tracker.SetConnected(d.sync.Connected())
	d.tracker.SetSync(d.sync.Stats())
}
