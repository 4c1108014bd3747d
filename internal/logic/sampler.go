package logic

import "math"

// Board ADC constants (nRF52 SAADC, VDD/6 gain, 0.6 V internal reference).
const (
	ADCResolution10Bit      = 1024
	ADCRefVoltageMilliVolts = 600
	ADCPreScaleCompensation = 6
	DiodeDropMilliVolts     = 270
)

// Conversion turns raw ADC counts into millivolts.
type Conversion struct {
	Resolution       int
	RefMilliVolts    int
	PrescaleComp     int
	OffsetMilliVolts int
}

// DefaultConversion is the board conversion with no series diode.
var DefaultConversion = Conversion{
	Resolution:    ADCResolution10Bit,
	RefMilliVolts: ADCRefVoltageMilliVolts,
	PrescaleComp:  ADCPreScaleCompensation,
}

// MilliVolts converts a raw sample: (raw*ref/resolution)*prescale + offset.
// Integer arithmetic, negative results clamp to 0, large ones saturate.
func (c Conversion) MilliVolts(raw int16) uint16 {
	if c.Resolution <= 0 {
		return 0
	}
	mv := (int64(raw)*int64(c.RefMilliVolts)/int64(c.Resolution))*int64(c.PrescaleComp) + int64(c.OffsetMilliVolts)
	if mv < 0 {
		return 0
	}
	if mv > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(mv)
}

// BatteryPercent maps a supply voltage to a remaining-capacity percentage
// using the piecewise-linear curve of a CR2032-class lithium cell.
func BatteryPercent(mv uint16) uint8 {
	v := int(mv)
	switch {
	case v >= 3000:
		return 100
	case v > 2900:
		return uint8(100 - ((3000-v)*58)/100)
	case v > 2740:
		return uint8(42 - ((2900-v)*24)/160)
	case v > 2440:
		return uint8(18 - ((2740-v)*12)/300)
	case v > 2100:
		return uint8(6 - ((2440-v)*6)/340)
	}
	return 0
}

// Reading is one converted pair of channels.
type Reading struct {
	SupplyMilliVolts uint16
	InputMilliVolts  uint16
	BatteryPercent   uint8
}

// Convert turns a two-channel raw batch into a Reading.
// Channel 0 is the supply proxy, channel 1 the external input.
func (c Conversion) Convert(ch0, ch1 int16) Reading {
	supply := c.MilliVolts(ch0)
	return Reading{
		SupplyMilliVolts: supply,
		InputMilliVolts:  c.MilliVolts(ch1),
		BatteryPercent:   BatteryPercent(supply),
	}
}
