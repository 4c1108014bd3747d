package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Connected     bool          `json:"connected"`
	Indication    string        `json:"indication"`
	LED           bool          `json:"led"`
	Registers     RegistersJSON `json:"registers"`
	Presses       PressesJSON   `json:"presses"`
	Analog        *AnalogJSON   `json:"analog,omitempty"`
	RSSI          int8          `json:"rssi"`
	Sync          SyncJSON      `json:"sync"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// RegistersJSON shows each register as a hex byte.
type RegistersJSON struct {
	Out1 string `json:"out1"`
	Out2 string `json:"out2"`
	In   string `json:"in"`
}

// PressesJSON is the JSON representation of press counts.
type PressesJSON struct {
	Short        int `json:"short"`
	Long         int `json:"long"`
	IgnoredEdges int `json:"ignored_edges"`
}

// AnalogJSON is the last conversion.
type AnalogJSON struct {
	SupplyMilliVolts uint16 `json:"supply_mv"`
	InputMilliVolts  uint16 `json:"input_mv"`
	BatteryPercent   uint8  `json:"battery_percent"`
}

// SyncJSON is the JSON representation of replication counters.
type SyncJSON struct {
	Writes        int `json:"writes"`
	Notifications int `json:"notifications"`
	Suppressed    int `json:"suppressed"`
	Failures      int `json:"failures"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	LocalName        string `json:"local_name"`
	ShortWindowMs    int64  `json:"short_window_ms"`
	LongWindowMs     int64  `json:"long_window_ms"`
	SamplePeriodMs   int64  `json:"sample_period_ms"`
	BatteryIntervalS int64  `json:"battery_interval_s"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
}

// HexByte formats a register value the way the status outputs show it.
func HexByte(v uint8) string {
	return fmt.Sprintf("0x%02x", v)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Connected:  snap.Connected,
		Indication: snap.Mode.String(),
		LED:        snap.LED,
		Registers: RegistersJSON{
			Out1: HexByte(snap.Registers.Out1),
			Out2: HexByte(snap.Registers.Out2),
			In:   HexByte(snap.Registers.In),
		},
		Presses: PressesJSON{
			Short:        snap.Presses.Short,
			Long:         snap.Presses.Long,
			IgnoredEdges: snap.Presses.IgnoredEdges,
		},
		RSSI: snap.RSSI,
		Sync: SyncJSON{
			Writes:        snap.Sync.Writes,
			Notifications: snap.Sync.Notifications,
			Suppressed:    snap.Sync.Suppressed,
			Failures:      snap.Sync.Failures,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			LocalName:        snap.Config.LocalName,
			ShortWindowMs:    snap.Config.ShortWindowMs,
			LongWindowMs:     snap.Config.LongWindowMs,
			SamplePeriodMs:   snap.Config.SamplePeriodMs,
			BatteryIntervalS: snap.Config.BatteryIntervalS,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
	if snap.Sampled {
		inner.Analog = &AnalogJSON{
			SupplyMilliVolts: snap.Reading.SupplyMilliVolts,
			InputMilliVolts:  snap.Reading.InputMilliVolts,
			BatteryPercent:   snap.Reading.BatteryPercent,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
