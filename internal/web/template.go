package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sq-peripheral/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"hex": status.HexByte,
	"bits": func(v uint8) string {
		return fmt.Sprintf("%08b", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>{{.Config.LocalName}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.LocalName}}</h1>

<h2>Link</h2>
<table>
<tr><th>BLE</th><td id="ble" class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}advertising{{end}}</td></tr>
<tr><th>Indication</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>LED</th><td class="{{if .LED}}on{{else}}off{{end}}">{{if .LED}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>RSSI</th><td id="rssi">{{if eq .RSSI 0}}n/a{{else}}{{.RSSI}} dBm{{end}}</td></tr>
</table>

<h2>Registers</h2>
<table>
<tr><th>out1</th><td id="out1">{{hex .Registers.Out1}} ({{bits .Registers.Out1}})</td></tr>
<tr><th>out2</th><td id="out2">{{hex .Registers.Out2}} ({{bits .Registers.Out2}})</td></tr>
<tr><th>in</th><td id="in">{{hex .Registers.In}} ({{bits .Registers.In}})</td></tr>
</table>

<h2>Analog</h2>
<table>
{{if .Sampled}}<tr><th>Input</th><td id="input-mv">{{.Reading.InputMilliVolts}} mV</td></tr>
<tr><th>Supply</th><td>{{.Reading.SupplyMilliVolts}} mV</td></tr>
<tr><th>Battery</th><td id="battery">{{.Reading.BatteryPercent}}%</td></tr>
{{else}}<tr><th>Input</th><td>pending</td></tr>{{end}}
</table>

<h2>Button</h2>
<table>
<tr><th>Short presses</th><td>{{.Presses.Short}}</td></tr>
<tr><th>Long presses</th><td>{{.Presses.Long}}</td></tr>
<tr><th>Ignored edges</th><td>{{.Presses.IgnoredEdges}}</td></tr>
</table>

<h2>Replication</h2>
<table>
<tr><th>Writes</th><td>{{.Sync.Writes}}</td></tr>
<tr><th>Notifications</th><td>{{.Sync.Notifications}}</td></tr>
<tr><th>Suppressed</th><td>{{.Sync.Suppressed}}</td></tr>
<tr><th>Failures</th><td>{{.Sync.Failures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Press windows</th><td>{{.Config.ShortWindowMs}}ms / {{.Config.LongWindowMs}}ms</td></tr>
<tr><th>Sample period</th><td>{{.Config.SamplePeriodMs}}ms</td></tr>
<tr><th>Battery interval</th><td>{{.Config.BatteryIntervalS}}s</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
