package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/sq-peripheral/internal/logic"
	"github.com/sweeney/sq-peripheral/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		LocalName:        "sq-peripheral",
		ShortWindowMs:    100,
		LongWindowMs:     250,
		SamplePeriodMs:   1000,
		BatteryIntervalS: 120,
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":80",
	}
	tr := status.NewTracker(start, cfg)
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := New(":0", tr, log)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetRegisters(0x01, 0x10, 0x01)
	tr.SetPresses(logic.PressCounts{Short: 5, Long: 2})
	tr.SetConnected(true)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.Connected {
		t.Error("expected Connected=true")
	}
	if sj.Status.Registers.Out1 != "0x01" {
		t.Errorf("Registers.Out1: got %q, want 0x01", sj.Status.Registers.Out1)
	}
	if sj.Status.Presses.Short != 5 {
		t.Errorf("Presses.Short: got %d, want 5", sj.Status.Presses.Short)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.ShortWindowMs != 100 {
		t.Errorf("Config.ShortWindowMs: got %d, want 100", sj.Status.Config.ShortWindowMs)
	}
}

func TestJSONAnalogPendingBeforeFirstSample(t *testing.T) {
	ts, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Analog != nil {
		t.Errorf("expected no analog section, got %+v", *sj.Status.Analog)
	}
	if sj.Status.Indication != "NONE" {
		t.Errorf("Indication: got %q, want NONE", sj.Status.Indication)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetIndication(logic.IndicationAdvertising, true)
	tr.SetReading(logic.Reading{SupplyMilliVolts: 3018, InputMilliVolts: 1800, BatteryPercent: 100})
	tr.SetRSSI(-61)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{"ADVERTISING", "1800 mV", "100%", "-61 dBm", "sq-peripheral"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLShowsRegisterBits(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetRegisters(0x01, 0x10, 0x02)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "0x10 (00010000)") {
		t.Error("expected out2 rendered as hex and bits")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Connected {
		t.Error("expected Connected=false initially")
	}

	tr.SetConnected(true)
	tr.SetIndication(logic.IndicationConnected, false)
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Connected {
		t.Error("expected Connected=true after update")
	}
	if sj2.Status.Indication != "CONNECTED" {
		t.Errorf("Indication: got %q, want CONNECTED", sj2.Status.Indication)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestUptimeFormatting(t *testing.T) {
	fn := indexTmpl.Lookup("index")
	if fn == nil {
		t.Fatal("index template missing")
	}
	var sb strings.Builder
	snap := status.Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 2, 1, 2, 3, 0, time.UTC),
	}
	if err := renderHTML(&sb, snap); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(sb.String(), "1d 1h 2m 3s") {
		t.Error("expected uptime 1d 1h 2m 3s")
	}
}
