package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, rec.Code)
	}
	return rec
}

func TestHealth(t *testing.T) {
	s := New(":0", config.Config{}, NewLatest())
	if body := get(t, s.Handler(), "/health").Body.String(); body != "OK" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestReadings(t *testing.T) {
	latest := NewLatest()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	latest.Write(context.Background(), []sensorlux.Record{
		{Time: now, Field: "temperature", Value: 21.0},
		{Time: now, Field: "humidity", Value: 40.0},
		{Time: now.Add(time.Second), Field: "temperature", Value: 21.5},
	})

	s := New(":0", config.Config{Location: "sleeping"}, latest)
	var resp struct {
		Location string    `json:"location"`
		Readings []Reading `json:"readings"`
	}
	if err := json.Unmarshal(get(t, s.Handler(), "/api/readings").Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Location != "sleeping" {
		t.Errorf("unexpected location %q", resp.Location)
	}
	if len(resp.Readings) != 2 {
		t.Fatalf("unexpected readings %v", resp.Readings)
	}
	if r := resp.Readings[1]; r.Field != "temperature" || r.Value != 21.5 || !r.Time.Equal(now.Add(time.Second)) {
		t.Errorf("unexpected reading %+v", r)
	}
}

func TestConfigIsRedacted(t *testing.T) {
	conf := config.Config{
		WiFi:     config.WiFi{SSID: "my-wifi", Pass: "secretkey"},
		InfluxDB: config.InfluxDB{URL: "http://192.168.0.1:8086/", Pass: "secretpass"},
	}
	body := get(t, New(":0", conf, NewLatest()).Handler(), "/api/config").Body.String()
	if strings.Contains(body, "secretkey") || strings.Contains(body, "secretpass") {
		t.Errorf("config leaks credentials: %s", body)
	}
	if !strings.Contains(body, "http://192.168.0.1:8086/") {
		t.Errorf("config misses influx url: %s", body)
	}
}

func TestConfigKeys(t *testing.T) {
	conf := config.Config{
		Location: "sleeping",
		WiFi:     config.WiFi{SSID: "my-wifi"},
		InfluxDB: config.InfluxDB{URL: "http://192.168.0.1:8086/"},
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(get(t, New(":0", conf, NewLatest()).Handler(), "/api/config").Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"location", "wifi", "influxdb", "mqtt", "sensor"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("missing key %q in %v", key, resp)
		}
	}
	if wifi, _ := resp["wifi"].(map[string]interface{}); wifi["ssid"] != "my-wifi" {
		t.Errorf("unexpected wifi %v", resp["wifi"])
	}
}
