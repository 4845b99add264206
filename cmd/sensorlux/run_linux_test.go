//go:build linux

package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
)

func TestRunStopsReporterBeforeClosing(t *testing.T) {
	srv, _ := influxServer(t)
	conf := testConfig(t, srv.URL)
	conf.Interval = "5ms"

	fifo := filepath.Join(t.TempDir(), "fifo")
	if err := syscall.Mkfifo(fifo, 0600); err != nil {
		t.Skip("mkfifo:", err)
	}
	conf.Sensors = append(conf.Sensors, config.Sensor{Name: "stalled", Kind: config.KindFile, Path: fifo})

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	conf.Status.Listen = busy.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = run(ctx, conf)
	if err == nil || !strings.Contains(err.Error(), "status server") {
		t.Fatalf("expected bind error, got %v", err)
	}

	// nothing may write to the closed sinks once run returned
	if w, err := os.OpenFile(fifo, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
		w.Write([]byte("1\n"))
		w.Close()
	}
	before, err := os.ReadFile(conf.CSVLog)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	after, err := os.ReadFile(conf.CSVLog)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("csv log grew after run returned: %d -> %d bytes", len(before), len(after))
	}
}
