package csv

import (
	"context"
	"encoding/csv"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ktt-ol/sensorlux/internal/parser"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
)

// Open appends to the CSV log at path.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening csv log")
	}
	return NewLogger(f), nil
}

// NewLogger writes records as time,field,value rows to out. out is closed
// by Stop if it is an io.Closer.
func NewLogger(out io.Writer) *Logger {
	logger := &Logger{
		out:       out,
		csvWriter: csv.NewWriter(out),
		records:   make(chan sensorlux.Record, 64),
		done:      make(chan struct{}),
	}
	go logger.run()
	return logger
}

type Logger struct {
	out       io.Writer
	csvWriter *csv.Writer
	records   chan sensorlux.Record
	done      chan struct{}
	stopOnce  sync.Once

	mu      sync.RWMutex
	stopped bool
}

var errStopped = errors.New("csv log is closed")

func (w *Logger) Name() string { return "csv" }

func (w *Logger) Write(ctx context.Context, recs []sensorlux.Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return errStopped
	}
	for _, r := range recs {
		select {
		case w.records <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop flushes all queued records. Later writes fail.
func (w *Logger) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.records)
		w.mu.Unlock()
		<-w.done
	})
}

func (w *Logger) Close() error {
	w.Stop()
	return nil
}

func (w *Logger) run() {
	defer close(w.done)
	if c, ok := w.out.(io.Closer); ok {
		defer c.Close()
	}
	for r := range w.records {
		t := r.Time
		if t.IsZero() {
			t = time.Now()
		}
		err := w.csvWriter.Write([]string{
			t.Format(time.RFC3339Nano),
			r.Field,
			parser.FormatValue(r.Value),
		})
		if err != nil {
			log.Println("error: unable to write CSV", err)
		}
		w.csvWriter.Flush()
	}
}
