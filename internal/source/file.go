package source

import (
	"context"
	"os"

	"github.com/ktt-ol/sensorlux/internal/parser"
	"github.com/pkg/errors"
)

// File reads a numeric value from a file on each read, e.g. a sysfs
// attribute like /sys/class/thermal/thermal_zone0/temp.
type File struct {
	path  string
	scale float64
}

// NewFile returns a file source. A zero scale is treated as 1.
func NewFile(path string, scale float64) *File {
	if scale == 0 {
		scale = 1
	}
	return &File{path: path, scale: scale}
}

type readResult struct {
	data []byte
	err  error
}

// Read reads the file once. It returns ctx.Err() when ctx is done before
// the read finished, e.g. on a stalled device file or FIFO.
func (f *File) Read(ctx context.Context) (float64, error) {
	res := make(chan readResult, 1)
	go func() {
		data, err := os.ReadFile(f.path)
		res <- readResult{data: data, err: err}
	}()

	var r readResult
	select {
	case r = <-res:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if r.err != nil {
		return 0, errors.Wrap(r.err, "reading sensor file")
	}
	v, err := parser.Float(r.data, f.path)
	if err != nil {
		return 0, err
	}
	return v * f.scale, nil
}

func (f *File) Close() error { return nil }
