// Package debug replays readings recorded by the CSV log.
package debug

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"time"

	"github.com/ktt-ol/sensorlux/internal/parser"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
)

// RecordsFromCSV reads time,field,value rows from filename ("-" for stdin)
// and forwards them in batches of up to batchSize records.
func RecordsFromCSV(filename string, batchSize int, fwd func([]sensorlux.Record) error) error {
	var r io.Reader
	if filename == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return ReadRecords(r, batchSize, fwd)
}

// ReadRecords is RecordsFromCSV for an open reader.
func ReadRecords(r io.Reader, batchSize int, fwd func([]sensorlux.Record) error) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	batch := make([]sensorlux.Record, 0, batchSize)
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		line++
		rec := sensorlux.Record{
			Field: row[1],
			Value: parser.Value(row[2]),
		}
		rec.Time, err = time.Parse(time.RFC3339Nano, row[0])
		if err != nil {
			log.Printf("error: found invalid timestamp in CSV line %d: %s", line, err)
			continue
		}
		if row[2] == "" {
			rec.Value = nil
		}

		batch = append(batch, rec)
		if len(batch) == batchSize {
			if err := fwd(batch); err != nil {
				return errors.Wrapf(err, "forwarding records up to line %d", line)
			}
			batch = make([]sensorlux.Record, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		if err := fwd(batch); err != nil {
			return errors.Wrapf(err, "forwarding records up to line %d", line)
		}
	}
	return nil
}
