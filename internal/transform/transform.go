// Package transform converts samples with user supplied JavaScript.
//
// A script defines a function parse(sensor, value). It returns a number,
// bool, string or null as the new value, an object
// {measurement, field, tags, value} or an array of such objects. Global
// script variables persist between calls.
package transform

import (
	"sync"
	"time"

	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
	"github.com/robertkrimen/otto"
)

const defaultTimeout = time.Second

var errHalt = errors.New("script timed out")

type Transform struct {
	mu      sync.Mutex
	vm      *otto.Otto
	timeout time.Duration
}

// New compiles js and checks that it defines parse.
func New(js string) (*Transform, error) {
	vm := otto.New()
	if _, err := vm.Run(js); err != nil {
		return nil, errors.Wrap(err, "compiling script")
	}
	fn, err := vm.Get("parse")
	if err != nil {
		return nil, err
	}
	if !fn.IsFunction() {
		return nil, errors.New("script does not define function parse(sensor, value)")
	}
	return &Transform{vm: vm, timeout: defaultTimeout}, nil
}

// Parse calls the script for one sample. Records without measurement,
// field or tags inherit them from the caller.
func (t *Transform) Parse(s sensorlux.Sample, measurement string, tags map[string]string) ([]sensorlux.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.call(s)
	if err != nil {
		return nil, errors.Wrapf(err, "running script for %s", s.Sensor)
	}
	recs, err := valueToRecords(v)
	if err != nil {
		return nil, errors.Wrapf(err, "script result for %s", s.Sensor)
	}
	for i := range recs {
		if recs[i].Measurement == "" {
			recs[i].Measurement = measurement
		}
		if recs[i].Field == "" {
			recs[i].Field = s.Sensor
		}
		recs[i].Time = s.Time
		recs[i].Tags = mergeTags(tags, recs[i].Tags)
	}
	return recs, nil
}

func (t *Transform) call(s sensorlux.Sample) (v otto.Value, err error) {
	defer func() {
		if caught := recover(); caught != nil {
			if caught == errHalt {
				err = errHalt
				return
			}
			panic(caught)
		}
	}()

	interrupt := make(chan func(), 1)
	t.vm.Interrupt = interrupt
	timer := time.AfterFunc(t.timeout, func() {
		select {
		case interrupt <- func() { panic(errHalt) }:
		default:
		}
	})
	defer timer.Stop()

	return t.vm.Call("parse", nil, s.Sensor, s.Value)
}

// Default converts a sample without script.
func Default(s sensorlux.Sample, measurement string, tags map[string]string) []sensorlux.Record {
	return []sensorlux.Record{{
		Time:        s.Time,
		Measurement: measurement,
		Field:       s.Sensor,
		Tags:        mergeTags(tags, nil),
		Value:       s.Value,
	}}
}

// mergeTags returns static tags overwritten by script tags, nil if both are empty.
func mergeTags(static, script map[string]string) map[string]string {
	if len(static) == 0 && len(script) == 0 {
		return nil
	}
	tags := make(map[string]string, len(static)+len(script))
	for k, v := range static {
		tags[k] = v
	}
	for k, v := range script {
		tags[k] = v
	}
	return tags
}

func valueToRecords(v otto.Value) ([]sensorlux.Record, error) {
	if v.IsObject() && v.Object().Class() == "Array" {
		return arrayToRecords(v)
	}
	if v.IsObject() && v.Object().Class() == "Object" {
		rec, err := objectToRecord(v)
		if err != nil {
			return nil, err
		}
		return []sensorlux.Record{*rec}, nil
	}
	val, err := valueToValue(v)
	if err != nil {
		return nil, err
	}
	return []sensorlux.Record{{Value: val}}, nil
}

func valueToStringMap(v otto.Value) (map[string]string, error) {
	tags := make(map[string]string)
	if !v.IsObject() {
		return nil, errors.New("not an object")
	}
	obj := v.Object()
	for _, k := range obj.Keys() {
		vv, err := obj.Get(k)
		if err != nil {
			return nil, err
		}
		tags[k], err = vv.ToString()
		if err != nil {
			return nil, err
		}
	}
	return tags, nil
}

func valueToValue(v otto.Value) (interface{}, error) {
	switch {
	case v.IsUndefined():
		return nil, errors.New("no value")
	case v.IsNumber():
		return v.ToFloat()
	case v.IsBoolean():
		return v.ToBoolean()
	case v.IsNull():
		return nil, nil
	default:
		return v.ToString()
	}
}

func stringProperty(o *otto.Object, name string) (string, error) {
	v, err := o.Get(name)
	if err != nil {
		return "", err
	}
	if !v.IsString() {
		return "", nil
	}
	return v.ToString()
}

func objectToRecord(v otto.Value) (*sensorlux.Record, error) {
	rec := sensorlux.Record{}
	if !v.IsObject() {
		return nil, errors.Errorf("not an object but class: %s", v.Class())
	}
	o := v.Object()

	var err error
	if rec.Measurement, err = stringProperty(o, "measurement"); err != nil {
		return nil, err
	}
	if rec.Field, err = stringProperty(o, "field"); err != nil {
		return nil, err
	}

	v, err = o.Get("value")
	if err != nil {
		return nil, err
	}
	if rec.Value, err = valueToValue(v); err != nil {
		return nil, err
	}

	v, err = o.Get("tags")
	if err != nil {
		return nil, err
	}
	if !v.IsUndefined() {
		if rec.Tags, err = valueToStringMap(v); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

func arrayToRecords(v otto.Value) ([]sensorlux.Record, error) {
	o := v.Object()
	var recs []sensorlux.Record
	for _, k := range o.Keys() {
		v, err := o.Get(k)
		if err != nil {
			return nil, err
		}
		rec, err := objectToRecord(v)
		if err != nil {
			return nil, errors.Wrap(err, "extracting record object")
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}
