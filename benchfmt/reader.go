// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// JSONOptions selects which fields of a JSON benchmark record carry
// the measurement.
type JSONOptions struct {
	// ValueField is the name of the measured value field, such as
	// "real_time", "cpu_time", or a user counter.
	ValueField string

	// ConcurrencyField is the name of the field holding the
	// requested worker count.
	ConcurrencyField string
}

// DefaultJSONOptions reads wall-clock time against the harness's
// green_threads counter.
var DefaultJSONOptions = JSONOptions{
	ValueField:       "real_time",
	ConcurrencyField: "green_threads",
}

// timeFields are the value fields that are measured in the record's
// time_unit.
var timeFields = map[string]bool{"real_time": true, "cpu_time": true}

// A JSONReader reads benchmark records from a JSON results document.
//
// Its API is modeled on bufio.Scanner. The Result returned after each
// call to Scan is owned by the reader and overwritten by the next
// call; a caller should copy anything it needs to retain.
type JSONReader struct {
	src      io.Reader
	fileName string
	opts     JSONOptions

	recs   []json.RawMessage
	loaded bool
	next   int

	result Result
	err    error
}

// NewJSONReader constructs a reader for the JSON document in r.
// fileName is used in error messages; it is purely diagnostic.
func NewJSONReader(r io.Reader, fileName string, opts JSONOptions) *JSONReader {
	if fileName == "" {
		fileName = "<unknown>"
	}
	if opts.ValueField == "" {
		opts.ValueField = DefaultJSONOptions.ValueField
	}
	if opts.ConcurrencyField == "" {
		opts.ConcurrencyField = DefaultJSONOptions.ConcurrencyField
	}
	return &JSONReader{src: r, fileName: fileName, opts: opts}
}

// load decodes the document envelope. Records are decoded one at a
// time by Scan so errors can name the offending record.
func (r *JSONReader) load() error {
	var doc struct {
		Benchmarks *[]json.RawMessage `json:"benchmarks"`
	}
	if err := json.NewDecoder(r.src).Decode(&doc); err != nil {
		return &SyntaxError{FileName: r.fileName, Msg: err.Error()}
	}
	if doc.Benchmarks == nil {
		return &SyntaxError{FileName: r.fileName, Msg: `missing "benchmarks" array`}
	}
	r.recs = *doc.Benchmarks
	return nil
}

// Scan advances the reader to the next record and reports whether a
// record was read. If Scan reaches the end of the document or
// encounters a malformed record, it returns false, in which case the
// caller should use the Err method to check for errors.
func (r *JSONReader) Scan() bool {
	if r.err != nil {
		return false
	}
	if !r.loaded {
		r.loaded = true
		if err := r.load(); err != nil {
			r.err = err
			return false
		}
	}
	if r.next >= len(r.recs) {
		return false
	}
	raw := r.recs[r.next]
	r.next++
	if err := r.parse(r.next, raw); err != nil {
		r.err = err
		return false
	}
	return true
}

// Result returns the record read by the last call to Scan.
func (r *JSONReader) Result() *Result {
	return &r.result
}

// Err returns the error that stopped Scan, if any. If Scan stopped
// because it read the whole document, Err returns nil.
func (r *JSONReader) Err() error {
	return r.err
}

func (r *JSONReader) parse(index int, raw json.RawMessage) error {
	se := &SyntaxError{FileName: r.fileName, Line: index}
	fail := func(format string, args ...interface{}) error {
		se.Msg = fmt.Sprintf(format, args...)
		return se
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fail("record is not an object: %v", err)
	}

	name, err := stringField(fields, "name")
	if err != nil {
		return fail("%v", err)
	}
	se.Name = name

	runType, err := stringField(fields, "run_type")
	if err != nil {
		return fail("%v", err)
	}
	kind, ok := parseRunKind(runType)
	if !ok {
		return fail("unknown run_type %q", runType)
	}

	if failed, ok := fields["error_occurred"]; ok {
		var b bool
		if json.Unmarshal(failed, &b) == nil && b {
			msg, _ := stringField(fields, "error_message")
			return fail("harness reported an error: %s", msg)
		}
	}

	r.result = Result{Name: name, Kind: kind, fileName: r.fileName, index: index}

	if kind != Iteration {
		// Aggregates are dropped by every consumer; only the
		// fields identifying them must be well formed.
		return nil
	}

	if r.result.Concurrency, err = numberField(fields, r.opts.ConcurrencyField); err != nil {
		return fail("%v", err)
	}
	if r.result.Concurrency < 0 {
		return fail("negative %s %v", r.opts.ConcurrencyField, r.result.Concurrency)
	}
	if r.result.Value, err = numberField(fields, r.opts.ValueField); err != nil {
		return fail("%v", err)
	}
	if timeFields[r.opts.ValueField] {
		if _, ok := fields["time_unit"]; ok {
			if r.result.Unit, err = stringField(fields, "time_unit"); err != nil {
				return fail("%v", err)
			}
		}
	}
	return nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", errors.Errorf("missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.Errorf("field %q is not a string: %s", key, raw)
	}
	return s, nil
}

func numberField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, errors.Errorf("missing field %q", key)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, errors.Errorf("field %q is not a number: %s", key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("field %q is not finite", key)
	}
	return v, nil
}
