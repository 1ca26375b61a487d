// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfmt

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// KiB is the CSV scale that converts kilobyte measurements into MiB.
const KiB = 1024

// A CSVReader reads pre-aggregated measurement lines of the form
//
//	name,threads,median,stderr
//
// There is no header line. Median and StdErr are divided by the
// reader's scale; memory files record kilobytes, so callers reading
// memory use a scale of KiB to obtain MiB.
type CSVReader struct {
	r        *csv.Reader
	fileName string
	scale    float64

	sum Summary
	err error
}

// NewCSVReader constructs a reader for the CSV lines in r. A scale
// of 0 is treated as 1.
func NewCSVReader(r io.Reader, fileName string, scale float64) *CSVReader {
	if fileName == "" {
		fileName = "<unknown>"
	}
	if scale == 0 {
		scale = 1
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &CSVReader{r: cr, fileName: fileName, scale: scale}
}

// Scan advances the reader to the next line and reports whether a
// line was read. It returns false at EOF or on the first malformed
// line; use Err to tell the two apart.
func (r *CSVReader) Scan() bool {
	if r.err != nil {
		return false
	}
	fields, err := r.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			r.err = &SyntaxError{FileName: r.fileName, Line: pe.Line, Msg: pe.Err.Error()}
		} else {
			r.err = errors.Wrap(err, r.fileName)
		}
		return false
	}
	line, _ := r.r.FieldPos(0)
	r.err = r.parse(line, fields)
	return r.err == nil
}

func (r *CSVReader) parse(line int, fields []string) error {
	name := strings.TrimSpace(fields[0])
	se := &SyntaxError{FileName: r.fileName, Line: line, Name: name}
	fail := func(format string, args ...interface{}) error {
		se.Msg = fmt.Sprintf(format, args...)
		return se
	}
	if name == "" {
		return fail("empty benchmark name")
	}
	threads, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || threads < 0 {
		return fail("bad thread count %q", fields[1])
	}
	median, err := parseFinite(fields[2])
	if err != nil {
		return fail("bad median %q", fields[2])
	}
	stderr, err := parseFinite(fields[3])
	if err != nil || stderr < 0 {
		return fail("bad standard error %q", fields[3])
	}
	r.sum = Summary{
		Name:     name,
		Threads:  threads,
		Median:   median / r.scale,
		StdErr:   stderr / r.scale,
		fileName: r.fileName,
		line:     line,
	}
	return nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}

// Result returns the line read by the last call to Scan. The Summary
// is overwritten by the next call to Scan.
func (r *CSVReader) Result() *Summary {
	return &r.sum
}

// Err returns the error that stopped Scan, if any.
func (r *CSVReader) Err() error {
	return r.err
}
