// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchfmt reads and writes the measurement formats produced
// by the external benchmark harness.
//
// Two input formats are supported. The JSON format is the output of
// a Google Benchmark style harness: a top-level "benchmarks" array of
// per-iteration and aggregate records. The CSV format holds
// pre-aggregated memory measurements, one line per configuration and
// thread count.
//
// Like the Go benchmark format reader this package grew out of,
// readers are structured as streaming operations modeled on
// bufio.Scanner. Unlike that reader, a malformed record stops the
// stream: partial parses of a measurement file are never useful.
package benchfmt

import (
	"fmt"
	"math"
)

// A Record is one element read from a measurement file. It is
// either a *Result, a *Summary, or a *SyntaxError.
type Record interface {
	// Pos returns the position of this record as a file name
	// and a 1-based record or line number within that file.
	Pos() (fileName string, line int)
}

var _ Record = (*Result)(nil)
var _ Record = (*Summary)(nil)
var _ Record = (*SyntaxError)(nil)

// A RunKind distinguishes raw per-iteration records from the
// harness's own aggregates.
type RunKind int

const (
	// Iteration is a single repetition of a benchmark.
	Iteration RunKind = iota
	// Aggregate is a statistic computed by the harness over
	// repetitions (mean, median, stddev, ...). Aggregates are
	// never used as samples.
	Aggregate
)

func (k RunKind) String() string {
	switch k {
	case Iteration:
		return "iteration"
	case Aggregate:
		return "aggregate"
	}
	return fmt.Sprintf("RunKind(%d)", int(k))
}

func parseRunKind(s string) (RunKind, bool) {
	switch s {
	case "iteration":
		return Iteration, true
	case "aggregate":
		return Aggregate, true
	}
	return 0, false
}

// A Result is a single raw measurement event.
type Result struct {
	// Name is the harness-specific benchmark name, for example
	// "fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time".
	Name string

	// Kind is the run type of this record.
	Kind RunKind

	// Concurrency is the requested worker count as reported by
	// the harness. It is a float because harness counters are;
	// use Threads for the rounded value.
	Concurrency float64

	// Value is the measured value: a time in Unit, or a memory
	// measurement in kilobytes.
	Value float64

	// Unit is the harness's time unit for this record, or "" if
	// the value is not a time.
	Unit string

	fileName string
	index    int
}

// Threads returns Concurrency rounded half-up to the nearest integer.
func (r *Result) Threads() int {
	return RoundThreads(r.Concurrency)
}

// RoundThreads rounds a requested worker count half-up.
func RoundThreads(c float64) int {
	return int(math.Floor(c + 0.5))
}

// Pos returns the file name and 1-based index of r in the
// benchmarks array.
func (r *Result) Pos() (fileName string, line int) {
	return r.fileName, r.index
}

// A Summary is one pre-aggregated measurement line: the median and
// standard error of repeated measurements of one configuration at
// one thread count.
type Summary struct {
	Name    string
	Threads int
	Median  float64
	StdErr  float64

	fileName string
	line     int
}

// Pos returns the file name and line of s.
func (s *Summary) Pos() (fileName string, line int) {
	return s.fileName, s.line
}

// A SyntaxError represents a malformed record in a measurement file.
type SyntaxError struct {
	FileName string
	Line     int    // Line (CSV) or 1-based record index (JSON)
	Name     string // Benchmark name, if it could be read
	Msg      string
}

func (e *SyntaxError) Pos() (fileName string, line int) {
	return e.FileName, e.Line
}

func (e *SyntaxError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s:%d: %s: %s", e.FileName, e.Line, e.Name, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}
