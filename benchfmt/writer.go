// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfmt

import (
	"encoding/csv"
	"io"
	"strconv"
)

// A CSVWriter writes Summaries in the format read by CSVReader.
// Values are written exactly as given, with no scaling.
type CSVWriter struct {
	w   *csv.Writer
	row [4]string
}

// NewCSVWriter returns a writer that writes summary lines to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write writes one line for s. Call Flush to ensure it reaches the
// underlying writer.
func (w *CSVWriter) Write(s *Summary) error {
	w.row[0] = s.Name
	w.row[1] = strconv.Itoa(s.Threads)
	w.row[2] = strconv.FormatFloat(s.Median, 'g', -1, 64)
	w.row[3] = strconv.FormatFloat(s.StdErr, 'g', -1, 64)
	return w.w.Write(w.row[:])
}

// Flush writes any buffered lines and reports any write error.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
