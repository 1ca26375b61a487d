// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchmath computes robust statistics over repeated benchmark
// measurements and corrects them for a measured baseline.
//
// The statistics are deliberately simple. The largest sample of each
// group is discarded as a warm-up artifact; the remaining samples are
// summarized by their median, their minimum, and the standard error
// of their mean. The standard error is computed on the trimmed set
// even though the center is a median.
package benchmath

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/mathx"
	"github.com/aclements/go-moremath/stats"
	"github.com/pkg/errors"
)

// ErrInsufficientData is returned when a sample has no values left
// after trimming.
var ErrInsufficientData = errors.New("insufficient data: no samples left after trimming")

// ErrSingleSample is a warning: only one value was left after
// trimming, so the standard error is reported as 0.
var ErrSingleSample = errors.New("one sample left after trimming; standard error is 0")

// A Sample is a set of repeated measurements of one configuration at
// one thread count.
type Sample struct {
	// Values are the measured values, in ascending order.
	Values []float64

	// Warnings is a list of warnings about this sample that
	// should be reported to the user.
	Warnings []error
}

// NewSample constructs a Sample from a set of measurements. The
// values are copied; the caller's slice is not modified.
func NewSample(values []float64) *Sample {
	vs := append([]float64(nil), values...)
	// Sort values for fast order statistics.
	sort.Float64s(vs)
	return &Sample{Values: vs}
}

// Trimmed returns the values of s without the single largest value.
func (s *Sample) Trimmed() []float64 {
	if len(s.Values) == 0 {
		return nil
	}
	return s.Values[:len(s.Values)-1]
}

// A Point is the robust summary of a Sample.
type Point struct {
	// Center is the median of the trimmed sample.
	Center float64 `json:"center"`

	// Err is the standard error of the mean of the trimmed
	// sample. It is never negative.
	Err float64 `json:"err"`

	// Min is the smallest trimmed value. Min <= Center.
	Min float64 `json:"min"`
}

// Summary summarizes s. It drops the largest value and returns the
// median, standard error and minimum of the rest. If no values remain
// it returns ErrInsufficientData.
func (s *Sample) Summary() (Point, error) {
	xs := s.Trimmed()
	switch len(xs) {
	case 0:
		return Point{}, ErrInsufficientData
	case 1:
		s.Warnings = append(s.Warnings, ErrSingleSample)
		return Point{Center: xs[0], Err: 0, Min: xs[0]}, nil
	}
	sample := stats.Sample{Xs: xs, Sorted: true}
	center := sample.Quantile(0.5)
	min := xs[0]
	// Interpolation can land a hair below the minimum when every
	// value is equal.
	if center < min {
		center = min
	}
	return Point{
		Center: center,
		Err:    stats.StdDev(xs) / math.Sqrt(float64(len(xs))),
		Min:    min,
	}, nil
}

// Aggregate summarizes a set of repeated measurements. See
// Sample.Summary.
func Aggregate(values []float64) (Point, error) {
	return NewSample(values).Summary()
}

// PctErrString returns the standard error of p as a percentage of its
// center, for example "3%".
func (p Point) PctErrString() string {
	if math.IsInf(p.Err, 0) || math.IsNaN(p.Err) {
		return "∞"
	}
	if p.Err == 0 {
		return "0%"
	}
	if mathx.Sign(p.Center) == 0 {
		return "?"
	}
	return fmt.Sprintf("%.0f%%", 100*p.Err/math.Abs(p.Center))
}

// A GroupError is an error summarizing the sample of one
// configuration key at one thread count.
type GroupError struct {
	Key     string
	Threads int
	Err     error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s at %d threads: %v", e.Key, e.Threads, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}
