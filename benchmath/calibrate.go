// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmath

import "math"

// DefaultFloor is the smallest corrected value: 4 KiB expressed in MiB.
// The same floor is applied to latency series.
const DefaultFloor = 4.0 / 1024

// DefaultErrScale converts the recorded spread of the calibration
// measurement into a standard error equivalent.
const DefaultErrScale = 5

// A Baseline is the measured fixed overhead removed from every series.
type Baseline struct {
	Value float64 `json:"value"`

	// StdErr is the uncertainty recorded for the calibration
	// measurement, before ErrScale is applied.
	StdErr float64 `json:"stderr"`
}

// BaselineOf returns the baseline measured by p.
func BaselineOf(p Point) Baseline {
	return Baseline{Value: p.Center, StdErr: p.Err}
}

// A Calibration subtracts a Baseline from measurements.
type Calibration struct {
	// Floor is the smallest corrected center.
	Floor float64 `yaml:"floor"`

	// ErrScale multiplies the baseline's StdErr before it is
	// combined with a point's error.
	ErrScale float64 `yaml:"err_scale"`
}

// DefaultCalibration uses DefaultFloor and DefaultErrScale.
var DefaultCalibration = Calibration{Floor: DefaultFloor, ErrScale: DefaultErrScale}

// Correct subtracts b from p.
//
// The corrected center is max(Floor, p.Center-b.Value). The corrected
// error is sqrt(p.Err² + (b.StdErr*ErrScale)²) and is not clamped, so
// a clamped point can carry an error larger than its center.
func (c Calibration) Correct(p Point, b Baseline) Point {
	be := b.StdErr * c.ErrScale
	return Point{
		Center: math.Max(c.Floor, p.Center-b.Value),
		Err:    math.Sqrt(p.Err*p.Err + be*be),
		Min:    math.Max(c.Floor, p.Min-b.Value),
	}
}
