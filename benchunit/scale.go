// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import (
	"fmt"
	"math"
	"strconv"
)

// A Scaler represents a scaling factor for a number and
// its scientific representation.
type Scaler struct {
	Prec   int     // Digits after the decimal point
	Factor float64 // Unscaled value of 1 Prefix (e.g., 1 k => 1000)
	Prefix string  // Unit prefix ("k", "M", "Ki", etc)
}

// Format formats val and appends the unit prefix according to the
// given scale. For example, if the Scaler has class Decimal,
// Format(123456789) returns "123.5M".
//
// Tidy values with units first; formatting 123456789 ns as "123.5M"
// would read as megananoseconds.
func (s Scaler) Format(val float64) string {
	buf := make([]byte, 0, 20)
	buf = strconv.AppendFloat(buf, val/s.Factor, 'f', s.Prec, 64)
	buf = append(buf, s.Prefix...)
	return string(buf)
}

// NoOpScaler formats numbers with the smallest number of digits
// necessary to capture the exact value, and no prefix. It is meant
// for machine-readable output such as CSV.
var NoOpScaler = Scaler{-1, 1, ""}

type prefix struct {
	factor float64
	name   string
}

// Prefixes, largest first. Binary prefixes bottom out at bytes:
// fractional IEC prefixes are not defined.
var (
	siPrefixes = []prefix{
		{1e12, "T"}, {1e9, "G"}, {1e6, "M"}, {1e3, "k"}, {1, ""},
		{1e-3, "m"}, {1e-6, "µ"}, {1e-9, "n"},
	}
	iecPrefixes = []prefix{
		{1 << 40, "Ti"}, {1 << 30, "Gi"}, {1 << 20, "Mi"}, {1 << 10, "Ki"}, {1, ""},
	}
)

// Values at or above these thresholds print as 100.0, 10.00 and
// 1.000 after rounding.
const (
	t100 = 99.995
	t10  = 9.9995
	t1   = 0.99995
)

// maxPrec caps the digits printed after the decimal point for values
// smaller than the smallest prefix.
const maxPrec = 10

// Scale formats val using at least three significant digits,
// appending an SI or binary prefix. See Scaler.Format for details.
func Scale(val float64, cls Class) string {
	return CommonScale([]float64{val}, cls).Format(val)
}

// CommonScale returns a common Scaler to apply to all values in vals.
// This scale will show at least three significant digits for every
// value.
func CommonScale(vals []float64, cls Class) Scaler {
	// The common scale is determined by the non-zero value
	// closest to zero.
	var min float64
	for _, v := range vals {
		v = math.Abs(v)
		if v != 0 && !math.IsInf(v, 0) && !math.IsNaN(v) && (min == 0 || v < min) {
			min = v
		}
	}
	if min == 0 {
		return Scaler{3, 1, ""}
	}

	var prefixes []prefix
	switch cls {
	default:
		panic(fmt.Sprintf("bad Class %v", cls))
	case Decimal:
		prefixes = siPrefixes
	case Binary:
		prefixes = iecPrefixes
	}

	for _, p := range prefixes {
		if v := min / p.factor; v >= t1 {
			return Scaler{precFor(v), p.factor, p.name}
		}
	}

	// Smaller than the smallest prefix: add digits after the
	// decimal point until three significant digits show.
	p := prefixes[len(prefixes)-1]
	return Scaler{precFor(min / p.factor), p.factor, p.name}
}

func precFor(v float64) int {
	switch {
	case v >= t100:
		return 1
	case v >= t10:
		return 2
	case v >= t1:
		return 3
	}
	prec := 3
	for t := t1; v < t && prec < maxPrec; t /= 10 {
		prec++
	}
	return prec
}
