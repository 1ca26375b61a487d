// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchunit manipulates measurement units and formats numbers
// in those units.
//
// Measurements arrive in harness units: times in the harness's
// time_unit ("ns", "us", "ms", "s"), memory in KiB or, after CSV
// scaling, MiB. Tidy converts those to base units ("sec" and "B") so
// that a Scaler can pick a readable prefix.
package benchunit

import (
	"fmt"
	"strings"
)

// A Class specifies what class of unit prefixes are in use.
type Class int

const (
	// Decimal indicates values of a given unit should be scaled
	// by powers of 1000, using SI prefixes such as "k" and "M".
	Decimal Class = iota
	// Binary indicates values of a given unit should be scaled by
	// powers of 1024, using IEC prefixes such as "Ki" and "Mi".
	Binary
)

func (c Class) String() string {
	switch c {
	case Decimal:
		return "Decimal"
	case Binary:
		return "Binary"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Units understood by Tidy.
const (
	Seconds = "sec"
	Bytes   = "B"
	// MiB is the unit of memory measurements read from CSV with
	// the benchfmt.KiB scale.
	MiB = "MiB"
	// KiB is the unit of raw memory counters.
	KiB = "KiB"
)

var tidyFactors = map[string]struct {
	unit   string
	factor float64
}{
	"ns":  {Seconds, 1e-9},
	"us":  {Seconds, 1e-6},
	"µs":  {Seconds, 1e-6},
	"ms":  {Seconds, 1e-3},
	"s":   {Seconds, 1},
	"KiB": {Bytes, 1 << 10},
	"kB":  {Bytes, 1 << 10},
	"MiB": {Bytes, 1 << 20},
	"GiB": {Bytes, 1 << 30},
}

// Tidy normalizes a value in a pre-scaled unit into base units.
// For example, 12 "ms" becomes 0.012 "sec" and 3 "MiB" becomes
// 3145728 "B". Units Tidy does not know are returned unchanged.
func Tidy(value float64, unit string) (tidiedValue float64, tidiedUnit string) {
	if t, ok := tidyFactors[unit]; ok {
		return value * t.factor, t.unit
	}
	return value, unit
}

// ClassOf returns the Class of a tidied unit: Binary for bytes,
// Decimal for everything else.
func ClassOf(unit string) Class {
	if unit == Bytes || strings.HasSuffix(unit, "iB") {
		return Binary
	}
	return Decimal
}
