// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchmath

import "math"

// Speedup returns ref/p: how many times faster p is than the
// reference measurement. Relative errors add in quadrature:
//
//	err = t * sqrt((p.Err/p.Center)² + (ref.Err/ref.Center)²)
func Speedup(ref, p Point) Point {
	t := ref.Center / p.Center
	fp := p.Err / p.Center
	fr := ref.Err / ref.Center
	return Point{
		Center: t,
		Err:    t * math.Sqrt(fp*fp+fr*fr),
		Min:    t,
	}
}

// Per divides p by n, for example to express a measurement per
// thread.
func Per(p Point, n float64) Point {
	return Point{Center: p.Center / n, Err: p.Err / n, Min: p.Min / n}
}
