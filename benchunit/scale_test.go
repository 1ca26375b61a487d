// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchunit

import (
	"math"
	"testing"
)

func TestScale(t *testing.T) {
	var cls Class
	test := func(num float64, want string) {
		t.Helper()
		if got := Scale(num, cls); got != want {
			t.Errorf("for %v, got %s, want %s", num, got, want)
		}
	}

	cls = Decimal
	test(0, "0.000")
	test(1, "1.000")
	test(-1, "-1.000")
	test(123456789, "123.5M")
	test(12.5, "12.50")
	test(0.0125, "12.50m")
	test(1.5e-6, "1.500µ")
	test(2.5e-12, "0.002500n")
	test(5e14, "500.0T")

	cls = Binary
	test(1, "1.000")
	test(1024, "1.000Ki")
	test(1020*1024, "1020.0Ki")
	test(3*1<<20, "3.000Mi")
	test(0.5, "0.5000")
}

func TestCommonScale(t *testing.T) {
	s := CommonScale([]float64{0.0125, 1.5, 0}, Decimal)
	if got := s.Format(1.5); got != "1500.00m" {
		t.Errorf("got %s, want 1500.00m", got)
	}
	if got := NoOpScaler.Format(1.0 / 4); got != "0.25" {
		t.Errorf("NoOpScaler: got %s", got)
	}
}

func TestTidy(t *testing.T) {
	for _, tc := range []struct {
		val      float64
		unit     string
		want     float64
		wantUnit string
		class    Class
	}{
		{12, "ms", 0.012, "sec", Decimal},
		{3, "MiB", 3 << 20, "B", Binary},
		{4, "KiB", 4096, "B", Binary},
		{2.5, "x", 2.5, "x", Decimal},
	} {
		got, gotUnit := Tidy(tc.val, tc.unit)
		if math.Abs(got-tc.want) > 1e-12*tc.want || gotUnit != tc.wantUnit {
			t.Errorf("Tidy(%v, %q) = %v, %q, want %v, %q", tc.val, tc.unit, got, gotUnit, tc.want, tc.wantUnit)
		}
		if c := ClassOf(gotUnit); c != tc.class {
			t.Errorf("ClassOf(%q) = %v, want %v", gotUnit, c, tc.class)
		}
	}
}
