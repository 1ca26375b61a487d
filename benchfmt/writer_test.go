// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfmt

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestCSVReader(t *testing.T) {
	const in = "calibrate,1,2048,512\nomp,4,10240.0,102.4\n"
	r := NewCSVReader(strings.NewReader(in), "memory.fib.csv", KiB)
	var got []string
	for r.Scan() {
		s := r.Result()
		_, line := s.Pos()
		got = append(got, fmt.Sprintf("%d:%s,%d,%g,%g", line, s.Name, s.Threads, s.Median, s.StdErr))
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	want := "1:calibrate,1,2,0.5 2:omp,4,10,0.1"
	if strings.Join(got, " ") != want {
		t.Errorf("got %v, want %s", got, want)
	}
}

func TestCSVReaderErrors(t *testing.T) {
	check := func(in, want string) {
		t.Helper()
		r := NewCSVReader(strings.NewReader(in), "m.csv", 1)
		for r.Scan() {
		}
		if r.Err() == nil {
			t.Errorf("%q: got success, want %q", in, want)
		} else if got := r.Err().Error(); got != want {
			t.Errorf("%q:\ngot  %q\nwant %q", in, got, want)
		}
	}
	check("omp,1,2\n", "m.csv:1: wrong number of fields")
	check("omp,1,2,3\ntbb,x,2,3\n", "m.csv:2: tbb: bad thread count \"x\"")
	check("omp,1,big,3\n", "m.csv:1: omp: bad median \"big\"")
	check("omp,1,2,-3\n", "m.csv:1: omp: bad standard error \"-3\"")
	check("omp,1,2,NaN\n", "m.csv:1: omp: bad standard error \"NaN\"")
	check(",1,2,3\n", "m.csv:1: empty benchmark name")
}

func TestCSVRoundTrip(t *testing.T) {
	sums := []Summary{
		{Name: "calibrate", Threads: 1, Median: 2048, StdErr: 12},
		{Name: "libfork.*lazy.*fan", Threads: 112, Median: 1.0 / 3, StdErr: 0.1},
		{Name: "fib_libfork<lazy_pool, numa_strategy::fan>", Threads: 8, Median: 1e-9, StdErr: 0},
	}
	var buf strings.Builder
	w := NewCSVWriter(&buf)
	for i := range sums {
		if err := w.Write(&sums[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	// Names without commas are written as plain kind,threads,median,stderr.
	if first := strings.SplitN(buf.String(), "\n", 2)[0]; first != "calibrate,1,2048,12" {
		t.Errorf("first line %q", first)
	}

	r := NewCSVReader(strings.NewReader(buf.String()), "rt.csv", 1)
	for i := range sums {
		if !r.Scan() {
			t.Fatalf("line %d: %v", i+1, r.Err())
		}
		got, want := r.Result(), sums[i]
		if got.Name != want.Name || got.Threads != want.Threads ||
			math.Abs(got.Median-want.Median) > 1e-12*math.Abs(want.Median) ||
			math.Abs(got.StdErr-want.StdErr) > 1e-12*math.Abs(want.StdErr) {
			t.Errorf("line %d: got %+v, want %+v", i+1, *got, want)
		}
	}
	if r.Scan() {
		t.Errorf("unexpected extra line %+v", r.Result())
	}
}
