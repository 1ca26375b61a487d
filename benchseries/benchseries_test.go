// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lfbench/scalestat/benchfmt"
	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchproc"
)

type rec struct {
	name    string
	kind    string
	threads float64
	values  []float64
}

// jsonInput renders recs as a harness results document.
func jsonInput(recs ...rec) *benchfmt.Input {
	var objs []string
	for _, r := range recs {
		kind := r.kind
		if kind == "" {
			kind = "iteration"
		}
		for _, v := range r.values {
			objs = append(objs, fmt.Sprintf(`{"name": %q, "run_type": %q, "green_threads": %v, "real_time": %v, "time_unit": "ms"}`,
				r.name, kind, r.threads, v))
		}
	}
	doc := `{"context": {}, "benchmarks": [` + strings.Join(objs, ",\n") + `]}`
	return &benchfmt.Input{Path: "test.json", Label: "test", Format: benchfmt.JSON, R: strings.NewReader(doc)}
}

var testRecs = []rec{
	{"calibrate", "", 1, []float64{1, 1, 1, 5}},
	{"fib_omp/1/real_time", "", 1, []float64{3, 3, 3, 10}},
	{"fib_omp/2/real_time", "", 2, []float64{5, 5, 5, 50}},
	{"fib_omp/4/real_time", "", 3.5, []float64{9, 9, 9, 90}},
	{"fib_omp/4/real_time", "aggregate", 4, []float64{1000}},
	{"fib_libfork<lazy_pool, numa_strategy::seq>/1/real_time", "", 1, []float64{7, 7, 8}},
	{"fib_libfork<lazy_pool, numa_strategy::fan>/1/real_time", "", 1, []float64{6, 6, 9}},
	{"uts_coalloc_busy/1", "", 1, []float64{1, 2, 3}},
	{"serial", "", 1, []float64{12, 12, 12, 13}},
}

func build(t *testing.T, b *Builder, recs ...rec) *Set {
	t.Helper()
	if err := b.AddInput(jsonInput(recs...), ReadOptions{}); err != nil {
		t.Fatal(err)
	}
	return b.Build()
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	set := build(t, b, testRecs...)

	if len(set.Problems) != 0 {
		t.Fatalf("unexpected problems: %v", set.Problems)
	}
	if set.Unit != "ms" {
		t.Errorf("unit %q, want ms", set.Unit)
	}
	var keys []string
	for _, s := range set.Series {
		keys = append(keys, s.Key)
	}
	want := []string{"fib_libfork<lazy_pool, numa_strategy::fan>", "fib_omp"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if b.Skipped() != 6 {
		t.Errorf("skipped %d records, want 6", b.Skipped())
	}

	omp := set.Series[1]
	if omp.Category.Label != "OpenMP" {
		t.Errorf("category %v", omp.Category)
	}
	wantPts := []Point{
		{1, benchmath.Point{Center: 3, Min: 3}},
		{2, benchmath.Point{Center: 5, Min: 5}},
		{4, benchmath.Point{Center: 9, Min: 9}},
	}
	if diff := cmp.Diff(wantPts, omp.Points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}

	bl, err := set.Baseline()
	if err != nil {
		t.Fatal(err)
	}
	if bl != (benchmath.Baseline{Value: 1}) {
		t.Errorf("baseline %+v", bl)
	}
	ser, err := set.Serial()
	if err != nil {
		t.Fatal(err)
	}
	if ser.Center != 12 {
		t.Errorf("serial %+v", ser)
	}
}

func TestBuilderHarnessSerial(t *testing.T) {
	set := build(t, NewBuilder(),
		rec{"calibrate", "", 1, []float64{1, 1, 1, 5}},
		rec{"fib_serial/30/real_time", "", 1, []float64{8, 8, 8, 20}},
		rec{"fib_omp/30/1/real_time", "", 1, []float64{3, 3, 3, 10}},
	)
	if len(set.Problems) != 0 {
		t.Fatalf("unexpected problems: %v", set.Problems)
	}
	if len(set.Series) != 1 || set.Series[0].Key != "fib_omp" {
		t.Errorf("series %v", set.Series)
	}
	if _, ok := set.Reserved["fib_serial"]; !ok {
		t.Errorf("fib_serial not routed to the reserved series: %v", set.Reserved)
	}
	ser, err := set.Serial()
	if err != nil {
		t.Fatal(err)
	}
	if ser.Center != 8 {
		t.Errorf("serial %+v, want center 8", ser)
	}
}

func TestBuilderFold(t *testing.T) {
	b := NewBuilder()
	b.Exclusion.FoldSequential = true
	set := build(t, b, testRecs...)
	if len(set.Series) != 2 {
		t.Fatalf("got %d series, want 2", len(set.Series))
	}
	lazy := set.Series[0]
	// Both variants pool into one group of six samples.
	if len(lazy.Points) != 1 || lazy.Points[0].Center != 7 {
		t.Errorf("folded series %+v", lazy.Points)
	}
}

func TestBuilderFilter(t *testing.T) {
	b := NewBuilder()
	b.Filter = regexp.MustCompile("omp")
	set := build(t, b, testRecs...)
	if len(set.Series) != 1 || set.Series[0].Key != "fib_omp" {
		t.Fatalf("filtered series %v", set.Series)
	}
	// Reserved keys are not subject to the filter.
	if _, err := set.Baseline(); err != nil {
		t.Error(err)
	}
}

func TestBuilderProblems(t *testing.T) {
	set := build(t, NewBuilder(),
		rec{"mystery/1", "", 1, []float64{1, 2, 3}},
		rec{"fib_tbb/1", "", 1, []float64{4}},
		rec{"fib_tbb/2", "", 2, []float64{4, 5}},
	)
	var unclassified *benchproc.UnclassifiedError
	var group *benchmath.GroupError
	for _, err := range set.Problems {
		switch {
		case errors.As(err, &unclassified):
			if unclassified.Key != "mystery" {
				t.Errorf("unclassified key %q", unclassified.Key)
			}
		case errors.As(err, &group):
			if group.Key != "fib_tbb" || group.Threads != 1 || !errors.Is(err, benchmath.ErrInsufficientData) {
				t.Errorf("group error %v", err)
			}
		default:
			t.Errorf("unexpected problem %v", err)
		}
	}
	if unclassified == nil || group == nil {
		t.Errorf("problems %v", set.Problems)
	}
	if len(set.Series) != 1 || len(set.Series[0].Points) != 1 || set.Series[0].Points[0].Threads != 2 {
		t.Errorf("series %v", set.Series)
	}
	if _, err := set.Baseline(); !errors.Is(err, ErrNoCalibration) {
		t.Errorf("Baseline: got %v, want ErrNoCalibration", err)
	}
	if _, err := set.Serial(); !errors.Is(err, ErrNoSerial) {
		t.Errorf("Serial: got %v, want ErrNoSerial", err)
	}
}

func TestBuilderCSV(t *testing.T) {
	b := NewBuilder()
	in := &benchfmt.Input{Path: "mem.csv", Format: benchfmt.CSV,
		R: strings.NewReader("calibrate,1,1024,0\nfib_busy,1,2048,102.4\nfib_busy,2,4096,0\nfib_busy,1,1,1\n")}
	err := b.AddInput(in, ReadOptions{CSVScale: benchfmt.KiB, CSVUnit: "MiB"})
	var se *benchfmt.SyntaxError
	if !errors.As(err, &se) || se.Line != 4 {
		t.Fatalf("duplicate line: got %v", err)
	}
	set := b.Build()
	if set.Unit != "MiB" {
		t.Errorf("unit %q", set.Unit)
	}
	want := []Point{
		{1, benchmath.Point{Center: 2, Err: 0.1, Min: 2}},
		{2, benchmath.Point{Center: 4, Err: 0, Min: 4}},
	}
	if diff := cmp.Diff(want, set.Series[0].Points); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
}

func TestModes(t *testing.T) {
	s := &Series{Key: "k", Unit: "ms", Points: []Point{
		{1, benchmath.Point{Center: 8, Err: 0.8, Min: 7}},
		{4, benchmath.Point{Center: 2, Err: 0.2, Min: 2}},
	}}
	serial := benchmath.Point{Center: 8, Err: 0}

	rel := Mode{Relative: true}.Apply(s, serial)
	if rel.Points[1].Center != 0.5 || rel.Points[1].Err != 0.05 {
		t.Errorf("relative %+v", rel.Points[1])
	}
	if s.Points[1].Center != 2 {
		t.Errorf("Apply modified its input")
	}

	sp := Mode{Speedup: true}.Apply(s, serial)
	if sp.Points[1].Center != 4 || sp.Unit != "x" {
		t.Errorf("speedup %+v %s", sp.Points[1], sp.Unit)
	}

	eff := Mode{Speedup: true, Relative: true}
	if got := eff.Apply(s, serial).Points[1].Center; got != 1 {
		t.Errorf("efficiency %v, want 1", got)
	}
	if got := eff.Value(4, 2, serial); got != 1 {
		t.Errorf("Value = %v, want 1", got)
	}

	c := s.Correct(benchmath.DefaultCalibration, benchmath.Baseline{Value: 3})
	if c.Points[1].Center != benchmath.DefaultFloor || c.Points[0].Center != 5 {
		t.Errorf("corrected %+v", c.Points)
	}
}
