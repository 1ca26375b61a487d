// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchproc

import (
	"errors"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	check := func(raw, want string) {
		t.Helper()
		got := Canonical(raw)
		if got != want {
			t.Errorf("Canonical(%q) = %q, want %q", raw, got, want)
		}
		// Canonicalizing a key is a no-op.
		if again := Canonical(got); again != got {
			t.Errorf("Canonical(%q) = %q, not idempotent", got, again)
		}
	}

	check("fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time",
		"fib_libfork<lazy_pool, numa_strategy::fan>")
	check("fib_omp/30/112/real_time", "fib_omp")
	check("uts_tbb/T1L/8/real_time", "uts_tbbT1L")
	check("calibrate", "calibrate")
	check("libfork.*lazy.*seq", "libfork.*lazy.*fan")
	// Segments that merely contain digits are kept.
	check("matmul_omp/n1024/4", "matmul_ompn1024")
	check("12/34", "")
}

func TestCanonicalScenario(t *testing.T) {
	key := Canonical("fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time")
	if !strings.Contains(key, "fan") || strings.Contains(key, "seq") {
		t.Errorf("key %q: want fan, not seq", key)
	}
	if strings.Contains(key, "real_time") || strings.Contains(key, "4") {
		t.Errorf("key %q still has harness segments", key)
	}
}

func TestExcluded(t *testing.T) {
	for raw, want := range map[string]bool{
		"fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time": true,
		"fib_libfork<lazy_pool, numa_strategy::fan>/4/real_time": false,
		"uts_libfork_coalloc_busy_fan/T1/8/real_time":            true,
		"uts_libfork_coalloc_busy_fan/T1/8":                      true,
		"uts_libfork_alloc_busy_fan/T1/8":                        false,
		"uts_libfork_coalloc_/T1":                                true,
		"x_coalloc_lazy":                                         true,
		"calibrate":                                              true,
		"zero/1":                                                 true,
		"serial":                                                 true,
		"fib_serial/30/real_time":                                true,
		"uts_serial/T1/real_time":                                true,
		"zero_omp/1":                                             false,
		"omp":                                                    false,
	} {
		if got := Excluded(raw); got != want {
			t.Errorf("Excluded(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestIsSerial(t *testing.T) {
	for key, want := range map[string]bool{
		"serial":        true,
		"fib_serial":    true,
		"uts_serialT1L": true,
		"fib_omp":       false,
		"calibrate":     false,
		"Serial":        false,
	} {
		if got := IsSerial(key); got != want {
			t.Errorf("IsSerial(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestExclusionFold(t *testing.T) {
	fold := Exclusion{FoldSequential: true}
	for raw, want := range map[string]bool{
		"fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time": false,
		"uts_libfork_coalloc_busy_seq/T1/8":                      true,
		"calibrate":                                              false,
	} {
		if got := fold.Excluded(raw); got != want {
			t.Errorf("Excluded(%q) = %v, want %v", raw, got, want)
		}
	}
	seq := Canonical("fib_libfork<lazy_pool, numa_strategy::seq>/4/real_time")
	fan := Canonical("fib_libfork<lazy_pool, numa_strategy::fan>/8/real_time")
	if seq != fan {
		t.Errorf("folded key %q != %q", seq, fan)
	}
}

func TestClassify(t *testing.T) {
	var c Classifier
	check := func(raw, label string, marker Marker) {
		t.Helper()
		_, cat, err := c.Classify(raw)
		if err != nil {
			t.Errorf("Classify(%q): %v", raw, err)
			return
		}
		if cat.Label != label || cat.Marker != marker {
			t.Errorf("Classify(%q) = %v, want %s (%s)", raw, cat, label, marker)
		}
	}

	check("fib_omp/4/real_time", "OpenMP", Circle)
	check("fib_tbb/4/real_time", "OneTBB", Square)
	check("uts_taskflow/T1/4", "Taskflow", Diamond)
	check("uts_libfork_busy_coalloc/T1/4", "Busy-LF*", TriangleLeft)
	check("fib_libfork<busy_pool, numa_strategy::fan>/4", "Busy-LF", TriangleDown)
	check("uts_libfork_lazy_coalloc/T1/4", "Lazy-LF*", TriangleRight)
	check("fib_libfork<lazy_pool, numa_strategy::fan>/4", "Lazy-LF", TriangleUp)
	check("fib_tmc/4", "TooManyCooks", TriangleUp)
	check("fib_ccpp/4", "Concurrencpp", TriangleDown)

	// "omp" wins over every later marker.
	check("omp_busy_lazy_tbb", "OpenMP", Circle)
	// "co" alone is not a category.
	if _, _, err := c.Classify("fib_co/4"); err == nil {
		t.Errorf("Classify(fib_co/4): want error")
	}
}

func TestUnclassified(t *testing.T) {
	var c Classifier
	_, _, err := c.Classify("fib_cilk/8/real_time")
	var ue *UnclassifiedError
	if !errors.As(err, &ue) {
		t.Fatalf("want *UnclassifiedError, got %v", err)
	}
	if ue.Key != "fib_cilk" {
		t.Errorf("error key %q, want fib_cilk", ue.Key)
	}
	if !errors.Is(err, ErrUnclassified) {
		t.Errorf("error does not wrap ErrUnclassified")
	}
}

func TestCustomRules(t *testing.T) {
	c := Classifier{Rules: []Rule{{[]string{"cilk"}, Category{"Cilk", Circle}}}}
	key, cat, err := c.Classify("fib_cilk/8")
	if err != nil || key != "fib_cilk" || cat.Label != "Cilk" {
		t.Errorf("got %q %v %v", key, cat, err)
	}
	if _, err := c.Category("fib_omp"); err == nil {
		t.Errorf("custom rules should replace the defaults")
	}
}
