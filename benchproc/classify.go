// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchproc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Reserved keys denote baseline and control configurations. They are
// never reported as data series.
const (
	// Zero is the empty program.
	Zero = "zero"
	// Calibrate is the calibration configuration whose first point
	// is subtracted from every other series.
	Calibrate = "calibrate"
	// Serial marks the single-threaded reference implementation.
	// Harnesses name it per benchmark ("fib_serial"), so every key
	// containing it is a serial reference; see IsSerial.
	Serial = "serial"
)

// Reserved reports whether key is one of the reserved baseline keys:
// exactly Zero or Calibrate, or a serial reference.
func Reserved(key string) bool {
	return key == Zero || key == Calibrate || IsSerial(key)
}

// IsSerial reports whether key names a serial reference
// configuration, such as "serial" or "fib_serial".
func IsSerial(key string) bool {
	return strings.Contains(key, Serial)
}

const (
	// realTimeSegment is the name segment the harness appends when a
	// benchmark measures wall-clock time.
	realTimeSegment = "real_time"

	// coallocMarker marks the co-allocating variant of a benchmark.
	coallocMarker = "_coalloc_"
)

// strip splits raw on "/" and joins the segments that are neither the
// real-time marker nor a non-negative integer.
func strip(raw string) string {
	var b strings.Builder
	for _, seg := range strings.Split(raw, "/") {
		if seg == realTimeSegment || isNumeric(seg) {
			continue
		}
		b.WriteString(seg)
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Canonical returns the configuration key of a raw benchmark name.
func Canonical(raw string) string {
	return strings.ReplaceAll(strip(raw), "seq", "fan")
}

// Excluded reports whether records with the given raw name should be
// dropped before grouping: sequential-strategy variants (tested
// before "seq" is folded into "fan"), co-allocating variants, and the
// reserved baseline keys.
func Excluded(raw string) bool {
	return Exclusion{}.Excluded(raw) || Reserved(Canonical(raw))
}

// An Exclusion drops benchmark variants that are not reported as
// series of their own. Reserved keys are not its concern.
type Exclusion struct {
	// FoldSequential keeps sequential-strategy variants. Canonical
	// folds them into the matching "fan" key, so their samples are
	// pooled with it.
	FoldSequential bool
}

// Excluded reports whether x drops records with the given raw name.
func (x Exclusion) Excluded(raw string) bool {
	s := strip(raw)
	if strings.Contains(s, coallocMarker) {
		return true
	}
	return !x.FoldSequential && strings.Contains(s, "seq")
}

// A Marker is a plot-marker glyph, using the single-character names
// common to plotting libraries.
type Marker string

const (
	Circle        Marker = "o"
	Square        Marker = "s"
	Diamond       Marker = "d"
	TriangleLeft  Marker = "<"
	TriangleRight Marker = ">"
	TriangleDown  Marker = "v"
	TriangleUp    Marker = "^"
)

// A Category is the human-readable family a configuration belongs to.
type Category struct {
	Label  string
	Marker Marker
}

func (c Category) String() string {
	return fmt.Sprintf("%s (%s)", c.Label, c.Marker)
}

// A Rule assigns Category to keys that contain every substring in
// Contains.
type Rule struct {
	Contains []string
	Category Category
}

// Match reports whether key contains all of r's substrings.
func (r Rule) Match(key string) bool {
	for _, s := range r.Contains {
		if !strings.Contains(key, s) {
			return false
		}
	}
	return true
}

// DefaultRules is the framework table, in priority order. Keys can
// contain several markers ("busy_co" contains both "busy" and "co"),
// so the order matters: the first matching rule wins.
var DefaultRules = []Rule{
	{[]string{"omp"}, Category{"OpenMP", Circle}},
	{[]string{"tbb"}, Category{"OneTBB", Square}},
	{[]string{"taskflow"}, Category{"Taskflow", Diamond}},
	{[]string{"busy", "co"}, Category{"Busy-LF*", TriangleLeft}},
	{[]string{"busy"}, Category{"Busy-LF", TriangleDown}},
	{[]string{"lazy", "co"}, Category{"Lazy-LF*", TriangleRight}},
	{[]string{"lazy"}, Category{"Lazy-LF", TriangleUp}},
	{[]string{"tmc"}, Category{"TooManyCooks", TriangleUp}},
	{[]string{"ccpp"}, Category{"Concurrencpp", TriangleDown}},
}

// ErrUnclassified is the error wrapped by UnclassifiedError.
var ErrUnclassified = errors.New("unclassified configuration")

// An UnclassifiedError reports a configuration key that matched no
// rule.
type UnclassifiedError struct {
	Key string
}

func (e *UnclassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, ErrUnclassified)
}

func (e *UnclassifiedError) Unwrap() error {
	return ErrUnclassified
}

// A Classifier maps configuration keys to categories using an ordered
// rule table. The zero Classifier uses DefaultRules.
type Classifier struct {
	Rules []Rule
}

// Category returns the category of an already canonical key.
func (c *Classifier) Category(key string) (Category, error) {
	rules := c.Rules
	if rules == nil {
		rules = DefaultRules
	}
	for _, r := range rules {
		if r.Match(key) {
			return r.Category, nil
		}
	}
	return Category{}, &UnclassifiedError{key}
}

// Classify canonicalizes raw and returns its key and category.
func (c *Classifier) Classify(raw string) (key string, cat Category, err error) {
	key = Canonical(raw)
	cat, err = c.Category(key)
	return key, cat, err
}
