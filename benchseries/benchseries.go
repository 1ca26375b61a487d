// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchseries groups benchmark measurements into per-key
// series over thread counts and transforms them for reporting.
package benchseries

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/lfbench/scalestat/benchfmt"
	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchproc"
	"github.com/pkg/errors"
)

// ErrNoCalibration is returned by Set.Baseline when the input has no
// calibration series.
var ErrNoCalibration = errors.Errorf("no %q series", benchproc.Calibrate)

// ErrNoSerial is returned when speedups are requested but the input
// has no serial reference series.
var ErrNoSerial = errors.Errorf("no %q series", benchproc.Serial)

// A Point is an aggregated measurement of one key at one thread count.
type Point struct {
	Threads int `json:"threads"`
	benchmath.Point
}

// A Series is the points of one configuration key, in strictly
// increasing thread order.
type Series struct {
	Key      string
	Category benchproc.Category
	Unit     string
	Points   []Point
}

// Xs returns the thread counts of s.
func (s *Series) Xs() []float64 {
	xs := make([]float64, len(s.Points))
	for i, p := range s.Points {
		xs[i] = float64(p.Threads)
	}
	return xs
}

// Ys returns the centers of s.
func (s *Series) Ys() []float64 {
	ys := make([]float64, len(s.Points))
	for i, p := range s.Points {
		ys[i] = p.Center
	}
	return ys
}

// Errs returns the standard errors of s.
func (s *Series) Errs() []float64 {
	es := make([]float64, len(s.Points))
	for i, p := range s.Points {
		es[i] = p.Err
	}
	return es
}

// Reference returns the point of s at one thread, or the first point
// if s was not measured at one thread.
func (s *Series) Reference() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	for _, p := range s.Points {
		if p.Threads == 1 {
			return p, true
		}
	}
	return s.Points[0], true
}

func (s *Series) mapPoints(f func(Point) benchmath.Point) *Series {
	out := *s
	out.Points = make([]Point, len(s.Points))
	for i, p := range s.Points {
		out.Points[i] = Point{Threads: p.Threads, Point: f(p)}
	}
	return &out
}

// Correct returns s with baseline b removed from every point.
func (s *Series) Correct(c benchmath.Calibration, b benchmath.Baseline) *Series {
	return s.mapPoints(func(p Point) benchmath.Point { return c.Correct(p.Point, b) })
}

// PerThread returns s with every point divided by its thread count.
func (s *Series) PerThread() *Series {
	return s.mapPoints(func(p Point) benchmath.Point { return benchmath.Per(p.Point, float64(p.Threads)) })
}

// Speedup returns s as speedups over the serial reference.
func (s *Series) Speedup(serial benchmath.Point) *Series {
	out := s.mapPoints(func(p Point) benchmath.Point { return benchmath.Speedup(serial, p.Point) })
	out.Unit = "x"
	return out
}

// A Mode selects how corrected series are reported.
type Mode struct {
	// Relative divides every value by its thread count.
	Relative bool `json:"relative" yaml:"relative"`

	// Speedup reports serial/value instead of value. With
	// Relative this is the parallel efficiency.
	Speedup bool `json:"speedup" yaml:"speedup"`
}

// Apply transforms s according to m. serial is only used in speedup
// mode.
func (m Mode) Apply(s *Series, serial benchmath.Point) *Series {
	if m.Speedup {
		s = s.Speedup(serial)
	}
	if m.Relative {
		s = s.PerThread()
	}
	return s
}

// Value transforms a single corrected value y at x according to m.
func (m Mode) Value(x, y float64, serial benchmath.Point) float64 {
	if m.Speedup {
		y = serial.Center / y
	}
	if m.Relative {
		y /= x
	}
	return y
}

// A Set is the series of one panel: the reported series sorted by key,
// plus the reserved baseline series.
type Set struct {
	Unit     string
	Series   []*Series
	Reserved map[string]*Series

	// Problems lists groups that could not be aggregated
	// (*benchmath.GroupError) and keys that could not be classified
	// (*benchproc.UnclassifiedError). The affected points or series
	// are left out of the set.
	Problems []error
}

// Baseline returns the calibration baseline of the set.
func (s *Set) Baseline() (benchmath.Baseline, error) {
	cal, ok := s.Reserved[benchproc.Calibrate]
	if !ok {
		return benchmath.Baseline{}, ErrNoCalibration
	}
	p, ok := cal.Reference()
	if !ok {
		return benchmath.Baseline{}, ErrNoCalibration
	}
	return benchmath.BaselineOf(p.Point), nil
}

// Serial returns the single-threaded reference point of the set. The
// reference is the series keyed exactly "serial" if there is one, and
// otherwise the first serial series by key, such as "fib_serial".
func (s *Set) Serial() (benchmath.Point, error) {
	ser, ok := s.Reserved[benchproc.Serial]
	if !ok {
		var keys []string
		for k := range s.Reserved {
			if benchproc.IsSerial(k) {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			ser, ok = s.Reserved[keys[0]], true
		}
	}
	if !ok {
		return benchmath.Point{}, ErrNoSerial
	}
	p, ok := ser.Reference()
	if !ok {
		return benchmath.Point{}, ErrNoSerial
	}
	return p.Point, nil
}

type groupKey struct {
	key     string
	threads int
}

// A Builder collects measurements and groups them by configuration
// key and thread count.
type Builder struct {
	// Exclusion drops unreported benchmark variants.
	Exclusion benchproc.Exclusion

	// Filter, if non-nil, keeps only the non-reserved keys it
	// matches.
	Filter *regexp.Regexp

	// Classifier assigns categories. nil means the default rules.
	Classifier *benchproc.Classifier

	unit    string
	samples map[groupKey][]float64
	points  map[groupKey]benchmath.Point
	skipped int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		samples: make(map[groupKey][]float64),
		points:  make(map[groupKey]benchmath.Point),
	}
}

// keep returns the key of raw and whether it should be grouped.
func (b *Builder) keep(raw string) (string, bool) {
	key := benchproc.Canonical(raw)
	if benchproc.Reserved(key) {
		return key, true
	}
	if b.Exclusion.Excluded(raw) || (b.Filter != nil && !b.Filter.MatchString(key)) {
		b.skipped++
		return key, false
	}
	return key, true
}

// Add adds a raw measurement. Aggregate records are ignored.
func (b *Builder) Add(r *benchfmt.Result) {
	if r.Kind != benchfmt.Iteration {
		return
	}
	key, ok := b.keep(r.Name)
	if !ok {
		return
	}
	if b.unit == "" {
		b.unit = r.Unit
	}
	gk := groupKey{key, r.Threads()}
	b.samples[gk] = append(b.samples[gk], r.Value)
}

// AddSummary adds a pre-aggregated measurement. The median is used as
// both center and minimum.
func (b *Builder) AddSummary(s *benchfmt.Summary, unit string) error {
	key, ok := b.keep(s.Name)
	if !ok {
		return nil
	}
	if b.unit == "" {
		b.unit = unit
	}
	gk := groupKey{key, s.Threads}
	if _, dup := b.points[gk]; dup {
		file, line := s.Pos()
		return &benchfmt.SyntaxError{FileName: file, Line: line, Name: s.Name,
			Msg: fmt.Sprintf("duplicate measurement at %d threads", s.Threads)}
	}
	b.points[gk] = benchmath.Point{Center: s.Median, Err: s.StdErr, Min: s.Median}
	return nil
}

// ReadOptions configure Builder.AddInput.
type ReadOptions struct {
	JSON benchfmt.JSONOptions

	// CSVScale divides CSV medians and standard errors, and
	// CSVUnit names the resulting unit.
	CSVScale float64
	CSVUnit  string
}

// AddInput reads every record of in into b. It stops at the first
// malformed record.
func (b *Builder) AddInput(in *benchfmt.Input, opts ReadOptions) error {
	switch in.Format {
	case benchfmt.CSV:
		r := benchfmt.NewCSVReader(in.R, in.Path, opts.CSVScale)
		for r.Scan() {
			if err := b.AddSummary(r.Result(), opts.CSVUnit); err != nil {
				return err
			}
		}
		return r.Err()
	default:
		r := benchfmt.NewJSONReader(in.R, in.Path, opts.JSON)
		for r.Scan() {
			b.Add(r.Result())
		}
		return r.Err()
	}
}

// Skipped returns the number of records dropped by the exclusion
// rules or the filter.
func (b *Builder) Skipped() int {
	return b.skipped
}

// Build aggregates every group and assembles the series.
func (b *Builder) Build() *Set {
	set := &Set{Unit: b.unit, Reserved: make(map[string]*Series)}
	byKey := make(map[string]*Series)
	add := func(gk groupKey, p benchmath.Point) {
		s := byKey[gk.key]
		if s == nil {
			s = &Series{Key: gk.key, Unit: b.unit}
			byKey[gk.key] = s
		}
		s.Points = append(s.Points, Point{Threads: gk.threads, Point: p})
	}

	for _, gk := range sortedKeys(b.samples) {
		p, err := benchmath.Aggregate(b.samples[gk])
		if err != nil {
			set.Problems = append(set.Problems, &benchmath.GroupError{Key: gk.key, Threads: gk.threads, Err: err})
			continue
		}
		add(gk, p)
	}
	for _, gk := range sortedKeys(b.points) {
		if _, ok := b.samples[gk]; ok {
			set.Problems = append(set.Problems, &benchmath.GroupError{Key: gk.key, Threads: gk.threads,
				Err: errors.New("measured both as raw samples and as a summary")})
			continue
		}
		add(gk, b.points[gk])
	}

	cl := b.Classifier
	if cl == nil {
		cl = new(benchproc.Classifier)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := byKey[k]
		sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Threads < s.Points[j].Threads })
		if benchproc.Reserved(k) {
			set.Reserved[k] = s
			continue
		}
		cat, err := cl.Category(k)
		if err != nil {
			set.Problems = append(set.Problems, err)
			continue
		}
		s.Category = cat
		set.Series = append(set.Series, s)
	}
	return set
}

func sortedKeys[V any](m map[groupKey]V) []groupKey {
	keys := make([]groupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].threads < keys[j].threads
	})
	return keys
}
