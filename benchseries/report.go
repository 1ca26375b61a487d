// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"sort"

	"github.com/lfbench/scalestat/benchfit"
	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchproc"
)

// A Descriptor is one plot-ready series: reported points, category,
// and the fitted model if the fit succeeded.
type Descriptor struct {
	Key    string           `json:"key"`
	Label  string           `json:"label"`
	Marker benchproc.Marker `json:"marker"`
	Unit   string           `json:"unit"`
	Points []Point          `json:"points"`

	// Fit is the model fitted to the corrected, untransformed
	// series. It is nil if FitErr is set.
	Fit    *benchfit.FittedModel `json:"fit,omitempty"`
	FitErr string                `json:"fit_error,omitempty"`

	mode   Mode
	serial benchmath.Point
}

// Curve returns the fitted model at x, transformed the same way as
// the reported points. It reports false if there is no model.
func (d *Descriptor) Curve(x float64) (float64, bool) {
	if d.Fit == nil {
		return 0, false
	}
	return d.mode.Value(x, d.Fit.Eval(x), d.serial), true
}

// A Panel is the report of one labeled input group.
type Panel struct {
	Label       string             `json:"label"`
	Unit        string             `json:"unit"`
	Baseline    benchmath.Baseline `json:"baseline"`
	Descriptors []*Descriptor      `json:"series"`
}

// A Report is the assembled output of a run.
type Report struct {
	Mode   Mode     `json:"mode"`
	Panels []*Panel `json:"panels"`
}

// A Fitted pairs a corrected series with the outcome of its fit.
type Fitted struct {
	Series *Series
	Fit    *benchfit.FittedModel
	Err    error
}

// Assemble builds a panel from fitted series. Points are transformed
// by mode; serial is the reference for speedup mode. Descriptors are
// ordered by key.
func Assemble(label string, unit string, baseline benchmath.Baseline, fitted []Fitted, mode Mode, serial benchmath.Point) *Panel {
	p := &Panel{Label: label, Unit: unit, Baseline: baseline}
	for _, f := range fitted {
		s := mode.Apply(f.Series, serial)
		d := &Descriptor{
			Key:    s.Key,
			Label:  s.Category.Label,
			Marker: s.Category.Marker,
			Unit:   s.Unit,
			Points: s.Points,
			Fit:    f.Fit,
			mode:   mode,
			serial: serial,
		}
		if f.Err != nil {
			d.Fit = nil
			d.FitErr = f.Err.Error()
		}
		p.Descriptors = append(p.Descriptors, d)
	}
	sort.SliceStable(p.Descriptors, func(i, j int) bool {
		return p.Descriptors[i].Key < p.Descriptors[j].Key
	})
	if mode.Speedup {
		p.Unit = "x"
	}
	return p
}
