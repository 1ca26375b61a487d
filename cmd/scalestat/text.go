// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/lfbench/scalestat/benchunit"
	"github.com/lfbench/scalestat/cmd/scalestat/internal/texttab"
)

// unitSuffix returns the suffix printed after a scaled value in a
// tidied unit.
func unitSuffix(unit string) string {
	if unit == benchunit.Seconds {
		return "s"
	}
	return unit
}

// panelScale returns the tidied unit of p and a scaler common to every
// reported center of p.
func panelScale(p *benchseries.Panel) (string, benchunit.Scaler) {
	unit := p.Unit
	var vals []float64
	for _, d := range p.Descriptors {
		for _, pt := range d.Points {
			var v float64
			v, unit = benchunit.Tidy(pt.Center, d.Unit)
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		_, unit = benchunit.Tidy(0, p.Unit)
	}
	return unit, benchunit.CommonScale(vals, benchunit.ClassOf(unit))
}

// formatText writes one table per panel to w.
func formatText(w io.Writer, r *benchseries.Report) error {
	for i, p := range r.Panels {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := formatPanel(w, p); err != nil {
			return err
		}
	}
	return nil
}

// baselineString formats the calibration baseline of p, for example
// "500.0µs ±1%".
func baselineString(p *benchseries.Panel) string {
	v, unit := benchunit.Tidy(p.Baseline.Value, p.Unit)
	base := benchmath.Point{Center: p.Baseline.Value, Err: p.Baseline.StdErr}
	return fmt.Sprintf("%s%s ±%s", benchunit.Scale(v, benchunit.ClassOf(unit)), unitSuffix(unit), base.PctErrString())
}

func formatPanel(w io.Writer, p *benchseries.Panel) error {
	fmt.Fprintf(w, "panel: %s\n", p.Label)
	fmt.Fprintf(w, "baseline: %s\n", baselineString(p))
	if len(p.Descriptors) == 0 {
		_, err := fmt.Fprintln(w, "no series")
		return err
	}

	unit, scaler := panelScale(p)
	var tab texttab.Table
	tab.Row().Cell("key").Cell("category").Cell("threads", texttab.Right).
		Cell(unit, texttab.Right).Cell("±", texttab.Right).Cell("fit")
	for _, d := range p.Descriptors {
		for j, pt := range d.Points {
			tab.Row()
			if j == 0 {
				tab.Cell(d.Key).Cell(fmt.Sprintf("%s %s", d.Label, d.Marker))
			} else {
				tab.Col(2)
			}
			v, _ := benchunit.Tidy(pt.Center, d.Unit)
			tab.Cell(strconv.Itoa(pt.Threads), texttab.Right).
				Cell(scaler.Format(v), texttab.Right).
				Cell("±"+pt.PctErrString(), texttab.Right)
			if j == 0 {
				if d.Fit != nil {
					tab.Cell(d.Fit.String())
				} else {
					tab.Cell("no fit")
				}
			}
		}
	}
	return tab.Format(w)
}
