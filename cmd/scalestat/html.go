// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/safehtml/template"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/lfbench/scalestat/benchunit"
)

var htmlTemplate = template.Must(template.New("").Parse(`
{{- range .}}
<h2>{{.Label}}</h2>
<p class='baseline'>baseline {{.Baseline}}</p>
<table class='scalestat'>
<tbody>
<tr><th>key<th>category<th>threads<th>{{.Unit}}<th>±<th>fit
{{range .Rows -}}
<tr class='{{.Class}}'><td>{{.Key}}<td>{{.Category}}<td>{{.Threads}}<td>{{.Value}}<td>{{.Err}}<td class='fit'>{{.Fit}}
{{end -}}
</tbody>
</table>
{{end}}`))

type htmlPanel struct {
	Label    string
	Baseline string
	Unit     string
	Rows     []htmlRow
}

type htmlRow struct {
	Class                    string
	Key, Category            string
	Threads, Value, Err, Fit string
}

func htmlPanels(r *benchseries.Report) []htmlPanel {
	var out []htmlPanel
	for _, p := range r.Panels {
		unit, scaler := panelScale(p)
		hp := htmlPanel{
			Label:    p.Label,
			Baseline: baselineString(p),
			Unit:     unit,
		}
		for _, d := range p.Descriptors {
			for j, pt := range d.Points {
				v, _ := benchunit.Tidy(pt.Center, d.Unit)
				row := htmlRow{
					Threads: strconv.Itoa(pt.Threads),
					Value:   scaler.Format(v),
					Err:     "±" + pt.PctErrString(),
				}
				if j == 0 {
					row.Class = "first"
					row.Key = d.Key
					row.Category = fmt.Sprintf("%s %s", d.Label, d.Marker)
					row.Fit = "no fit"
					if d.Fit != nil {
						row.Fit = d.Fit.String()
					}
				}
				hp.Rows = append(hp.Rows, row)
			}
		}
		out = append(out, hp)
	}
	return out
}

// formatHTML writes r as an HTML document.
func formatHTML(w io.Writer, r *benchseries.Report) error {
	if _, err := io.WriteString(w, htmlHeader); err != nil {
		return err
	}
	if err := htmlTemplate.Execute(w, htmlPanels(r)); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlFooter)
	return err
}

var htmlHeader = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Scaling Results</title>
<style>
.scalestat { border-collapse: collapse; }
.scalestat th:nth-child(1) { text-align: left; }
.scalestat tbody td:nth-child(1n+3):not(.fit) { text-align: right; padding: 0em 1em; }
.scalestat tr.first td { border-top: 1px solid #ccc; }
.scalestat th { border-top: 1px solid #666; border-bottom: 1px solid #ccc; }
</style>
</head>
<body>
`
var htmlFooter = `</body>
</html>
`
