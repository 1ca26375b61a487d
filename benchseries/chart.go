// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchseries

import (
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/lfbench/scalestat/benchproc"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// ErrEmptyChart is returned by Chart when no panel has any series.
var ErrEmptyChart = errors.New("nothing to chart")

// ChartOptions control the size and axes of a chart.
type ChartOptions struct {
	// Width and Height are the size of one panel. Panels are laid
	// out in a single row.
	Width, Height vg.Length

	// DPI is the resolution of PNG output.
	DPI int

	// LogX uses a logarithmic thread axis.
	LogX bool
}

// DefaultChartOptions is a 12x9 cm panel at 300 dpi.
var DefaultChartOptions = ChartOptions{
	Width:  12 * vg.Centimeter,
	Height: 9 * vg.Centimeter,
	DPI:    300,
}

const pointRad = 3

// ChartFormat returns the chart format implied by the extension of
// path: "png", "svg", or "pdf".
func ChartFormat(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "png", "svg", "pdf":
		return ext, nil
	}
	return "", errors.Errorf("%s: unsupported chart format %q (want .png, .svg or .pdf)", path, ext)
}

// Chart draws one panel per non-empty panel of r and writes the
// figure to w in the given format.
func Chart(w io.Writer, r *Report, format string, opts ChartOptions) error {
	var plots []*plot.Plot
	for _, p := range r.Panels {
		if len(p.Descriptors) == 0 {
			continue
		}
		pl, err := panelPlot(p, r.Mode, opts)
		if err != nil {
			return errors.Wrapf(err, "panel %s", p.Label)
		}
		plots = append(plots, pl)
	}
	if len(plots) == 0 {
		return ErrEmptyChart
	}

	width := vg.Length(len(plots)) * opts.Width
	can, err := newCanvas(format, width, opts.Height, opts.DPI)
	if err != nil {
		return err
	}
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(plots),
		PadX: vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, draw.New(can))
	for j, pl := range plots {
		pl.Draw(canvases[0][j])
	}
	_, err = can.WriteTo(w)
	return err
}

func newCanvas(format string, w, h vg.Length, dpi int) (vg.CanvasWriterTo, error) {
	switch format {
	case "png":
		if dpi <= 0 {
			dpi = DefaultChartOptions.DPI
		}
		return vgimg.PngCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(w, h),
			vgimg.UseDPI(dpi), vgimg.UseBackgroundColor(color.White))}, nil
	case "svg":
		return vgsvg.New(w, h), nil
	case "pdf":
		return vgpdf.New(w, h), nil
	}
	return nil, errors.Errorf("unsupported chart format %q", format)
}

// axisLabel names the reported quantity of a panel.
func axisLabel(unit string, m Mode) string {
	switch {
	case m.Speedup && m.Relative:
		return "efficiency"
	case m.Speedup:
		return "speedup"
	case m.Relative:
		return unit + " / thread"
	}
	return unit
}

// errorPoints is the data of a YErrorBars plotter.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func panelPlot(p *Panel, m Mode, opts ChartOptions) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.Label
	pl.X.Label.Text = "threads"
	pl.Y.Label.Text = axisLabel(p.Unit, m)
	pl.Legend.Top = true
	pl.Legend.Left = true
	pl.Add(plotter.NewGrid())

	logX := opts.LogX
	for _, d := range p.Descriptors {
		for _, pt := range d.Points {
			if pt.Threads <= 0 {
				logX = false
			}
		}
	}
	if logX {
		pl.X.Scale = plot.LogScale{}
		pl.X.Tick.Marker = plot.LogTicks{}
	}

	for i, d := range p.Descriptors {
		if len(d.Points) == 0 {
			continue
		}
		d := d
		clr := plotutil.Color(i)
		data := errorPoints{
			XYs:     make(plotter.XYs, len(d.Points)),
			YErrors: make(plotter.YErrors, len(d.Points)),
		}
		for j, pt := range d.Points {
			data.XYs[j].X = float64(pt.Threads)
			data.XYs[j].Y = pt.Center
			data.YErrors[j].Low = pt.Err
			data.YErrors[j].High = pt.Err
		}

		bars, err := plotter.NewYErrorBars(data)
		if err != nil {
			return nil, errors.Wrap(err, d.Key)
		}
		bars.LineStyle.Color = clr

		line, points, err := plotter.NewLinePoints(data.XYs)
		if err != nil {
			return nil, errors.Wrap(err, d.Key)
		}
		points.GlyphStyle = draw.GlyphStyle{Color: clr, Radius: vg.Points(pointRad), Shape: Glyph(d.Marker)}
		line.LineStyle.Color = clr
		pl.Add(bars, points)

		if d.Fit != nil {
			fn := plotter.NewFunction(func(x float64) float64 {
				y, _ := d.Curve(x)
				return y
			})
			fn.XMin = data.XYs[0].X
			fn.XMax = data.XYs[len(data.XYs)-1].X
			fn.Samples = 100
			fn.LineStyle.Color = clr
			fn.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			pl.Add(fn)
		} else {
			pl.Add(line)
		}

		name := d.Label
		if name == "" {
			name = d.Key
		}
		pl.Legend.Add(name, points)
	}
	return pl, nil
}

// Glyph returns the glyph drawer for a category marker.
func Glyph(m benchproc.Marker) draw.GlyphDrawer {
	switch m {
	case benchproc.Circle:
		return draw.CircleGlyph{}
	case benchproc.Square:
		return draw.BoxGlyph{}
	case benchproc.Diamond:
		return Diamond{}
	case benchproc.TriangleUp:
		return Triangle{Dir: Up}
	case benchproc.TriangleDown:
		return Triangle{Dir: Down}
	case benchproc.TriangleLeft:
		return Triangle{Dir: Left}
	case benchproc.TriangleRight:
		return Triangle{Dir: Right}
	}
	return draw.CrossGlyph{}
}

const (
	cosπover4 = vg.Length(.707106781202420)
	sinπover6 = vg.Length(.500000000025921)
	cosπover6 = vg.Length(.866025403769473)
)

// A Direction is where a Triangle glyph points.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Triangle is a filled equilateral triangle glyph.
type Triangle struct {
	Dir Direction
}

// DrawGlyph implements the Glyph interface.
func (t Triangle) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	r := sty.Radius
	// Vertices of an upward triangle, relative to pt.
	vs := []vg.Point{
		{X: 0, Y: r},
		{X: -r * cosπover6, Y: -r * sinπover6},
		{X: r * cosπover6, Y: -r * sinπover6},
	}
	p := make([]vg.Point, len(vs))
	for i, v := range vs {
		switch t.Dir {
		case Down:
			v = vg.Point{X: v.X, Y: -v.Y}
		case Left:
			v = vg.Point{X: -v.Y, Y: v.X}
		case Right:
			v = vg.Point{X: v.Y, Y: v.X}
		}
		p[i] = vg.Point{X: pt.X + v.X, Y: pt.Y + v.Y}
	}
	c.FillPolygon(sty.Color, p)
}

// Diamond is a filled square glyph standing on a corner.
type Diamond struct{}

// DrawGlyph implements the Glyph interface.
func (Diamond) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	r := sty.Radius
	c.FillPolygon(sty.Color, []vg.Point{
		{X: pt.X, Y: pt.Y + r},
		{X: pt.X + r*cosπover4, Y: pt.Y},
		{X: pt.X, Y: pt.Y - r},
		{X: pt.X - r*cosπover4, Y: pt.Y},
	})
}
