// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analysis runs the scaling analysis: it reads measurement
// files, groups them into per-key series, removes the calibration
// baseline, fits a scaling law to every series and assembles the
// report.
package analysis

import (
	"context"
	"regexp"

	"github.com/lfbench/scalestat/benchfit"
	"github.com/lfbench/scalestat/benchfmt"
	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchproc"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// ErrMissingSerial is returned in speedup mode when a panel has no
// serial reference.
var ErrMissingSerial = errors.New("speedup mode needs a serial measurement")

// A Pipeline runs one analysis. It holds no state between runs.
type Pipeline struct {
	cfg    *Config
	log    logrus.FieldLogger
	filter *regexp.Regexp
}

// New returns a Pipeline for cfg. If log is nil, the standard logrus
// logger is used.
func New(cfg *Config, log logrus.FieldLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pipeline{cfg: cfg, log: log}
	if cfg.Filter != "" {
		p.filter = regexp.MustCompile(cfg.Filter)
	}
	return p, nil
}

// A Group is the data of one panel: every input sharing a label.
type Group struct {
	Label string
	Set   *benchseries.Set
}

// Run reads the configured inputs and returns the report.
func (p *Pipeline) Run(ctx context.Context) (*benchseries.Report, error) {
	groups, err := p.Read(ctx)
	if err != nil {
		return nil, err
	}
	report := &benchseries.Report{Mode: p.cfg.Mode}
	for _, g := range groups {
		panel, err := p.Panel(ctx, g)
		if err != nil {
			return nil, errors.Wrapf(err, "panel %s", g.Label)
		}
		report.Panels = append(report.Panels, panel)
	}
	return report, nil
}

// Read reads the configured inputs into one Group per label, in order
// of first appearance.
func (p *Pipeline) Read(ctx context.Context) ([]*Group, error) {
	stdinFormat, err := p.cfg.stdinFormat()
	if err != nil {
		return nil, err
	}
	files := &benchfmt.Files{
		Paths:       p.cfg.Inputs,
		AllowStdin:  true,
		StdinFormat: stdinFormat,
		AllowLabels: true,
	}
	if p.cfg.GCSCredentials != "" {
		files.ClientOptions = append(files.ClientOptions, option.WithCredentialsFile(p.cfg.GCSCredentials))
	}
	opts := benchseries.ReadOptions{
		JSON: benchfmt.JSONOptions{
			ValueField:       p.cfg.ValueField,
			ConcurrencyField: p.cfg.ConcurrencyField,
		},
		CSVScale: p.cfg.CSVScale,
		CSVUnit:  p.cfg.CSVUnit,
	}

	var labels []string
	builders := make(map[string]*benchseries.Builder)
	err = files.Visit(ctx, func(in *benchfmt.Input) error {
		b := builders[in.Label]
		if b == nil {
			b = benchseries.NewBuilder()
			b.Exclusion.FoldSequential = p.cfg.FoldSequential
			b.Filter = p.filter
			builders[in.Label] = b
			labels = append(labels, in.Label)
		}
		p.log.WithFields(logrus.Fields{"panel": in.Label, "path": in.Path, "format": in.Format}).Debug("reading input")
		return b.AddInput(in, opts)
	})
	if err != nil {
		return nil, err
	}

	groups := make([]*Group, len(labels))
	for i, l := range labels {
		b := builders[l]
		groups[i] = &Group{Label: l, Set: b.Build()}
		p.log.WithFields(logrus.Fields{"panel": l, "series": len(groups[i].Set.Series), "skipped": b.Skipped()}).Info("grouped measurements")
	}
	return groups, nil
}

// Panel corrects, fits, and assembles the series of one group.
func (p *Pipeline) Panel(ctx context.Context, g *Group) (*benchseries.Panel, error) {
	log := p.log.WithField("panel", g.Label)
	if err := p.checkProblems(log, g.Set); err != nil {
		return nil, err
	}

	baseline, err := g.Set.Baseline()
	if errors.Is(err, benchseries.ErrNoCalibration) {
		log.Warnf("no %s series; using a zero baseline", benchproc.Calibrate)
		baseline = benchmath.Baseline{}
	} else {
		log.WithFields(logrus.Fields{"value": baseline.Value, "stderr": baseline.StdErr}).Debug("calibration baseline")
	}

	var serial benchmath.Point
	if p.cfg.Mode.Speedup {
		ser, err := g.Set.Serial()
		if err != nil {
			return nil, errors.Wrap(ErrMissingSerial, err.Error())
		}
		// The serial reference carries the same fixed overhead.
		serial = p.cfg.Calibration.Correct(ser, baseline)
	}

	corrected := make([]*benchseries.Series, len(g.Set.Series))
	for i, s := range g.Set.Series {
		corrected[i] = s.Correct(p.cfg.Calibration, baseline)
	}
	fitted, err := p.Fit(ctx, log, corrected)
	if err != nil {
		return nil, err
	}
	return benchseries.Assemble(g.Label, g.Set.Unit, baseline, fitted, p.cfg.Mode, serial), nil
}

// checkProblems logs the problems found while building set and returns
// the first one that must stop the run.
func (p *Pipeline) checkProblems(log logrus.FieldLogger, set *benchseries.Set) error {
	for _, err := range set.Problems {
		var ge *benchmath.GroupError
		var ue *benchproc.UnclassifiedError
		switch {
		case errors.As(err, &ge):
			log.WithFields(logrus.Fields{"key": ge.Key, "threads": ge.Threads}).Warn(ge.Err)
		case errors.As(err, &ue):
			if !p.cfg.SkipUnclassified {
				return err
			}
			log.WithField("key", ue.Key).Warn("skipping unclassified configuration")
		default:
			return err
		}
	}
	return nil
}

// Fit fits a scaling law to every series. Fits run concurrently, at
// most cfg.Parallelism at a time. A series whose fit fails is
// reported with the error instead of a model; Fit itself only fails
// if ctx is canceled.
func (p *Pipeline) Fit(ctx context.Context, log logrus.FieldLogger, series []*benchseries.Series) ([]benchseries.Fitted, error) {
	out := make([]benchseries.Fitted, len(series))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for i, s := range series {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = p.fitOne(log, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) fitOne(log logrus.FieldLogger, s *benchseries.Series) benchseries.Fitted {
	log = log.WithField("key", s.Key)
	fm, err := benchfit.Fit(s.Xs(), s.Ys(), s.Errs(), benchfit.Options{MaxEvals: p.cfg.MaxEvals})
	if err != nil {
		log.WithError(err).Warn("reporting series without a fit")
		return benchseries.Fitted{Series: s, Err: errors.Wrap(err, s.Key)}
	}
	if !fm.Weighted {
		log.Warn("series has zero errors; fitted unweighted")
	}
	log.WithFields(logrus.Fields{"fit": fm.String(), "evals": fm.Evals}).Debug("fitted")
	return benchseries.Fitted{Series: s, Fit: fm}
}
