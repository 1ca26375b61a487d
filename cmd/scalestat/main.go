// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Scalestat computes scaling statistics from parallel benchmark
// measurements and fits a scaling law to every configuration.
//
// Usage:
//
//	scalestat [flags] inputs...
//
// Each input is a benchmark harness JSON file, a CSV summary file
// (name,threads,median,stderr), a gs://bucket/object path, or "-" for
// standard input. An input may be prefixed with "label=" to choose the
// panel it is reported in; inputs sharing a label are merged, and by
// default each file is its own panel labeled by its base name.
//
// Every panel has its own calibration baseline, taken from the
// "calibrate" configuration, which is subtracted from every other
// configuration before fitting
//
//	y = a + b·y0·x^n
//
// where x is the thread count and y0 the serial measurement.
//
// The -rel flag divides every value by its thread count, and -speedup
// reports serial/value instead of value; together they report the
// parallel efficiency.
//
// By default, scalestat prints one table per panel. The -format flag
// selects csv, json or html output instead, -o draws a chart, and -db
// stores the report in a SQL database:
//
//	scalestat -o fib.svg -db sqlite3:results.db fib.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lfbench/scalestat/analysis"
	"github.com/lfbench/scalestat/benchfmt"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/lfbench/scalestat/storage/db"
	_ "github.com/lfbench/scalestat/storage/db/sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// errUsage is returned by scalestat when the command line is invalid
// and usage has been printed.
var errUsage = errors.New("usage")

var formats = map[string]func(w io.Writer, r *benchseries.Report, cfg *analysis.Config) error{
	"text": func(w io.Writer, r *benchseries.Report, _ *analysis.Config) error { return formatText(w, r) },
	"html": func(w io.Writer, r *benchseries.Report, _ *analysis.Config) error { return formatHTML(w, r) },
	"json": formatJSON,
	"csv":  formatCSV,
}

func main() {
	log.SetPrefix("scalestat: ")
	log.SetFlags(0)
	if err := scalestat(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if err == errUsage {
			os.Exit(2)
		}
		log.Print(err)
		os.Exit(1)
	}
}

func scalestat(stdout, stderr io.Writer, args []string) error {
	def := analysis.DefaultConfig()

	fs := flag.NewFlagSet("scalestat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: scalestat [flags] inputs...

Each input is a harness JSON file, a CSV summary file, a gs:// path, or
"-" for standard input, optionally prefixed with "label=" to choose its
panel.

Flags:
`)
		fs.PrintDefaults()
	}
	flagConfig := fs.String("config", "", "read the configuration from YAML `file`; other flags override it")
	flagOut := fs.String("o", "", "draw a chart to `file` (.png, .svg or .pdf)")
	flagFormat := fs.String("format", "text", "print results in `format`: text, csv, json or html")
	flagRel := fs.Bool("rel", def.Mode.Relative, "divide every value by its thread count")
	flagSpeedup := fs.Bool("speedup", def.Mode.Speedup, "report speedups over the serial measurement")
	flagField := fs.String("field", def.ValueField, "read measurements from JSON `field`")
	flagConcurrency := fs.String("concurrency-field", def.ConcurrencyField, "read thread counts from JSON `field`")
	flagFilter := fs.String("filter", def.Filter, "only report configurations matching `regexp`")
	flagFold := fs.Bool("fold-seq", def.FoldSequential, "pool sequential-strategy variants into their fan configurations")
	flagKeepGoing := fs.Bool("keep-going", def.SkipUnclassified, "warn about unclassified configurations instead of failing")
	flagStdin := fs.String("stdin-format", def.StdinFormat, "read standard input in `format`: json or csv")
	flagCSVScale := fs.Float64("csv-scale", def.CSVScale, "divide CSV medians and errors by `n`")
	flagCSVUnit := fs.String("csv-unit", def.CSVUnit, "name of the `unit` of scaled CSV values")
	flagFloor := fs.Float64("floor", def.Calibration.Floor, "clamp corrected values to at least `v`")
	flagMaxEvals := fs.Int("max-evals", def.MaxEvals, "give up a fit after `n` model evaluations")
	flagParallel := fs.Int("j", def.Parallelism, "run up to `n` fits in parallel")
	flagGCS := fs.String("gcs-credentials", def.GCSCredentials, "read gs:// inputs with the service account key in `file`")
	flagDB := fs.String("db", "", "store the report in the database `driver:dsn`, for example sqlite3:results.db")
	flagLogX := fs.Bool("logx", false, "use a logarithmic thread axis in charts")
	flagVerbose := fs.Bool("v", false, "log per-group details")
	flagQuiet := fs.Bool("q", false, "log only warnings and errors")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg := def
	if *flagConfig != "" {
		var err error
		if cfg, err = analysis.LoadConfig(*flagConfig); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rel":
			cfg.Mode.Relative = *flagRel
		case "speedup":
			cfg.Mode.Speedup = *flagSpeedup
		case "field":
			cfg.ValueField = *flagField
		case "concurrency-field":
			cfg.ConcurrencyField = *flagConcurrency
		case "filter":
			cfg.Filter = *flagFilter
		case "fold-seq":
			cfg.FoldSequential = *flagFold
		case "keep-going":
			cfg.SkipUnclassified = *flagKeepGoing
		case "stdin-format":
			cfg.StdinFormat = *flagStdin
		case "csv-scale":
			cfg.CSVScale = *flagCSVScale
		case "csv-unit":
			cfg.CSVUnit = *flagCSVUnit
		case "floor":
			cfg.Calibration.Floor = *flagFloor
		case "max-evals":
			cfg.MaxEvals = *flagMaxEvals
		case "j":
			cfg.Parallelism = *flagParallel
		case "gcs-credentials":
			cfg.GCSCredentials = *flagGCS
		}
	})
	if fs.NArg() > 0 {
		cfg.Inputs = fs.Args()
	}
	format, ok := formats[*flagFormat]
	if len(cfg.Inputs) == 0 || !ok || (*flagVerbose && *flagQuiet) {
		fs.Usage()
		return errUsage
	}

	var chartFormat string
	if *flagOut != "" {
		var err error
		if chartFormat, err = benchseries.ChartFormat(*flagOut); err != nil {
			return err
		}
	}
	var dbDriver, dbDSN string
	if *flagDB != "" {
		var ok bool
		if dbDriver, dbDSN, ok = strings.Cut(*flagDB, ":"); !ok || dbDriver == "" {
			return errors.Errorf("-db %q: want driver:dsn", *flagDB)
		}
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	switch {
	case *flagVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case *flagQuiet:
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := analysis.New(cfg, logger)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := format(&buf, report, cfg); err != nil {
		return err
	}
	if _, err := stdout.Write(buf.Bytes()); err != nil {
		return err
	}

	if *flagOut != "" {
		opts := benchseries.DefaultChartOptions
		opts.LogX = *flagLogX
		if err := writeChart(*flagOut, report, chartFormat, opts); err != nil {
			return err
		}
		logger.WithField("path", *flagOut).Info("wrote chart")
	}
	if *flagDB != "" {
		runID, err := storeReport(ctx, dbDriver, dbDSN, report)
		if err != nil {
			return err
		}
		logger.WithField("run", runID).Info("stored report")
	}
	return nil
}

func writeChart(path string, r *benchseries.Report, format string, opts benchseries.ChartOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := benchseries.Chart(f, r, format, opts); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrap(err, path)
	}
	return f.Close()
}

func storeReport(ctx context.Context, driver, dsn string, r *benchseries.Report) (int64, error) {
	d, err := db.OpenSQL(driver, dsn)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s database", driver)
	}
	defer d.Close()
	return d.InsertReport(ctx, r)
}

func formatJSON(w io.Writer, r *benchseries.Report, _ *analysis.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(r)
}

// formatCSV writes every reported point as a summary line. Values in
// the CSV unit are scaled back, so the output reads back as input.
func formatCSV(w io.Writer, r *benchseries.Report, cfg *analysis.Config) error {
	cw := benchfmt.NewCSVWriter(w)
	for _, p := range r.Panels {
		for _, d := range p.Descriptors {
			scale := 1.0
			if d.Unit == cfg.CSVUnit {
				scale = cfg.CSVScale
			}
			for _, pt := range d.Points {
				s := &benchfmt.Summary{
					Name:    d.Key,
					Threads: pt.Threads,
					Median:  pt.Center * scale,
					StdErr:  pt.Err * scale,
				}
				if err := cw.Write(s); err != nil {
					return err
				}
			}
		}
	}
	return cw.Flush()
}
