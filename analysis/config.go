// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"bytes"
	"os"
	"regexp"
	"runtime"

	"github.com/lfbench/scalestat/benchfit"
	"github.com/lfbench/scalestat/benchfmt"
	"github.com/lfbench/scalestat/benchmath"
	"github.com/lfbench/scalestat/benchseries"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config configures a Pipeline. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Inputs are the files to read. Each may be prefixed with
	// "label=" to choose its panel; see benchfmt.Files.
	Inputs []string `yaml:"inputs"`

	// StdinFormat is the format of "-": "json" or "csv".
	StdinFormat string `yaml:"stdin_format"`

	// Mode selects relative and speedup reporting.
	Mode benchseries.Mode `yaml:"mode"`

	// Filter is a regular expression selecting configuration
	// keys. Empty keeps every key.
	Filter string `yaml:"filter"`

	// FoldSequential pools sequential-strategy variants into
	// their "fan" keys instead of dropping them.
	FoldSequential bool `yaml:"fold_sequential"`

	// SkipUnclassified reports keys that match no category as
	// warnings instead of failing the run.
	SkipUnclassified bool `yaml:"skip_unclassified"`

	// ValueField and ConcurrencyField name the JSON fields of
	// the measurement and the thread count.
	ValueField       string `yaml:"value_field"`
	ConcurrencyField string `yaml:"concurrency_field"`

	// CSVScale divides CSV medians and errors; CSVUnit names the
	// result.
	CSVScale float64 `yaml:"csv_scale"`
	CSVUnit  string  `yaml:"csv_unit"`

	// Calibration holds the correction floor and the calibration
	// error scale.
	Calibration benchmath.Calibration `yaml:"calibration"`

	// MaxEvals is the evaluation budget of each fit.
	MaxEvals int `yaml:"max_evals"`

	// Parallelism bounds the number of concurrent fits.
	Parallelism int `yaml:"parallelism"`

	// GCSCredentials is a service account key file used for
	// gs:// inputs. Empty uses the default credentials.
	GCSCredentials string `yaml:"gcs_credentials"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StdinFormat:      "json",
		ValueField:       benchfmt.DefaultJSONOptions.ValueField,
		ConcurrencyField: benchfmt.DefaultJSONOptions.ConcurrencyField,
		CSVScale:         benchfmt.KiB,
		CSVUnit:          "MiB",
		Calibration:      benchmath.DefaultCalibration,
		MaxEvals:         benchfit.DefaultMaxEvals,
		Parallelism:      runtime.GOMAXPROCS(0),
	}
}

// LoadConfig reads a YAML configuration file. Fields the file does
// not set keep their DefaultConfig values; unknown fields are an
// error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate checks c for values no run could use.
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.Filter); err != nil {
		return errors.Wrap(err, "filter")
	}
	if _, err := c.stdinFormat(); err != nil {
		return err
	}
	switch {
	case c.ValueField == "":
		return errors.New("value_field is empty")
	case c.ConcurrencyField == "":
		return errors.New("concurrency_field is empty")
	case !(c.CSVScale > 0):
		return errors.Errorf("csv_scale must be positive, got %v", c.CSVScale)
	case c.Calibration.Floor < 0:
		return errors.Errorf("calibration floor must not be negative, got %v", c.Calibration.Floor)
	case c.Calibration.ErrScale < 0:
		return errors.Errorf("calibration err_scale must not be negative, got %v", c.Calibration.ErrScale)
	case c.MaxEvals <= 0:
		return errors.Errorf("max_evals must be positive, got %d", c.MaxEvals)
	case c.Parallelism <= 0:
		return errors.Errorf("parallelism must be positive, got %d", c.Parallelism)
	}
	return nil
}

func (c *Config) stdinFormat() (benchfmt.Format, error) {
	switch c.StdinFormat {
	case "", "json":
		return benchfmt.JSON, nil
	case "csv":
		return benchfmt.CSV, nil
	}
	return 0, errors.Errorf("unknown stdin_format %q (want json or csv)", c.StdinFormat)
}
