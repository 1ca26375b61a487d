// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lfbench/scalestat/benchmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4.0/1024, cfg.Calibration.Floor)
	assert.Equal(t, 5.0, cfg.Calibration.ErrScale)
	assert.Equal(t, 10000, cfg.MaxEvals)
	assert.Equal(t, "real_time", cfg.ValueField)
	assert.Equal(t, "green_threads", cfg.ConcurrencyField)
	assert.Equal(t, 1024.0, cfg.CSVScale)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "scalestat.yaml", `
inputs:
  - uts=a.json
  - uts=b.json
mode:
  relative: true
filter: lazy
calibration:
  err_scale: 3
max_evals: 500
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"uts=a.json", "uts=b.json"}, cfg.Inputs)
	assert.True(t, cfg.Mode.Relative)
	assert.False(t, cfg.Mode.Speedup)
	assert.Equal(t, "lazy", cfg.Filter)
	assert.Equal(t, benchmath.Calibration{Floor: benchmath.DefaultFloor, ErrScale: 3}, cfg.Calibration)
	assert.Equal(t, 500, cfg.MaxEvals)
	// Untouched fields keep their defaults.
	assert.Equal(t, "real_time", cfg.ValueField)
}

func TestLoadConfigErrors(t *testing.T) {
	for name, content := range map[string]string{
		"unknown field": "colour: blue\n",
		"bad filter":    "filter: '('\n",
		"bad scale":     "csv_scale: 0\n",
		"bad stdin":     "stdin_format: xml\n",
		"bad yaml":      "inputs: [\n",
	} {
		_, err := LoadConfig(writeFile(t, "c.yaml", content))
		assert.Error(t, err, name)
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
