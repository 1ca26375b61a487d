// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfit

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseless returns a + b·y0·xⁿ at xs, where y0 is the value at xs[0].
func noiseless(xs []float64, a, b, n float64) []float64 {
	y0 := a / (1 - b*math.Pow(xs[0], n))
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = a + b*y0*math.Pow(x, n)
	}
	return ys
}

func TestFitNoiseless(t *testing.T) {
	xs := []float64{1, 2, 4, 8, 16}
	ys := noiseless(xs, 2, 0.5, 1.5)
	require.InDelta(t, 4.0, ys[0], 1e-12)
	errs := []float64{0.1, 0.1, 0.1, 0.1, 0.1}

	fm, err := Fit(xs, ys, errs, Options{})
	require.NoError(t, err)
	assert.True(t, fm.Weighted)
	assert.InDelta(t, 2, fm.A, 1e-6)
	assert.InDelta(t, 0.5, fm.B, 1e-6)
	assert.InDelta(t, 1.5, fm.N, 1e-6)
	assert.Less(t, fm.DA, 1e-6)
	assert.Less(t, fm.DB, 1e-6)
	assert.Less(t, fm.DN, 1e-6)
	assert.LessOrEqual(t, fm.Evals, DefaultMaxEvals)
	for _, x := range xs {
		assert.InDelta(t, 2+2*math.Pow(x, 1.5), fm.Eval(x), 1e-5)
	}
}

func TestFitUnweightedFallback(t *testing.T) {
	xs := []float64{1, 2, 4, 8}
	ys := noiseless(xs, 1, 0.25, 1)
	fm, err := Fit(xs, ys, []float64{0.1, 0, 0.1, 0.1}, Options{})
	require.NoError(t, err)
	assert.False(t, fm.Weighted)
	assert.InDelta(t, 1, fm.A, 1e-6)
	assert.InDelta(t, 0.25, fm.B, 1e-6)
	assert.InDelta(t, 1, fm.N, 1e-6)

	fm, err = Fit(xs, ys, nil, Options{})
	require.NoError(t, err)
	assert.False(t, fm.Weighted)
}

func TestFitUnderdetermined(t *testing.T) {
	for _, xs := range [][]float64{
		{},
		{1},
		{1, 2},
		{1, 1, 2, 2},
	} {
		ys := make([]float64, len(xs))
		for i := range ys {
			ys[i] = 1
		}
		_, err := Fit(xs, ys, nil, Options{})
		assert.True(t, errors.Is(err, ErrUnderdetermined), "xs=%v: got %v", xs, err)
	}
}

func TestFitDiverged(t *testing.T) {
	xs := []float64{1, 2, 4, 8, 16}
	ys := noiseless(xs, 2, 0.5, 1.5)
	fm, err := Fit(xs, ys, nil, Options{MaxEvals: 2})
	assert.Nil(t, fm)
	assert.True(t, errors.Is(err, ErrDiverged), "got %v", err)
}

func TestFitBounds(t *testing.T) {
	// Decreasing data pushes b or n onto its lower bound.
	xs := []float64{1, 2, 4, 8}
	ys := []float64{10, 9, 8, 7}
	fm, err := Fit(xs, ys, nil, Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fm.B, 0.0)
	assert.GreaterOrEqual(t, fm.N, 0.0)
	for _, x := range xs {
		assert.InDelta(t, 8.5, fm.Eval(x), 0.05)
	}
}

// cost returns the weighted sum of squared residuals of fm.
func cost(fm *FittedModel, xs, ys, errs []float64) float64 {
	var c float64
	for i, x := range xs {
		d := fm.Eval(x) - ys[i]
		if errs != nil {
			d /= errs[i]
		}
		c += d * d
	}
	return c
}

func TestFitActiveBound(t *testing.T) {
	// The bounded optimum is the constant 8.5 with cost 5. The
	// unconstrained step wants b < 0, so b must be held on its
	// bound while a moves.
	xs := []float64{1, 2, 4, 8}
	ys := []float64{10, 9, 8, 7}
	fm, err := Fit(xs, ys, nil, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 5, cost(fm, xs, ys, nil), 1e-6)

	// Floor-clamped points followed by a jump. Whatever the
	// solver returns must be at least as good as the best
	// constant, which is feasible with b = 0.
	floor := 4.0 / 1024
	ys = []float64{floor, floor, floor, 2}
	errs := []float64{0.01, 0.01, 0.01, 0.1}
	var sw, swy float64
	for i, y := range ys {
		w := 1 / (errs[i] * errs[i])
		sw += w
		swy += w * y
	}
	constant := &FittedModel{A: swy / sw, Y0: ys[0]}
	fm, err = Fit(xs, ys, errs, Options{})
	if err != nil {
		assert.True(t, errors.Is(err, ErrDiverged), "got %v", err)
		return
	}
	assert.LessOrEqual(t, cost(fm, xs, ys, errs), cost(constant, xs, ys, errs)*(1+1e-9))
}

func TestSolveUpperBound(t *testing.T) {
	// A line forced through the bound p[1] <= 0 on increasing data
	// has its optimum at p[1] = 0 and p[0] = mean(y).
	prob := &Problem{
		Model:    line{},
		X:        []float64{0, 1, 2, 3},
		Y:        []float64{1, 2, 3, 4},
		Start:    []float64{0, -1},
		Upper:    []float64{math.Inf(1), 0},
		MaxEvals: 1000,
	}
	sol, err := Solve(prob)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, sol.Params[0], 1e-6)
	assert.Equal(t, 0.0, sol.Params[1])
	assert.InDelta(t, 5, sol.Cost, 1e-6)
}

func TestFitBadInput(t *testing.T) {
	_, err := Fit([]float64{1, 2, 3}, []float64{1, 2}, nil, Options{})
	assert.True(t, errors.Is(err, ErrBadInput), "got %v", err)
	_, err = Fit([]float64{3, 2, 1}, []float64{1, 2, 3}, nil, Options{})
	assert.True(t, errors.Is(err, ErrBadInput), "got %v", err)
	_, err = Fit([]float64{1, 2, 3}, []float64{1, math.NaN(), 3}, nil, Options{})
	assert.True(t, errors.Is(err, ErrBadInput), "got %v", err)
}

type line struct{}

func (line) NumParams() int                             { return 2 }
func (line) Eval(x float64, p []float64) float64        { return p[0] + p[1]*x }
func (line) Grad(dst []float64, x float64, p []float64) { dst[0], dst[1] = 1, x }

func TestSolveLinear(t *testing.T) {
	// Against the closed-form ordinary least squares solution.
	sol, err := Solve(&Problem{
		Model:    line{},
		X:        []float64{1, 2, 3, 4, 5},
		Y:        []float64{2.1, 3.9, 6.2, 7.8, 10.1},
		Start:    []float64{0, 0},
		MaxEvals: 1000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, sol.Params[0], 1e-6)
	assert.InDelta(t, 1.99, sol.Params[1], 1e-6)
	assert.InDelta(t, 0.19807406, sol.StdErr[0], 1e-6)
	assert.InDelta(t, 0.05972158, sol.StdErr[1], 1e-6)
	assert.InDelta(t, sol.Cov.At(0, 1), sol.Cov.At(1, 0), 0)
}

func TestSolveExactlyDetermined(t *testing.T) {
	sol, err := Solve(&Problem{
		Model:    line{},
		X:        []float64{1, 2},
		Y:        []float64{3, 5},
		Start:    []float64{0, 0},
		MaxEvals: 1000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.Params[0], 1e-8)
	assert.InDelta(t, 2, sol.Params[1], 1e-8)
	assert.True(t, math.IsInf(sol.StdErr[0], 1))
	assert.True(t, math.IsInf(sol.StdErr[1], 1))
}

func TestFittedModelString(t *testing.T) {
	fm := &FittedModel{A: 2, B: 0.5, N: 1.5, DN: 0.01, Y0: 4}
	assert.Equal(t, "2 + 2·x^1.500±0.010", fm.String())
}

func TestFittedModelJSON(t *testing.T) {
	fm := &FittedModel{A: 1, B: 2, N: 0.5, DA: 0.1, DB: math.Inf(1), DN: math.NaN(), Y0: 3, Weighted: true, Evals: 7}
	b, err := json.Marshal(fm)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": {"value": 1, "stderr": 0.1}, "b": {"value": 2, "stderr": null},
		"n": {"value": 0.5, "stderr": null}, "y0": 3, "weighted": true, "evals": 7}`, string(b))
}
