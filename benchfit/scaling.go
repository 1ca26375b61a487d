// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package benchfit fits scaling laws to benchmark series.
//
// The model is
//
//	value(x) = a + b·y0·xⁿ
//
// where x is the thread count and y0 is the value of the series at its
// smallest thread count, supplied by the caller rather than fitted.
// The free parameters a, b and n are found by a box-constrained
// Levenberg-Marquardt least squares fit with b, n ≥ 0.
package benchfit

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrDiverged is returned when a fit does not converge within
	// its evaluation budget.
	ErrDiverged = errors.New("fit did not converge")

	// ErrUnderdetermined is returned when a series has fewer
	// distinct x values than the model has parameters.
	ErrUnderdetermined = errors.New("too few distinct thread counts to fit")

	// ErrBadInput is returned for mismatched or non-finite data.
	ErrBadInput = errors.New("bad fit input")
)

// DefaultMaxEvals is the default evaluation budget of a fit.
const DefaultMaxEvals = 10000

// ScalingLaw is the model a + b·Y0·xⁿ with parameters (a, b, n).
type ScalingLaw struct {
	Y0 float64
}

func (ScalingLaw) NumParams() int { return 3 }

func (m ScalingLaw) Eval(x float64, p []float64) float64 {
	return p[0] + p[1]*m.Y0*math.Pow(x, p[2])
}

func (m ScalingLaw) Grad(dst []float64, x float64, p []float64) {
	xn := math.Pow(x, p[2])
	dst[0] = 1
	dst[1] = m.Y0 * xn
	if x > 0 {
		dst[2] = p[1] * m.Y0 * xn * math.Log(x)
	} else {
		dst[2] = 0
	}
}

// Options configure Fit. The zero value is usable.
type Options struct {
	// MaxEvals is the evaluation budget. 0 means DefaultMaxEvals.
	MaxEvals int

	// Start is the initial guess for (a, b, n). The zero value
	// means (1, 1, 1).
	Start [3]float64
}

// A FittedModel is a ScalingLaw with fitted parameters and their
// standard errors.
type FittedModel struct {
	A, B, N    float64
	DA, DB, DN float64

	// Y0 is the fixed scale the model was fitted with.
	Y0 float64

	// Weighted reports whether the fit weighted each point by its
	// inverse squared error. Fit falls back to an unweighted fit
	// when any error is zero or not finite.
	Weighted bool

	// Evals is the number of model evaluations the fit used.
	Evals int
}

// Eval returns the fitted value at x.
func (f *FittedModel) Eval(x float64) float64 {
	return ScalingLaw{f.Y0}.Eval(x, []float64{f.A, f.B, f.N})
}

// String formats f as an expression in x, with the uncertainty of the
// exponent.
func (f *FittedModel) String() string {
	return fmt.Sprintf("%.4g + %.4g·x^%.3f±%.3f", f.A, f.B*f.Y0, f.N, f.DN)
}

// Fit fits a ScalingLaw to the points (xs[i], ys[i]). xs must be in
// increasing order; ys[0] is used as the model's Y0. If errs is
// non-nil, each point is weighted by 1/errs[i]².
//
// Fit returns ErrUnderdetermined if xs has fewer than three distinct
// values and ErrDiverged if the solver exhausts its budget.
func Fit(xs, ys, errs []float64, opts Options) (*FittedModel, error) {
	if len(xs) != len(ys) || (errs != nil && len(errs) != len(xs)) {
		return nil, errors.Wrapf(ErrBadInput, "%d x values, %d y values, %d errors", len(xs), len(ys), len(errs))
	}
	if !sort.Float64sAreSorted(xs) {
		return nil, errors.Wrap(ErrBadInput, "x values not sorted")
	}
	if n := distinct(xs); n < 3 {
		return nil, errors.Wrapf(ErrUnderdetermined, "%d distinct thread counts", n)
	}
	for i := range ys {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) || math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			return nil, errors.Wrapf(ErrBadInput, "non-finite point (%v, %v)", xs[i], ys[i])
		}
	}

	weighted := errs != nil
	for _, e := range errs {
		if !(e > 0) || math.IsInf(e, 0) {
			weighted = false
			break
		}
	}

	start := opts.Start
	if start == ([3]float64{}) {
		start = [3]float64{1, 1, 1}
	}
	prob := &Problem{
		Model:    ScalingLaw{Y0: ys[0]},
		X:        xs,
		Y:        ys,
		Start:    start[:],
		Lower:    []float64{math.Inf(-1), 0, 0},
		MaxEvals: opts.MaxEvals,
	}
	if prob.MaxEvals <= 0 {
		prob.MaxEvals = DefaultMaxEvals
	}
	if weighted {
		prob.Sigma = errs
	}
	sol, err := Solve(prob)
	if err != nil {
		return nil, err
	}
	return &FittedModel{
		A: sol.Params[0], B: sol.Params[1], N: sol.Params[2],
		DA: sol.StdErr[0], DB: sol.StdErr[1], DN: sol.StdErr[2],
		Y0:       ys[0],
		Weighted: weighted,
		Evals:    sol.Evals,
	}, nil
}

type jsonParam struct {
	Value  float64  `json:"value"`
	StdErr *float64 `json:"stderr"`
}

func param(v, e float64) jsonParam {
	p := jsonParam{Value: v}
	if !math.IsInf(e, 0) && !math.IsNaN(e) {
		p.StdErr = &e
	}
	return p
}

// MarshalJSON encodes f with a null standard error for parameters
// whose uncertainty could not be estimated.
func (f *FittedModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		A        jsonParam `json:"a"`
		B        jsonParam `json:"b"`
		N        jsonParam `json:"n"`
		Y0       float64   `json:"y0"`
		Weighted bool      `json:"weighted"`
		Evals    int       `json:"evals"`
	}{param(f.A, f.DA), param(f.B, f.DB), param(f.N, f.DN), f.Y0, f.Weighted, f.Evals})
}

func distinct(sorted []float64) int {
	n := 0
	for i, x := range sorted {
		if i == 0 || x != sorted[i-1] {
			n++
		}
	}
	return n
}
