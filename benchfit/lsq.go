// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchfit

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// A Model is a function of one variable with a vector of free
// parameters.
type Model interface {
	// NumParams returns the number of free parameters.
	NumParams() int

	// Eval returns the model value at x.
	Eval(x float64, p []float64) float64

	// Grad stores the partial derivatives of the model at x with
	// respect to each parameter in dst.
	Grad(dst []float64, x float64, p []float64)
}

// A Problem is a box-constrained nonlinear least squares problem.
type Problem struct {
	Model Model

	// X and Y are the data. Sigma, if non-nil, gives the standard
	// error of each Y, and residuals are weighted by 1/Sigma.
	X, Y, Sigma []float64

	// Start is the initial parameter vector. It is clamped to
	// the bounds before the first evaluation.
	Start []float64

	// Lower and Upper bound each parameter. A nil slice means
	// unbounded in that direction.
	Lower, Upper []float64

	// MaxEvals bounds the number of residual evaluations.
	MaxEvals int
}

// A Solution is the result of Solve.
type Solution struct {
	Params []float64

	// StdErr is the square root of the diagonal of Cov. It is +Inf
	// when the covariance cannot be estimated.
	StdErr []float64
	Cov    *mat.SymDense

	// Cost is the weighted sum of squared residuals at Params.
	Cost float64

	// Evals is the number of residual evaluations performed.
	Evals int
}

const (
	ftol       = 1e-12
	xtol       = 1e-12
	gtol       = 1e-12
	lambdaInit = 1e-3
	lambdaMin  = 1e-12
	lambdaMax  = 1e16

	// stallTol bounds the projected gradient, relative to 1+cost,
	// at which a point no damped step improves counts as a minimum.
	stallTol = 1e-6
)

type solver struct {
	prob  *Problem
	m, n  int
	evals int
	grad  []float64
}

// residuals stores the weighted residuals (f(x)-y)/sigma at p into r
// and returns their sum of squares.
func (s *solver) residuals(r, p []float64) (float64, error) {
	s.evals++
	if s.evals > s.prob.MaxEvals {
		return 0, ErrDiverged
	}
	var cost float64
	for i, x := range s.prob.X {
		d := s.prob.Model.Eval(x, p) - s.prob.Y[i]
		if s.prob.Sigma != nil {
			d /= s.prob.Sigma[i]
		}
		r[i] = d
		cost += d * d
	}
	return cost, nil
}

// jacobian stores the weighted Jacobian of the residuals at p in j.
func (s *solver) jacobian(j *mat.Dense, p []float64) {
	for i, x := range s.prob.X {
		s.prob.Model.Grad(s.grad, x, p)
		w := 1.0
		if s.prob.Sigma != nil {
			w = s.prob.Sigma[i]
		}
		for k, g := range s.grad {
			j.Set(i, k, g/w)
		}
	}
}

func (s *solver) clamp(p []float64) {
	for k := range p {
		if s.prob.Lower != nil && p[k] < s.prob.Lower[k] {
			p[k] = s.prob.Lower[k]
		}
		if s.prob.Upper != nil && p[k] > s.prob.Upper[k] {
			p[k] = s.prob.Upper[k]
		}
	}
}

// free returns the indexes of the parameters that may move from p
// given the gradient g: a parameter on a bound whose descent direction
// leaves the box is held fixed.
func (s *solver) free(g, p []float64) []int {
	var free []int
	for k := range p {
		if s.prob.Lower != nil && p[k] <= s.prob.Lower[k] && g[k] > 0 {
			continue
		}
		if s.prob.Upper != nil && p[k] >= s.prob.Upper[k] && g[k] < 0 {
			continue
		}
		free = append(free, k)
	}
	return free
}

// Solve minimizes the weighted sum of squared residuals of prob with a
// projected Levenberg-Marquardt iteration. Each step is solved over
// the free parameters only; parameters held on a bound stay there
// until the gradient points back into the box.
//
// Solve returns ErrDiverged if the evaluation budget runs out, or if
// no damped step reduces the cost at a point that is not stationary.
//
// The covariance is inv(JᵀJ) scaled by Cost/(m-n), the residual
// variance, so it is meaningful for both weighted and unweighted fits.
func Solve(prob *Problem) (*Solution, error) {
	m, n := len(prob.X), prob.Model.NumParams()
	if len(prob.Y) != m || (prob.Sigma != nil && len(prob.Sigma) != m) {
		return nil, errors.Wrapf(ErrBadInput, "%d x values, %d y values", m, len(prob.Y))
	}
	if len(prob.Start) != n {
		return nil, errors.Wrapf(ErrBadInput, "start has %d parameters, model has %d", len(prob.Start), n)
	}
	if m < n {
		return nil, errors.Wrapf(ErrUnderdetermined, "%d points for %d parameters", m, n)
	}
	s := &solver{prob: prob, m: m, n: n, grad: make([]float64, n)}

	p := append([]float64(nil), prob.Start...)
	s.clamp(p)
	r := make([]float64, m)
	cost, err := s.residuals(r, p)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, errors.Wrap(ErrDiverged, "non-finite residuals at start")
	}

	j := mat.NewDense(m, n, nil)
	var jtj mat.SymDense
	var g mat.VecDense
	trial := make([]float64, n)
	rTrial := make([]float64, m)
	lambda := lambdaInit

	for cost > 0 {
		s.jacobian(j, p)
		jtj.SymOuterK(1, j.T())
		g.MulVec(j.T(), mat.NewVecDense(m, r))
		free := s.free(g.RawVector().Data, p)
		var pg float64
		for _, k := range free {
			pg = math.Max(pg, math.Abs(g.AtVec(k)))
		}
		if pg <= gtol {
			break
		}

		nf := len(free)
		a := mat.NewSymDense(nf, nil)
		rhs := mat.NewVecDense(nf, nil)
		step := mat.NewVecDense(nf, nil)
		var c float64
		for {
			if lambda > lambdaMax {
				// No damped step reduces the cost. That is
				// only a minimum if the gradient vanishes to
				// working precision.
				if pg <= stallTol*(1+cost) {
					return s.finish(p, cost)
				}
				return nil, errors.Wrapf(ErrDiverged, "no descent step at %v (projected gradient %.3g)", p, pg)
			}
			for x, kx := range free {
				rhs.SetVec(x, g.AtVec(kx))
				for y := x; y < nf; y++ {
					a.SetSym(x, y, jtj.At(kx, free[y]))
				}
				d := jtj.At(kx, kx)
				if d == 0 {
					d = 1
				}
				a.SetSym(x, x, jtj.At(kx, kx)+lambda*d)
			}
			var chol mat.Cholesky
			if !chol.Factorize(a) {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(step, rhs); err != nil {
				lambda *= 10
				continue
			}
			copy(trial, p)
			for x, k := range free {
				trial[k] -= step.AtVec(x)
			}
			s.clamp(trial)
			c, err = s.residuals(rTrial, trial)
			if err != nil {
				return nil, err
			}
			if !(c < cost) {
				lambda *= 10
				continue
			}
			break
		}
		lambda = math.Max(lambda/10, lambdaMin)

		dx := floats.Distance(trial, p, 2)
		reduction := (cost - c) / cost
		copy(p, trial)
		copy(r, rTrial)
		cost = c
		if reduction <= ftol || dx <= xtol*(floats.Norm(p, 2)+xtol) {
			break
		}
	}
	return s.finish(p, cost)
}

func (s *solver) finish(p []float64, cost float64) (*Solution, error) {
	sol := &Solution{
		Params: p,
		StdErr: make([]float64, s.n),
		Cost:   cost,
		Evals:  s.evals,
	}
	j := mat.NewDense(s.m, s.n, nil)
	s.jacobian(j, p)
	var jtj mat.SymDense
	jtj.SymOuterK(1, j.T())

	cov := mat.NewSymDense(s.n, nil)
	var chol mat.Cholesky
	ok := chol.Factorize(&jtj) && s.m > s.n
	if ok {
		ok = chol.InverseTo(cov) == nil
	}
	if !ok {
		for a := 0; a < s.n; a++ {
			for b := a; b < s.n; b++ {
				cov.SetSym(a, b, math.Inf(1))
			}
		}
	} else {
		cov.ScaleSym(cost/float64(s.m-s.n), cov)
	}
	for k := range sol.StdErr {
		sol.StdErr[k] = math.Sqrt(cov.At(k, k))
	}
	sol.Cov = cov
	return sol, nil
}
