// Package fit recovers the isolated-defect (s -> 0) limit of the model
// energy by fitting the analytic four-parameter model
//
//	E(s) = c1 + c2*s + c3*s^2 + (c2-M)/c4 * exp(-c4*s)
//
// to the (1/L, E) samples produced by the extrapolation engine, where M is
// the caller-supplied Madelung term.
package fit

import (
	"fmt"
	"log"
	"math"

	"github.com/go-nlopt/nlopt"
)

// Params are the fitted coefficients; Params.Intercept() is the correction
// energy before subtracting a reference term.
type Params struct {
	C1, C2, C3, C4 float64
}

// Intercept returns c1, the s->0 limit of the fitted model.
func (p Params) Intercept() float64 { return p.C1 }

func model(c []float64, madelung, s float64) float64 {
	return c[0] + c[1]*s + c[2]*s*s + (c[1]-madelung)/c[3]*math.Exp(-c[3]*s)
}

// Fit minimizes Sum((energies[i] - E(sizes[i]))^2) over c, starting from
// (1,1,1,1), using COBYLA with relative-x tolerance tol.
func Fit(sizes, energies []float64, madelung, tol float64) (Params, error) {
	if len(sizes) != len(energies) {
		return Params{}, fmt.Errorf("fit: sizes and energies length mismatch (%d vs %d)", len(sizes), len(energies))
	}

	opt, err := nlopt.NewNLopt(nlopt.LN_COBYLA, 4)
	if err != nil {
		return Params{}, fmt.Errorf("fit: creating optimizer: %w", err)
	}
	defer opt.Destroy()

	objective := func(c, grad []float64) float64 {
		sse := 0.0
		for i, s := range sizes {
			d := energies[i] - model(c, madelung, s)
			sse += d * d
		}
		return sse
	}
	if err := opt.SetMinObjective(objective); err != nil {
		return Params{}, fmt.Errorf("fit: objective: %w", err)
	}
	if err := opt.SetXtolRel(tol); err != nil {
		return Params{}, fmt.Errorf("fit: xtol: %w", err)
	}

	c := []float64{1, 1, 1, 1}
	xopt, _, optErr := opt.Optimize(c)
	if optErr != nil {
		if _, ok := optErr.(nlopt.Result); !ok {
			log.Printf("fit: nonlinear fitting failed: %v", optErr)
			xopt = c
		}
	}

	return Params{C1: xopt[0], C2: xopt[1], C3: xopt[2], C4: xopt[3]}, nil
}
