// Package optimize packs the fit parameters (interface positions, and per
// -charge sigma/charge/position) into a flat vector, builds its bounds and
// the total-charge equality constraint, and drives the NLopt COBYLA/BOBYQA
// local optimizer against the mean-squared potential error.
package optimize

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/go-nlopt/nlopt"

	"github.com/wangvei/slabcc/internal/cellctx"
	"github.com/wangvei/slabcc/internal/dielectric"
	"github.com/wangvei/slabcc/internal/gaussiancharge"
	"github.com/wangvei/slabcc/internal/poisson"
	"github.com/wangvei/slabcc/internal/transform"
	"github.com/wangvei/slabcc/internal/units"
	"github.com/wangvei/slabcc/internal/validate"
)

// variablesPerCharge is the pack-layout stride: sigma, Q, x, y, z.
const variablesPerCharge = 5

// chargeOffset is Qd's offset within a single charge's block, re-derived
// from the layout instead of hard-coded: [sigma, Q, x, y, z] puts Q at
// offset 1.
const chargeOffset = 1

// Vars holds the free/fixed parameters the optimizer walks over: the
// subset of the parameter bundle that the pack vector covers.
type Vars struct {
	Interfaces [2]float64
	Sigma      []float64
	Qd         []float64
	Positions  [][3]float64
}

// State is the derived runtime state produced by one objective evaluation,
// returned explicitly instead of smuggled through a side channel.
type State struct {
	Diels         dielectric.Profile
	RhoM          transform.Grid3
	V             transform.Grid3
	VDiff         [][][]float64 // model - reference, eV
	InitialPotMSE float64
}

// Result is what the optimization driver hands back: the optimized
// variables, the mean-squared error at the optimum, and the last
// evaluation's derived state.
type Result struct {
	Vars    Vars
	PotMSE  float64
	State   State
	Warning string
}

// Pack linearizes Vars into the optimizer's x vector and computes its
// bounds, following the [interface0, interface1, (sigma,Q,x,y,z)*N] layout.
func Pack(v Vars, optimizeCharge, optimizeInterface bool) (x, lower, upper []float64) {
	x = append(x, v.Interfaces[0], v.Interfaces[1])
	if optimizeInterface {
		lower = append(lower, 0, 0)
		upper = append(upper, 1, 1)
	} else {
		lower = append(lower, v.Interfaces[0], v.Interfaces[1])
		upper = append(upper, v.Interfaces[0], v.Interfaces[1])
	}

	sumQ := 0.0
	for _, q := range v.Qd {
		sumQ += q
	}
	minQ, maxQ := math.Min(0, sumQ), math.Max(0, sumQ)

	for i := range v.Positions {
		x = append(x, v.Sigma[i], v.Qd[i], v.Positions[i][0], v.Positions[i][1], v.Positions[i][2])
		if optimizeCharge {
			lower = append(lower, 0.1, minQ, 0, 0, 0)
			upper = append(upper, 7, maxQ, 1, 1, 1)
		} else {
			lower = append(lower, v.Sigma[i], v.Qd[i], v.Positions[i][0], v.Positions[i][1], v.Positions[i][2])
			upper = append(upper, v.Sigma[i], v.Qd[i], v.Positions[i][0], v.Positions[i][1], v.Positions[i][2])
		}
	}

	// Single-charge case: Q has no freedom. Re-derived from the pack
	// layout (offset = 2 interface vars + chargeOffset) rather than a
	// literal index, so a layout change can't silently desync this pin.
	if len(v.Positions) == 1 {
		qIdx := 2 + chargeOffset
		lower[qIdx] = v.Qd[0]
		upper[qIdx] = v.Qd[0]
	}

	return x, lower, upper
}

// Unpack rewrites Vars in place from an optimizer iterate x.
func Unpack(x []float64, v *Vars) {
	n := len(x) / variablesPerCharge
	if cap(v.Sigma) < n {
		v.Sigma = make([]float64, n)
		v.Qd = make([]float64, n)
		v.Positions = make([][3]float64, n)
	}
	v.Sigma = v.Sigma[:n]
	v.Qd = v.Qd[:n]
	v.Positions = v.Positions[:n]

	v.Interfaces[0], v.Interfaces[1] = x[0], x[1]
	for i := 0; i < n; i++ {
		base := 2 + variablesPerCharge*i
		v.Sigma[i] = x[base]
		v.Qd[i] = x[base+chargeOffset]
		v.Positions[i] = [3]float64{x[base+2], x[base+3], x[base+4]}
	}
}

func unpackX(x []float64) Vars {
	v := Vars{}
	Unpack(x, &v)
	return v
}

// potentialEval is the objective: build the dielectric profile and the
// Gaussian charge model from x, solve the Poisson equation, and return the
// mean-squared error against the reference potential. It never returns a
// non-finite value so a singular solve can't destabilize the optimizer.
func potentialEval(cell cellctx.Cell, dielIn, dielOut [3]float64, beta float64, refPotential [][][]float64, state *State) func(x, grad []float64) float64 {
	return func(x, grad []float64) float64 {
		v := unpackX(x)

		diels := dielectric.Build(cell, v.Interfaces, dielIn, dielOut, beta)

		rho := transform.NewGrid3(cell.Grid)
		for i := range v.Positions {
			cart := [3]float64{
				v.Positions[i][0] * cell.Lengths[0],
				v.Positions[i][1] * cell.Lengths[1],
				v.Positions[i][2] * cell.Lengths[2],
			}
			g := gaussiancharge.Build(cell, v.Qd[i], cart, v.Sigma[i])
			addInto(rho, g)
		}

		vGrid, err := poisson.Solve(cell, rho, diels)
		if err != nil {
			log.Printf("optimize: Poisson solve failed: %v", err)
			return 1e12
		}

		vdiff := make([][][]float64, cell.Grid[0])
		sumSq := 0.0
		for i := range vdiff {
			vdiff[i] = make([][]float64, cell.Grid[1])
			for j := range vdiff[i] {
				vdiff[i][j] = make([]float64, cell.Grid[2])
				for k := range vdiff[i][j] {
					d := real(vGrid[i][j][k])*units.HartreeToEV - refPotential[i][j][k]
					vdiff[i][j][k] = d
					sumSq += d * d
				}
			}
		}
		mse := sumSq / float64(cell.NPoints()) * 100
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return 1e12
		}

		state.Diels = diels
		state.RhoM = rho
		state.V = vGrid
		state.VDiff = vdiff
		if state.InitialPotMSE < 0 {
			state.InitialPotMSE = mse
		}
		return mse
	}
}

func addInto(dst, src transform.Grid3) {
	for i := range dst {
		for j := range dst[i] {
			for k := range dst[i][j] {
				dst[i][j][k] += src[i][j][k]
			}
		}
	}
}

// chargeConstraint enforces Sum(Qd) - Q0 = 0, re-reading Qd from the
// current iterate on every call rather than the initial bundle.
func chargeConstraint(q0 float64) func(x, grad []float64) float64 {
	return func(x, grad []float64) float64 {
		v := unpackX(x)
		sum := 0.0
		for _, q := range v.Qd {
			sum += q
		}
		return sum - q0
	}
}

// Run drives the optimizer to fit Vars against refPotential, returning the
// optimized parameters and the last evaluation's derived state.
func Run(cell cellctx.Cell, b validate.Bundle, initial Vars, refPotential [][][]float64) (Result, error) {
	if err := checkGridShape(cell, refPotential); err != nil {
		return Result{}, err
	}

	algo := selectAlgorithm(b.OptAlgo, len(initial.Qd))

	x, lower, upper := Pack(initial, b.OptimizeCharge, b.OptimizeInterface)

	opt, err := nlopt.NewNLopt(algo, uint(len(x)))
	if err != nil {
		return Result{}, fmt.Errorf("optimize: creating optimizer: %w", err)
	}
	defer opt.Destroy()

	if err := opt.SetLowerBounds(lower); err != nil {
		return Result{}, fmt.Errorf("optimize: lower bounds: %w", err)
	}
	if err := opt.SetUpperBounds(upper); err != nil {
		return Result{}, fmt.Errorf("optimize: upper bounds: %w", err)
	}

	state := &State{InitialPotMSE: -1}
	if err := opt.SetMinObjective(potentialEval(cell, b.DielIn, b.DielOut, b.DielErfBeta, refPotential, state)); err != nil {
		return Result{}, fmt.Errorf("optimize: objective: %w", err)
	}
	if err := opt.SetXtolRel(b.OptTol); err != nil {
		return Result{}, fmt.Errorf("optimize: xtol: %w", err)
	}
	if b.MaxEval > 0 {
		if err := opt.SetMaxEval(b.MaxEval); err != nil {
			return Result{}, fmt.Errorf("optimize: max eval: %w", err)
		}
	}
	if b.MaxTime > 0 {
		if err := opt.SetMaxtime(float64(b.MaxTime)); err != nil {
			return Result{}, fmt.Errorf("optimize: max time: %w", err)
		}
	}
	if len(initial.Qd) > 1 {
		if err := opt.AddEqualityConstraint(chargeConstraint(b.Q0), 1e-8); err != nil {
			return Result{}, fmt.Errorf("optimize: equality constraint: %w", err)
		}
	}

	log.Printf("optimize: starting %s with %d parameters", algo, len(x))
	start := time.Now()

	xopt, minf, optErr := opt.Optimize(x)

	// MaxEvalReached/MaxTimeReached are success-class NLopt termination
	// codes: Optimize returns a nil error for them and xopt is still the
	// best point found, so they can only be told apart from a clean
	// convergence by asking the optimizer for its last status directly
	// instead of branching on optErr.
	var warning string
	switch opt.LastOptimizeResult() {
	case nlopt.MaxEvalReached:
		warning = fmt.Sprintf("optimization ended after %d steps before reaching the requested accuracy", b.MaxEval)
		log.Printf(">> WARNING <<: %s", warning)
	case nlopt.MaxTimeReached:
		warning = fmt.Sprintf("optimization ended after %d seconds before reaching the requested accuracy", b.MaxTime)
		log.Printf(">> WARNING <<: %s", warning)
	default:
		if optErr != nil {
			warning = fmt.Sprintf("parameter optimization failed: %v", optErr)
			log.Printf("optimize: %s", warning)
			xopt = x
		}
	}

	log.Printf("optimize: finished in %s, MSE=%g", time.Since(start), minf)

	finalVars := initial
	Unpack(xopt, &finalVars)

	return Result{Vars: finalVars, PotMSE: minf, State: *state, Warning: warning}, nil
}

// checkGridShape re-asserts, on the core's side, that the reference
// potential shares the cell's grid shape. Loading and cross-checking the
// underlying neutral/charged supercell files is a collaborator's job, but
// the core still receives these grids directly and must not index past
// their bounds.
func checkGridShape(cell cellctx.Cell, refPotential [][][]float64) error {
	if len(refPotential) != cell.Grid[0] {
		return fmt.Errorf("optimize: reference potential has %d x-slices, want %d", len(refPotential), cell.Grid[0])
	}
	for i, plane := range refPotential {
		if len(plane) != cell.Grid[1] {
			return fmt.Errorf("optimize: reference potential slice %d has %d y-rows, want %d", i, len(plane), cell.Grid[1])
		}
		for j, row := range plane {
			if len(row) != cell.Grid[2] {
				return fmt.Errorf("optimize: reference potential [%d][%d] has %d z-values, want %d", i, j, len(row), cell.Grid[2])
			}
		}
	}
	return nil
}

func selectAlgorithm(requested validate.Algorithm, nCharges int) nlopt.Algorithm {
	if requested == validate.BOBYQA {
		if nCharges == 1 {
			return nlopt.LN_BOBYQA
		}
		log.Println("BOBYQA does not support models with multiple charges, will use COBYLA instead")
	}
	return nlopt.LN_COBYLA
}
