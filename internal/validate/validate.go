// Package validate normalizes and sanity-checks the parameter bundle
// before it is handed to the optimization driver: warn-and-recover when a
// sensible default exists, fatal (a returned error) only when there is no
// safe default.
package validate

import (
	"fmt"
	"log"
	"math"
)

// Algorithm selects the derivative-free optimizer used by the optimization
// driver. The nonlinear energy fit always uses COBYLA.
type Algorithm int

const (
	COBYLA Algorithm = iota
	BOBYQA
)

func (a Algorithm) String() string {
	if a == BOBYQA {
		return "BOBYQA"
	}
	return "COBYLA"
}

// Bundle is the full set of defect-model and optimizer-control parameters
// read from configuration and refined by the optimization driver.
type Bundle struct {
	Interfaces [2]float64
	ChargePos  [][3]float64 // fractional coordinates, N x 3
	Qd         []float64    // fractions of the total defect charge
	Sigma      []float64    // Bohr

	DielIn, DielOut [3]float64
	DielErfBeta     float64

	OptimizeCharge    bool
	OptimizeInterface bool
	OptAlgo           Algorithm
	OptTol            float64
	MaxEval           int
	MaxTime           int // seconds

	ExtrapolStepsNum  int
	ExtrapolStepsSize float64
	ExtrapolGridX     float64

	Q0 float64 // target total defect charge
}

// Normalize validates and rewrites b in place, logging a warning for each
// value it replaces and returning an error only for conditions with no
// sane default.
func Normalize(b *Bundle) error {
	b.Sigma = absAll(b.Sigma)
	b.MaxEval = int(math.Abs(float64(b.MaxEval)))
	b.MaxTime = int(math.Abs(float64(b.MaxTime)))
	b.ExtrapolGridX = math.Abs(b.ExtrapolGridX)
	b.OptTol = math.Abs(b.OptTol)
	b.Interfaces[0] = fmodPositive(b.Interfaces[0], 1)
	b.Interfaces[1] = fmodPositive(b.Interfaces[1], 1)

	if len(b.ChargePos) == 0 {
		return fmt.Errorf("validate: no charge positions defined")
	}

	if len(b.Sigma) != len(b.ChargePos) {
		b.Sigma = onesLike(len(b.ChargePos))
		log.Printf(">> WARNING <<: number of defined sigma and charges does not match! Using sigma=%v", b.Sigma)
	}
	if len(b.Qd) != len(b.Sigma) {
		b.Qd = onesLike(len(b.ChargePos))
		log.Printf(">> WARNING <<: number of charge_fraction and charge_sigma does not match! Assuming charge_fraction=%v", b.Qd)
	}

	if b.DielIn[0] < 0 || b.DielIn[1] < 0 || b.DielIn[2] < 0 ||
		b.DielOut[0] < 0 || b.DielOut[1] < 0 || b.DielOut[2] < 0 {
		return fmt.Errorf("validate: dielectric tensor is not defined properly (negative entry)")
	}

	if b.OptTol > 1 {
		log.Printf(">> WARNING <<: optimization tolerance is not defined properly, will use 0.001 instead of %g", b.OptTol)
		b.OptTol = 1e-3
	}

	if b.ExtrapolStepsNum < 3 {
		log.Printf(">> WARNING <<: extrapolation cannot be done with steps < 3, will use 3 instead of %d", b.ExtrapolStepsNum)
		b.ExtrapolStepsNum = 3
	}

	sum := 0.0
	for _, q := range b.Qd {
		sum += q
	}
	b.Q0 = sum

	return nil
}

// ExpandDiel expands a single scalar dielectric constant into an isotropic
// diagonal 3-vector.
func ExpandDiel(v float64) [3]float64 { return [3]float64{v, v, v} }

// ParseAlgorithm maps a configuration string to an Algorithm, defaulting to
// COBYLA with a warning on anything unrecognized.
func ParseAlgorithm(s string) Algorithm {
	switch s {
	case "BOBYQA":
		return BOBYQA
	case "COBYLA":
		return COBYLA
	default:
		log.Printf(">> WARNING <<: unknown optimization algorithm %q, will use COBYLA instead", s)
		return COBYLA
	}
}

func fmodPositive(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

func absAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Abs(x)
	}
	return out
}

func onesLike(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
