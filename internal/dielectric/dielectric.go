// Package dielectric builds the 1D, tensor-valued dielectric profile along
// the slab-normal axis: a smooth error-function blend between two
// anisotropic regions across two periodic interfaces.
package dielectric

import (
	"math"

	"github.com/wangvei/slabcc/internal/cellctx"
)

// Profile is the per-slice diagonal dielectric tensor along the normal
// axis: Profile[k] = (epsilon_xx, epsilon_yy, epsilon_zz) at grid slice k.
type Profile [][3]float64

// modPositive is the positive-result floating modulo used for periodic
// distances: unlike math.Mod, the result always lands in [0, m).
func modPositive(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

// Build computes the dielectric profile for a cell, given the two
// fractional interface positions, the in-slab and out-of-slab diagonal
// tensors, and the erf smoothing width beta.
func Build(cell cellctx.Cell, interfaces [2]float64, dielIn, dielOut [3]float64, beta float64) Profile {
	length := cell.Lengths[cell.NormalAxis]
	n := cell.Grid[cell.NormalAxis]

	c0, c1 := interfaces[0]*length, interfaces[1]*length
	if c0 > c1 {
		c0, c1 = c1, c0
	}

	var dielSum, dielDiff [3]float64
	for i := 0; i < 3; i++ {
		dielSum[i] = dielIn[i] + dielOut[i]
		dielDiff[i] = dielOut[i] - dielIn[i]
	}

	profile := make(Profile, n)
	for k := 0; k < n; k++ {
		p := float64(k) * length / float64(n)

		d0 := modPositive(p-c0+length/2, length) - length/2
		d1 := modPositive(p-c1+length/2, length) - length/2

		var minDist, side float64
		if math.Abs(d0) < math.Abs(d1) {
			minDist, side = d0, -1
		} else {
			minDist, side = d1, 1
		}

		edge := math.Erf(minDist / beta)
		var row [3]float64
		for i := 0; i < 3; i++ {
			row[i] = (dielDiff[i]*side*edge + dielSum[i]) / 2
		}
		profile[k] = row
	}
	return profile
}
