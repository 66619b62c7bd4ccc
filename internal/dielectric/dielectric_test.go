package dielectric

import (
	"math"
	"testing"

	"github.com/wangvei/slabcc/internal/cellctx"
)

func mustCell(t *testing.T, lengths [3]float64, grid [3]int, normal int) cellctx.Cell {
	t.Helper()
	c, err := cellctx.New(lengths, grid, normal)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// Property 1: far from both interfaces, the profile equals diel_in or
// diel_out to within 1e-6.
func TestEndpointsDeepInRegions(t *testing.T) {
	cell := mustCell(t, [3]float64{20, 20, 20}, [3]int{100, 100, 100}, 2)
	dielIn := [3]float64{5, 5, 10}
	dielOut := [3]float64{1, 1, 1}
	profile := Build(cell, [2]float64{0.3, 0.7}, dielIn, dielOut, 0.2)

	// Slice in the middle of the in-region (between 0.3*20=6 and 0.7*20=14).
	inSlice := int(0.5 * 100)
	for c := 0; c < 3; c++ {
		if diff := profile[inSlice][c] - dielIn[c]; math.Abs(diff) > 1e-6 {
			t.Errorf("in-region component %d = %g, want %g", c, profile[inSlice][c], dielIn[c])
		}
	}

	// Slice deep in the out-region (near position 0 / wraparound).
	outSlice := 0
	for c := 0; c < 3; c++ {
		if diff := profile[outSlice][c] - dielOut[c]; math.Abs(diff) > 1e-6 {
			t.Errorf("out-region component %d = %g, want %g", c, profile[outSlice][c], dielOut[c])
		}
	}
}

// Property 2: continuity. The erf blend's steepest slope is
// max(diel_diff)/(sqrt(pi)*beta) per Bohr, so adjacent slices differ by at
// most that slope times the slice spacing.
func TestContinuityBetweenAdjacentSlices(t *testing.T) {
	cell := mustCell(t, [3]float64{20, 20, 20}, [3]int{80, 80, 80}, 2)
	dielIn := [3]float64{5, 5, 10}
	dielOut := [3]float64{1, 1, 1}
	beta := 1.0
	profile := Build(cell, [2]float64{0.3, 0.7}, dielIn, dielOut, beta)

	maxDiff := 0.0
	for c := 0; c < 3; c++ {
		d := math.Abs(dielOut[c] - dielIn[c])
		if d > maxDiff {
			maxDiff = d
		}
	}
	spacing := cell.Lengths[cell.NormalAxis] / float64(len(profile))
	bound := maxDiff*spacing/(math.Sqrt(math.Pi)*beta) + 1e-9

	n := len(profile)
	for k := 0; k < n; k++ {
		next := (k + 1) % n
		for c := 0; c < 3; c++ {
			if diff := math.Abs(profile[k][c] - profile[next][c]); diff > bound {
				t.Errorf("slice %d->%d component %d jumped by %g, want <= %g", k, next, c, diff, bound)
			}
		}
	}
}

func TestProfileShape(t *testing.T) {
	cell := mustCell(t, [3]float64{20, 20, 20}, [3]int{48, 48, 48}, 2)
	profile := Build(cell, [2]float64{0.25, 0.75}, [3]float64{1, 1, 1}, [3]float64{1, 1, 1}, 1)
	if len(profile) != 48 {
		t.Fatalf("len(profile) = %d, want 48", len(profile))
	}
	for k, row := range profile {
		for c := 0; c < 3; c++ {
			if math.Abs(row[c]-1) > 1e-9 {
				t.Errorf("uniform dielectric: slice %d component %d = %g, want 1", k, c, row[c])
			}
		}
	}
}
