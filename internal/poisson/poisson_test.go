package poisson

import (
	"math"
	"testing"

	"github.com/wangvei/slabcc/internal/cellctx"
	"github.com/wangvei/slabcc/internal/dielectric"
	"github.com/wangvei/slabcc/internal/gaussiancharge"
	"github.com/wangvei/slabcc/internal/transform"
)

func uniformDiel(n int, eps float64) dielectric.Profile {
	p := make(dielectric.Profile, n)
	for i := range p {
		p[i] = [3]float64{eps, eps, eps}
	}
	return p
}

func totalCharge(rho transform.Grid3, voxel float64) float64 {
	sum := 0.0
	for i := range rho {
		for j := range rho[i] {
			for k := range rho[i][j] {
				sum += real(rho[i][j][k])
			}
		}
	}
	return sum * voxel
}

// Solve must be linear: Solve(rho1+rho2) == Solve(rho1) + Solve(rho2) for a
// fixed dielectric profile.
func TestSolveIsLinear(t *testing.T) {
	cell, err := cellctx.New([3]float64{16, 16, 16}, [3]int{16, 16, 16}, 2)
	if err != nil {
		t.Fatal(err)
	}
	diels := uniformDiel(cell.Grid[cell.NormalAxis], 1)

	rho1 := gaussiancharge.Build(cell, 1, [3]float64{8, 8, 8}, 1.0)
	rho2 := gaussiancharge.Build(cell, -1, [3]float64{4, 4, 4}, 1.0)
	// zero the net charge to keep the periodic solve well posed
	q := totalCharge(rho1, cell.VoxelVol) + totalCharge(rho2, cell.VoxelVol)
	background := complex(q/cell.Volume(), 0)

	sum := transform.NewGrid3(cell.Grid)
	for i := range sum {
		for j := range sum[i] {
			for k := range sum[i][j] {
				sum[i][j][k] = rho1[i][j][k] + rho2[i][j][k] - background
			}
		}
	}

	v1, err := Solve(cell, subtractBackground(cell, rho1), diels)
	if err != nil {
		t.Fatalf("Solve(rho1): %v", err)
	}
	v2, err := Solve(cell, subtractBackground(cell, rho2), diels)
	if err != nil {
		t.Fatalf("Solve(rho2): %v", err)
	}
	vsum, err := Solve(cell, sum, diels)
	if err != nil {
		t.Fatalf("Solve(rho1+rho2): %v", err)
	}

	maxDiff := 0.0
	for i := range vsum {
		for j := range vsum[i] {
			for k := range vsum[i][j] {
				got := real(vsum[i][j][k])
				want := real(v1[i][j][k]) + real(v2[i][j][k])
				if d := math.Abs(got - want); d > maxDiff {
					maxDiff = d
				}
			}
		}
	}
	if maxDiff > 1e-6 {
		t.Errorf("max |Solve(a+b) - (Solve(a)+Solve(b))| = %g, want ~0", maxDiff)
	}
}

func subtractBackground(cell cellctx.Cell, rho transform.Grid3) transform.Grid3 {
	q := totalCharge(rho, cell.VoxelVol)
	background := complex(q/cell.Volume(), 0)
	out := transform.NewGrid3(cell.Grid)
	for i := range rho {
		for j := range rho[i] {
			for k := range rho[i][j] {
				out[i][j][k] = rho[i][j][k] - background
			}
		}
	}
	return out
}

// The k=0 mode of the solution is fixed to zero regardless of input (gauge
// choice: the periodic potential has no absolute reference).
func TestSolveZeroesDCComponent(t *testing.T) {
	cell, err := cellctx.New([3]float64{12, 12, 12}, [3]int{16, 16, 16}, 0)
	if err != nil {
		t.Fatal(err)
	}
	diels := uniformDiel(cell.Grid[cell.NormalAxis], 2.5)
	rho := subtractBackground(cell, gaussiancharge.Build(cell, 1, [3]float64{6, 6, 6}, 0.9))

	v, err := Solve(cell, rho, diels)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for i := range v {
		for j := range v[i] {
			for k := range v[i][j] {
				sum += real(v[i][j][k])
			}
		}
	}
	if math.Abs(sum) > 1e-6 {
		t.Errorf("sum of potential grid = %g, want ~0 (DC component pinned to 0)", sum)
	}
}

// Solving is equivariant under a permutation of which axis is the slab
// normal: for an isotropic dielectric, choosing a different normal axis on
// an equivalent (permuted) charge/grid layout must give the same energy.
func TestSolveAxisEquivariance(t *testing.T) {
	lengths := [3]float64{10, 14, 18}
	grid := [3]int{16, 20, 24}

	cellZ, err := cellctx.New(lengths, grid, 2)
	if err != nil {
		t.Fatal(err)
	}
	dielsZ := uniformDiel(grid[2], 3)
	rhoZ := subtractBackground(cellZ, gaussiancharge.Build(cellZ, 1, [3]float64{5, 7, 9}, 1.2))
	vZ, err := Solve(cellZ, rhoZ, dielsZ)
	if err != nil {
		t.Fatal(err)
	}
	energyZ := 0.5 * sumRealProduct(vZ, rhoZ) * cellZ.VoxelVol

	permLengths := [3]float64{lengths[2], lengths[0], lengths[1]}
	permGrid := [3]int{grid[2], grid[0], grid[1]}
	cellX, err := cellctx.New(permLengths, permGrid, 0)
	if err != nil {
		t.Fatal(err)
	}
	dielsX := uniformDiel(permGrid[0], 3)
	rhoX := subtractBackground(cellX, gaussiancharge.Build(cellX, 1, [3]float64{9, 5, 7}, 1.2))
	vX, err := Solve(cellX, rhoX, dielsX)
	if err != nil {
		t.Fatal(err)
	}
	energyX := 0.5 * sumRealProduct(vX, rhoX) * cellX.VoxelVol

	if diff := math.Abs(energyZ - energyX); diff > 1e-3*math.Abs(energyZ) {
		t.Errorf("energy (normal=z) = %g, energy (normal=x, permuted) = %g, want equal", energyZ, energyX)
	}
}

func sumRealProduct(a, b transform.Grid3) float64 {
	sum := 0.0
	for i := range a {
		for j := range a[i] {
			for k := range a[i][j] {
				sum += real(a[i][j][k] * b[i][j][k])
			}
		}
	}
	return sum
}
