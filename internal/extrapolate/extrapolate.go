// Package extrapolate sweeps the supercell size across several multiples
// of the optimized cell and recomputes the model energy at each scale, so
// a nonlinear fit (package fit) can recover the isolated-defect limit.
//
// Two modes are supported, selected explicitly by the caller:
//
//   - Mode3D scales all three axes and keeps the slab's physical (Cartesian)
//     thickness fixed by shifting the farther interface outward.
//   - Mode2D scales the cell uniformly too, but compensates the normal axis
//     by shrinking the fractional interfaces/positions by the same factor,
//     so the slab's Cartesian thickness is unchanged.
package extrapolate

import (
	"fmt"
	"math"

	"github.com/wangvei/slabcc/internal/cellctx"
	"github.com/wangvei/slabcc/internal/dielectric"
	"github.com/wangvei/slabcc/internal/gaussiancharge"
	"github.com/wangvei/slabcc/internal/poisson"
	"github.com/wangvei/slabcc/internal/transform"
	"github.com/wangvei/slabcc/internal/units"
)

// Mode selects the extrapolation geometry.
type Mode int

const (
	Mode3D Mode = iota
	Mode2D
)

// Model is the defect geometry being extrapolated: interface positions,
// per-charge positions/charges/sigmas.
type Model struct {
	Interfaces [2]float64
	Positions  [][3]float64
	Qd         []float64
	Sigma      []float64
}

// Params bundles the dielectric tensors and extrapolation controls.
type Params struct {
	DielIn, DielOut [3]float64
	DielErfBeta     float64
	StepsNum        int
	StepSize        float64
	GridMultiplier  float64
}

// Run performs extrapol_steps_num-1 scaling steps and returns the
// (1/factor, model energy) samples.
func Run(mode Mode, cell0 cellctx.Cell, m Model, p Params) (sizes, energies []float64, err error) {
	steps := p.StepsNum - 1
	sizes = make([]float64, steps)
	energies = make([]float64, steps)

	gridExt := [3]int{
		int(math.Ceil(float64(cell0.Grid[0]) * p.GridMultiplier)),
		int(math.Ceil(float64(cell0.Grid[1]) * p.GridMultiplier)),
		int(math.Ceil(float64(cell0.Grid[2]) * p.GridMultiplier)),
	}

	for n := 0; n < steps; n++ {
		factor := 1 + p.StepSize*float64(n+1)

		var cell cellctx.Cell
		var interfaces [2]float64
		var positions [][3]float64

		switch mode {
		case Mode3D:
			cell, err = cell0.Rescale(scaleLengths(cell0.Lengths, factor), gridExt)
			if err != nil {
				return nil, nil, fmt.Errorf("extrapolate: step %d: %w", n, err)
			}
			interfaces, positions = shift3D(m, factor, cell0.NormalAxis)
		case Mode2D:
			cell, err = cell0.Rescale(scaleLengths(cell0.Lengths, factor), gridExt)
			if err != nil {
				return nil, nil, fmt.Errorf("extrapolate: step %d: %w", n, err)
			}
			interfaces, positions = shift2D(m, factor)
		default:
			return nil, nil, fmt.Errorf("extrapolate: unknown mode %d", mode)
		}

		diels := dielectric.Build(cell, interfaces, p.DielIn, p.DielOut, p.DielErfBeta)

		rho := transform.NewGrid3(cell.Grid)
		for i := range positions {
			cart := [3]float64{
				positions[i][0] * cell.Lengths[0],
				positions[i][1] * cell.Lengths[1],
				positions[i][2] * cell.Lengths[2],
			}
			addInto(rho, gaussiancharge.Build(cell, m.Qd[i], cart, m.Sigma[i]))
		}

		q := sumRealTimesVoxel(rho, cell.VoxelVol)
		background := complex(q/cell.Volume(), 0)
		for i := range rho {
			for j := range rho[i] {
				for k := range rho[i][j] {
					rho[i][j][k] -= background
				}
			}
		}

		v, serr := poisson.Solve(cell, rho, diels)
		if serr != nil {
			return nil, nil, fmt.Errorf("extrapolate: step %d: %w", n, serr)
		}

		energies[n] = 0.5 * sumRealProduct(v, rho) * cell.VoxelVol * units.HartreeToEV
		sizes[n] = 1 / factor
	}

	return sizes, energies, nil
}

func scaleLengths(l [3]float64, factor float64) [3]float64 {
	return [3]float64{l[0] * factor, l[1] * factor, l[2] * factor}
}

// shift3D keeps the slab's Cartesian thickness fixed: the farther
// interface moves outward by |c1-c0|*(factor-1) before both are rescaled
// back to fractional coordinates in the enlarged cell, and each charge is
// translated to sit at the same Cartesian distance from its original
// nearest interface.
func shift3D(m Model, factor float64, normalAxis int) (interfaces [2]float64, positions [][3]float64) {
	ext := m.Interfaces
	farther := 0
	if m.Interfaces[0] < m.Interfaces[1] {
		farther = 1
	}
	ext[farther] += math.Abs(m.Interfaces[0]-m.Interfaces[1]) * (factor - 1)
	ext[0] /= factor
	ext[1] /= factor

	positions = make([][3]float64, len(m.Positions))
	for i, pos := range m.Positions {
		shifted := pos
		for d := 0; d < 3; d++ {
			shifted[d] = pos[d] / factor
		}
		d0 := math.Abs(pos[normalAxis] - m.Interfaces[0])
		d1 := math.Abs(pos[normalAxis] - m.Interfaces[1])
		if d0 < d1 {
			shifted[normalAxis] += ext[0] - m.Interfaces[0]/factor
		} else {
			shifted[normalAxis] += ext[1] - m.Interfaces[1]/factor
		}
		positions[i] = shifted
	}
	return ext, positions
}

// shift2D rescales interfaces and charge positions in fractional
// coordinates by 1/factor, leaving the Cartesian slab thickness unchanged.
func shift2D(m Model, factor float64) (interfaces [2]float64, positions [][3]float64) {
	interfaces = [2]float64{m.Interfaces[0] / factor, m.Interfaces[1] / factor}
	positions = make([][3]float64, len(m.Positions))
	for i, pos := range m.Positions {
		positions[i] = [3]float64{pos[0] / factor, pos[1] / factor, pos[2] / factor}
	}
	return interfaces, positions
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

func sumRealTimesVoxel(g transform.Grid3, voxel float64) float64 {
	sum := 0.0
	for i := range g {
		for j := range g[i] {
			for k := range g[i][j] {
				sum += real(g[i][j][k])
			}
		}
	}
	return sum * voxel
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
