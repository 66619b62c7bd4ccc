// Package cellctx carries the geometry of a 2D-periodic supercell: its
// lengths, grid dimensions, and which axis is the slab normal.
//
// A Cell is an immutable value threaded explicitly by the caller: the
// Poisson solver, the dielectric profile, and the Gaussian charge builder
// all take a Cell by value instead of reaching into shared state, so an
// extrapolation step can build a rescaled Cell without disturbing the one
// still in use elsewhere.
package cellctx

import "fmt"

// Cell is the geometry a single evaluation runs against.
type Cell struct {
	Lengths    [3]float64 // Bohr
	Grid       [3]int     // samples per axis
	NormalAxis int        // 0, 1, or 2
	VoxelVol   float64    // recomputed from Lengths/Grid on construction
}

// New builds a Cell, validating lengths/grid and computing VoxelVol.
func New(lengths [3]float64, grid [3]int, normalAxis int) (Cell, error) {
	if normalAxis < 0 || normalAxis > 2 {
		return Cell{}, fmt.Errorf("cellctx: normal axis %d out of range [0,2]", normalAxis)
	}
	voxel := 1.0
	for i := 0; i < 3; i++ {
		if lengths[i] <= 0 {
			return Cell{}, fmt.Errorf("cellctx: length[%d]=%g must be positive", i, lengths[i])
		}
		if grid[i] <= 0 {
			return Cell{}, fmt.Errorf("cellctx: grid[%d]=%d must be positive", i, grid[i])
		}
		voxel *= lengths[i] / float64(grid[i])
	}
	return Cell{Lengths: lengths, Grid: grid, NormalAxis: normalAxis, VoxelVol: voxel}, nil
}

// Rescale returns a fresh Cell with new lengths and grid, keeping the
// normal axis. It never mutates the receiver, so callers (in particular
// the extrapolation engine, which walks through several scaled cells) can
// freely keep the original Cell alive alongside the rescaled one.
func (c Cell) Rescale(lengths [3]float64, grid [3]int) (Cell, error) {
	return New(lengths, grid, c.NormalAxis)
}

// Volume returns the cell volume (Bohr^3).
func (c Cell) Volume() float64 {
	return c.Lengths[0] * c.Lengths[1] * c.Lengths[2]
}

// NPoints returns the total number of grid points.
func (c Cell) NPoints() int {
	return c.Grid[0] * c.Grid[1] * c.Grid[2]
}
