// Package transform provides the 3D FFT, inverse FFT, and shift helpers
// shared by the Gaussian charge builder and the Poisson solver.
//
// It is built on github.com/mjibson/go-dsp/fft, which only exposes a 1D
// FFT/IFFT over []complex128: a 3D transform is done as three passes of
// 1D transforms, one per axis.
package transform

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// Grid3 is a dense Nx x Ny x Nz complex grid, indexed [x][y][z].
type Grid3 [][][]complex128

// NewGrid3 allocates a zeroed grid of the given shape.
func NewGrid3(n [3]int) Grid3 {
	g := make(Grid3, n[0])
	for i := range g {
		g[i] = make([][]complex128, n[1])
		for j := range g[i] {
			g[i][j] = make([]complex128, n[2])
		}
	}
	return g
}

// Shape returns the grid's (Nx, Ny, Nz).
func (g Grid3) Shape() [3]int {
	if len(g) == 0 {
		return [3]int{0, 0, 0}
	}
	return [3]int{len(g), len(g[0]), len(g[0][0])}
}

// axisFFT applies fn to every 1D line of g running along axis, writing the
// result back in place. The extract/transform/store loop is identical for
// all three axes, so it is parameterized over which axis is walked instead
// of being written out three times.
func axisFFT(g Grid3, axis int, fn func([]complex128) []complex128) {
	n := g.Shape()
	switch axis {
	case 0:
		buf := make([]complex128, n[0])
		for j := 0; j < n[1]; j++ {
			for k := 0; k < n[2]; k++ {
				for i := 0; i < n[0]; i++ {
					buf[i] = g[i][j][k]
				}
				out := fn(buf)
				for i := 0; i < n[0]; i++ {
					g[i][j][k] = out[i]
				}
			}
		}
	case 1:
		buf := make([]complex128, n[1])
		for i := 0; i < n[0]; i++ {
			for k := 0; k < n[2]; k++ {
				for j := 0; j < n[1]; j++ {
					buf[j] = g[i][j][k]
				}
				out := fn(buf)
				for j := 0; j < n[1]; j++ {
					g[i][j][k] = out[j]
				}
			}
		}
	case 2:
		buf := make([]complex128, n[2])
		for i := 0; i < n[0]; i++ {
			for j := 0; j < n[1]; j++ {
				for k := 0; k < n[2]; k++ {
					buf[k] = g[i][j][k]
				}
				out := fn(buf)
				for k := 0; k < n[2]; k++ {
					g[i][j][k] = out[k]
				}
			}
		}
	}
}

// FFT1D is an unnormalized forward 1D FFT, exposed so callers needing a
// single line transform (e.g. the dielectric profile's FFT along the
// normal axis) don't need to import go-dsp/fft directly.
func FFT1D(x []complex128) []complex128 { return fft.FFT(x) }

// IFFT1D is the matching normalized inverse 1D FFT.
func IFFT1D(x []complex128) []complex128 { return fft.IFFT(x) }

// FFT3 performs an unnormalized forward 3D FFT in place, one axis at a time.
func FFT3(g Grid3) {
	for axis := 0; axis < 3; axis++ {
		axisFFT(g, axis, fft.FFT)
	}
}

// IFFT3 performs a 3D inverse FFT in place. go-dsp/fft.IFFT normalizes by
// 1/N per axis, so three passes normalize by the full 1/(Nx*Ny*Nz).
func IFFT3(g Grid3) {
	for axis := 0; axis < 3; axis++ {
		axisFFT(g, axis, fft.IFFT)
	}
}

// shiftIndex1D returns the index permutation for fftshift (ifft=false) or
// ifftshift (ifft=true) of a length-n sequence, following numpy's
// definition: fftshift rolls by floor(n/2), ifftshift rolls by -floor(n/2).
func shiftIndex1D(n int, inverse bool) []int {
	perm := make([]int, n)
	var shift int
	if inverse {
		shift = n / 2
	} else {
		shift = (n + 1) / 2
	}
	for j := 0; j < n; j++ {
		perm[j] = ((j+shift)%n + n) % n
	}
	return perm
}

func permuteAxis(g Grid3, axis int, perm []int) {
	n := g.Shape()
	switch axis {
	case 0:
		tmp := make(Grid3, n[0])
		for i := range tmp {
			tmp[i] = g[perm[i]]
		}
		copy(g, tmp)
	case 1:
		for i := 0; i < n[0]; i++ {
			tmp := make([][]complex128, n[1])
			for j := range tmp {
				tmp[j] = g[i][perm[j]]
			}
			copy(g[i], tmp)
		}
	case 2:
		for i := 0; i < n[0]; i++ {
			for j := 0; j < n[1]; j++ {
				tmp := make([]complex128, n[2])
				for k := range tmp {
					tmp[k] = g[i][j][perm[k]]
				}
				copy(g[i][j], tmp)
			}
		}
	}
}

// IFFTShift3 moves the zero-frequency component of a centered 3D spectrum
// to index 0 on every axis.
func IFFTShift3(g Grid3) {
	n := g.Shape()
	for axis, ni := range n {
		permuteAxis(g, axis, shiftIndex1D(ni, true))
	}
}

// IFFTShift1D reorders a 1D real sequence the same way IFFTShift3 reorders
// a grid axis. Used to align the ascending-order reciprocal vectors built
// by ReciprocalAxis with FFT-ordered data.
func IFFTShift1D(x []float64) []float64 {
	perm := shiftIndex1D(len(x), true)
	out := make([]float64, len(x))
	for j, p := range perm {
		out[j] = x[p]
	}
	return out
}

// ReciprocalAxis builds the ascending-order reciprocal-space coordinates
// for one axis: (2*pi/length) * ceil(-n/2) .. ceil(n/2-1). The result is in
// the "natural" ascending order (zero frequency at the center); callers
// that feed an FFT-ordered array (index 0 = zero frequency) must first
// pass it through IFFTShift1D.
func ReciprocalAxis(n int, length float64) []float64 {
	g := make([]float64, n)
	lo := math.Ceil(-0.5 * float64(n))
	scale := 2 * math.Pi / length
	raw := make([]float64, n)
	floats.Span(raw, lo, lo+float64(n-1))
	for i, v := range raw {
		g[i] = v * scale
	}
	return g
}
