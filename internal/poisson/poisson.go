// Package poisson solves the anisotropic Poisson equation
// div(eps(z) grad V) = -4*pi*rho
// in a 3D periodic cell where the dielectric tensor is diagonal and varies
// only along the slab-normal axis.
//
// The system is solved plane-by-plane in reciprocal space: for every
// transverse (kx, ky) pair, a dense Nz x Nz linear system couples the
// normal-axis Fourier modes through a circulant Toeplitz matrix built from
// the FFT of the dielectric profile. Transverse modes are independent, so
// they are solved concurrently.
package poisson

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/wangvei/slabcc/internal/cellctx"
	"github.com/wangvei/slabcc/internal/dielectric"
	"github.com/wangvei/slabcc/internal/transform"
)

// normalLastOrder returns a permutation of {0,1,2} with the normal axis
// last, so the solver can perform index math on the fixed physical grid
// layout instead of physically swapping grid columns.
func normalLastOrder(normal int) [3]int {
	var order [3]int
	idx := 0
	for a := 0; a < 3; a++ {
		if a != normal {
			order[idx] = a
			idx++
		}
	}
	order[2] = normal
	return order
}

func physIndex(order [3]int, la, lb, lc int) (int, int, int) {
	var idx [3]int
	idx[order[0]] = la
	idx[order[1]] = lb
	idx[order[2]] = lc
	return idx[0], idx[1], idx[2]
}

// toeplitz builds the NxN circulant matrix T[i][j] = v[(i-j) mod n] from a
// dielectric Fourier column.
func toeplitz(v []complex128) [][]complex128 {
	n := len(v)
	t := make([][]complex128, n)
	for i := range t {
		t[i] = make([]complex128, n)
		for j := 0; j < n; j++ {
			t[i][j] = v[((i-j)%n+n)%n]
		}
	}
	return t
}

// solveDense solves the complex n x n linear system A x = b by embedding it
// as a real 2n x 2n block system [[ReA, -ImA],[ImA, ReA]] and using gonum's
// real dense solver, since gonum/mat has no native complex matrix type.
func solveDense(a [][]complex128, b []complex128) ([]complex128, error) {
	n := len(b)
	m := 2 * n
	raw := make([]float64, m*m)
	rhs := make([]float64, m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			re, im := real(a[i][j]), imag(a[i][j])
			raw[i*m+j] = re
			raw[i*m+j+n] = -im
			raw[(i+n)*m+j] = im
			raw[(i+n)*m+j+n] = re
		}
		rhs[i] = real(b[i])
		rhs[i+n] = imag(b[i])
	}
	A := mat.NewDense(m, m, raw)
	B := mat.NewDense(m, 1, rhs)
	var X mat.Dense
	if err := X.Solve(A, B); err != nil {
		return nil, fmt.Errorf("poisson: singular system: %w", err)
	}
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		out[i] = complex(X.At(i, 0), X.At(i+n, 0))
	}
	return out, nil
}

// Solve computes the potential grid for a given charge density and
// dielectric profile. diels must have cell.Grid[cell.NormalAxis] rows.
func Solve(cell cellctx.Cell, rho transform.Grid3, diels dielectric.Profile) (transform.Grid3, error) {
	order := normalLastOrder(cell.NormalAxis)
	nTrans1 := cell.Grid[order[0]]
	nTrans2 := cell.Grid[order[1]]
	nNormal := cell.Grid[order[2]]

	g1 := transform.IFFTShift1D(transform.ReciprocalAxis(nTrans1, cell.Lengths[order[0]]))
	g2 := transform.IFFTShift1D(transform.ReciprocalAxis(nTrans2, cell.Lengths[order[1]]))
	gz := transform.IFFTShift1D(transform.ReciprocalAxis(nNormal, cell.Lengths[order[2]]))

	rhok := transform.NewGrid3(cell.Grid)
	for i := range rho {
		for j := range rho[i] {
			for k := range rho[i][j] {
				rhok[i][j][k] = rho[i][j][k] * complex(4*math.Pi, 0)
			}
		}
	}
	transform.FFT3(rhok)

	if len(diels) != nNormal {
		return nil, fmt.Errorf("poisson: dielectric profile has %d rows, want %d", len(diels), nNormal)
	}
	dielsG := make([][3]complex128, nNormal)
	for c := 0; c < 3; c++ {
		col := make([]complex128, nNormal)
		for k, row := range diels {
			col[k] = complex(row[c], 0)
		}
		col = transform.FFT1D(col)
		for k := range col {
			dielsG[k][c] = col[k]
		}
	}

	colOf := func(c int) []complex128 {
		v := make([]complex128, nNormal)
		for k := 0; k < nNormal; k++ {
			v[k] = dielsG[k][c]
		}
		return v
	}
	tTrans1 := scaleMatrix(toeplitz(colOf(order[0])), 1/float64(nNormal))
	tTrans2 := scaleMatrix(toeplitz(colOf(order[1])), 1/float64(nNormal))
	tNormal := scaleMatrix(toeplitz(colOf(order[2])), 1/float64(nNormal))

	az := make([][]complex128, nNormal)
	for i := 0; i < nNormal; i++ {
		az[i] = make([]complex128, nNormal)
		for j := 0; j < nNormal; j++ {
			az[i][j] = tNormal[i][j] * complex(gz[i]*gz[j], 0)
		}
	}

	vk := transform.NewGrid3(cell.Grid)

	g := new(errgroup.Group)
	for la := 0; la < nTrans1; la++ {
		la := la
		g.Go(func() error {
			for lb := 0; lb < nTrans2; lb++ {
				a := make([][]complex128, nNormal)
				gx2 := complex(g1[la]*g1[la], 0)
				gy2 := complex(g2[lb]*g2[lb], 0)
				for i := 0; i < nNormal; i++ {
					a[i] = make([]complex128, nNormal)
					for j := 0; j < nNormal; j++ {
						a[i][j] = az[i][j] + tTrans1[i][j]*gx2 + tTrans2[i][j]*gy2
					}
				}
				if la == 0 && lb == 0 {
					a[0][0] = complex(1, 0)
				}

				b := make([]complex128, nNormal)
				for lc := 0; lc < nNormal; lc++ {
					i, j, k := physIndex(order, la, lb, lc)
					b[lc] = rhok[i][j][k]
				}
				x, err := solveDense(a, b)
				if err != nil {
					return fmt.Errorf("poisson: mode (%d,%d): %w", la, lb, err)
				}
				for lc := 0; lc < nNormal; lc++ {
					i, j, k := physIndex(order, la, lb, lc)
					vk[i][j][k] = x[lc]
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vk[0][0][0] = 0
	transform.IFFT3(vk)
	return vk, nil
}

func scaleMatrix(m [][]complex128, s float64) [][]complex128 {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= complex(s, 0)
		}
	}
	return m
}
