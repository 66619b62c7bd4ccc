// Command slabcc-go drives the correction-energy pipeline end to end:
// load a parameter bundle, fit the Gaussian/dielectric model against a
// reference potential, then extrapolate to the isolated-defect limit.
//
// Reading real VASP CHGCAR/LOCPOT files and supercell geometry is out of
// scope here; this program loads grids from a small flat text format
// suitable for local runs and tests, not real lab data.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wangvei/slabcc/internal/cellctx"
	"github.com/wangvei/slabcc/internal/config"
	"github.com/wangvei/slabcc/internal/extrapolate"
	"github.com/wangvei/slabcc/internal/fit"
	"github.com/wangvei/slabcc/internal/optimize"
)

func main() {
	configPath := flag.String("config", "slabcc.in", "path to the INI parameter file")
	lengthsFlag := flag.String("lengths", "20 20 20", "cell lengths in Bohr: \"Lx Ly Lz\"")
	gridFlag := flag.String("grid", "48 48 48", "grid dimensions: \"Nx Ny Nz\"")
	defectPotentialPath := flag.String("defect-potential", "", "flat-text 3D grid file: reference potential, eV (required)")
	madelung := flag.Float64("madelung", 0, "Madelung term for the isolated-limit fit, eV")
	flag.Parse()

	log.Println("slabcc-go: loading configuration")
	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("slabcc-go: %v", err)
	}

	var lengths [3]float64
	var grid [3]int
	if _, err := fmt.Sscanf(*lengthsFlag, "%g %g %g", &lengths[0], &lengths[1], &lengths[2]); err != nil {
		log.Fatalf("slabcc-go: parsing -lengths: %v", err)
	}
	if _, err := fmt.Sscanf(*gridFlag, "%d %d %d", &grid[0], &grid[1], &grid[2]); err != nil {
		log.Fatalf("slabcc-go: parsing -grid: %v", err)
	}

	cell, err := cellctx.New(lengths, grid, settings.NormalAxis)
	if err != nil {
		log.Fatalf("slabcc-go: %v", err)
	}

	if *defectPotentialPath == "" {
		log.Fatal("slabcc-go: -defect-potential is required")
	}
	defectPotential, err := loadFlatGrid(*defectPotentialPath, grid)
	if err != nil {
		log.Fatalf("slabcc-go: %v", err)
	}

	b := settings.Bundle
	initial := optimize.Vars{
		Interfaces: b.Interfaces,
		Sigma:      append([]float64(nil), b.Sigma...),
		Qd:         append([]float64(nil), b.Qd...),
		Positions:  append([][3]float64(nil), b.ChargePos...),
	}

	log.Println("slabcc-go: fitting model parameters")
	result, err := optimize.Run(cell, b, initial, defectPotential)
	if err != nil {
		log.Fatalf("slabcc-go: optimization: %v", err)
	}
	log.Printf("slabcc-go: optimized potential MSE = %g %%", result.PotMSE)

	log.Println("slabcc-go: extrapolating to the isolated-defect limit")
	sizes, energies, err := extrapolate.Run(extrapolate.Mode3D, cell, extrapolate.Model{
		Interfaces: result.Vars.Interfaces,
		Positions:  result.Vars.Positions,
		Qd:         result.Vars.Qd,
		Sigma:      result.Vars.Sigma,
	}, extrapolate.Params{
		DielIn:         b.DielIn,
		DielOut:        b.DielOut,
		DielErfBeta:    b.DielErfBeta,
		StepsNum:       b.ExtrapolStepsNum,
		StepSize:       b.ExtrapolStepsSize,
		GridMultiplier: b.ExtrapolGridX,
	})
	if err != nil {
		log.Fatalf("slabcc-go: extrapolation: %v", err)
	}

	params, err := fit.Fit(sizes, energies, *madelung, b.OptTol)
	if err != nil {
		log.Fatalf("slabcc-go: nonlinear fit: %v", err)
	}

	log.Printf("slabcc-go: isolated-limit model energy (c1) = %.6f eV", params.Intercept())
}

// loadFlatGrid reads grid[0]*grid[1]*grid[2] whitespace-separated floats in
// x-major, then y, then z order.
func loadFlatGrid(path string, grid [3]int) ([][][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadFlatGrid: %w", err)
	}
	defer f.Close()

	out := make([][][]float64, grid[0])
	for i := range out {
		out[i] = make([][]float64, grid[1])
		for j := range out[i] {
			out[i][j] = make([]float64, grid[2])
		}
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024*64)
	sc.Split(bufio.ScanWords)
	for i := 0; i < grid[0]; i++ {
		for j := 0; j < grid[1]; j++ {
			for k := 0; k < grid[2]; k++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("loadFlatGrid: %s: not enough values for grid %v", path, grid)
				}
				var v float64
				if _, err := fmt.Sscanf(sc.Text(), "%g", &v); err != nil {
					return nil, fmt.Errorf("loadFlatGrid: %s: %w", path, err)
				}
				out[i][j][k] = v
			}
		}
	}
	return out, sc.Err()
}
