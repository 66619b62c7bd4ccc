// Package config loads INI-style configuration keys into a validate.Bundle
// plus the handful of settings (normal axis, file paths, verbosity)
// the core itself doesn't own. Parsing the external CHGCAR/LOCPOT grid
// formats is out of scope; this package only owns the parameter bundle.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/wangvei/slabcc/internal/validate"
)

// Files names the input grid files, passed through unparsed: parsing the
// external electronic-structure file formats is out of scope.
type Files struct {
	CHGCARNeutral string
	CHGCARCharged string
	LOCPOTNeutral string
	LOCPOTCharged string
}

// Settings is everything config.Load produces: the core parameter bundle,
// the input file set, the normal axis, and the console verbosity.
type Settings struct {
	Bundle     validate.Bundle
	Files      Files
	NormalAxis int
	Verbosity  int
}

func xyzToInt(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z", "":
		return 2, nil
	default:
		return 0, fmt.Errorf("config: unknown normal_direction %q", s)
	}
}

// Load reads the named INI file, fills in defaults for anything absent,
// and normalizes the resulting bundle.
func Load(path string) (Settings, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	sec := cfg.Section("")

	normalAxis, err := xyzToInt(sec.Key("normal_direction").MustString("z"))
	if err != nil {
		return Settings{}, err
	}

	positions, err := parsePositions(sec.Key("charge_position").String())
	if err != nil {
		return Settings{}, err
	}

	n := len(positions)
	qd := parseFloats(sec.Key("charge_fraction").String(), equalFractions(n))
	sigma := parseFloats(sec.Key("charge_sigma").String(), onesLike(n))
	interfaces := parseFloats(sec.Key("interfaces").String(), []float64{0.25, 0.75})

	dielIn := validate.ExpandDiel(sec.Key("diel_in").MustFloat64(1))
	dielOut := validate.ExpandDiel(sec.Key("diel_out").MustFloat64(1))
	if vs := parseFloats(sec.Key("diel_in").String(), nil); len(vs) == 3 {
		dielIn = [3]float64{vs[0], vs[1], vs[2]}
	}
	if vs := parseFloats(sec.Key("diel_out").String(), nil); len(vs) == 3 {
		dielOut = [3]float64{vs[0], vs[1], vs[2]}
	}

	b := validate.Bundle{
		Interfaces:        [2]float64{interfaces[0], interfaces[1]},
		ChargePos:         positions,
		Qd:                qd,
		Sigma:             sigma,
		DielIn:            dielIn,
		DielOut:           dielOut,
		DielErfBeta:       sec.Key("diel_taper").MustFloat64(1),
		OptimizeCharge:    sec.Key("optimize_charge").MustBool(true),
		OptimizeInterface: sec.Key("optimize_interfaces").MustBool(true),
		OptAlgo:           validate.ParseAlgorithm(sec.Key("optimize_algorithm").MustString("COBYLA")),
		OptTol:            sec.Key("optimize_tolerance").MustFloat64(1e-3),
		MaxEval:           sec.Key("optimize_maxsteps").MustInt(0),
		MaxTime:           sec.Key("optimize_maxtime").MustInt(0),
		ExtrapolGridX:     sec.Key("extrapolate_grid_x").MustFloat64(1),
		ExtrapolStepsNum:  sec.Key("extrapolate_steps_number").MustInt(4),
		ExtrapolStepsSize: sec.Key("extrapolate_steps_size").MustFloat64(0.5),
	}

	if err := validate.Normalize(&b); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	return Settings{
		Bundle:     b,
		NormalAxis: normalAxis,
		Verbosity:  sec.Key("verbosity").MustInt(0),
		Files: Files{
			CHGCARNeutral: sec.Key("CHGCAR_neutral").MustString("CHGCAR.N"),
			CHGCARCharged: sec.Key("CHGCAR_charged").MustString("CHGCAR.C"),
			LOCPOTNeutral: sec.Key("LOCPOT_neutral").MustString("LOCPOT.N"),
			LOCPOTCharged: sec.Key("LOCPOT_charged").MustString("LOCPOT.C"),
		},
	}, nil
}

// parsePositions reads a semicolon-separated list of three
// whitespace-separated fractional coordinates, e.g. "0.1 0.2 0.3; 0.1 0.2 0.4".
func parsePositions(raw string) ([][3]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("config: charge_position must be defined")
	}
	var out [][3]float64
	for _, row := range strings.Split(raw, ";") {
		fields := strings.Fields(row)
		if len(fields) != 3 {
			return nil, fmt.Errorf("config: charge_position row %q must have 3 columns", row)
		}
		var p [3]float64
		for i, f := range fields {
			v, err := parseFloat(f)
			if err != nil {
				return nil, fmt.Errorf("config: charge_position: %w", err)
			}
			p[i] = v
		}
		out = append(out, p)
	}
	return out, nil
}

func parseFloats(raw string, def []float64) []float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	fields := strings.Fields(raw)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return def
		}
		out = append(out, v)
	}
	return out
}

func parseFloat(s string) (float64, error) {
	var v float64
	_, err := fmt.Sscanf(s, "%g", &v)
	return v, err
}

func onesLike(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func equalFractions(n int) []float64 {
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0 / float64(n)
	}
	return out
}
