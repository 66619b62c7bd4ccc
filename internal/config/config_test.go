package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "slabcc.in")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesCoreKeys(t *testing.T) {
	path := writeTemp(t, `
charge_position = 0.5 0.5 0.5
charge_fraction = 1
charge_sigma = 1.5
interfaces = 0.25 0.75
diel_in = 6.5
diel_out = 1
normal_direction = y
optimize_algorithm = BOBYQA
`)
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.NormalAxis != 1 {
		t.Errorf("NormalAxis = %d, want 1 (y)", settings.NormalAxis)
	}
	if len(settings.Bundle.ChargePos) != 1 {
		t.Fatalf("ChargePos len = %d, want 1", len(settings.Bundle.ChargePos))
	}
	want := [3]float64{0.5, 0.5, 0.5}
	if settings.Bundle.ChargePos[0] != want {
		t.Errorf("ChargePos[0] = %v, want %v", settings.Bundle.ChargePos[0], want)
	}
	if settings.Bundle.DielIn != [3]float64{6.5, 6.5, 6.5} {
		t.Errorf("DielIn = %v, want isotropic 6.5", settings.Bundle.DielIn)
	}
	if settings.Bundle.OptAlgo.String() != "BOBYQA" {
		t.Errorf("OptAlgo = %v, want BOBYQA", settings.Bundle.OptAlgo)
	}
}

func TestLoadDefaultsNormalAxisToZ(t *testing.T) {
	path := writeTemp(t, "charge_position = 0.1 0.2 0.3\n")
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.NormalAxis != 2 {
		t.Errorf("NormalAxis = %d, want 2 (z, default)", settings.NormalAxis)
	}
}

func TestLoadParsesMultipleCharges(t *testing.T) {
	path := writeTemp(t, `
charge_position = 0.1 0.1 0.1; 0.9 0.9 0.9
charge_fraction = 0.3 0.7
charge_sigma = 1 2
`)
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b := settings.Bundle
	if len(b.ChargePos) != 2 {
		t.Fatalf("ChargePos len = %d, want 2", len(b.ChargePos))
	}
	if math.Abs(b.Q0-1.0) > 1e-9 {
		t.Errorf("Q0 = %g, want 1", b.Q0)
	}
}

func TestLoadRejectsMissingChargePosition(t *testing.T) {
	path := writeTemp(t, "diel_in = 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when charge_position is absent")
	}
}

func TestLoadAppliesFileDefaults(t *testing.T) {
	path := writeTemp(t, "charge_position = 0.5 0.5 0.5\n")
	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Files.CHGCARNeutral != "CHGCAR.N" {
		t.Errorf("CHGCARNeutral = %q, want default CHGCAR.N", settings.Files.CHGCARNeutral)
	}
}
