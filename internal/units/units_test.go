package units

import "testing"

func TestConstantsAreSane(t *testing.T) {
	if HartreeToEV < 27 || HartreeToEV > 28 {
		t.Errorf("HartreeToEV = %g, want ~27.2", HartreeToEV)
	}
	if AngToBohr < 1.8 || AngToBohr > 1.9 {
		t.Errorf("AngToBohr = %g, want ~1.89", AngToBohr)
	}
}
