// Package units holds the atomic-unit conversion constants shared by the
// rest of the core. All internal math runs in Bohr/Hartree; only the final
// potential and energy values are converted to eV.
package units

// HartreeToEV converts Hartree to electronvolts.
const HartreeToEV = 27.211386245988

// AngToBohr converts Angstrom to Bohr. Collaborators ingesting VASP-style
// grids convert at read time; the core never sees Angstrom.
const AngToBohr = 1.8897259886
