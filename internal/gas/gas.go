// Package gas defines the gas species, concentration units and the
// per-channel identifiers used to key cycle state.
package gas

import (
	"fmt"
	"strings"
)

// Type identifies a measured gas species.
type Type int

const (
	CO2 Type = iota
	CH4
	H2O
	N2O
)

// All returns the known gas types in declaration order.
func All() []Type {
	return []Type{CO2, CH4, H2O, N2O}
}

func (t Type) String() string {
	switch t {
	case CO2:
		return "CO2"
	case CH4:
		return "CH4"
	case H2O:
		return "H2O"
	case N2O:
		return "N2O"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses a gas name, case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "co2":
		return CO2, nil
	case "ch4":
		return CH4, nil
	case "h2o":
		return H2O, nil
	case "n2o":
		return N2O, nil
	}
	return 0, fmt.Errorf("invalid gas: %q", s)
}

// MolMass returns the molar mass in g/mol.
func (t Type) MolMass() float64 {
	switch t {
	case CH4:
		return 16.0
	case CO2:
		return 44.0
	case H2O:
		return 18.0
	case N2O:
		return 44.0
	default:
		return 0
	}
}

// ColumnName returns the lowercase column prefix used in persisted tables.
func (t Type) ColumnName() string {
	return strings.ToLower(t.String())
}

// ConcentrationUnit is the unit an instrument reports concentrations in.
type ConcentrationUnit int

const (
	PPM ConcentrationUnit = iota
	PPB
)

func (u ConcentrationUnit) String() string {
	switch u {
	case PPM:
		return "ppm"
	case PPB:
		return "ppb"
	default:
		return fmt.Sprintf("ConcentrationUnit(%d)", int(u))
	}
}

// ParseConcentrationUnit parses a unit name, case-insensitively.
func ParseConcentrationUnit(s string) (ConcentrationUnit, error) {
	switch strings.ToLower(s) {
	case "ppm":
		return PPM, nil
	case "ppb":
		return PPB, nil
	}
	return 0, fmt.Errorf("invalid concentration unit: %q", s)
}

// ToPPMFactor converts a value in this unit to ppm when multiplied.
func (u ConcentrationUnit) ToPPMFactor() float64 {
	if u == PPB {
		return 1e-3
	}
	return 1.0
}
