package flux

import (
	"fmt"
	"strings"

	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// Unit is a flux reporting unit. All conversions start from the
// µmol m⁻² s⁻¹ base the fitting engine produces.
type Unit int

const (
	UmolM2SUnit Unit = iota
	UmolM2HUnit
	MmolM2SUnit
	MmolM2HUnit
	MgM2SUnit
	MgM2HUnit
	NmolM2SUnit
	NmolM2HUnit
)

// Units returns all reporting units.
func Units() []Unit {
	return []Unit{
		UmolM2SUnit, UmolM2HUnit, MmolM2SUnit, MmolM2HUnit,
		MgM2SUnit, MgM2HUnit, NmolM2SUnit, NmolM2HUnit,
	}
}

func (u Unit) String() string {
	switch u {
	case UmolM2SUnit:
		return "µmol/m2/s"
	case UmolM2HUnit:
		return "µmol/m2/h"
	case MmolM2SUnit:
		return "mmol/m2/s"
	case MmolM2HUnit:
		return "mmol/m2/h"
	case MgM2SUnit:
		return "mg/m2/s"
	case MgM2HUnit:
		return "mg/m2/h"
	case NmolM2SUnit:
		return "nmol/m2/s"
	case NmolM2HUnit:
		return "nmol/m2/h"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Suffix returns the column-name suffix used in persisted tables.
func (u Unit) Suffix() string {
	switch u {
	case UmolM2SUnit:
		return "umol_m2_s"
	case UmolM2HUnit:
		return "umol_m2_h"
	case MmolM2SUnit:
		return "mmol_m2_s"
	case MmolM2HUnit:
		return "mmol_m2_h"
	case MgM2SUnit:
		return "mg_m2_s"
	case MgM2HUnit:
		return "mg_m2_h"
	case NmolM2SUnit:
		return "nmol_m2_s"
	case NmolM2HUnit:
		return "nmol_m2_h"
	default:
		return "unknown"
	}
}

// ParseUnit parses a unit display name, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "µmol/m2/s", "umol/m2/s":
		return UmolM2SUnit, nil
	case "µmol/m2/h", "umol/m2/h":
		return UmolM2HUnit, nil
	case "mmol/m2/s":
		return MmolM2SUnit, nil
	case "mmol/m2/h":
		return MmolM2HUnit, nil
	case "mg/m2/s":
		return MgM2SUnit, nil
	case "mg/m2/h":
		return MgM2HUnit, nil
	case "nmol/m2/s":
		return NmolM2SUnit, nil
	case "nmol/m2/h":
		return NmolM2HUnit, nil
	}
	return 0, fmt.Errorf("invalid flux unit: %q", s)
}

// FromUmolM2S converts a value in the µmol m⁻² s⁻¹ base into this unit.
// The gas is needed for mass units.
func (u Unit) FromUmolM2S(value float64, g gas.Type) float64 {
	switch u {
	case NmolM2SUnit:
		return value * 1000
	case NmolM2HUnit:
		return value * 1000 * 3600
	case UmolM2SUnit:
		return value
	case UmolM2HUnit:
		return value * 3600
	case MmolM2SUnit:
		return value / 1000
	case MmolM2HUnit:
		return value / 1000 * 3600
	case MgM2SUnit:
		return value * g.MolMass() / 1000
	case MgM2HUnit:
		return value * g.MolMass() / 1000 * 3600
	default:
		return value
	}
}
