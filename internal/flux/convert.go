package flux

import (
	"github.com/kootepe/fluxrs-sub001/internal/chamber"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// gasConstant is the molar gas constant in Pa·m³/(mol·K).
const gasConstant = 8.314

// Env bundles the environmental inputs every fit needs to convert a
// concentration slope into an areal flux.
type Env struct {
	AirTemperatureC float64
	AirPressureHPa  float64
	Chamber         chamber.Chamber
}

// UmolM2S converts a regression slope in the channel's native units per
// second into a flux in µmol m⁻² s⁻¹.
//
// Pipeline: native slope → ppm/s → mol/mol/s, scaled by the molar air
// density p/(R·T) to mol/m³/s, then by chamber volume over area to
// mol/m²/s, reported in µmol.
func UmolM2S(ch gas.Channel, slopePerS float64, env Env) float64 {
	pPa := env.AirPressureHPa * 100
	tK := env.AirTemperatureC + 273.15

	slopePPMPerS := ch.SlopePPMPerS(slopePerS)
	molPerM3Air := pPa / (gasConstant * tK)
	slopeMolPerMolPerS := slopePPMPerS * 1e-6
	dmolPerM3PerS := slopeMolPerMolPerS * molPerM3Air

	fluxMolM2S := dmolPerM3PerS * env.Chamber.AdjustedVolumeM3() / env.Chamber.AreaM2()
	return fluxMolM2S * 1e6
}

// MgM2S converts a slope into mg m⁻² s⁻¹ using the gas molar mass.
func MgM2S(ch gas.Channel, slopePerS float64, env Env) float64 {
	return UmolM2S(ch, slopePerS, env) * ch.Gas.MolMass() * 1e-3
}
