package physics

import (
	"math"
)

// Constants (imperial units throughout: ft, slug, lbf, s, degrees Rankine)
const (
	R     = 1716.49       // Specific gas constant for dry air (ft·lbf/(slug·°R))
	Gamma = 1.4           // Adiabatic index (heat capacity ratio)
	G     = 32.174        // Gravity (ft/s^2)
	T0    = 518.67        // Standard Sea Level Temperature (°R)
	P0    = 2116.22       // Standard Sea Level Pressure (lbf/ft^2)
	Rho0  = P0 / (R * T0) // Standard Sea Level Density (slug/ft^3), ~0.0023769
	L     = 0.00356616    // Temperature Lapse Rate (°R/ft) in Troposphere

	// ISA Layer Boundaries
	TropopauseAltFt   = 36089.24 // ~11 km
	StratosphereTempR = 389.97   // Constant temperature in Stratosphere

	// Conversion factors
	FeetPerNM      = 6076.12  // Feet per nautical mile
	FeetToMeters   = 0.3048   // Feet to metres
	SlugFt3ToKgM3  = 515.379  // slug/ft^3 to kg/m^3
	FtPerSecToKts  = 0.592484 // ft/s to knots
	SecondsPerHour = 3600.0
	GravityMetric  = 9.81 // m/s^2, as used by the aerodynamic solver's unit system
)

// FlightCondition is an immutable snapshot of the air at an altitude and
// Mach number. Build a new one rather than editing fields.
type FlightCondition struct {
	Altitude        float64 `json:"altitude_ft"`
	Mach            float64 `json:"mach"`
	Velocity        float64 `json:"velocity_fps"`       // True airspeed (ft/s)
	SpeedOfSound    float64 `json:"speed_of_sound_fps"` // ft/s
	Temperature     float64 `json:"temperature_r"`
	Pressure        float64 `json:"pressure_psf"`
	Density         float64 `json:"density_slugft3"`
	DynamicPressure float64 `json:"dynamic_pressure_psf"` // q = ½ρV² (lbf/ft^2)
}

// Provider produces flight conditions. The standard atmosphere is the only
// implementation shipped; tests substitute their own.
type Provider interface {
	Condition(altitude, mach float64) FlightCondition
}

// StandardAtmosphere is the 1976 ISA model up to the lower stratosphere.
type StandardAtmosphere struct{}

// Condition implements Provider.
func (StandardAtmosphere) Condition(altitude, mach float64) FlightCondition {
	return Condition(altitude, mach)
}

// Condition returns the ISA flight condition at the given altitude (ft) and Mach
func Condition(altitude, mach float64) FlightCondition {
	t := Temperature(altitude)
	p := AltitudeToPressure(altitude)
	rho := p / (R * t)
	a := CalculateSoundSpeed(t)
	v := mach * a

	return FlightCondition{
		Altitude:        altitude,
		Mach:            mach,
		Velocity:        v,
		SpeedOfSound:    a,
		Temperature:     t,
		Pressure:        p,
		Density:         rho,
		DynamicPressure: 0.5 * rho * v * v,
	}
}

// ConditionAtVelocity returns the flight condition for a true airspeed (ft/s)
// rather than a Mach number.
func ConditionAtVelocity(p Provider, altitude, velocity float64) FlightCondition {
	a := p.Condition(altitude, 0).SpeedOfSound
	if a <= 0 {
		return p.Condition(altitude, 0)
	}
	fc := p.Condition(altitude, velocity/a)
	fc.Velocity = velocity
	fc.DynamicPressure = 0.5 * fc.Density * velocity * velocity
	return fc
}

// DensityRatio returns σ = ρ/ρ0
func (fc FlightCondition) DensityRatio() float64 {
	return fc.Density / Rho0
}

// TemperatureRatio returns θ = T/T0
func (fc FlightCondition) TemperatureRatio() float64 {
	return fc.Temperature / T0
}

// CalculateSoundSpeed returns the speed of sound in ft/s for a given temperature in Rankine
func CalculateSoundSpeed(tempR float64) float64 {
	if tempR <= 0 {
		return 0
	}
	return math.Sqrt(Gamma * R * tempR)
}

// Temperature returns the ISA static temperature (°R) at a geopotential altitude in feet
func Temperature(altFt float64) float64 {
	if altFt < 0 {
		altFt = 0
	}
	if altFt > TropopauseAltFt {
		return StratosphereTempR
	}
	return T0 - L*altFt
}

// AltitudeToPressure converts altitude in feet to static pressure in lbf/ft^2
// Uses Standard Atmosphere model, supporting Troposphere and Stratosphere (up to 20km approx)
func AltitudeToPressure(altFt float64) float64 {
	if altFt < 0 {
		altFt = 0
	}

	exponent := G / (R * L)
	if altFt <= TropopauseAltFt {
		// Troposphere Model
		// P = P0 * (1 - L*h/T0)^(g/RL)
		return P0 * math.Pow(1-L*altFt/T0, exponent)
	}

	// Stratosphere Model
	// P = P_trop * exp( -g*(h - h_trop) / (R * T_strat) )
	pTrop := P0 * math.Pow(StratosphereTempR/T0, exponent)
	relAlt := altFt - TropopauseAltFt
	return pTrop * math.Exp(-(G*relAlt)/(R*StratosphereTempR))
}

// FeetToNM converts a distance in feet to nautical miles
func FeetToNM(ft float64) float64 {
	return ft / FeetPerNM
}

// NMToFeet converts nautical miles to feet
func NMToFeet(nm float64) float64 {
	return nm * FeetPerNM
}
