package propulsion

import (
	"math"

	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
)

const (
	// Kerosene LHV / hydrogen LHV; hydrogen burns this fraction of the fuel
	// mass for the same energy.
	lh2EnergyRatio = 43.2 / 120.0

	// Thrust lapse exponent on density ratio for high-bypass engines.
	thrustLapseExponent = 0.7

	// Mach sensitivity of TSFC when no cruise sfc is supplied (Mattingly's
	// 0.45 + 0.54 M high-bypass fit).
	defaultSFCMachSlope = 0.54 / 0.45
)

// Turbofan is a lapse-rate turbofan model calibrated from sea-level and
// (optionally) cruise data points.
type Turbofan struct {
	NEngines       int
	ThrustSeaLevel float64
	SFCSeaLevel    float64
	SFCMachSlope   float64
	LapseExponent  float64
	FuelRatio      float64
	EngineFamily   Family
}

func newTurbofan(cfg Config, fuelRatio float64, family Family) (*Turbofan, error) {
	if cfg.ThrustSeaLevel <= 0 {
		return nil, errdefs.Configf("%s: thrust_sea_level must be positive", family)
	}
	if cfg.SFCSeaLevel <= 0 {
		return nil, errdefs.Configf("%s: sfc_sea_level must be positive", family)
	}

	slope := defaultSFCMachSlope
	lapse := thrustLapseExponent
	ref := physics.Condition(cfg.CruiseAltitude, cfg.CruiseMach)
	if cfg.SFCCruise > 0 && cfg.CruiseMach > 0 {
		// Solve sfc_cruise = sfc_sl * (1 + k M) * sqrt(θ) for k
		slope = (cfg.SFCCruise/(cfg.SFCSeaLevel*math.Sqrt(ref.TemperatureRatio())) - 1) / cfg.CruiseMach
	}
	if cfg.ThrustCruise > 0 && cfg.CruiseAltitude > 0 {
		if cfg.ThrustCruise >= cfg.ThrustSeaLevel {
			return nil, errdefs.Configf("%s: thrust_cruise must be below thrust_sea_level", family)
		}
		// Solve T_cruise = T_sl * σ^n for n
		lapse = math.Log(cfg.ThrustCruise/cfg.ThrustSeaLevel) / math.Log(ref.DensityRatio())
	}

	return &Turbofan{
		NEngines:       cfg.NEngines,
		ThrustSeaLevel: cfg.ThrustSeaLevel,
		SFCSeaLevel:    cfg.SFCSeaLevel,
		SFCMachSlope:   slope,
		LapseExponent:  lapse,
		FuelRatio:      fuelRatio,
		EngineFamily:   family,
	}, nil
}

// Family implements Model.
func (t *Turbofan) Family() Family {
	return t.EngineFamily
}

// AnalyzePerformance implements Model. Part-throttle effects on sfc are not
// modelled, so req.Thrust only participates in validation.
func (t *Turbofan) AnalyzePerformance(altitude, mach float64, req Request) (float64, float64, error) {
	if req.Thrust < 0 {
		return 0, 0, errdefs.Domain("thrust", req.Thrust, "thrust demand cannot be negative")
	}

	fc := physics.Condition(altitude, mach)
	maxThrust := float64(t.NEngines) * t.ThrustSeaLevel * math.Pow(fc.DensityRatio(), t.LapseExponent)
	sfc := t.SFCSeaLevel * (1 + t.SFCMachSlope*mach) * math.Sqrt(fc.TemperatureRatio()) * t.FuelRatio

	return sfc, maxThrust, nil
}
