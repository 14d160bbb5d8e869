package propulsion

import (
	"math"

	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
)

const (
	hpToFtLbfPerSec = 550.0
	// Below this airspeed thrust = ηP/V diverges; treat slower flight as static.
	minPropVelocity = 50.0
	defaultPropEff  = 0.8
)

// Propeller is a shaft-power engine driving a fixed-efficiency propeller.
type Propeller struct {
	NEngines            int
	HorsePower          float64
	FuelConsumptionRate float64
	Efficiency          float64
}

func newPropeller(cfg Config) (*Propeller, error) {
	if cfg.HorsePower <= 0 {
		return nil, errdefs.Configf("propeller: horse_power must be positive")
	}
	if cfg.FuelConsumptionRate <= 0 {
		return nil, errdefs.Configf("propeller: fuel_consumption_rate must be positive")
	}
	eff := cfg.PropEfficiency
	if eff <= 0 {
		eff = defaultPropEff
	}
	if eff > 1 {
		return nil, errdefs.Configf("propeller: prop_efficiency %g exceeds 1", eff)
	}

	return &Propeller{
		NEngines:            cfg.NEngines,
		HorsePower:          cfg.HorsePower,
		FuelConsumptionRate: cfg.FuelConsumptionRate,
		Efficiency:          eff,
	}, nil
}

// Family implements Model.
func (p *Propeller) Family() Family {
	return FamilyPropeller
}

// RatedHorsePower implements Rated.
func (p *Propeller) RatedHorsePower() float64 {
	return p.HorsePower
}

// RatedFuelConsumptionRate implements Rated.
func (p *Propeller) RatedFuelConsumptionRate() float64 {
	return p.FuelConsumptionRate
}

// AnalyzePerformance implements Model. The returned sfc is thrust specific
// (lb/lbf/hr) so every segment can treat engine families uniformly.
func (p *Propeller) AnalyzePerformance(altitude, mach float64, req Request) (float64, float64, error) {
	hp := req.HorsePower
	if hp <= 0 {
		hp = p.HorsePower
	}
	rate := req.FuelConsumptionRate
	if rate <= 0 {
		rate = p.FuelConsumptionRate
	}

	fc := physics.Condition(altitude, mach)

	// Gagg-Ferrar altitude lapse for piston and turboprop shaft power
	lapse := 1.132*fc.DensityRatio() - 0.132
	if lapse <= 0 {
		return 0, 0, errdefs.Domain("power_lapse", lapse, "altitude above the engine's power ceiling")
	}
	power := float64(p.NEngines) * hp * lapse * hpToFtLbfPerSec

	v := math.Max(fc.Velocity, minPropVelocity)
	maxThrust := p.Efficiency * power / v
	fuelFlow := float64(p.NEngines) * rate * lapse

	return fuelFlow / maxThrust, maxThrust, nil
}
