// Package propulsion provides the engine performance models the mission
// solver queries for specific fuel consumption and available thrust.
package propulsion

import (
	"strings"

	"github.com/yegors/aeromission/internal/errdefs"
)

// Family identifies the engine calling convention.
type Family string

const (
	FamilyTurbofan    Family = "turbofan"
	FamilyTurbofanLH2 Family = "turbofan_lh2"
	FamilyPropeller   Family = "propeller"
)

// Request carries the demand for a performance query. Turbofan families read
// Thrust; the propeller family reads HorsePower and FuelConsumptionRate and
// falls back to its rated values when they are zero.
type Request struct {
	Thrust              float64 // lbf
	HorsePower          float64 // shaft hp per engine
	FuelConsumptionRate float64 // lb/hr per engine
}

// Model is an engine installation performance model.
type Model interface {
	Family() Family
	// AnalyzePerformance returns specific fuel consumption (lb/lbf/hr) and the
	// maximum available installed thrust (lbf) at the given condition.
	AnalyzePerformance(altitude, mach float64, req Request) (sfc, maxThrust float64, err error)
}

// Rated is implemented by models with a rated shaft power and fuel flow.
type Rated interface {
	RatedHorsePower() float64
	RatedFuelConsumptionRate() float64
}

// Config is the declarative engine description found in case files.
type Config struct {
	EngineType          string  `yaml:"engine_type" json:"engine_type"`
	NEngines            int     `yaml:"n_engines" json:"n_engines"`
	ThrustSeaLevel      float64 `yaml:"thrust_sea_level" json:"thrust_sea_level"` // lbf per engine
	ThrustCruise        float64 `yaml:"thrust_cruise" json:"thrust_cruise"`       // lbf per engine at the reference cruise point
	SFCSeaLevel         float64 `yaml:"sfc_sea_level" json:"sfc_sea_level"`       // lb/lbf/hr
	SFCCruise           float64 `yaml:"sfc_cruise" json:"sfc_cruise"`             // lb/lbf/hr at the reference cruise point
	CruiseAltitude      float64 `yaml:"cruise_altitude" json:"cruise_altitude"`   // reference point for the cruise values
	CruiseMach          float64 `yaml:"cruise_mach" json:"cruise_mach"`
	HorsePower          float64 `yaml:"horse_power" json:"horse_power"`                     // per engine
	FuelConsumptionRate float64 `yaml:"fuel_consumption_rate" json:"fuel_consumption_rate"` // lb/hr per engine
	PropEfficiency      float64 `yaml:"prop_efficiency" json:"prop_efficiency"`
}

// New builds the model described by cfg.
func New(cfg Config) (Model, error) {
	if cfg.NEngines <= 0 {
		cfg.NEngines = 2
	}

	switch Family(strings.ToLower(cfg.EngineType)) {
	case FamilyTurbofan:
		return newTurbofan(cfg, 1.0, FamilyTurbofan)
	case FamilyTurbofanLH2:
		return newTurbofan(cfg, lh2EnergyRatio, FamilyTurbofanLH2)
	case FamilyPropeller:
		return newPropeller(cfg)
	default:
		return nil, &errdefs.UnsupportedVariantError{Category: "engine family", Variant: cfg.EngineType}
	}
}

