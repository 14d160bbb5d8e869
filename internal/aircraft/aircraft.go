// Package aircraft holds the static aircraft attributes the mission solver
// and the aerodynamic bridge consume. Component geometry and weight
// build-up happen elsewhere; this package only carries their results.
package aircraft

import (
	"strings"

	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/propulsion"
)

// MainWingTitle names the reference lifting surface.
const MainWingTitle = "Main Wing"

// SurfaceType classifies a lifting surface for the aerodynamic geometry file.
type SurfaceType string

const (
	SurfaceWing       SurfaceType = "wing"
	SurfaceHorizontal SurfaceType = "horizontal"
	SurfaceVertical   SurfaceType = "vertical"
)

// Section is one spanwise station of a lifting surface. Lengths in feet,
// incidence in degrees.
type Section struct {
	Xle       float64 `yaml:"xle" json:"xle"`
	Yle       float64 `yaml:"yle" json:"yle"`
	Zle       float64 `yaml:"zle" json:"zle"`
	Chord     float64 `yaml:"chord" json:"chord"`
	Incidence float64 `yaml:"incidence" json:"incidence"`
}

// Surface is a lift-generating component.
type Surface struct {
	Title    string      `yaml:"title" json:"title"`
	Type     SurfaceType `yaml:"type" json:"type"`
	Sections []Section   `yaml:"sections" json:"sections"`
	Airfoil  string      `yaml:"airfoil,omitempty" json:"airfoil,omitempty"` // optional airfoil coordinate file
}

// IsWing reports whether the surface is wing-like (twist may vary per section).
func (s *Surface) IsWing() bool {
	return strings.Contains(strings.ToLower(string(s.Type)), "wing")
}

// IsVertical reports whether the surface lies in the plane of symmetry.
func (s *Surface) IsVertical() bool {
	return strings.Contains(strings.ToLower(string(s.Type)), "vertical")
}

// IsHorizontalTail reports whether the surface carries the elevator.
func (s *Surface) IsHorizontalTail() bool {
	return strings.Contains(strings.ToLower(string(s.Type)), "horizontal")
}

// Aircraft is the static description of one configuration.
type Aircraft struct {
	Title string `yaml:"title" json:"title"`

	// Reference geometry
	Sref float64 `yaml:"sref" json:"sref"` // Reference area (ft^2)
	Cref float64 `yaml:"cref" json:"cref"` // Mean aerodynamic chord (ft)
	Bref float64 `yaml:"bref" json:"bref"` // Span (ft)

	// Drag
	CD0          float64 `yaml:"cd0" json:"cd0"`                     // Parasite drag coefficient at cruise
	CDW          float64 `yaml:"cdw" json:"cdw"`                     // Wave drag coefficient at cruise
	CriticalMach float64 `yaml:"critical_mach" json:"critical_mach"` // Wave drag only applies above this Mach (0 = always)

	// Cruise design point
	CruiseAltitude float64 `yaml:"cruise_altitude" json:"cruise_altitude"`
	CruiseMach     float64 `yaml:"cruise_mach" json:"cruise_mach"`

	// Weights (lb)
	TakeoffWeight float64 `yaml:"weight_takeoff" json:"weight_takeoff"`
	FuelWeight    float64 `yaml:"w_fuel" json:"w_fuel"`

	// Mass properties
	CG      [3]float64 `yaml:"cg" json:"cg"`           // ft
	Inertia [3]float64 `yaml:"inertia" json:"inertia"` // lb·ft^2 (Ixx, Iyy, Izz), matching the mass file units

	Surfaces []Surface `yaml:"surfaces" json:"surfaces"`

	Engine     propulsion.Config `yaml:"propulsion" json:"propulsion"`
	Propulsion propulsion.Model  `yaml:"-" json:"-"`

	// Range is the total mission range (nmi) from the most recent solve.
	Range float64 `yaml:"-" json:"range,omitempty"`
}

// Prepare validates the aircraft and builds its propulsion model.
func (a *Aircraft) Prepare() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Propulsion == nil {
		cfg := a.Engine
		if cfg.CruiseAltitude == 0 && cfg.CruiseMach == 0 {
			cfg.CruiseAltitude = a.CruiseAltitude
			cfg.CruiseMach = a.CruiseMach
		}
		m, err := propulsion.New(cfg)
		if err != nil {
			return err
		}
		a.Propulsion = m
	}
	return nil
}

// Validate checks the attributes the solver relies on.
func (a *Aircraft) Validate() error {
	if a.Sref <= 0 {
		return errdefs.Configf("aircraft %q: sref must be positive", a.Title)
	}
	if a.CD0 <= 0 {
		return errdefs.Configf("aircraft %q: cd0 must be positive", a.Title)
	}
	if a.TakeoffWeight <= 0 {
		return errdefs.Configf("aircraft %q: weight_takeoff must be positive", a.Title)
	}
	if a.FuelWeight <= 0 || a.FuelWeight >= a.TakeoffWeight {
		return errdefs.Configf("aircraft %q: w_fuel must lie in (0, weight_takeoff)", a.Title)
	}
	if a.CruiseMach <= 0 {
		return errdefs.Configf("aircraft %q: cruise_mach must be positive", a.Title)
	}
	if _, err := a.MainWing(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, s := range a.Surfaces {
		key := strings.ToLower(s.Title)
		if seen[key] {
			return errdefs.Configf("aircraft %q: duplicate surface %q", a.Title, s.Title)
		}
		seen[key] = true
		if len(s.Sections) < 2 {
			return errdefs.Configf("aircraft %q: surface %q needs at least two sections", a.Title, s.Title)
		}
	}
	return nil
}

// MainWing returns the reference wing.
func (a *Aircraft) MainWing() (*Surface, error) {
	for i := range a.Surfaces {
		if strings.EqualFold(a.Surfaces[i].Title, MainWingTitle) {
			return &a.Surfaces[i], nil
		}
	}
	return nil, errdefs.Configf("aircraft %q: %s component not declared", a.Title, MainWingTitle)
}

// OrderedSurfaces returns the main wing first, then every other surface in
// declaration order.
func (a *Aircraft) OrderedSurfaces() []Surface {
	out := make([]Surface, 0, len(a.Surfaces))
	for _, s := range a.Surfaces {
		if strings.EqualFold(s.Title, MainWingTitle) {
			out = append(out, s)
		}
	}
	for _, s := range a.Surfaces {
		if !strings.EqualFold(s.Title, MainWingTitle) {
			out = append(out, s)
		}
	}
	return out
}

// CruiseCondition is the flight condition at the cruise design point in atm.
func (a *Aircraft) CruiseCondition(atm physics.Provider) physics.FlightCondition {
	return atm.Condition(a.CruiseAltitude, a.CruiseMach)
}

// ParasiteDrag returns (cd0, cdw) for the given condition. Wave drag only
// applies above the critical Mach.
func (a *Aircraft) ParasiteDrag(altitude, mach float64) (cd0, cdw float64) {
	if a.CriticalMach > 0 && mach < a.CriticalMach {
		return a.CD0, 0
	}
	return a.CD0, a.CDW
}

// LandingWeight is the takeoff weight less all fuel.
func (a *Aircraft) LandingWeight() float64 {
	return a.TakeoffWeight - a.FuelWeight
}
