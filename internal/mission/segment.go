// Package mission solves an aircraft's mission for range and fuel burn. A
// mission is an ordered list of segments; exactly one cruise segment has an
// unknown range, and the Solver finds it by sweeping weights forward from
// takeoff and backward from landing.
package mission

import (
	"fmt"

	"github.com/yegors/aeromission/internal/errdefs"
)

// Kind names a segment variant.
type Kind string

const (
	KindTakeoff Kind = "takeoff"
	KindClimb   Kind = "climb"
	KindCruise  Kind = "cruise"
	KindDescent Kind = "descent"
	KindLoiter  Kind = "loiter"
	KindLanding Kind = "landing"
)

// Params holds the configuration of one segment variant. The set of
// implementations is closed; see Advance for the dispatch.
type Params interface {
	Kind() Kind
	validate() error
}

// Takeoff burns fuel at a fixed fraction of static thrust for a fixed time.
type Takeoff struct {
	ThrustSetting float64 // percent of maximum thrust
	Duration      float64 // seconds
}

// Climb climbs between two altitude/velocity points.
type Climb struct {
	StartVelocity  float64 // ft/s
	EndVelocity    float64 // ft/s
	StartAltitude  float64 // ft
	EndAltitude    float64 // ft
	BestClimb      bool    // carried for callers; does not change the computation
	PowerAvailable float64 // optional shaft power override; 0 uses the engine's max thrust
}

// Cruise flies at constant Mach and altitude, either for a fixed range or,
// on the find-range segment, for whatever range the fuel allows.
type Cruise struct {
	Mach     float64
	Altitude float64 // ft
	Range    float64 // nmi; ignored on the find-range segment
}

// Descent applies a fixed weight fraction.
type Descent struct {
	WeightFraction float64
}

// Loiter holds altitude for a fixed time.
type Loiter struct {
	Altitude float64 // ft
	Duration float64 // seconds
	Mach     float64 // used for the drag lookup; 0 means DefaultLoiterMach

	// InducedDragFactor overrides the K of the nearest earlier climb.
	// Zero means use that climb's value.
	InducedDragFactor float64
}

// Landing pins the exit weight to the landing weight plus reserve fuel.
type Landing struct {
	WeightFraction  float64
	ReserveFraction float64 // fraction of total fuel held in reserve
}

func (Takeoff) Kind() Kind { return KindTakeoff }
func (Climb) Kind() Kind   { return KindClimb }
func (Cruise) Kind() Kind  { return KindCruise }
func (Descent) Kind() Kind { return KindDescent }
func (Loiter) Kind() Kind  { return KindLoiter }
func (Landing) Kind() Kind { return KindLanding }

func (p Takeoff) validate() error {
	if p.ThrustSetting <= 0 || p.ThrustSetting > 100 {
		return errdefs.Configf("thrust_setting %g must lie in (0, 100]", p.ThrustSetting)
	}
	if p.Duration < 0 {
		return errdefs.Configf("takeoff time %g must not be negative", p.Duration)
	}
	return nil
}

func (p Climb) validate() error {
	if p.StartVelocity < 0 || p.EndVelocity <= 0 {
		return errdefs.Configf("climb velocities must be positive (start %g, end %g)", p.StartVelocity, p.EndVelocity)
	}
	if p.EndAltitude <= p.StartAltitude {
		return errdefs.Configf("climb end altitude %g must exceed start altitude %g", p.EndAltitude, p.StartAltitude)
	}
	if p.PowerAvailable < 0 {
		return errdefs.Configf("power_available %g must not be negative", p.PowerAvailable)
	}
	return nil
}

func (p Cruise) validate() error {
	if p.Mach <= 0 {
		return errdefs.Configf("cruise mach %g must be positive", p.Mach)
	}
	if p.Altitude < 0 {
		return errdefs.Configf("cruise altitude %g must not be negative", p.Altitude)
	}
	if p.Range < 0 {
		return errdefs.Configf("cruise range %g must not be negative", p.Range)
	}
	return nil
}

func (p Descent) validate() error {
	return validFraction("descent weight_fraction", p.WeightFraction)
}

func (p Loiter) validate() error {
	if p.Duration <= 0 {
		return errdefs.Configf("loiter time %g must be positive", p.Duration)
	}
	if p.Altitude < 0 {
		return errdefs.Configf("loiter altitude %g must not be negative", p.Altitude)
	}
	if p.Mach < 0 || p.InducedDragFactor < 0 {
		return errdefs.Configf("loiter mach and induced_drag_factor must not be negative")
	}
	return nil
}

func (p Landing) validate() error {
	if err := validFraction("landing weight_fraction", p.WeightFraction); err != nil {
		return err
	}
	if p.ReserveFraction < 0 || p.ReserveFraction >= 1 {
		return errdefs.Configf("reserve_fuel %g must lie in [0, 1)", p.ReserveFraction)
	}
	return nil
}

func validFraction(name string, v float64) error {
	if v <= 0 || v > 1 {
		return errdefs.Configf("%s %g must lie in (0, 1]", name, v)
	}
	return nil
}

// Segment is one configured phase of the mission. Segments are values; a
// solve never modifies them.
type Segment struct {
	Title     string
	FindRange bool // range is unknown and solved by the sweep
	RunSim    bool // query the aerodynamic solver instead of the simplified estimate
	Params    Params
}

// Kind returns the variant kind, or "" when Params is unset.
func (s Segment) Kind() Kind {
	if s.Params == nil {
		return ""
	}
	return s.Params.Kind()
}

// Validate checks the segment's own parameters.
func (s Segment) Validate() error {
	if s.Params == nil {
		return errdefs.Configf("segment %q has no parameters", s.Title)
	}
	if s.FindRange && s.Kind() != KindCruise {
		return errdefs.Configf("segment %q: only a cruise segment can have find_range set", s.Title)
	}
	if c, ok := s.Params.(Cruise); ok && !s.FindRange && c.Range <= 0 {
		return errdefs.Configf("segment %q: cruise needs a range or find_range", s.Title)
	}
	if err := s.Params.validate(); err != nil {
		return fmt.Errorf("segment %q: %w", s.Title, err)
	}
	return nil
}

// SegmentError attaches segment context to a failure inside the sweep.
type SegmentError struct {
	Index int
	Title string
	Kind  Kind
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d (%s %q): %v", e.Index, e.Kind, e.Title, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }
