package mission

import (
	"strings"

	"github.com/yegors/aeromission/internal/errdefs"
)

// SegmentSpec is the flat, declarative form of a segment used in case files
// and API requests. Only the fields relevant to SegmentType are read.
type SegmentSpec struct {
	SegmentType string `yaml:"segment_type" json:"segment_type"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	FindRange   bool   `yaml:"find_range,omitempty" json:"find_range,omitempty"`
	RunSim      bool   `yaml:"run_sim,omitempty" json:"run_sim,omitempty"`

	// takeoff, loiter
	ThrustSetting float64 `yaml:"thrust_setting,omitempty" json:"thrust_setting,omitempty"`
	Time          float64 `yaml:"time,omitempty" json:"time,omitempty"` // seconds

	// climb
	StartVelocity  float64 `yaml:"start_velocity,omitempty" json:"start_velocity,omitempty"`
	EndVelocity    float64 `yaml:"end_velocity,omitempty" json:"end_velocity,omitempty"`
	StartAltitude  float64 `yaml:"start_altitude,omitempty" json:"start_altitude,omitempty"`
	EndAltitude    float64 `yaml:"end_altitude,omitempty" json:"end_altitude,omitempty"`
	BestClimb      bool    `yaml:"best_climb,omitempty" json:"best_climb,omitempty"`
	PowerAvailable float64 `yaml:"power_available,omitempty" json:"power_available,omitempty"`

	// cruise, loiter
	Mach     float64 `yaml:"mach,omitempty" json:"mach,omitempty"`
	Altitude float64 `yaml:"altitude,omitempty" json:"altitude,omitempty"`
	Range    float64 `yaml:"range,omitempty" json:"range,omitempty"` // nmi

	// descent, landing
	WeightFraction float64 `yaml:"weight_fraction,omitempty" json:"weight_fraction,omitempty"`
	ReserveFuel    float64 `yaml:"reserve_fuel,omitempty" json:"reserve_fuel,omitempty"`

	InducedDragFactor float64 `yaml:"induced_drag_factor,omitempty" json:"induced_drag_factor,omitempty"`
}

// Build converts the spec into a validated Segment. The title defaults to
// the segment type.
func (s SegmentSpec) Build() (Segment, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(s.SegmentType)))
	title := s.Title
	if title == "" {
		title = string(kind)
	}

	seg := Segment{Title: title, FindRange: s.FindRange, RunSim: s.RunSim}
	switch kind {
	case KindTakeoff:
		seg.Params = Takeoff{ThrustSetting: s.ThrustSetting, Duration: s.Time}
	case KindClimb:
		seg.Params = Climb{
			StartVelocity:  s.StartVelocity,
			EndVelocity:    s.EndVelocity,
			StartAltitude:  s.StartAltitude,
			EndAltitude:    s.EndAltitude,
			BestClimb:      s.BestClimb,
			PowerAvailable: s.PowerAvailable,
		}
	case KindCruise:
		// Cruise always trims through the aerodynamic solver
		seg.RunSim = true
		seg.Params = Cruise{Mach: s.Mach, Altitude: s.Altitude, Range: s.Range}
	case KindDescent:
		seg.Params = Descent{WeightFraction: s.WeightFraction}
	case KindLoiter:
		seg.Params = Loiter{Altitude: s.Altitude, Duration: s.Time, Mach: s.Mach, InducedDragFactor: s.InducedDragFactor}
	case KindLanding:
		seg.Params = Landing{WeightFraction: s.WeightFraction, ReserveFraction: s.ReserveFuel}
	default:
		return Segment{}, &errdefs.UnsupportedVariantError{Category: "segment", Variant: s.SegmentType}
	}

	if err := seg.Validate(); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

// SpecOf converts a segment back to its declarative form.
func SpecOf(seg Segment) SegmentSpec {
	s := SegmentSpec{
		SegmentType: string(seg.Kind()),
		Title:       seg.Title,
		FindRange:   seg.FindRange,
		RunSim:      seg.RunSim,
	}
	switch p := seg.Params.(type) {
	case Takeoff:
		s.ThrustSetting = p.ThrustSetting
		s.Time = p.Duration
	case Climb:
		s.StartVelocity = p.StartVelocity
		s.EndVelocity = p.EndVelocity
		s.StartAltitude = p.StartAltitude
		s.EndAltitude = p.EndAltitude
		s.BestClimb = p.BestClimb
		s.PowerAvailable = p.PowerAvailable
	case Cruise:
		s.Mach = p.Mach
		s.Altitude = p.Altitude
		s.Range = p.Range
	case Descent:
		s.WeightFraction = p.WeightFraction
	case Loiter:
		s.Altitude = p.Altitude
		s.Time = p.Duration
		s.Mach = p.Mach
		s.InducedDragFactor = p.InducedDragFactor
	case Landing:
		s.WeightFraction = p.WeightFraction
		s.ReserveFuel = p.ReserveFraction
	}
	return s
}

// BuildProfile builds segments from specs in flight order. An empty list
// yields DefaultProfile.
func BuildProfile(specs []SegmentSpec) ([]Segment, error) {
	if len(specs) == 0 {
		return DefaultProfile(), nil
	}
	segments := make([]Segment, 0, len(specs))
	for i, spec := range specs {
		seg, err := spec.Build()
		if err != nil {
			return nil, &SegmentError{Index: i, Title: spec.Title, Kind: Kind(spec.SegmentType), Err: err}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Specs converts segments to their declarative form.
func Specs(segments []Segment) []SegmentSpec {
	out := make([]SegmentSpec, len(segments))
	for i, seg := range segments {
		out[i] = SpecOf(seg)
	}
	return out
}

// DefaultProfile is a transport mission: takeoff, climb to 10,000 ft,
// cruise at Mach 0.85 and 35,000 ft for as far as the fuel allows, descent,
// then landing with 10% reserve fuel.
func DefaultProfile() []Segment {
	return []Segment{
		{Title: "takeoff", Params: Takeoff{ThrustSetting: 75, Duration: 30}},
		{Title: "climb", Params: Climb{StartVelocity: 150, EndVelocity: 200, StartAltitude: 0, EndAltitude: 10000}},
		{Title: "cruise", FindRange: true, RunSim: true, Params: Cruise{Mach: 0.85, Altitude: 35000}},
		{Title: "descent", Params: Descent{WeightFraction: 0.95}},
		{Title: "landing", Params: Landing{WeightFraction: 0.9, ReserveFraction: 0.1}},
	}
}
