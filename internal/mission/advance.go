package mission

import (
	"context"
	"math"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/propulsion"
)

const (
	// Simplified climb drag when the aerodynamic solver is not queried
	climbDragFactor = 1.87

	// Propeller takeoff runs at a richer mixture than rated
	takeoffFuelRateFactor = 1.4

	// Fixed descent rate (ft/min)
	descentRate = 5000.0

	// DefaultLoiterMach is used for the loiter drag lookup when none is set.
	DefaultLoiterMach = 0.25

	// Loiter is flown at this true airspeed (ft/s) regardless of the
	// minimum-drag speed, which is still reported.
	loiterVelocity = 200.0

	// Shaft power to thrust conversion used by the climb power override
	powerToLbfFtPerSec = 0.453592 / 0.0009478171
)

// Direction tells Advance which boundary weight it was given.
type Direction int

const (
	// Forward: the weight is the entry weight wi.
	Forward Direction = iota
	// Backward: the weight is the exit weight wn.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// AeroSolver returns trimmed lift and drag coefficients for an aircraft at a
// weight and flight condition with the given parasite and wave drag.
type AeroSolver interface {
	Trim(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (cl, cd float64, err error)
}

// Env is what a segment computation may read besides its own parameters.
type Env struct {
	Aircraft   *aircraft.Aircraft
	Aero       AeroSolver
	Atmosphere physics.Provider

	// InducedDrag is the K of the nearest climb flown before the segment,
	// or 0 when there is none.
	InducedDrag float64
}

func (e Env) atmosphere() physics.Provider {
	if e.Atmosphere == nil {
		return physics.StandardAtmosphere{}
	}
	return e.Atmosphere
}

// Advance computes one segment from a single boundary weight. In the Forward
// direction weight is the entry weight and the exit weight is derived; in the
// Backward direction the reverse. The find-range cruise cannot be advanced;
// use SetRange.
func Advance(ctx context.Context, env Env, seg Segment, weight float64, dir Direction) (SegmentResult, error) {
	if weight <= 0 || math.IsNaN(weight) {
		return SegmentResult{}, errdefs.Domain("boundary weight", weight, "must be positive")
	}

	var (
		r   SegmentResult
		err error
	)
	switch p := seg.Params.(type) {
	case Takeoff:
		r, err = advanceTakeoff(env, p, weight, dir)
	case Climb:
		r, err = advanceClimb(ctx, env, seg, p, weight, dir)
	case Cruise:
		if seg.FindRange {
			return SegmentResult{}, errdefs.Configf("segment %q: the find-range cruise is resolved by SetRange", seg.Title)
		}
		r, err = advanceCruise(ctx, env, p, weight, dir)
	case Descent:
		r, err = advanceDescent(env, p, weight, dir)
	case Loiter:
		r, err = advanceLoiter(env, p, weight, dir)
	case Landing:
		r, err = advanceLanding(env, p)
	default:
		return SegmentResult{}, &errdefs.UnsupportedVariantError{Category: "segment", Variant: string(seg.Kind()), Op: "advance"}
	}
	if err != nil {
		return SegmentResult{}, err
	}

	r.Title = seg.Title
	r.Kind = seg.Kind()
	return r, nil
}

// SetRange resolves the find-range segment between the entry weight reached
// by the forward pass and the exit weight reached by the backward pass.
func SetRange(ctx context.Context, env Env, seg Segment, wi, wn float64) (SegmentResult, error) {
	p, ok := seg.Params.(Cruise)
	if !ok {
		return SegmentResult{}, &errdefs.UnsupportedVariantError{Category: "segment", Variant: string(seg.Kind()), Op: "set_range"}
	}
	if wi <= 0 || wn <= 0 {
		return SegmentResult{}, errdefs.Domain("boundary weight", math.Min(wi, wn), "must be positive")
	}
	wf := wn / wi
	if err := checkFraction(wf); err != nil {
		return SegmentResult{}, err
	}

	a, err := cruiseAero(ctx, env, p, wi)
	if err != nil {
		return SegmentResult{}, err
	}

	sfc := a.SFC / physics.SecondsPerHour
	rangeFt := math.Log(wi/wn) * a.fc.Velocity * a.LiftToDrag / sfc

	r := a.result()
	r.Title = seg.Title
	r.Kind = KindCruise
	r.FindRange = true
	r.Wi = wi
	r.Wn = wn
	r.WeightFraction = wf
	r.FuelBurnt = wi - wn
	r.Range = physics.FeetToNM(rangeFt)
	r.Time = rangeFt / a.fc.Velocity
	r.FuelFlow = a.SFC * a.Thrust
	return r, nil
}

func checkFraction(wf float64) error {
	if math.IsNaN(wf) || wf <= 0 || wf > 1 {
		return errdefs.Domain("weight_fraction", wf, "must lie in (0, 1]")
	}
	return nil
}

// boundaries completes (wi, wn) from one boundary and the weight fraction.
func boundaries(weight, wf float64, dir Direction) (wi, wn float64) {
	if dir == Backward {
		return weight / wf, weight
	}
	return weight, weight * wf
}

func advanceTakeoff(env Env, p Takeoff, weight float64, dir Direction) (SegmentResult, error) {
	engine := env.Aircraft.Propulsion

	var req propulsion.Request
	rated, isRated := engine.(propulsion.Rated)
	if isRated && engine.Family() == propulsion.FamilyPropeller {
		req.HorsePower = rated.RatedHorsePower()
		req.FuelConsumptionRate = rated.RatedFuelConsumptionRate() * takeoffFuelRateFactor
	}

	_, maxThrust, err := engine.AnalyzePerformance(0, 0, req)
	if err != nil {
		return SegmentResult{}, err
	}
	thrust := p.ThrustSetting / 100 * maxThrust
	if req.HorsePower == 0 {
		req.Thrust = thrust
	}
	sfc, _, err := engine.AnalyzePerformance(0, 0, req)
	if err != nil {
		return SegmentResult{}, err
	}

	fuelFlow := sfc * thrust // lb/hr
	fuel := fuelFlow * p.Duration / physics.SecondsPerHour

	var wi, wn float64
	if dir == Backward {
		wn = weight
		wi = wn + fuel
	} else {
		wi = weight
		wn = wi - fuel
	}
	wf := wn / wi
	if err := checkFraction(wf); err != nil {
		return SegmentResult{}, err
	}

	return SegmentResult{
		Wi:             wi,
		Wn:             wn,
		WeightFraction: wf,
		FuelBurnt:      fuel,
		Time:           p.Duration,
		Thrust:         thrust,
		MaxThrust:      maxThrust,
		SFC:            sfc,
		FuelFlow:       fuelFlow,
	}, nil
}

// climbState is the aerodynamic state of a climb. It is evaluated at the
// takeoff weight, so it does not depend on the segment's boundary weights.
type climbState struct {
	fc     physics.FlightCondition
	v, h   float64
	cl, cd float64
	k      float64
}

func climbAero(ctx context.Context, env Env, seg Segment, p Climb) (climbState, error) {
	ac := env.Aircraft
	atm := env.atmosphere()

	v := 0.293*p.StartVelocity + 0.707*p.EndVelocity
	h := 0.5 * (p.StartAltitude + p.EndAltitude)
	fc := physics.ConditionAtVelocity(atm, h, v)
	q := fc.DynamicPressure

	var cl, cd float64
	if seg.RunSim {
		if env.Aero == nil {
			return climbState{}, errdefs.Configf("segment %q requires an aerodynamic solver", seg.Title)
		}
		cd0, cdw := ac.ParasiteDrag(h, fc.Mach)
		var err error
		cl, cd, err = env.Aero.Trim(ctx, ac, ac.TakeoffWeight, fc, cd0, cdw)
		if err != nil {
			return climbState{}, err
		}
	} else {
		cl = ac.TakeoffWeight / (q * ac.Sref)
		cd = ac.CD0 * climbDragFactor
	}
	if cl <= 0 {
		return climbState{}, errdefs.Domain("cl", cl, "trimmed lift must be positive")
	}
	if cd <= 0 {
		return climbState{}, errdefs.Domain("cd", cd, "trimmed drag must be positive")
	}

	// Parasite drag referenced to the cruise dynamic pressure
	cd0Scaled := ac.CD0 * ac.CruiseCondition(atm).DynamicPressure / q

	return climbState{
		fc: fc,
		v:  v,
		h:  h,
		cl: cl,
		cd: cd,
		k:  (cd - cd0Scaled) / (cl * cl),
	}, nil
}

func advanceClimb(ctx context.Context, env Env, seg Segment, p Climb, weight float64, dir Direction) (SegmentResult, error) {
	ac := env.Aircraft

	st, err := climbAero(ctx, env, seg, p)
	if err != nil {
		return SegmentResult{}, err
	}
	fc, v, h, cl, cd, k := st.fc, st.v, st.h, st.cl, st.cd, st.k

	drag := cd * fc.DynamicPressure * ac.Sref
	deltaHe := (p.EndAltitude + p.EndVelocity*p.EndVelocity/(2*physics.G)) - p.StartVelocity*p.StartVelocity/(2*physics.G)

	sfc, maxThrust, err := ac.Propulsion.AnalyzePerformance(h, fc.Mach, propulsion.Request{Thrust: drag})
	if err != nil {
		return SegmentResult{}, err
	}
	if p.PowerAvailable > 0 {
		maxThrust = p.PowerAvailable * powerToLbfFtPerSec / v
	}
	if maxThrust <= drag {
		return SegmentResult{}, errdefs.Domain("max_thrust", maxThrust, "available thrust does not exceed drag")
	}

	wf := math.Exp(-(sfc / physics.SecondsPerHour) * deltaHe / (v * (1 - drag/maxThrust)))
	if err := checkFraction(wf); err != nil {
		return SegmentResult{}, err
	}
	wi, wn := boundaries(weight, wf, dir)

	sinGamma := maxThrust/wi - drag/wi
	if sinGamma > 1 {
		return SegmentResult{}, errdefs.Domain("sin(climb_angle)", sinGamma, "excess thrust exceeds weight")
	}
	angle := math.Asin(sinGamma)
	roc := v * math.Sin(angle)
	if roc <= 0 || math.IsNaN(roc) {
		return SegmentResult{}, errdefs.Domain("rate_of_climb", roc, "must be positive")
	}
	t := (p.EndAltitude - p.StartAltitude) / roc

	return SegmentResult{
		Wi:             wi,
		Wn:             wn,
		WeightFraction: wf,
		FuelBurnt:      wi - wn,
		Time:           t,
		Range:          physics.FeetToNM(v * t),
		Altitude:       h,
		Mach:           fc.Mach,
		Velocity:       v,
		CL:             cl,
		CD:             cd,
		LiftToDrag:     cl / cd,
		Thrust:         drag,
		MaxThrust:      maxThrust,
		SFC:            sfc,
		FuelFlow:       sfc * drag,
		InducedDrag:    k,
		RateOfClimb:    roc,
		ClimbAngle:     angle * 180 / math.Pi,
	}, nil
}

// cruiseState is the aerodynamic and propulsive state shared by the fixed
// and find-range cruise computations.
type cruiseState struct {
	fc         physics.FlightCondition
	CL, CD     float64
	LiftToDrag float64
	Thrust     float64
	MaxThrust  float64
	SFC        float64
}

func (c cruiseState) result() SegmentResult {
	return SegmentResult{
		Altitude:   c.fc.Altitude,
		Mach:       c.fc.Mach,
		Velocity:   c.fc.Velocity,
		CL:         c.CL,
		CD:         c.CD,
		LiftToDrag: c.LiftToDrag,
		Thrust:     c.Thrust,
		MaxThrust:  c.MaxThrust,
		SFC:        c.SFC,
	}
}

func cruiseAero(ctx context.Context, env Env, p Cruise, weight float64) (cruiseState, error) {
	ac := env.Aircraft
	if env.Aero == nil {
		return cruiseState{}, errdefs.Configf("cruise requires an aerodynamic solver")
	}

	fc := env.atmosphere().Condition(p.Altitude, p.Mach)
	cd0, cdw := ac.ParasiteDrag(p.Altitude, p.Mach)
	cl, cd, err := env.Aero.Trim(ctx, ac, weight, fc, cd0, cdw)
	if err != nil {
		return cruiseState{}, err
	}
	if cl <= 0 || cd <= 0 {
		return cruiseState{}, errdefs.Domain("lift_to_drag", cl/cd, "trimmed lift and drag must be positive")
	}

	drag := cd * fc.DynamicPressure * ac.Sref
	sfc, maxThrust, err := ac.Propulsion.AnalyzePerformance(p.Altitude, p.Mach, propulsion.Request{Thrust: drag})
	if err != nil {
		return cruiseState{}, err
	}
	if sfc <= 0 {
		return cruiseState{}, errdefs.Domain("sfc", sfc, "must be positive")
	}

	return cruiseState{
		fc:         fc,
		CL:         cl,
		CD:         cd,
		LiftToDrag: cl / cd,
		Thrust:     drag,
		MaxThrust:  maxThrust,
		SFC:        sfc,
	}, nil
}

func advanceCruise(ctx context.Context, env Env, p Cruise, weight float64, dir Direction) (SegmentResult, error) {
	a, err := cruiseAero(ctx, env, p, weight)
	if err != nil {
		return SegmentResult{}, err
	}

	rangeFt := physics.NMToFeet(p.Range)
	wf := math.Exp(-rangeFt * a.SFC / physics.SecondsPerHour / (a.fc.Velocity * a.LiftToDrag))
	if err := checkFraction(wf); err != nil {
		return SegmentResult{}, err
	}
	wi, wn := boundaries(weight, wf, dir)

	r := a.result()
	r.Wi = wi
	r.Wn = wn
	r.WeightFraction = wf
	r.FuelBurnt = wi - wn
	r.Range = p.Range
	r.Time = rangeFt / a.fc.Velocity
	r.FuelFlow = a.SFC * a.Thrust
	return r, nil
}

func advanceDescent(env Env, p Descent, weight float64, dir Direction) (SegmentResult, error) {
	if err := checkFraction(p.WeightFraction); err != nil {
		return SegmentResult{}, err
	}
	wi, wn := boundaries(weight, p.WeightFraction, dir)

	ac := env.Aircraft
	cruise := ac.CruiseCondition(env.atmosphere())
	alt := 0.5 * cruise.Altitude
	v := 0.5 * cruise.Velocity
	fc := physics.ConditionAtVelocity(env.atmosphere(), alt, v)

	// Descend from cruise altitude at a constant rate
	hours := cruise.Altitude / (descentRate * 60)

	return SegmentResult{
		Wi:             wi,
		Wn:             wn,
		WeightFraction: p.WeightFraction,
		FuelBurnt:      wi - wn,
		Time:           hours * physics.SecondsPerHour,
		Range:          v * physics.FtPerSecToKts * hours,
		Altitude:       alt,
		Mach:           fc.Mach,
		Velocity:       v,
	}, nil
}

func advanceLoiter(env Env, p Loiter, weight float64, dir Direction) (SegmentResult, error) {
	ac := env.Aircraft
	atm := env.atmosphere()

	k := p.InducedDragFactor
	if k == 0 {
		k = env.InducedDrag
	}
	if k <= 0 {
		return SegmentResult{}, errdefs.Configf("loiter needs an induced-drag factor: place a climb before it or set induced_drag_factor")
	}

	mach := p.Mach
	if mach == 0 {
		mach = DefaultLoiterMach
	}
	cd0, _ := ac.ParasiteDrag(p.Altitude, mach)
	rho := atm.Condition(p.Altitude, mach).Density
	vMinDrag := math.Sqrt(2 * weight / (rho * ac.Sref) * math.Sqrt(k/(3*cd0)))

	fc := physics.ConditionAtVelocity(atm, p.Altitude, loiterVelocity)
	q := fc.DynamicPressure

	cl := weight / (q * ac.Sref)
	cd := cd0 + k*cl*cl
	drag := cd * q * ac.Sref
	ld := cl / cd

	sfc, maxThrust, err := ac.Propulsion.AnalyzePerformance(p.Altitude, fc.Mach, propulsion.Request{Thrust: drag})
	if err != nil {
		return SegmentResult{}, err
	}

	wf := math.Exp(-p.Duration * sfc / physics.SecondsPerHour / ld)
	if err := checkFraction(wf); err != nil {
		return SegmentResult{}, err
	}
	wi, wn := boundaries(weight, wf, dir)

	return SegmentResult{
		Wi:              wi,
		Wn:              wn,
		WeightFraction:  wf,
		FuelBurnt:       wi - wn,
		Time:            p.Duration,
		Range:           physics.FeetToNM(p.Duration * fc.Velocity),
		Altitude:        p.Altitude,
		Mach:            fc.Mach,
		Velocity:        fc.Velocity,
		CL:              cl,
		CD:              cd,
		LiftToDrag:      ld,
		Thrust:          drag,
		MaxThrust:       maxThrust,
		SFC:             sfc,
		FuelFlow:        sfc * drag,
		InducedDrag:     k,
		MinDragVelocity: vMinDrag,
	}, nil
}

// advanceLanding ignores the boundary weight: the exit weight is always the
// empty landing weight plus reserve fuel.
func advanceLanding(env Env, p Landing) (SegmentResult, error) {
	if err := checkFraction(p.WeightFraction); err != nil {
		return SegmentResult{}, err
	}
	ac := env.Aircraft

	reserve := ac.FuelWeight * p.ReserveFraction
	wn := ac.TakeoffWeight - ac.FuelWeight + reserve
	wi := wn / p.WeightFraction

	return SegmentResult{
		Wi:             wi,
		Wn:             wn,
		WeightFraction: p.WeightFraction,
		FuelBurnt:      wi - wn,
		ReserveFuel:    reserve,
	}, nil
}
