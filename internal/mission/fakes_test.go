package mission

import (
	"context"
	"sync"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/propulsion"
)

// fakeEngine returns fixed performance figures and records requests.
// Exported fields survive the deep copy taken by SolveBatch.
type fakeEngine struct {
	Fam       propulsion.Family
	SFC       float64
	MaxThrust float64

	mu       sync.Mutex
	requests []propulsion.Request
}

func (e *fakeEngine) Family() propulsion.Family {
	if e.Fam == "" {
		return propulsion.FamilyTurbofan
	}
	return e.Fam
}

func (e *fakeEngine) AnalyzePerformance(altitude, mach float64, req propulsion.Request) (float64, float64, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	return e.SFC, e.MaxThrust, nil
}

// fakeProp is a propeller engine with rated values.
type fakeProp struct {
	fakeEngine
	hp, rate float64
}

func (p *fakeProp) RatedHorsePower() float64          { return p.hp }
func (p *fakeProp) RatedFuelConsumptionRate() float64 { return p.rate }

// fakeAero returns constant coefficients and records the trim weights.
type fakeAero struct {
	cl, cd float64
	err    error

	mu      sync.Mutex
	weights []float64
}

func (a *fakeAero) Trim(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.weights = append(a.weights, weight)
	if a.err != nil {
		return 0, 0, a.err
	}
	return a.cl, a.cd, nil
}

func (a *fakeAero) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.weights)
}

func testAircraft(engine propulsion.Model) *aircraft.Aircraft {
	return &aircraft.Aircraft{
		Title:          "T-100",
		Sref:           1300,
		Cref:           13,
		Bref:           112,
		CD0:            0.02,
		CruiseAltitude: 35000,
		CruiseMach:     0.85,
		TakeoffWeight:  150000,
		FuelWeight:     40000,
		Surfaces: []aircraft.Surface{
			{Title: "Main Wing", Type: aircraft.SurfaceWing, Sections: []aircraft.Section{{Chord: 20}, {Yle: 56, Chord: 5}}},
		},
		Propulsion: engine,
	}
}

func testEnv(engine propulsion.Model, aero AeroSolver) Env {
	return Env{Aircraft: testAircraft(engine), Aero: aero}
}

func defaultEngine() *fakeEngine {
	return &fakeEngine{SFC: 0.6, MaxThrust: 60000}
}

func defaultAero() *fakeAero {
	return &fakeAero{cl: 0.5, cd: 0.03}
}
