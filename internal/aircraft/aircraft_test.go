package aircraft

import (
	"errors"
	"testing"

	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/propulsion"
)

func sample() *Aircraft {
	return &Aircraft{
		Title:          "T-100",
		Sref:           1300,
		Cref:           13,
		Bref:           112,
		CD0:            0.02,
		CDW:            0.001,
		CriticalMach:   0.8,
		CruiseAltitude: 35000,
		CruiseMach:     0.8,
		TakeoffWeight:  150000,
		FuelWeight:     40000,
		Surfaces: []Surface{
			{Title: "Vertical Tail", Type: SurfaceVertical, Sections: []Section{{Xle: 90}, {Xle: 100, Zle: 20}}},
			{Title: "Main Wing", Type: SurfaceWing, Sections: []Section{{Chord: 20}, {Yle: 56, Chord: 5}}},
		},
		Engine: propulsion.Config{EngineType: "turbofan", ThrustSeaLevel: 27000, SFCSeaLevel: 0.4},
	}
}

func TestPrepareBuildsPropulsion(t *testing.T) {
	a := sample()
	if err := a.Prepare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Propulsion == nil || a.Propulsion.Family() != propulsion.FamilyTurbofan {
		t.Fatalf("propulsion not built: %#v", a.Propulsion)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Aircraft)
	}{
		{"no main wing", func(a *Aircraft) { a.Surfaces = a.Surfaces[:1] }},
		{"fuel heavier than aircraft", func(a *Aircraft) { a.FuelWeight = a.TakeoffWeight }},
		{"zero sref", func(a *Aircraft) { a.Sref = 0 }},
		{"duplicate surface", func(a *Aircraft) { a.Surfaces = append(a.Surfaces, a.Surfaces[1]) }},
		{"single section", func(a *Aircraft) { a.Surfaces[0].Sections = a.Surfaces[0].Sections[:1] }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := sample()
			tc.mutate(a)
			var ce *errdefs.ConfigurationError
			if err := a.Validate(); !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestOrderedSurfacesPutsMainWingFirst(t *testing.T) {
	got := sample().OrderedSurfaces()
	if got[0].Title != MainWingTitle || got[1].Title != "Vertical Tail" {
		t.Errorf("unexpected order: %s, %s", got[0].Title, got[1].Title)
	}
}

func TestParasiteDragWaveOnsetAtCriticalMach(t *testing.T) {
	a := sample()
	if _, cdw := a.ParasiteDrag(10000, 0.4); cdw != 0 {
		t.Errorf("cdw below critical mach = %g, want 0", cdw)
	}
	if _, cdw := a.ParasiteDrag(35000, 0.85); cdw != a.CDW {
		t.Errorf("cdw above critical mach = %g, want %g", cdw, a.CDW)
	}
}

type isothermal struct{}

func (isothermal) Condition(altitude, mach float64) physics.FlightCondition {
	return physics.FlightCondition{Altitude: altitude, Mach: mach, Temperature: physics.T0}
}

func TestCruiseConditionUsesProvider(t *testing.T) {
	ac := sample()
	if got, want := ac.CruiseCondition(physics.StandardAtmosphere{}), physics.Condition(35000, ac.CruiseMach); got != want {
		t.Errorf("standard cruise condition = %+v, want %+v", got, want)
	}
	if got := ac.CruiseCondition(isothermal{}); got.Temperature != physics.T0 || got.Altitude != 35000 {
		t.Errorf("provider ignored: %+v", got)
	}
}
