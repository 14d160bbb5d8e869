package casefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/internal/propulsion"
)

const aircraftYAML = `
aircraft:
  title: T-100
  sref: 1300
  cd0: 0.02
  cruise_altitude: 35000
  cruise_mach: 0.8
  weight_takeoff: 150000
  w_fuel: 40000
  propulsion:
    engine_type: turbofan
    thrust_sea_level: 27000
    sfc_sea_level: 0.4
  surfaces:
    - title: Main Wing
      type: wing
      sections:
        - {chord: 20}
        - {yle: 56, chord: 5}
`

func TestParseMappingProfileKeepsOrder(t *testing.T) {
	c, err := Parse([]byte(aircraftYAML + `
mission:
  departure:
    segment_type: takeoff
    thrust_setting: 80
    time: 40
  outbound:
    segment_type: cruise
    mach: 0.8
    altitude: 35000
    find_range: true
  arrival:
    segment_type: landing
    weight_fraction: 0.9
`))
	if err != nil {
		t.Fatal(err)
	}

	want := Profile{
		{SegmentType: "takeoff", Title: "departure", ThrustSetting: 80, Time: 40},
		{SegmentType: "cruise", Title: "outbound", Mach: 0.8, Altitude: 35000, FindRange: true},
		{SegmentType: "landing", Title: "arrival", WeightFraction: 0.9},
	}
	if diff := cmp.Diff(want, c.Mission); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSequenceProfile(t *testing.T) {
	c, err := Parse([]byte(aircraftYAML + `
mission:
  - segment_type: cruise
    mach: 0.8
    altitude: 35000
    find_range: true
  - segment_type: landing
    title: touchdown
    weight_fraction: 0.9
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Mission) != 2 || c.Mission[1].Title != "touchdown" {
		t.Errorf("unexpected profile: %+v", c.Mission)
	}
}

func TestParseJSON(t *testing.T) {
	c, err := Parse([]byte(`{"aircraft": {"title": "J", "sref": 500, "cg": [1, 2, 3]}, "mission": [{"segment_type": "descent", "weight_fraction": 0.9}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Aircraft.Sref != 500 || c.Aircraft.CG[2] != 3 || c.Mission[0].WeightFraction != 0.9 {
		t.Errorf("unexpected case: %+v", c)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte(aircraftYAML + "\nwingspan: 10\n")); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestParseRejectsUnknownSegmentFields(t *testing.T) {
	for name, mission := range map[string]string{
		"sequence": "\nmission:\n  - segment_type: descent\n    weight_fracton: 0.9\n",
		"mapping":  "\nmission:\n  down:\n    segment_type: descent\n    weight_fracton: 0.9\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(aircraftYAML + mission)); err == nil {
				t.Fatal("expected an error for a misspelt segment field")
			}
		})
	}
}

func TestBuildDefaultsProfile(t *testing.T) {
	c, err := Parse([]byte(aircraftYAML))
	if err != nil {
		t.Fatal(err)
	}
	ac, segments, err := c.Build()
	if err != nil {
		t.Fatal(err)
	}
	if ac.Propulsion == nil || ac.Propulsion.Family() != propulsion.FamilyTurbofan {
		t.Errorf("propulsion not prepared")
	}
	if diff := cmp.Diff(mission.DefaultProfile(), segments); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestBuildUnknownSegmentType(t *testing.T) {
	c, err := Parse([]byte(aircraftYAML + `
mission:
  - segment_type: glide
`))
	if err != nil {
		t.Fatal(err)
	}
	var uve *errdefs.UnsupportedVariantError
	if _, _, err := c.Build(); !errors.As(err, &uve) {
		t.Fatalf("expected UnsupportedVariantError, got %v", err)
	}
}

func TestLoadExampleCases(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Skip("no example cases")
	}
	for _, path := range matches {
		t.Run(filepath.Base(path), func(t *testing.T) {
			c, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := c.Build(); err != nil {
				t.Fatalf("Build: %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
