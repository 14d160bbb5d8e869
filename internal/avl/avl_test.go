package avl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
)

func testAircraft() *aircraft.Aircraft {
	return &aircraft.Aircraft{
		Title:         "T-100",
		Sref:          1300,
		Cref:          13,
		Bref:          112,
		CD0:           0.02,
		CruiseMach:    0.8,
		TakeoffWeight: 150000,
		FuelWeight:    40000,
		CG:            [3]float64{60, 0, 0},
		Inertia:       [3]float64{1e6, 2e6, 3e6},
		Surfaces: []aircraft.Surface{
			{Title: "Horizontal Tail", Type: aircraft.SurfaceHorizontal, Sections: []aircraft.Section{{Xle: 95, Chord: 8}, {Xle: 100, Yle: 20, Chord: 4}}},
			{Title: "Vertical Tail", Type: aircraft.SurfaceVertical, Sections: []aircraft.Section{{Xle: 92, Chord: 10}, {Xle: 100, Zle: 22, Chord: 5}}},
			{Title: "Main Wing", Type: aircraft.SurfaceWing, Airfoil: "sc2.dat", Sections: []aircraft.Section{{Xle: 40, Chord: 20, Incidence: 2}, {Xle: 60, Yle: 56, Chord: 5}}},
		},
	}
}

// writeSolver drops an executable shell script standing in for the solver.
func writeSolver(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-avl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write fake solver: %v", err)
	}
	return path
}

const emitResults = `
i=1
while [ $i -le 23 ]; do echo " header line $i" >> derivs.st; i=$((i+1)); done
echo "  CLtot =   0.52000     Cmtot = 0.00000" >> derivs.st
echo "  CDtot =   0.03100" >> derivs.st
`

func TestWriteGeometry(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGeometry(&buf, testAircraft(), 0.8); err != nil {
		t.Fatalf("WriteGeometry: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "AVL Geometry\n\n#Mach\n0.8\n") {
		t.Errorf("unexpected header:\n%s", out[:60])
	}
	if !strings.Contains(out, "1300   13   112\n") {
		t.Error("reference dimensions missing")
	}
	if !strings.Contains(out, "60     0     0\n") {
		t.Error("reference point missing")
	}

	wing := strings.Index(out, "SURFACE\nMain Wing")
	htail := strings.Index(out, "SURFACE\nHorizontal Tail")
	vtail := strings.Index(out, "SURFACE\nVertical Tail")
	if wing < 0 || htail < wing || vtail < htail {
		t.Errorf("surfaces out of order: wing=%d htail=%d vtail=%d", wing, htail, vtail)
	}

	if got := strings.Count(out, "YDUPLICATE"); got != 2 {
		t.Errorf("YDUPLICATE count = %d, want 2 (vertical tail excluded)", got)
	}
	if got := strings.Count(out, "Component\n1"); got != 1 {
		t.Errorf("wing grouping count = %d, want 1", got)
	}
	if got := strings.Count(out, "Control\n"+elevatorDirective); got != 2 {
		t.Errorf("elevator count = %d, want one per tail section", got)
	}
	if !strings.Contains(out, "AFILE\nsc2.dat") {
		t.Error("airfoil reference missing")
	}
	if !strings.Contains(out, "40  0  0  20  2\n") {
		t.Error("wing root section missing")
	}
}

func TestWriteGeometryRequiresMainWing(t *testing.T) {
	ac := testAircraft()
	ac.Surfaces = ac.Surfaces[:2]
	var ce *errdefs.ConfigurationError
	if err := WriteGeometry(&bytes.Buffer{}, ac, 0.8); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestWriteMass(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMass(&buf, 150000, [3]float64{60, 0, 1.5}, [3]float64{1e6, 2e6, 3e6}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), buf.String())
	}
	if lines[0] != lengthUnit || lines[1] != massUnit || lines[2] != timeUnit {
		t.Errorf("unit lines wrong: %q", lines[:3])
	}
	if fields := strings.Fields(lines[4]); len(fields) != 7 || fields[0] != "150000" {
		t.Errorf("mass line = %q", lines[4])
	}
}

func TestWriteCommandsConvertsUnits(t *testing.T) {
	fc := physics.Condition(0, 0.5)
	var buf bytes.Buffer
	files := caseFiles{Geometry: GeometryFile, Mass: MassFile, Results: ResultsFile}
	if err := WriteCommands(&buf, files, fc, 0.02, 0.001); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"LOAD plane.avl\n",
		"MASS plane.mass\n",
		"G 9.81\n",
		fmt.Sprintf("D %s\n", num(fc.Density*physics.SlugFt3ToKgM3)),
		fmt.Sprintf("V %s\n", num(fc.Mach*fc.SpeedOfSound*physics.FeetToMeters)),
		"D1 PM 0\n",
		"MN 0.5\n",
		fmt.Sprintf("CD %s\n", num(0.02+0.001)),
		"ST\nderivs.st\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("command script missing %q", want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "QUIT") {
		t.Error("command script does not end with QUIT")
	}
}

func TestParseCoefficients(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 23; i++ {
		fmt.Fprintf(&b, "line %d\n", i+1)
	}
	b.WriteString("  CLtot =   0.52000\n  CDtot =   0.03100\n trailing\n")

	c, err := ParseCoefficients(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if c.CL != 0.52 || c.CD != 0.031 {
		t.Errorf("got %+v", c)
	}
}

func TestParseCoefficientsFailures(t *testing.T) {
	short := strings.Repeat("x\n", 10)
	noNumber := strings.Repeat("x\n", 23) + "CLtot = ****\nCDtot = 0.1\n"

	for name, input := range map[string]string{"short": short, "no number": noNumber, "empty": ""} {
		t.Run(name, func(t *testing.T) {
			var sce *errdefs.SolverConvergenceError
			if _, err := ParseCoefficients(strings.NewReader(input)); !errors.As(err, &sce) {
				t.Fatalf("expected SolverConvergenceError, got %v", err)
			}
		})
	}
}

func TestTrim(t *testing.T) {
	exe := writeSolver(t, "cat > received.in\n"+emitResults)
	cfg := Config{Executable: exe, WorkRoot: t.TempDir(), Timeout: 10 * time.Second, KeepFiles: true}

	b, err := New(cfg, "trim", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ac := testAircraft()
	cl, cd, err := b.Trim(context.Background(), ac, 150000, physics.Condition(35000, 0.8), 0.02, 0.001)
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if cl != 0.52 || cd != 0.031 {
		t.Errorf("cl=%g cd=%g", cl, cd)
	}

	received, err := os.ReadFile(filepath.Join(b.Dir(), "case-0001", "received.in"))
	if err != nil {
		t.Fatalf("solver did not receive the command script: %v", err)
	}
	if !strings.HasPrefix(string(received), "LOAD plane.avl") {
		t.Errorf("unexpected stdin: %q", received[:20])
	}
	for _, name := range []string{GeometryFile, MassFile, CommandFile, ResultsFile} {
		if _, err := os.Stat(filepath.Join(b.Dir(), "case-0001", name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestTrimUsesCache(t *testing.T) {
	exe := writeSolver(t, emitResults)
	cache, err := NewCoefficientCache(8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Config{Executable: exe, WorkRoot: t.TempDir(), Timeout: 10 * time.Second}, "", cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	fc := physics.Condition(35000, 0.8)
	for i := 0; i < 3; i++ {
		if _, _, err := b.Trim(context.Background(), testAircraft(), 150000, fc, 0.02, 0); err != nil {
			t.Fatal(err)
		}
	}
	if b.Invocations() != 1 {
		t.Errorf("solver invoked %d times, want 1", b.Invocations())
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries", cache.Len())
	}
}

func TestTrimNoResultsIsConvergenceError(t *testing.T) {
	exe := writeSolver(t, "cat > /dev/null\n")
	b, err := New(Config{Executable: exe, WorkRoot: t.TempDir(), Timeout: 10 * time.Second, MaxRetries: 2}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	_, _, err = b.Trim(context.Background(), testAircraft(), 150000, physics.Condition(0, 0.3), 0.02, 0)
	var sce *errdefs.SolverConvergenceError
	if !errors.As(err, &sce) {
		t.Fatalf("expected SolverConvergenceError, got %v", err)
	}
	if b.Invocations() != 3 {
		t.Errorf("invocations = %d, want 3", b.Invocations())
	}
}

func TestTrimRetriesInFreshDirectory(t *testing.T) {
	// First attempt leaves a marker in the run directory and writes nothing
	exe := writeSolver(t, `
if [ ! -f ../attempted ]; then touch ../attempted; exit 1; fi
`+emitResults)
	b, err := New(Config{Executable: exe, WorkRoot: t.TempDir(), Timeout: 10 * time.Second, MaxRetries: 1}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	cl, _, err := b.Trim(context.Background(), testAircraft(), 150000, physics.Condition(0, 0.3), 0.02, 0)
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if cl != 0.52 || b.Invocations() != 2 {
		t.Errorf("cl=%g invocations=%d", cl, b.Invocations())
	}
}

func TestTrimTimeout(t *testing.T) {
	exe := writeSolver(t, "exec sleep 5\n")
	b, err := New(Config{Executable: exe, WorkRoot: t.TempDir(), Timeout: 100 * time.Millisecond, MaxRetries: 3}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	start := time.Now()
	_, _, err = b.Trim(context.Background(), testAircraft(), 150000, physics.Condition(0, 0.3), 0.02, 0)
	var see *errdefs.SolverExecutionError
	if !errors.As(err, &see) {
		t.Fatalf("expected SolverExecutionError, got %v", err)
	}
	if see.Timeout != 100*time.Millisecond {
		t.Errorf("timeout = %s", see.Timeout)
	}
	if b.Invocations() != 1 {
		t.Errorf("execution errors must not be retried, invocations = %d", b.Invocations())
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
}

func TestTrimMissingExecutable(t *testing.T) {
	b, err := New(Config{Executable: filepath.Join(t.TempDir(), "missing-avl"), WorkRoot: t.TempDir()}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	_, _, err = b.Trim(context.Background(), testAircraft(), 150000, physics.Condition(0, 0.3), 0.02, 0)
	var see *errdefs.SolverExecutionError
	if !errors.As(err, &see) {
		t.Fatalf("expected SolverExecutionError, got %v", err)
	}
}

func TestSeparateBridgesUseSeparateDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Executable: "avl", WorkRoot: root}
	a, err := New(cfg, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(cfg, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir() == b.Dir() {
		t.Fatal("bridges share a run directory")
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(a.Dir()); !os.IsNotExist(err) {
		t.Errorf("run directory not removed: %v", err)
	}
	b.Close()
}
