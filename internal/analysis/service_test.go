package analysis

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/avl"
	"github.com/yegors/aeromission/internal/casefile"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/storage/sqlite"
	"github.com/yegors/aeromission/internal/websocket"
	"github.com/yegors/aeromission/pkg/logger"
)

const testCase = `
aircraft:
  title: T-100
  sref: 1300
  cref: 13
  bref: 112
  cd0: 0.02
  cruise_altitude: 35000
  cruise_mach: 0.85
  weight_takeoff: 150000
  w_fuel: 40000
  cg: [60, 0, 0]
  inertia: [1.0e6, 2.0e6, 3.0e6]
  propulsion:
    engine_type: turbofan
    n_engines: 2
    thrust_sea_level: 27000
    sfc_sea_level: 0.4
  surfaces:
    - title: Main Wing
      type: wing
      sections:
        - {xle: 40, chord: 20, incidence: 2}
        - {xle: 60, yle: 56, chord: 5}
`

type fakeAero struct {
	cl, cd float64
	err    error
}

func (a *fakeAero) Trim(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (float64, float64, error) {
	if a.err != nil {
		return 0, 0, a.err
	}
	return a.cl, a.cd, nil
}

type event struct {
	kind, session, run string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(messageType, sessionID, runID string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{messageType, sessionID, runID})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

type harness struct {
	svc      *Service
	store    *sqlite.RunStorage
	events   *recorder
	released int
	aero     *fakeAero
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlite.NewRunStorage(filepath.Join(t.TempDir(), "runs.db"), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{store: store, events: &recorder{}, aero: &fakeAero{cl: 0.5, cd: 0.03}}
	h.svc, err = NewService(Options{
		Store:     store,
		Publisher: h.events,
		NewAero: func(runID string, cache *avl.CoefficientCache) (mission.AeroSolver, func() error, error) {
			return h.aero, func() error { h.released++; return nil }, nil
		},
		CacheSize: 16,
	}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func parseCase(t *testing.T, extra string) *casefile.Case {
	t.Helper()
	c, err := casefile.Parse([]byte(testCase + extra))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSolvePersistsAndPublishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	info, err := h.svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Segments) != len(mission.DefaultProfile()) {
		t.Fatalf("segments = %d, want the default profile", len(info.Segments))
	}

	run, err := h.svc.Solve(ctx, info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != sqlite.StatusCompleted || run.TotalRange <= 0 || run.SolverCalls != 1 {
		t.Errorf("run = %+v", run)
	}
	if !strings.Contains(run.Report, "Mission profile analysis for aircraft: T-100") {
		t.Error("report not rendered")
	}
	if h.released != 1 {
		t.Errorf("aerodynamic solver released %d times", h.released)
	}

	stored, err := h.svc.Run(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.SessionID != info.ID || len(stored.Segments) != 5 || stored.TotalRange != run.TotalRange {
		t.Errorf("stored run = %+v", stored)
	}

	got := h.events.kinds()
	want := []string{websocket.MessageTypeSolveStarted}
	for i := 0; i < 5; i++ {
		want = append(want, websocket.MessageTypeSegmentSolved)
	}
	want = append(want, websocket.MessageTypeSolveCompleted)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v", got)
	}
	for _, e := range h.events.events {
		if e.session != info.ID || e.run != run.ID {
			t.Errorf("event %+v not tagged with session and run", e)
		}
	}

	after, err := h.svc.GetSession(info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.LastRunID != run.ID || after.LastResult == nil || after.LastResult.TotalRange != run.TotalRange {
		t.Errorf("session not updated: %+v", after)
	}
}

func TestSolveFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.aero.err = &errdefs.SolverConvergenceError{Path: "derivs.st", Reason: "no results file written"}

	info, err := h.svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	run, err := h.svc.Solve(ctx, info.ID)
	var sce *errdefs.SolverConvergenceError
	if !errors.As(err, &sce) {
		t.Fatalf("expected SolverConvergenceError, got %v", err)
	}
	if run == nil || run.Status != sqlite.StatusFailed || run.Error == "" {
		t.Fatalf("run = %+v", run)
	}

	runs, total, err := h.svc.Runs(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || runs[0].Status != sqlite.StatusFailed {
		t.Errorf("runs = %+v", runs)
	}
	kinds := h.events.kinds()
	if kinds[len(kinds)-1] != websocket.MessageTypeSolveFailed {
		t.Errorf("events = %v", kinds)
	}
	if h.released != 1 {
		t.Errorf("aerodynamic solver released %d times", h.released)
	}
}

func TestReportFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc, err := NewService(Options{
		Store:     h.store,
		Publisher: h.events,
		NewAero:   h.svc.opts.NewAero,
		Render: func(io.Writer, *mission.Result) error {
			return errors.New("writer closed")
		},
	}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	info, err := svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	run, err := svc.Solve(ctx, info.ID)
	if err == nil || !strings.Contains(err.Error(), "writer closed") {
		t.Fatalf("expected render error, got %v", err)
	}
	if run == nil || run.Status != sqlite.StatusFailed {
		t.Fatalf("run = %+v", run)
	}

	stored, err := svc.Run(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != sqlite.StatusFailed || !strings.Contains(stored.Error, "writer closed") {
		t.Errorf("stored run = %+v", stored)
	}
	kinds := h.events.kinds()
	if kinds[len(kinds)-1] != websocket.MessageTypeSolveFailed {
		t.Errorf("events = %v", kinds)
	}
}

func TestSegmentEditing(t *testing.T) {
	h := newHarness(t)
	info, err := h.svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	id := info.ID

	// Hold before landing
	at := 4
	info, err = h.svc.AddSegment(id, mission.SegmentSpec{SegmentType: "loiter", Title: "hold", Altitude: 5000, Time: 600, InducedDragFactor: 0.05}, &at)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Segments) != 6 || info.Segments[4].Title != "hold" {
		t.Fatalf("segments = %+v", info.Segments)
	}

	info, err = h.svc.ReplaceSegment(id, 3, mission.SegmentSpec{SegmentType: "descent", WeightFraction: 0.97})
	if err != nil {
		t.Fatal(err)
	}
	if info.Segments[3].WeightFraction != 0.97 {
		t.Errorf("descent not replaced: %+v", info.Segments[3])
	}

	info, err = h.svc.RemoveSegment(id, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Segments) != 5 {
		t.Errorf("segments = %d after removal", len(info.Segments))
	}

	info, err = h.svc.AddSegment(id, mission.SegmentSpec{SegmentType: "descent", WeightFraction: 0.99}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if info.Segments[len(info.Segments)-1].SegmentType != "descent" {
		t.Errorf("segment not appended")
	}

	var uve *errdefs.UnsupportedVariantError
	if _, err := h.svc.AddSegment(id, mission.SegmentSpec{SegmentType: "taxi"}, nil); !errors.As(err, &uve) {
		t.Errorf("expected UnsupportedVariantError, got %v", err)
	}
	var ce *errdefs.ConfigurationError
	if _, err := h.svc.RemoveSegment(id, 42); !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
	if _, err := h.svc.RemoveSegment("nope", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	a, err := h.svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	b, err := h.svc.CreateSession(parseCase(t, `
mission:
  - segment_type: cruise
    mach: 0.8
    altitude: 30000
    find_range: true
  - segment_type: landing
    weight_fraction: 0.95
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Segments) != 2 {
		t.Errorf("explicit mission ignored: %d segments", len(b.Segments))
	}

	list := h.svc.ListSessions()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("list = %+v", list)
	}

	if err := h.svc.RemoveSession(a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.GetSession(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := h.svc.RemoveSession(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second removal, got %v", err)
	}
}

func TestDefaultProfileOption(t *testing.T) {
	h := newHarness(t)
	h.svc.opts.DefaultProfile = []mission.Segment{
		{Title: "cruise", FindRange: true, RunSim: true, Params: mission.Cruise{Mach: 0.8, Altitude: 33000}},
		{Title: "landing", Params: mission.Landing{WeightFraction: 0.95, ReserveFraction: 0.05}},
	}
	info, err := h.svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Segments) != 2 || info.Segments[0].Altitude != 33000 {
		t.Errorf("configured default profile not used: %+v", info.Segments)
	}
}

func TestSolveWithAVLBridgeUsesSessionCache(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "fake-avl")
	script := `#!/bin/sh
i=1
while [ $i -le 23 ]; do echo " header line $i" >> derivs.st; i=$((i+1)); done
echo "  CLtot =   0.50000" >> derivs.st
echo "  CDtot =   0.03000" >> derivs.st
`
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	store, err := sqlite.NewRunStorage(filepath.Join(dir, "runs.db"), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := avl.DefaultConfig()
	cfg.Executable = exe
	cfg.WorkRoot = filepath.Join(dir, "work")
	svc, err := NewService(Options{
		Store:     store,
		NewAero:   AVLFactory(cfg, logger.NewNop()),
		CacheSize: 8,
	}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	info, err := svc.CreateSession(parseCase(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	first, err := svc.Solve(context.Background(), info.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Solve(context.Background(), info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalRange != second.TotalRange {
		t.Errorf("solves differ: %g vs %g", first.TotalRange, second.TotalRange)
	}

	// The second solve is answered from the session cache
	if first.SolverCalls != 1 || second.SolverCalls != 0 {
		t.Errorf("solver launches = %d then %d, want 1 then 0", first.SolverCalls, second.SolverCalls)
	}

	after, _ := svc.GetSession(info.ID)
	if after.CachedTrim != 1 {
		t.Errorf("cached trim cases = %d, want 1", after.CachedTrim)
	}

	// Run directories are cleaned up
	entries, err := os.ReadDir(cfg.WorkRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d run directories left behind", len(entries))
	}
}
