// Package avl drives the external vortex-lattice solver: it writes the
// geometry, mass and command files for one trim case, runs the executable
// in an isolated working directory and reads back the trimmed lift and drag
// coefficients.
package avl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/pkg/logger"
)

// File names inside a case directory
const (
	GeometryFile = "plane.avl"
	MassFile     = "plane.mass"
	CommandFile  = "input.in"
	ResultsFile  = "derivs.st"
)

// Config holds the bridge settings
type Config struct {
	Executable string        // Solver binary name or path
	WorkRoot   string        // Parent of per-run directories; empty uses the OS temp dir
	Timeout    time.Duration // Per-invocation limit
	MaxRetries int           // Extra attempts after a convergence failure
	KeepFiles  bool          // Leave case directories behind for inspection
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Executable: "avl",
		Timeout:    60 * time.Second,
		MaxRetries: 1,
	}
}

// Bridge runs trim cases for a single solve. Each invocation gets its own
// subdirectory below the run directory, so concurrent solves with separate
// bridges never share files.
type Bridge struct {
	cfg    Config
	runID  string
	dir    string
	cache  *CoefficientCache
	logger *logger.Logger

	mu      sync.Mutex
	counter int
	calls   int
}

// New creates a bridge with a fresh run directory. runID may be empty, in
// which case a random one is generated. cache may be nil.
func New(cfg Config, runID string, cache *CoefficientCache, log *logger.Logger) (*Bridge, error) {
	if cfg.Executable == "" {
		return nil, errdefs.Configf("solver executable not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if log == nil {
		log = logger.NewNop()
	}

	if cfg.WorkRoot != "" {
		if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create solver work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(cfg.WorkRoot, "run-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	return &Bridge{
		cfg:    cfg,
		runID:  runID,
		dir:    dir,
		cache:  cache,
		logger: log.Named("avl").With(logger.String("run_id", runID)),
	}, nil
}

// Dir is the run directory.
func (b *Bridge) Dir() string { return b.dir }

// RunID identifies the run this bridge belongs to.
func (b *Bridge) RunID() string { return b.runID }

// Invocations reports how many times the external solver has been launched.
func (b *Bridge) Invocations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Close removes the run directory unless files are being kept.
func (b *Bridge) Close() error {
	if b.cfg.KeepFiles {
		b.logger.Info("Keeping solver files", logger.String("dir", b.dir))
		return nil
	}
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// Trim returns the trimmed lift and drag coefficients of ac at the given
// weight and flight condition with the given parasite and wave drag. A
// convergence failure is retried in a fresh directory up to MaxRetries times;
// execution failures are returned immediately.
func (b *Bridge) Trim(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (float64, float64, error) {
	key := cacheKey(ac.Title, weight, fc.Altitude, fc.Mach, cd0, cdw)
	if c, ok := b.cache.get(key); ok {
		b.logger.Debug("Coefficient cache hit", logger.Float("weight", weight), logger.Float("mach", fc.Mach))
		return c.CL, c.CD, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		c, err := b.invoke(ctx, ac, weight, fc, cd0, cdw)
		if err == nil {
			b.cache.put(key, c)
			return c.CL, c.CD, nil
		}
		lastErr = err

		var sce *errdefs.SolverConvergenceError
		if !errors.As(err, &sce) {
			return 0, 0, err
		}
		b.logger.Warn("Solver did not converge",
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", b.cfg.MaxRetries+1),
			logger.Error(err))
	}
	return 0, 0, lastErr
}

// invoke runs one complete write, execute and read cycle in a new case
// directory.
func (b *Bridge) invoke(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (Coefficients, error) {
	b.counter++
	caseDir := filepath.Join(b.dir, fmt.Sprintf("case-%04d", b.counter))
	if err := os.Mkdir(caseDir, 0o755); err != nil {
		return Coefficients{}, fmt.Errorf("failed to create case directory: %w", err)
	}
	if !b.cfg.KeepFiles {
		defer os.RemoveAll(caseDir)
	}

	if err := b.writeCase(caseDir, ac, weight, fc, cd0, cdw); err != nil {
		return Coefficients{}, err
	}
	if err := b.run(ctx, caseDir); err != nil {
		return Coefficients{}, err
	}

	c, err := ReadCoefficients(filepath.Join(caseDir, ResultsFile))
	if err != nil {
		return Coefficients{}, err
	}

	b.logger.Debug("Trimmed",
		logger.String("case", filepath.Base(caseDir)),
		logger.Float("weight", weight),
		logger.Float("altitude", fc.Altitude),
		logger.Float("mach", fc.Mach),
		logger.Float("cl", c.CL),
		logger.Float("cd", c.CD))
	return c, nil
}

func (b *Bridge) writeCase(dir string, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) error {
	write := func(name string, fn func(f *os.File) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return f.Close()
	}

	if err := write(GeometryFile, func(f *os.File) error { return WriteGeometry(f, ac, fc.Mach) }); err != nil {
		return err
	}
	if err := write(MassFile, func(f *os.File) error { return WriteMass(f, weight, ac.CG, ac.Inertia) }); err != nil {
		return err
	}
	files := caseFiles{Geometry: GeometryFile, Mass: MassFile, Results: ResultsFile}
	return write(CommandFile, func(f *os.File) error { return WriteCommands(f, files, fc, cd0, cdw) })
}

// run launches the solver with the command script on stdin and blocks until
// it exits or the timeout expires. Console output is discarded.
func (b *Bridge) run(ctx context.Context, dir string) error {
	// A stale results file would make the solver prompt for overwrite
	if err := os.Remove(filepath.Join(dir, ResultsFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale results: %w", err)
	}

	script, err := os.Open(filepath.Join(dir, CommandFile))
	if err != nil {
		return fmt.Errorf("failed to open command script: %w", err)
	}
	defer script.Close()

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.cfg.Executable)
	cmd.Dir = dir
	cmd.Stdin = script
	cmd.WaitDelay = time.Second

	b.calls++
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	switch {
	case err == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return &errdefs.SolverExecutionError{Executable: b.cfg.Executable, Timeout: b.cfg.Timeout, Err: err}
	case ctx.Err() != nil:
		return &errdefs.SolverExecutionError{Executable: b.cfg.Executable, Err: ctx.Err()}
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return &errdefs.SolverExecutionError{Executable: b.cfg.Executable, Err: err}
		}
		// Non-zero exit alone is not fatal; the results file decides
		b.logger.Warn("Solver exited with non-zero status",
			logger.Int("exit_code", exitErr.ExitCode()),
			logger.Duration("elapsed", elapsed))
	}

	b.logger.Debug("Solver finished", logger.Duration("elapsed", elapsed))
	return nil
}
