// Command mission solves one or more case files in parallel and prints or
// writes their mission reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/yegors/aeromission/internal/avl"
	"github.com/yegors/aeromission/internal/casefile"
	"github.com/yegors/aeromission/internal/config"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/pkg/logger"
)

type caseList []string

func (c *caseList) String() string     { return strings.Join(*c, ",") }
func (c *caseList) Set(v string) error { *c = append(*c, v); return nil }

func main() {
	var cases caseList
	configPath := flag.String("config", "", "Path to configuration file (defaults are used when none is found)")
	flag.Var(&cases, "case", "Case file to solve (repeatable); remaining arguments are treated as case files too")
	reportDir := flag.String("report", "", "Directory to write <aircraft>.txt reports to (default: print to stdout)")
	parallel := flag.Int("parallel", -1, "Maximum concurrent solves (default from config)")
	avlPath := flag.String("avl", "", "Solver executable (overrides config)")
	keepFiles := flag.Bool("keep-files", false, "Keep solver working directories")
	flag.Parse()
	cases = append(cases, flag.Args()...)

	if len(cases) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mission [-config file] [-report dir] [-parallel n] -case file [-case file ...]")
		os.Exit(2)
	}

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		if *configPath != "" {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if *avlPath != "" {
		cfg.Solver.AVLPath = *avlPath
	}
	if *keepFiles {
		cfg.Solver.KeepFiles = true
	}
	if *parallel >= 0 {
		cfg.Mission.Parallelism = *parallel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jobs := make([]mission.Job, 0, len(cases))
	for _, path := range cases {
		c, err := casefile.Load(path)
		if err != nil {
			log.Fatal("Failed to load case", logger.String("path", path), logger.Error(err))
		}
		ac, segments, err := c.Build()
		if err != nil {
			log.Fatal("Invalid case", logger.String("path", path), logger.Error(err))
		}
		jobs = append(jobs, mission.Job{ID: filepath.Base(path), Aircraft: ac, Segments: segments})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	avlCfg := cfg.AVL()
	newAero := func(runID string) (mission.AeroSolver, func() error, error) {
		cache, err := avl.NewCoefficientCache(cfg.Solver.CoefficientCacheSize)
		if err != nil {
			return nil, nil, err
		}
		b, err := avl.New(avlCfg, runID, cache, log)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}

	results := mission.SolveBatch(ctx, jobs, cfg.Mission.Parallelism, newAero, log)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.ID, r.Err)
			continue
		}
		if err := emit(*reportDir, r); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.ID, err)
			continue
		}
		fmt.Fprintln(os.Stderr, mission.Summary(r.Result))
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func emit(dir string, r mission.JobResult) error {
	if dir == "" {
		return mission.WriteReport(os.Stdout, r.Result)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	name := strings.TrimSuffix(r.ID, filepath.Ext(r.ID)) + ".txt"
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := mission.WriteReport(f, r.Result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
