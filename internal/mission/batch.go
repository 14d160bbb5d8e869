package mission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/pkg/logger"
)

// Job is one independent aircraft/mission pair in a batch.
type Job struct {
	ID       string
	Aircraft *aircraft.Aircraft
	Segments []Segment
}

// JobResult is the outcome of a Job. Exactly one of Result and Err is set.
type JobResult struct {
	ID       string
	Aircraft *aircraft.Aircraft // the solved snapshot, Range set on success
	Result   *Result
	Err      error
}

// AeroFactory creates an aerodynamic solver private to one job, plus a
// function releasing it.
type AeroFactory func(runID string) (AeroSolver, func() error, error)

// SolveBatch solves independent jobs concurrently, at most parallelism at a
// time (0 means unlimited). Each job works on a deep copy of its aircraft and
// its own aerodynamic solver, so jobs share nothing. A failing job does not
// stop the others; results are returned in job order.
func SolveBatch(ctx context.Context, jobs []Job, parallelism int, newAero AeroFactory, log *logger.Logger) []JobResult {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Named("batch")

	results := make([]JobResult, len(jobs))

	eg, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}

	for i, job := range jobs {
		i, job := i, job
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		// Snapshot before handing to the goroutine
		ac, _ := deepcopy.Copy(job.Aircraft).(*aircraft.Aircraft)
		segments, _ := deepcopy.Copy(job.Segments).([]Segment)

		eg.Go(func() error {
			res, err := solveJob(ctx, job.ID, ac, segments, newAero, log)
			results[i] = JobResult{ID: job.ID, Aircraft: ac, Result: res, Err: err}
			if err != nil {
				log.Warn("Job failed", logger.String("job", job.ID), logger.Error(err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func solveJob(ctx context.Context, id string, ac *aircraft.Aircraft, segments []Segment, newAero AeroFactory, log *logger.Logger) (*Result, error) {
	if ac == nil {
		return nil, fmt.Errorf("job %s: no aircraft", id)
	}
	solver, err := NewSolver(ac, segments, log.With(logger.String("job", id)))
	if err != nil {
		return nil, err
	}
	if _, err := solver.Validate(); err != nil {
		return nil, err
	}

	aero, release, err := newAero(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create aerodynamic solver: %w", err)
	}
	defer func() {
		if release == nil {
			return
		}
		if err := release(); err != nil {
			log.Warn("Failed to release aerodynamic solver", logger.String("job", id), logger.Error(err))
		}
	}()

	return solver.Solve(ctx, aero)
}
