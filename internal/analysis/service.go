// Package analysis keeps mission analysis sessions: one persistent solver per
// aircraft whose segment sequence can be edited and re-solved, with every
// solve recorded in the run history and streamed as progress events.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/avl"
	"github.com/yegors/aeromission/internal/casefile"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/internal/storage/sqlite"
	"github.com/yegors/aeromission/internal/websocket"
	"github.com/yegors/aeromission/pkg/logger"
)

// MaxSessions caps the number of concurrently open sessions
const MaxSessions = 64

// ErrSessionNotFound is returned for an unknown session id
var ErrSessionNotFound = errors.New("session not found")

// RunStore persists solve history
type RunStore interface {
	SaveRun(ctx context.Context, run *sqlite.RunRecord) error
	GetRun(ctx context.Context, id string) (*sqlite.RunRecord, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*sqlite.RunRecord, int, error)
	DeleteRun(ctx context.Context, id string) error
}

// Publisher receives solve progress events
type Publisher interface {
	Publish(messageType, sessionID, runID string, data map[string]any)
}

// AeroFactory creates the aerodynamic solver for one solve. The cache belongs
// to the session and outlives the solver.
type AeroFactory func(runID string, cache *avl.CoefficientCache) (mission.AeroSolver, func() error, error)

// AVLFactory returns an AeroFactory launching the external solver per cfg
func AVLFactory(cfg avl.Config, log *logger.Logger) AeroFactory {
	return func(runID string, cache *avl.CoefficientCache) (mission.AeroSolver, func() error, error) {
		b, err := avl.New(cfg, runID, cache, log)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}
}

// Options configures a Service
type Options struct {
	Store          RunStore
	Publisher      Publisher
	NewAero        AeroFactory
	CacheSize      int               // coefficient cache entries per session
	DefaultProfile []mission.Segment // used by sessions created without a mission

	// Render writes the text report of a solve. Defaults to mission.WriteReport.
	Render func(w io.Writer, res *mission.Result) error
}

// session is one aircraft under analysis
type session struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex // serialises edits and solves
	updatedAt time.Time
	solver    *mission.Solver
	cache     *avl.CoefficientCache
	last      *mission.Result
	lastRunID string
}

// SessionInfo is the externally visible state of a session
type SessionInfo struct {
	ID         string                `json:"id"`
	Aircraft   string                `json:"aircraft"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Segments   []mission.SegmentSpec `json:"segments"`
	CachedTrim int                   `json:"cached_trim_cases"`
	LastRunID  string                `json:"last_run_id,omitempty"`
	LastResult *mission.Result       `json:"last_result,omitempty"`
}

// Service manages analysis sessions
type Service struct {
	sessions map[string]*session
	mutex    sync.RWMutex
	opts     Options
	logger   *logger.Logger
}

// NewService creates a new analysis service
func NewService(opts Options, log *logger.Logger) (*Service, error) {
	if opts.NewAero == nil {
		return nil, errors.New("no aerodynamic solver factory configured")
	}
	if opts.Store == nil {
		return nil, errors.New("no run store configured")
	}
	if opts.Render == nil {
		opts.Render = mission.WriteReport
	}
	return &Service{
		sessions: make(map[string]*session),
		opts:     opts,
		logger:   log.Named("analysis"),
	}, nil
}

// CreateSession starts a session from a solve case
func (s *Service) CreateSession(c *casefile.Case) (*SessionInfo, error) {
	ac, segments, err := c.Build()
	if err != nil {
		return nil, err
	}
	if len(c.Mission) == 0 && len(s.opts.DefaultProfile) > 0 {
		segments = slices.Clone(s.opts.DefaultProfile)
	}
	return s.createSession(ac, segments)
}

func (s *Service) createSession(ac *aircraft.Aircraft, segments []mission.Segment) (*SessionInfo, error) {
	solver, err := mission.NewSolver(ac, segments, s.logger)
	if err != nil {
		return nil, err
	}
	cache, err := avl.NewCoefficientCache(s.opts.CacheSize)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
		solver:    solver,
		cache:     cache,
	}

	s.mutex.Lock()
	if len(s.sessions) >= MaxSessions {
		s.mutex.Unlock()
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", MaxSessions)
	}
	s.sessions[sess.id] = sess
	s.mutex.Unlock()

	s.logger.Info("Created session",
		logger.String("session", sess.id),
		logger.String("aircraft", ac.Title),
		logger.Int("segments", len(solver.Segments())))

	info := sess.info()
	return &info, nil
}

func (s *Service) get(id string) (*session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// GetSession returns the state of a session
func (s *Service) GetSession(id string) (*SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	info := sess.info()
	return &info, nil
}

// ListSessions returns all sessions, oldest first
func (s *Service) ListSessions() []SessionInfo {
	s.mutex.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mutex.RUnlock()

	slices.SortFunc(all, func(a, b *session) int {
		if c := a.createdAt.Compare(b.createdAt); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})

	out := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		sess.mu.Lock()
		info := sess.info()
		sess.mu.Unlock()
		info.LastResult = nil
		out = append(out, info)
	}
	return out
}

// RemoveSession deletes a session
func (s *Service) RemoveSession(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.logger.Info("Removed session", logger.String("session", id))
	return nil
}

// AddSegment appends spec to the session, or inserts it at *index
func (s *Service) AddSegment(id string, spec mission.SegmentSpec, index *int) (*SessionInfo, error) {
	return s.edit(id, func(solver *mission.Solver) error {
		seg, err := spec.Build()
		if err != nil {
			return err
		}
		if index != nil {
			return solver.Insert(*index, seg)
		}
		return solver.Add(seg)
	})
}

// ReplaceSegment swaps the segment at index
func (s *Service) ReplaceSegment(id string, index int, spec mission.SegmentSpec) (*SessionInfo, error) {
	return s.edit(id, func(solver *mission.Solver) error {
		seg, err := spec.Build()
		if err != nil {
			return err
		}
		return solver.Replace(index, seg)
	})
}

// RemoveSegment deletes the segment at index
func (s *Service) RemoveSegment(id string, index int) (*SessionInfo, error) {
	return s.edit(id, func(solver *mission.Solver) error {
		return solver.Remove(index)
	})
}

func (s *Service) edit(id string, fn func(*mission.Solver) error) (*SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(sess.solver); err != nil {
		return nil, err
	}
	sess.updatedAt = time.Now().UTC()
	s.logger.Debug("Edited session",
		logger.String("session", id),
		logger.Int("segments", len(sess.solver.Segments())))

	info := sess.info()
	return &info, nil
}

// Solve runs the weight sweep of a session. The run is persisted whether it
// succeeds or not; on failure both the failed run and the solve error are
// returned.
func (s *Service) Solve(ctx context.Context, id string) (*sqlite.RunRecord, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	solver := sess.solver
	ac := solver.Aircraft()
	runID := uuid.NewString()
	started := time.Now()
	log := s.logger.With(logger.String("session", id), logger.String("run_id", runID))

	s.publish(websocket.MessageTypeSolveStarted, id, runID, map[string]any{
		"aircraft": ac.Title,
		"segments": len(solver.Segments()),
	})

	run := &sqlite.RunRecord{
		ID:        runID,
		SessionID: id,
		Aircraft:  ac.Title,
		CreatedAt: started.UTC(),
	}

	res, calls, solveErr := s.solve(ctx, sess, runID)
	run.Duration = time.Since(started)
	run.SolverCalls = calls

	if solveErr != nil {
		return s.fail(ctx, run, log, solveErr)
	}

	var report strings.Builder
	if err := s.opts.Render(&report, res); err != nil {
		return s.fail(ctx, run, log, fmt.Errorf("failed to render report: %w", err))
	}
	run.Status = sqlite.StatusCompleted
	run.TotalRange = res.TotalRange
	run.FuelBurnt = res.FuelBurnt
	run.ReserveFuel = res.ReserveFuel
	run.Segments = res.Segments
	run.SegmentsCount = len(res.Segments)
	run.Report = report.String()

	sess.last = res
	sess.lastRunID = runID
	sess.updatedAt = time.Now().UTC()

	if err := s.opts.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return run, fmt.Errorf("failed to store run: %w", err)
	}

	s.publish(websocket.MessageTypeSolveCompleted, id, runID, map[string]any{
		"total_range": res.TotalRange,
		"fuel_burnt":  res.FuelBurnt,
		"duration_ms": run.Duration.Milliseconds(),
	})
	log.Info("Solve completed",
		logger.Float("range_nmi", res.TotalRange),
		logger.Int("solver_calls", calls),
		logger.Duration("elapsed", run.Duration))

	return run, nil
}

// fail records run as failed with cause, announces it and returns both
func (s *Service) fail(ctx context.Context, run *sqlite.RunRecord, log *logger.Logger, cause error) (*sqlite.RunRecord, error) {
	run.Status = sqlite.StatusFailed
	run.Error = cause.Error()
	log.Warn("Solve failed", logger.Error(cause))
	s.publish(websocket.MessageTypeSolveFailed, run.SessionID, run.ID, map[string]any{"error": cause.Error()})
	if err := s.opts.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Failed to store failed run", logger.Error(err))
	}
	return run, cause
}

func (s *Service) solve(ctx context.Context, sess *session, runID string) (*mission.Result, int, error) {
	aero, release, err := s.opts.NewAero(runID, sess.cache)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create aerodynamic solver: %w", err)
	}
	defer func() {
		if release == nil {
			return
		}
		if err := release(); err != nil {
			s.logger.Warn("Failed to release aerodynamic solver", logger.String("run_id", runID), logger.Error(err))
		}
	}()

	counted := &countingAero{inner: aero}
	sess.solver.SetObserver(mission.ObserverFunc(func(r mission.SegmentResult) {
		s.publish(websocket.MessageTypeSegmentSolved, sess.id, runID, segmentEvent(r))
	}))
	defer sess.solver.SetObserver(nil)

	res, err := sess.solver.Solve(ctx, counted)

	// Cache hits never reach the external solver
	calls := int(counted.calls.Load())
	if lc, ok := aero.(launchCounter); ok {
		calls = lc.Invocations()
	}
	return res, calls, err
}

// Run returns a stored run
func (s *Service) Run(ctx context.Context, id string) (*sqlite.RunRecord, error) {
	return s.opts.Store.GetRun(ctx, id)
}

// Runs returns a page of stored runs and the total count
func (s *Service) Runs(ctx context.Context, limit, offset int) ([]*sqlite.RunRecord, int, error) {
	return s.opts.Store.ListRuns(ctx, limit, offset)
}

// DeleteRun removes a stored run. A session whose last run it was keeps
// its in-memory result.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	if err := s.opts.Store.DeleteRun(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Run deleted", logger.String("run_id", id))
	return nil
}

func (s *Service) publish(messageType, sessionID, runID string, data map[string]any) {
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(messageType, sessionID, runID, data)
	}
}

func (sess *session) info() SessionInfo {
	return SessionInfo{
		ID:         sess.id,
		Aircraft:   sess.solver.Aircraft().Title,
		CreatedAt:  sess.createdAt,
		UpdatedAt:  sess.updatedAt,
		Segments:   mission.Specs(sess.solver.Segments()),
		CachedTrim: sess.cache.Len(),
		LastRunID:  sess.lastRunID,
		LastResult: sess.last,
	}
}

func segmentEvent(r mission.SegmentResult) map[string]any {
	return map[string]any{
		"index":           r.Index,
		"title":           r.Title,
		"kind":            string(r.Kind),
		"find_range":      r.FindRange,
		"wi":              r.Wi,
		"wn":              r.Wn,
		"weight_fraction": r.WeightFraction,
		"fuel_burnt":      r.FuelBurnt,
		"range":           r.Range,
	}
}

// launchCounter is implemented by solvers that can tell external launches
// apart from cached answers.
type launchCounter interface {
	Invocations() int
}

// countingAero counts trim requests made during one solve. It stands in for
// the launch count when the solver does not report one.
type countingAero struct {
	inner mission.AeroSolver
	calls atomic.Int64
}

func (c *countingAero) Trim(ctx context.Context, ac *aircraft.Aircraft, weight float64, fc physics.FlightCondition, cd0, cdw float64) (float64, float64, error) {
	c.calls.Add(1)
	return c.inner.Trim(ctx, ac, weight, fc, cd0, cdw)
}
