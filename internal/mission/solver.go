package mission

import (
	"context"
	"slices"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/internal/physics"
	"github.com/yegors/aeromission/pkg/logger"
)

// Observer is notified as each segment is solved. Segments are reported in
// sweep order: the forward pass, then the backward pass, then the
// find-range segment.
type Observer interface {
	SegmentSolved(r SegmentResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r SegmentResult)

// SegmentSolved implements Observer.
func (f ObserverFunc) SegmentSolved(r SegmentResult) { f(r) }

// Solver owns the segment sequence of one aircraft. The sequence can be
// edited between solves; every solve recomputes all segments. A Solver is
// not safe for concurrent use.
type Solver struct {
	aircraft   *aircraft.Aircraft
	atmosphere physics.Provider
	segments   []Segment
	observer   Observer
	logger     *logger.Logger
}

// NewSolver prepares the aircraft and creates a solver over segments. An
// empty segment list starts from DefaultProfile.
func NewSolver(ac *aircraft.Aircraft, segments []Segment, log *logger.Logger) (*Solver, error) {
	if ac == nil {
		return nil, errdefs.Configf("no aircraft given")
	}
	if err := ac.Prepare(); err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		segments = DefaultProfile()
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Solver{
		aircraft:   ac,
		atmosphere: physics.StandardAtmosphere{},
		segments:   slices.Clone(segments),
		logger:     log.Named("mission").With(logger.String("aircraft", ac.Title)),
	}, nil
}

// Aircraft returns the aircraft being analysed.
func (s *Solver) Aircraft() *aircraft.Aircraft { return s.aircraft }

// SetAtmosphere replaces the standard atmosphere.
func (s *Solver) SetAtmosphere(p physics.Provider) { s.atmosphere = p }

// SetObserver installs o; nil removes it.
func (s *Solver) SetObserver(o Observer) { s.observer = o }

// Segments returns a copy of the segment sequence.
func (s *Solver) Segments() []Segment { return slices.Clone(s.segments) }

// Add appends a segment.
func (s *Solver) Add(seg Segment) error {
	if err := seg.Validate(); err != nil {
		return err
	}
	s.segments = append(s.segments, seg)
	return nil
}

// Insert places seg at index i, shifting later segments.
func (s *Solver) Insert(i int, seg Segment) error {
	if i < 0 || i > len(s.segments) {
		return errdefs.Configf("insert index %d out of range [0, %d]", i, len(s.segments))
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	s.segments = slices.Insert(s.segments, i, seg)
	return nil
}

// Replace swaps the segment at index i.
func (s *Solver) Replace(i int, seg Segment) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	s.segments[i] = seg
	return nil
}

// Remove deletes the segment at index i.
func (s *Solver) Remove(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.segments = slices.Delete(s.segments, i, i+1)
	return nil
}

func (s *Solver) checkIndex(i int) error {
	if i < 0 || i >= len(s.segments) {
		return errdefs.Configf("segment index %d out of range [0, %d)", i, len(s.segments))
	}
	return nil
}

// Validate checks every segment and that exactly one cruise segment has
// find_range set. It returns the index of that segment.
func (s *Solver) Validate() (int, error) {
	if len(s.segments) == 0 {
		return -1, errdefs.Configf("mission has no segments")
	}

	findRange := -1
	for i, seg := range s.segments {
		if err := seg.Validate(); err != nil {
			return -1, &SegmentError{Index: i, Title: seg.Title, Kind: seg.Kind(), Err: err}
		}
		if !seg.FindRange {
			continue
		}
		if findRange >= 0 {
			return -1, errdefs.Configf("segments %q and %q both have find_range set",
				s.segments[findRange].Title, seg.Title)
		}
		findRange = i
	}
	if findRange < 0 {
		return -1, errdefs.Configf("no segment has find_range set")
	}
	return findRange, nil
}

// Solve runs the weight sweep: forward from takeoff weight up to the
// find-range segment, backward from landing weight down to it, then resolves
// its range in closed form. The total range is stored on the aircraft.
// Any segment failure aborts the solve.
func (s *Solver) Solve(ctx context.Context, aero AeroSolver) (*Result, error) {
	fr, err := s.Validate()
	if err != nil {
		return nil, err
	}

	ac := s.aircraft
	env := Env{Aircraft: ac, Aero: aero, Atmosphere: s.atmosphere}
	results := make([]SegmentResult, len(s.segments))

	// K per climb index. A climb behind the find-range cruise may be needed
	// by a loiter before the backward pass reaches it.
	climbK := make(map[int]float64)
	inducedDragBefore := func(i int) (float64, error) {
		for j := i - 1; j >= 0; j-- {
			c, ok := s.segments[j].Params.(Climb)
			if !ok {
				continue
			}
			if k, ok := climbK[j]; ok {
				return k, nil
			}
			st, err := climbAero(ctx, env, s.segments[j], c)
			if err != nil {
				return 0, &SegmentError{Index: j, Title: s.segments[j].Title, Kind: KindClimb, Err: err}
			}
			climbK[j] = st.k
			return st.k, nil
		}
		return 0, nil
	}

	step := func(i int, weight float64, dir Direction) (SegmentResult, error) {
		seg := s.segments[i]
		if err := ctx.Err(); err != nil {
			return SegmentResult{}, err
		}
		segEnv := env
		if l, ok := seg.Params.(Loiter); ok && l.InducedDragFactor == 0 {
			k, err := inducedDragBefore(i)
			if err != nil {
				return SegmentResult{}, err
			}
			segEnv.InducedDrag = k
		}
		r, err := Advance(ctx, segEnv, seg, weight, dir)
		if err != nil {
			return SegmentResult{}, &SegmentError{Index: i, Title: seg.Title, Kind: seg.Kind(), Err: err}
		}
		if seg.Kind() == KindClimb {
			climbK[i] = r.InducedDrag
		}
		s.record(results, i, r, dir)
		return r, nil
	}

	wi := ac.TakeoffWeight
	for i := 0; i < fr; i++ {
		r, err := step(i, wi, Forward)
		if err != nil {
			return nil, err
		}
		wi = r.Wn
	}

	wn := ac.LandingWeight()
	for i := len(s.segments) - 1; i > fr; i-- {
		r, err := step(i, wn, Backward)
		if err != nil {
			return nil, err
		}
		wn = r.Wi
	}

	seg := s.segments[fr]
	r, err := SetRange(ctx, env, seg, wi, wn)
	if err != nil {
		return nil, &SegmentError{Index: fr, Title: seg.Title, Kind: seg.Kind(), Err: err}
	}
	s.record(results, fr, r, Forward)

	res := &Result{
		Aircraft:       ac.Title,
		TakeoffWeight:  ac.TakeoffWeight,
		FuelWeight:     ac.FuelWeight,
		FindRangeIndex: fr,
		Segments:       results,
	}
	for _, r := range results {
		res.TotalRange += r.Range
		res.FuelBurnt += r.FuelBurnt
		if r.Kind == KindLanding {
			res.ReserveFuel = r.ReserveFuel
		}
	}
	for _, seg := range s.segments {
		if l, ok := seg.Params.(Landing); ok {
			res.ReserveFactor = l.ReserveFraction
		}
	}
	ac.Range = res.TotalRange

	s.logger.Info("Mission solved",
		logger.Float("range_nmi", res.TotalRange),
		logger.Float("fuel_burnt", res.FuelBurnt),
		logger.Int("segments", len(results)))

	return res, nil
}

func (s *Solver) record(results []SegmentResult, i int, r SegmentResult, dir Direction) {
	r.Index = i
	results[i] = r

	s.logger.Debug("Segment solved",
		logger.Int("index", i),
		logger.String("title", r.Title),
		logger.String("kind", string(r.Kind)),
		logger.String("direction", dir.String()),
		logger.Float("wi", r.Wi),
		logger.Float("wn", r.Wn),
		logger.Float("weight_fraction", r.WeightFraction))

	if s.observer != nil {
		s.observer.SegmentSolved(r)
	}
}
