package mission

// SegmentResult is the computed state of one segment after a solve. Weights
// in lb, time in seconds, range in nautical miles, velocity in ft/s.
type SegmentResult struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Kind      Kind   `json:"kind"`
	FindRange bool   `json:"find_range,omitempty"`

	Wi             float64 `json:"wi"`
	Wn             float64 `json:"wn"`
	WeightFraction float64 `json:"weight_fraction"`
	FuelBurnt      float64 `json:"fuel_burnt"`
	Time           float64 `json:"time"`
	Range          float64 `json:"range"`

	Altitude float64 `json:"altitude"`
	Mach     float64 `json:"mach"`
	Velocity float64 `json:"velocity"`

	CL         float64 `json:"cl"`
	CD         float64 `json:"cd"`
	LiftToDrag float64 `json:"lift_to_drag"`

	Thrust    float64 `json:"thrust"`     // thrust required (lbf)
	MaxThrust float64 `json:"max_thrust"` // thrust available (lbf)
	SFC       float64 `json:"sfc"`        // lb/lbf/hr
	FuelFlow  float64 `json:"fuel_flow"`  // lb/hr

	InducedDrag     float64 `json:"induced_drag_factor,omitempty"`
	RateOfClimb     float64 `json:"rate_of_climb,omitempty"` // ft/s
	ClimbAngle      float64 `json:"climb_angle,omitempty"`   // degrees
	MinDragVelocity float64 `json:"min_drag_velocity,omitempty"`
	ReserveFuel     float64 `json:"reserve_fuel,omitempty"`
}

// Result is the outcome of one mission solve.
type Result struct {
	Aircraft       string          `json:"aircraft"`
	TakeoffWeight  float64         `json:"weight_takeoff"`
	FuelWeight     float64         `json:"w_fuel"`
	TotalRange     float64         `json:"total_range"`
	FuelBurnt      float64         `json:"fuel_burnt"`
	ReserveFuel    float64         `json:"reserve_fuel"`
	ReserveFactor  float64         `json:"reserve_fraction"`
	FindRangeIndex int             `json:"find_range_index"`
	Segments       []SegmentResult `json:"segments"`
}

// FindRange returns the result of the find-range segment.
func (r *Result) FindRange() SegmentResult {
	return r.Segments[r.FindRangeIndex]
}
