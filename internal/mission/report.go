package mission

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	reportRule = "========================================================================================="
	labelWidth = 24
	valueWidth = 16
)

var commaFormats = [...]string{"#,###.", "#,###.#", "#,###.##"}

// commaf formats v with thousands separators and a fixed number of decimals.
func commaf(v float64, digits int) string {
	if digits < 0 || digits >= len(commaFormats) {
		digits = len(commaFormats) - 1
	}
	return humanize.FormatFloat(commaFormats[digits], v)
}

// WriteReport writes a human readable summary of res: totals, a per-segment
// table and a detail block for every segment.
func WriteReport(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Mission profile analysis for aircraft: %s\n", res.Aircraft)
	fmt.Fprintln(bw, strings.Repeat("=", 48))
	fmt.Fprintf(bw, "%32s %19s\n", "Range (nmi)", "Fuel Burnt (lbs)")
	fmt.Fprintf(bw, "%-15s %16s %19s\n\n", "Total", commaf(res.TotalRange, 2), commaf(res.FuelWeight, 2))

	for _, s := range res.Segments {
		fmt.Fprintf(bw, "%-15s %16s %19s\n", s.Title, commaf(s.Range, 2), commaf(s.FuelBurnt, 2))
	}

	fmt.Fprintf(bw, "\nReserve and Trap Fuel (%g%%): %s lbs\n", res.ReserveFactor*100, commaf(res.ReserveFuel, 2))

	for _, s := range res.Segments {
		fmt.Fprintf(bw, "\n%s\n", reportRule)
		fmt.Fprintf(bw, "Segment %d: %s (%s)\n\n", s.Index, s.Title, s.Kind)

		row := func(label, value string) {
			fmt.Fprintf(bw, "\t%-*s%*s\n", labelWidth, label, valueWidth, value)
		}

		row("Range (nmi)", commaf(s.Range, 2))
		row("Wi (lbs)", commaf(s.Wi, 2))
		row("Wn (lbs)", commaf(s.Wn, 2))
		row("Weight Fraction", fmt.Sprintf("%.6f", s.WeightFraction))
		row("Fuel Burnt (lbs)", commaf(s.FuelBurnt, 2))
		fmt.Fprintln(bw)

		row("Lift/Drag", fmt.Sprintf("%.2f", s.LiftToDrag))
		row("Cl", fmt.Sprintf("%.4f", s.CL))
		row("Cd", fmt.Sprintf("%.4f", s.CD))
		fmt.Fprintln(bw)

		row("Altitude (ft)", commaf(s.Altitude, 0))
		row("Mach", fmt.Sprintf("%.4f", s.Mach))
		row("Velocity (ft/s)", fmt.Sprintf("%.2f", s.Velocity))
		row("Time (min)", fmt.Sprintf("%.2f", s.Time/60))
		fmt.Fprintln(bw)

		if s.Thrust > 0 {
			row("Thrust Required (lbf)", commaf(s.Thrust, 2))
		}
		if s.MaxThrust > 0 {
			row("Thrust Available (lbf)", commaf(s.MaxThrust, 2))
		}
		if s.SFC > 0 {
			row("SFC (lb/lbf/hr)", fmt.Sprintf("%.4f", s.SFC))
		}
		if s.RateOfClimb > 0 {
			row("Rate of Climb (ft/min)", commaf(s.RateOfClimb*60, 0))
		}
		if s.ReserveFuel > 0 {
			row("Reserve Fuel (lbs)", commaf(s.ReserveFuel, 2))
		}
	}

	return bw.Flush()
}

// Summary is a one-line description of a result for logs and listings.
func Summary(res *Result) string {
	return fmt.Sprintf("%s: %s nmi on %s lb of fuel", res.Aircraft,
		commaf(res.TotalRange, 1), humanize.Comma(int64(res.FuelBurnt)))
}
