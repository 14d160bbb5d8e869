package avl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/yegors/aeromission/internal/aircraft"
)

const (
	separator = "#--------------------------------------------------"

	// Vortex lattice resolution used for every surface
	latticeDirective = "12           2.0     26         -1.5"

	// Elevator hinge at 20% chord from the trailing edge, deflection gain 1, symmetric
	elevatorDirective = "Elevator 3.0 .2 0. 1. 0. 1"

	// Mass file units: feet, pounds, seconds
	lengthUnit = "Lunit = 3.048000e-01 m"
	massUnit   = "Munit = 4.535000e-01 kg"
	timeUnit   = "Tunit = 1 s"
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteGeometry writes the lifting-surface description of ac for a case at
// the given Mach number.
func WriteGeometry(w io.Writer, ac *aircraft.Aircraft, mach float64) error {
	wing, err := ac.MainWing()
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "AVL Geometry\n\n")
	fmt.Fprintf(bw, "#Mach\n%s\n\n", num(mach))
	fmt.Fprintf(bw, "#IYsym   IZsym   Zsym\n0       0       0\n")
	fmt.Fprintf(bw, "#Sref    Cref    Bref\n")
	fmt.Fprintf(bw, "%s   %s   %s\n\n", num(ac.Sref), num(refChord(ac, wing)), num(refSpan(ac, wing)))
	fmt.Fprintf(bw, "#Xref    Yref    Zref\n")
	fmt.Fprintf(bw, "%s     %s     %s\n", num(ac.CG[0]), num(ac.CG[1]), num(ac.CG[2]))
	fmt.Fprintln(bw, separator)

	for _, s := range ac.OrderedSurfaces() {
		writeSurface(bw, &s)
	}

	return bw.Flush()
}

func writeSurface(bw *bufio.Writer, s *aircraft.Surface) {
	fmt.Fprintf(bw, "SURFACE\n%s\n\n", s.Title)
	fmt.Fprintf(bw, "!Nchordwise  Cspace  Nspanwise  Sspace\n%s\n", latticeDirective)

	if s.IsWing() {
		// Group the wing so section incidences can vary together
		fmt.Fprintf(bw, "Component\n1\n\n")
		fmt.Fprintf(bw, "Angle\n2\n\n")
	}
	if !s.IsVertical() {
		fmt.Fprintf(bw, "YDUPLICATE\n0\n\n")
	}
	fmt.Fprintf(bw, "SCALE\n1   1   1\n\n")

	for _, sec := range s.Sections {
		fmt.Fprintf(bw, "Section\n")
		fmt.Fprintf(bw, "#Xle    Yle    Zle     Chord   Ainc  Nspanwise  Sspace\n")
		fmt.Fprintf(bw, "%s  %s  %s  %s  %s\n",
			num(sec.Xle), num(sec.Yle), num(sec.Zle), num(sec.Chord), num(sec.Incidence))

		if s.IsHorizontalTail() {
			fmt.Fprintf(bw, "Control\n%s\n", elevatorDirective)
		}
		if s.Airfoil != "" {
			fmt.Fprintf(bw, "AFILE\n%s\n\n", s.Airfoil)
		} else {
			fmt.Fprintln(bw)
		}
	}

	fmt.Fprintln(bw, separator)
}

// refChord falls back to the wing's mean chord when the aircraft has none.
func refChord(ac *aircraft.Aircraft, wing *aircraft.Surface) float64 {
	if ac.Cref > 0 {
		return ac.Cref
	}
	var sum float64
	for _, sec := range wing.Sections {
		sum += sec.Chord
	}
	return sum / float64(len(wing.Sections))
}

// refSpan falls back to twice the wing's outboard station.
func refSpan(ac *aircraft.Aircraft, wing *aircraft.Surface) float64 {
	if ac.Bref > 0 {
		return ac.Bref
	}
	var tip float64
	for _, sec := range wing.Sections {
		if sec.Yle > tip {
			tip = sec.Yle
		}
	}
	return 2 * tip
}

// WriteMass writes unit declarations followed by weight, centre of gravity
// and inertia on a single line.
func WriteMass(w io.Writer, weight float64, cg, inertia [3]float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, lengthUnit)
	fmt.Fprintln(bw, massUnit)
	fmt.Fprintf(bw, "%s\n\n", timeUnit)
	fmt.Fprintf(bw, "%s  %s  %s  %s  %s  %s  %s\n",
		num(weight), num(cg[0]), num(cg[1]), num(cg[2]), num(inertia[0]), num(inertia[1]), num(inertia[2]))
	return bw.Flush()
}
