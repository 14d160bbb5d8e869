package avl

import (
	"bufio"
	"fmt"
	"io"

	"github.com/yegors/aeromission/internal/physics"
)

// caseFiles names the files a command script refers to, relative to the
// solver's working directory.
type caseFiles struct {
	Geometry string
	Mass     string
	Results  string
}

// WriteCommands writes the keystroke script that loads the case, trims it to
// zero pitching moment at the given total parasite drag and exports the
// stability derivatives.
func WriteCommands(w io.Writer, files caseFiles, fc physics.FlightCondition, cd0, cdw float64) error {
	rho := fc.Density * physics.SlugFt3ToKgM3
	v := fc.Mach * fc.SpeedOfSound * physics.FeetToMeters

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "LOAD %s\n", files.Geometry)
	fmt.Fprintf(bw, "MASS %s\n", files.Mass)
	fmt.Fprintf(bw, "MSET\n0\n")

	// Operating case
	fmt.Fprintf(bw, "OPER\n")
	fmt.Fprintf(bw, "C1\n")
	fmt.Fprintf(bw, "G %s\n", num(physics.GravityMetric))
	fmt.Fprintf(bw, "D %s\n", num(rho))
	fmt.Fprintf(bw, "V %s\n\n", num(v))

	// Trim the elevator for zero pitching moment
	fmt.Fprintf(bw, "D1 PM 0\n")
	fmt.Fprintf(bw, "M\n")
	fmt.Fprintf(bw, "MN %s\n", num(fc.Mach))
	fmt.Fprintf(bw, "CD %s\n\n", num(cd0+cdw))

	fmt.Fprintf(bw, "X\n")
	fmt.Fprintf(bw, "ST\n%s\n\n", files.Results)
	fmt.Fprintf(bw, "QUIT\n\n")

	return bw.Flush()
}
