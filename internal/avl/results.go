package avl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/yegors/aeromission/internal/errdefs"
)

// Zero-based line offsets of the trimmed CLtot and CDtot rows in the
// stability-derivative export.
const (
	liftLine = 23
	dragLine = 24
)

// Coefficients is a trimmed lift/drag coefficient pair.
type Coefficients struct {
	CL float64 `json:"cl"`
	CD float64 `json:"cd"`
}

// ReadCoefficients opens a results file and extracts the trimmed lift and drag
// coefficients. A missing file means the solver never reached trim.
func ReadCoefficients(path string) (Coefficients, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Coefficients{}, &errdefs.SolverConvergenceError{Path: path, Reason: "no results file written"}
		}
		return Coefficients{}, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	c, err := ParseCoefficients(f)
	if err != nil {
		var sce *errdefs.SolverConvergenceError
		if errors.As(err, &sce) {
			sce.Path = path
		}
		return Coefficients{}, err
	}
	return c, nil
}

// ParseCoefficients reads the lift coefficient from the 24th line and the drag
// coefficient from the 25th, taking the first numeric token on each.
func ParseCoefficients(r io.Reader) (Coefficients, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > dragLine {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Coefficients{}, fmt.Errorf("failed to read results file: %w", err)
	}
	if len(lines) <= dragLine {
		return Coefficients{}, &errdefs.SolverConvergenceError{
			Reason: fmt.Sprintf("results file has %d lines, expected at least %d", len(lines), dragLine+1),
		}
	}

	cl, err := firstFloat(lines[liftLine])
	if err != nil {
		return Coefficients{}, &errdefs.SolverConvergenceError{Reason: "lift coefficient: " + err.Error()}
	}
	cd, err := firstFloat(lines[dragLine])
	if err != nil {
		return Coefficients{}, &errdefs.SolverConvergenceError{Reason: "drag coefficient: " + err.Error()}
	}

	return Coefficients{CL: cl, CD: cd}, nil
}

func firstFloat(line string) (float64, error) {
	for _, tok := range strings.Fields(line) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite value %q", tok)
		}
		return v, nil
	}
	return 0, fmt.Errorf("no numeric token in %q", strings.TrimSpace(line))
}
