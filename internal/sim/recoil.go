package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
)

// Point is one (depth, concentration) node of a recoil distribution.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// RecoilElement is the species whose transport is simulated. Its name
// drives the staged and result file naming.
type RecoilElement struct {
	Element Element `json:"element" toml:"element"`
	Name    string  `json:"name" toml:"name"`
	// ReferenceDensity is multiplied by 1e22 at/cm3.
	ReferenceDensity float64 `json:"reference_density" toml:"reference_density"`
	Points           []Point `json:"points" toml:"points"`
}

// FullName returns "<prefix>-<name>", e.g. "He-Default". It is the base of
// every per-recoil filename.
func (r RecoilElement) FullName() string {
	if r.Name == "" {
		return r.Element.Prefix()
	}
	return fmt.Sprintf("%s-%s", r.Element.Prefix(), r.Name)
}

// Params returns one distribution point per line, x ascending.
func (r RecoilElement) Params() []string {
	pts := r.sortedPoints()
	lines := make([]string, len(pts))
	for i, p := range pts {
		lines[i] = fmt.Sprintf("%0.2f %0.4f", p.X, p.Y)
	}
	return lines
}

// Area integrates the distribution trapezoidally. Downstream fluence
// scaling divides the requested recoil count by this area.
func (r RecoilElement) Area() float64 {
	pts := r.sortedPoints()
	if len(pts) < 2 {
		return 0
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return integrate.Trapezoidal(xs, ys)
}

func (r RecoilElement) sortedPoints() []Point {
	pts := make([]Point, len(r.Points))
	copy(pts, r.Points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	return pts
}

func (r RecoilElement) validate() error {
	if err := r.Element.validate(); err != nil {
		return fmt.Errorf("recoil element: %w", err)
	}
	if len(r.Points) == 0 {
		return fmt.Errorf("recoil element %s has no distribution points", r.FullName())
	}
	if len(r.Points) > 1 && r.Area() <= 0 {
		return fmt.Errorf("recoil element %s distribution has zero area", r.FullName())
	}
	return nil
}
