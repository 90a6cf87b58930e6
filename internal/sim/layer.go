package sim

import "fmt"

// Layer is one slab of material in the target or in a detector foil.
type Layer struct {
	// Thickness in nm.
	Thickness float64 `json:"thickness" toml:"thickness"`
	// Density in g/cm3.
	Density  float64   `json:"density" toml:"density"`
	Elements []Element `json:"elements" toml:"elements"`
}

// Params returns the per-layer parameter lines consumed by the external
// executable: thickness, stopping-power models for beam and recoil, density.
func (l Layer) Params() []string {
	return []string{
		fmt.Sprintf("%g nm", l.Thickness),
		"ZBL",
		"ZBL",
		fmt.Sprintf("%g g/cm3", l.Density),
	}
}

// defaultSurfaceParams is the fixed vacuum-like layer block prepended to
// target files; the executable uses it for surface position calculation.
func defaultSurfaceParams() []string {
	return []string{
		"0.01 nm",
		"ZBL",
		"ZBL",
		"0.000001 g/cm3",
		"0 1.0",
	}
}

func (l Layer) validate() error {
	if l.Thickness <= 0 {
		return fmt.Errorf("layer thickness must be positive")
	}
	if l.Density <= 0 {
		return fmt.Errorf("layer density must be positive")
	}
	if len(l.Elements) == 0 {
		return fmt.Errorf("layer has no elements")
	}
	for _, e := range l.Elements {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}
