package sim

import "fmt"

// FoilShape is a closed choice of detector foil geometries.
type FoilShape string

const (
	FoilCircular    FoilShape = "circular"
	FoilRectangular FoilShape = "rectangular"
)

// Foil is one detector foil. Only the first layer of a multi-layer foil is
// written to the staged files; the external executable cannot handle more.
type Foil struct {
	Shape FoilShape `json:"shape" toml:"shape"`
	// Diameter in mm, for circular foils.
	Diameter float64 `json:"diameter,omitempty" toml:"diameter"`
	// Width and Height in mm, for rectangular foils.
	Width  float64 `json:"width,omitempty" toml:"width"`
	Height float64 `json:"height,omitempty" toml:"height"`
	// Distance from the target in mm.
	Distance float64 `json:"distance" toml:"distance"`
	Layers   []Layer `json:"layers" toml:"layers"`
}

// Params returns the per-foil parameter lines of the detector file.
func (f Foil) Params() ([]string, error) {
	switch f.Shape {
	case FoilCircular:
		return []string{
			"Foil type: circular",
			fmt.Sprintf("Foil diameter: %g", f.Diameter),
			fmt.Sprintf("Foil distance: %g", f.Distance),
		}, nil
	case FoilRectangular:
		return []string{
			"Foil type: rectangular",
			fmt.Sprintf("Foil size: %g %g", f.Width, f.Height),
			fmt.Sprintf("Foil distance: %g", f.Distance),
		}, nil
	default:
		return nil, fmt.Errorf("unknown foil shape %q", f.Shape)
	}
}

func (f Foil) validate() error {
	if _, err := f.Params(); err != nil {
		return err
	}
	if len(f.Layers) == 0 {
		return fmt.Errorf("foil has no layers")
	}
	// Layers beyond the first are ignored at staging time but must still be
	// well formed if present.
	for _, l := range f.Layers {
		if err := l.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Detector describes the telescope geometry and its foil stack.
type Detector struct {
	Type string `json:"type" toml:"type"`
	// Theta is the detector angle in degrees.
	Theta float64 `json:"theta" toml:"theta"`
	// VirtualWidth and VirtualHeight scale the virtual detector aperture.
	VirtualWidth  float64 `json:"virtual_width" toml:"virtual_width"`
	VirtualHeight float64 `json:"virtual_height" toml:"virtual_height"`
	// TimingFoils are the indices of the two timing foils.
	TimingFoils [2]int `json:"timing_foils" toml:"timing_foils"`
	Foils       []Foil `json:"foils" toml:"foils"`
}

// Params returns the detector-level parameter lines of the detector file.
func (d Detector) Params() []string {
	return []string{
		fmt.Sprintf("Detector type: %s", d.Type),
		fmt.Sprintf("Detector angle: %g", d.Theta),
		fmt.Sprintf("Virtual detector size: %0.1f %0.1f", d.VirtualWidth, d.VirtualHeight),
		fmt.Sprintf("Timing detector numbers: %d %d", d.TimingFoils[0], d.TimingFoils[1]),
	}
}

func (d Detector) validate() error {
	if d.Type == "" {
		return fmt.Errorf("detector type is required")
	}
	if len(d.Foils) == 0 {
		return fmt.Errorf("detector has no foils")
	}
	for i, f := range d.Foils {
		if err := f.validate(); err != nil {
			return fmt.Errorf("detector foil %d: %w", i, err)
		}
	}
	return nil
}
