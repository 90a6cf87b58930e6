package sim

import "fmt"

// Beam describes the primary ion beam.
type Beam struct {
	Ion Element `json:"ion" toml:"ion"`
	// Energy in MeV.
	Energy float64 `json:"energy" toml:"energy"`
	// SpotWidth and SpotHeight are the beam spot size in mm.
	SpotWidth  float64 `json:"spot_width" toml:"spot_width"`
	SpotHeight float64 `json:"spot_height" toml:"spot_height"`
}

// Params returns the beam parameter lines of the command file.
func (b Beam) Params() []string {
	return []string{
		fmt.Sprintf("Beam ion: %s", b.Ion.Prefix()),
		fmt.Sprintf("Beam energy: %g MeV", b.Energy),
	}
}

func (b Beam) validate() error {
	if err := b.Ion.validate(); err != nil {
		return fmt.Errorf("beam ion: %w", err)
	}
	if b.Energy <= 0 {
		return fmt.Errorf("beam energy must be positive")
	}
	return nil
}
