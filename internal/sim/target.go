package sim

import "fmt"

// Target is the sample under irradiation: an ordered stack of layers.
type Target struct {
	// Theta is the target tilt angle in degrees.
	Theta  float64 `json:"theta" toml:"theta"`
	Layers []Layer `json:"layers" toml:"layers"`
}

func (t Target) validate() error {
	if len(t.Layers) == 0 {
		return fmt.Errorf("target has no layers")
	}
	for i, l := range t.Layers {
		if err := l.validate(); err != nil {
			return fmt.Errorf("target layer %d: %w", i, err)
		}
	}
	return nil
}
