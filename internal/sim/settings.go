package sim

import "fmt"

// SimulationType selects the simulated reaction. It decides the recoil
// distribution file suffix and nothing else in this layer.
type SimulationType string

const (
	TypeERD SimulationType = "ERD"
	TypeRBS SimulationType = "RBS"
)

// RecoilSuffix returns the distribution file extension for the type.
func (t SimulationType) RecoilSuffix() (string, error) {
	switch t {
	case TypeERD:
		return "recoil", nil
	case TypeRBS:
		return "scatter", nil
	default:
		return "", fmt.Errorf("unknown simulation type %q", t)
	}
}

// SimulationMode selects the recoil angle width.
type SimulationMode string

const (
	ModeNarrow SimulationMode = "narrow"
	ModeWide   SimulationMode = "wide"
)

// Settings is the immutable bundle of run parameters supplied by the
// caller. The orchestration layer only reads it.
type Settings struct {
	Type     SimulationType `json:"type" toml:"type"`
	Mode     SimulationMode `json:"mode" toml:"mode"`
	SimDir   string         `json:"sim_dir" toml:"sim_dir"`
	Seed     int            `json:"seed" toml:"seed"`
	Beam     Beam           `json:"beam" toml:"beam"`
	Target   Target         `json:"target" toml:"target"`
	Detector Detector       `json:"detector" toml:"detector"`
	Recoil   RecoilElement  `json:"recoil" toml:"recoil"`

	MinScatterAngle     float64 `json:"min_scatter_angle" toml:"min_scatter_angle"`
	MinMainScatterAngle float64 `json:"min_main_scatter_angle" toml:"min_main_scatter_angle"`
	MinIonEnergy        float64 `json:"min_ion_energy" toml:"min_ion_energy"`
	RecoilCount         int     `json:"recoil_count" toml:"recoil_count"`
	ScalingIonCount     int     `json:"scaling_ion_count" toml:"scaling_ion_count"`
	IonCount            int     `json:"ion_count" toml:"ion_count"`
	PresimIonCount      int     `json:"presim_ion_count" toml:"presim_ion_count"`

	// OptimizeFluence switches the staged-file naming to the
	// "<prefix>-optfl" scheme used by fluence optimization trials.
	OptimizeFluence bool `json:"optimize_fluence,omitempty" toml:"optimize_fluence"`
}

// RecoilName returns the filename stem for this run's staged and result
// files.
func (s *Settings) RecoilName() string {
	if s.OptimizeFluence {
		return s.Recoil.Element.Prefix() + "-optfl"
	}
	return s.Recoil.FullName()
}

// Validate fails fast with the first missing or malformed field. Staging
// must never emit an incomplete file; the executable cannot recover from
// malformed input.
func (s *Settings) Validate() error {
	if _, err := s.Type.RecoilSuffix(); err != nil {
		return err
	}
	if s.Mode != ModeNarrow && s.Mode != ModeWide {
		return fmt.Errorf("unknown simulation mode %q", s.Mode)
	}
	if s.SimDir == "" {
		return fmt.Errorf("simulation directory is required")
	}
	if s.Seed < 0 {
		return fmt.Errorf("seed must be non-negative")
	}
	if err := s.Beam.validate(); err != nil {
		return err
	}
	if err := s.Target.validate(); err != nil {
		return err
	}
	if err := s.Detector.validate(); err != nil {
		return err
	}
	if err := s.Recoil.validate(); err != nil {
		return err
	}
	if s.IonCount <= 0 {
		return fmt.Errorf("ion count must be positive")
	}
	if s.PresimIonCount <= 0 {
		return fmt.Errorf("presimulation ion count must be positive")
	}
	if s.RecoilCount <= 0 {
		return fmt.Errorf("recoil count must be positive")
	}
	return nil
}
