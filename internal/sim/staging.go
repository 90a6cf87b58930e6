package sim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSet names every file one run touches in the simulation directory.
// Filenames are namespaced by recoil name and seed so concurrent runs can
// share a directory without locking.
type FileSet struct {
	Command  string
	Target   string
	Detector string
	Foils    string
	Presim   string
	Recoil   string
	Result   string
}

// NewFileSet derives the staged file paths from settings and a base
// filename (shared by target, detector, foils and presimulation files).
func NewFileSet(s *Settings, base string) (FileSet, error) {
	suffix, err := s.Type.RecoilSuffix()
	if err != nil {
		return FileSet{}, err
	}
	dir := s.SimDir
	rec := s.RecoilName()
	return FileSet{
		Command:  filepath.Join(dir, rec),
		Target:   filepath.Join(dir, base+".erd_target"),
		Detector: filepath.Join(dir, base+".erd_detector"),
		Foils:    filepath.Join(dir, base+".foils"),
		Presim:   filepath.Join(dir, base+".pre"),
		Recoil:   filepath.Join(dir, fmt.Sprintf("%s.%s", rec, suffix)),
		Result:   filepath.Join(dir, fmt.Sprintf("%s.%d.erd", rec, s.Seed)),
	}, nil
}

// RenderCommandFile renders the main command file. The line order is
// mandated by the executable and must not be permuted.
func RenderCommandFile(s *Settings, files FileSet) (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("command file: %w", err)
	}

	lines := []string{
		fmt.Sprintf("Type of simulation: %s", s.Type),
	}
	lines = append(lines, s.Beam.Params()...)
	lines = append(lines,
		fmt.Sprintf("Target description file: %s", files.Target),
		fmt.Sprintf("Detector description file: %s", files.Detector),
		fmt.Sprintf("Recoiling atom: %s", s.Recoil.Element.Prefix()),
		fmt.Sprintf("Recoiling material distribution: %s", files.Recoil),
		fmt.Sprintf("Target angle: %g deg", s.Target.Theta),
		fmt.Sprintf("Beam spot size: %0.1f %0.1f mm", s.Beam.SpotWidth, s.Beam.SpotHeight),
		fmt.Sprintf("Minimum angle of scattering: %g deg", s.MinScatterAngle),
		fmt.Sprintf("Minimum main scattering angle: %g deg", s.MinMainScatterAngle),
		fmt.Sprintf("Minimum energy of ions: %g MeV", s.MinIonEnergy),
		fmt.Sprintf("Average number of recoils per primary ion: %d", s.RecoilCount),
		fmt.Sprintf("Recoil angle width (wide or narrow): %s", s.Mode),
		fmt.Sprintf("Presimulation * result file: %s", files.Presim),
		fmt.Sprintf("Number of real ions per each scaling ion: %d", s.ScalingIonCount),
		fmt.Sprintf("Number of ions: %d", s.IonCount),
		fmt.Sprintf("Number of ions in the presimulation: %d", s.PresimIonCount),
		fmt.Sprintf("Seed number of the random number generator: %d", s.Seed),
	)
	return strings.Join(lines, "\n"), nil
}

// RenderTargetFile renders the target description: every element across
// all layers listed first (index-addressed), a fixed default layer block
// for surface calculation, then each layer's parameters followed by
// "<index> <concentration>" rows referencing the element list.
func RenderTargetFile(s *Settings) (string, error) {
	if err := s.Target.validate(); err != nil {
		return "", fmt.Errorf("target file: %w", err)
	}

	var lines []string
	for _, layer := range s.Target.Layers {
		for _, e := range layer.Elements {
			lines = append(lines, e.Params())
		}
	}

	lines = append(lines, defaultSurfaceParams()...)

	count := 0
	for _, layer := range s.Target.Layers {
		lines = append(lines, layer.Params()...)
		for _, e := range layer.Elements {
			lines = append(lines, fmt.Sprintf("%d %s", count, e.AmountParams()))
			count++
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RenderDetectorFile renders detector parameters, the foils file
// reference, a separator, then each foil's geometry block.
func RenderDetectorFile(s *Settings, files FileSet) (string, error) {
	if err := s.Detector.validate(); err != nil {
		return "", fmt.Errorf("detector file: %w", err)
	}

	blocks := make([]string, 0, len(s.Detector.Foils))
	for _, foil := range s.Detector.Foils {
		params, err := foil.Params()
		if err != nil {
			return "", fmt.Errorf("detector file: %w", err)
		}
		blocks = append(blocks, strings.Join(params, "\n"))
	}

	lines := s.Detector.Params()
	lines = append(lines,
		fmt.Sprintf("Description file for the detector foils: %s", files.Foils),
		"==========",
		strings.Join(blocks, "\n----------\n"),
	)
	return strings.Join(lines, "\n"), nil
}

// RenderFoilsFile renders the foils' material description with the same
// indexed-element scheme as the target file. Only the first layer of each
// foil is written; the executable cannot handle more than one.
func RenderFoilsFile(s *Settings) (string, error) {
	if err := s.Detector.validate(); err != nil {
		return "", fmt.Errorf("foils file: %w", err)
	}

	var lines []string
	for _, foil := range s.Detector.Foils {
		for _, e := range foil.Layers[0].Elements {
			lines = append(lines, e.Params())
		}
	}

	count := 0
	for _, foil := range s.Detector.Foils {
		layer := foil.Layers[0]
		lines = append(lines, layer.Params()...)
		for _, e := range layer.Elements {
			lines = append(lines, fmt.Sprintf("%d %s", count, e.AmountParams()))
			count++
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RenderRecoilFile renders the recoil distribution, one point per line.
func RenderRecoilFile(s *Settings) (string, error) {
	if err := s.Recoil.validate(); err != nil {
		return "", fmt.Errorf("recoil file: %w", err)
	}
	return strings.Join(s.Recoil.Params(), "\n"), nil
}

// Stage validates the settings and writes the five input artifacts. It
// either writes all of them or none; a render failure aborts before any
// file is touched.
func Stage(s *Settings, files FileSet) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("staging: %w", err)
	}

	type artifact struct {
		path   string
		render func() (string, error)
	}
	artifacts := []artifact{
		{files.Command, func() (string, error) { return RenderCommandFile(s, files) }},
		{files.Detector, func() (string, error) { return RenderDetectorFile(s, files) }},
		{files.Target, func() (string, error) { return RenderTargetFile(s) }},
		{files.Foils, func() (string, error) { return RenderFoilsFile(s) }},
		{files.Recoil, func() (string, error) { return RenderRecoilFile(s) }},
	}

	contents := make([]string, len(artifacts))
	for i, a := range artifacts {
		text, err := a.render()
		if err != nil {
			return fmt.Errorf("staging: %w", err)
		}
		contents[i] = text
	}
	for i, a := range artifacts {
		if err := os.WriteFile(a.path, []byte(contents[i]), 0o644); err != nil {
			return fmt.Errorf("staging %s: %w", filepath.Base(a.path), err)
		}
	}
	return nil
}
