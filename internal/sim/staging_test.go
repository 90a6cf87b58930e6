package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(dir string) *Settings {
	return &Settings{
		Type:   TypeERD,
		Mode:   ModeNarrow,
		SimDir: dir,
		Seed:   42,
		Beam: Beam{
			Ion:        Element{Symbol: "Cl", Isotope: 35, Mass: 34.969},
			Energy:     8.515,
			SpotWidth:  0.5,
			SpotHeight: 3.0,
		},
		Target: Target{
			Theta: 20.5,
			Layers: []Layer{
				{
					Thickness: 50, Density: 2.32,
					Elements: []Element{
						{Symbol: "Si", Mass: 28.086, Amount: 1.0},
					},
				},
				{
					Thickness: 200, Density: 3.44,
					Elements: []Element{
						{Symbol: "Si", Mass: 28.086, Amount: 0.428},
						{Symbol: "N", Mass: 14.007, Amount: 0.572},
					},
				},
			},
		},
		Detector: Detector{
			Type:          "TOF",
			Theta:         41.12,
			VirtualWidth:  2.0,
			VirtualHeight: 5.0,
			TimingFoils:   [2]int{1, 2},
			Foils: []Foil{
				{
					Shape: FoilCircular, Diameter: 7.0, Distance: 256.0,
					Layers: []Layer{
						{
							Thickness: 0.1, Density: 2.25,
							Elements: []Element{{Symbol: "C", Mass: 12.011, Amount: 1.0}},
						},
						// Second layer must be ignored at staging time.
						{
							Thickness: 13.0, Density: 2.25,
							Elements: []Element{{Symbol: "C", Mass: 12.011, Amount: 1.0}},
						},
					},
				},
				{
					Shape: FoilRectangular, Width: 14.0, Height: 14.0, Distance: 319.0,
					Layers: []Layer{
						{
							Thickness: 44.4, Density: 0.38,
							Elements: []Element{{Symbol: "C", Mass: 12.011, Amount: 1.0}},
						},
					},
				},
			},
		},
		Recoil: RecoilElement{
			Element:          Element{Symbol: "He", Mass: 4.003},
			Name:             "Default",
			ReferenceDensity: 4.98,
			Points: []Point{
				{X: 0.0, Y: 0.5},
				{X: 30.0, Y: 0.5},
				{X: 100.0, Y: 0.0001},
			},
		},
		MinScatterAngle:     0.05,
		MinMainScatterAngle: 20,
		MinIonEnergy:        1.0,
		RecoilCount:         10,
		ScalingIonCount:     5,
		IonCount:            1000000,
		PresimIonCount:      100000,
	}
}

func TestNewFileSet(t *testing.T) {
	s := testSettings("/sims")
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/sims", "He-Default"), files.Command)
	assert.Equal(t, filepath.Join("/sims", "Default.erd_target"), files.Target)
	assert.Equal(t, filepath.Join("/sims", "Default.erd_detector"), files.Detector)
	assert.Equal(t, filepath.Join("/sims", "Default.foils"), files.Foils)
	assert.Equal(t, filepath.Join("/sims", "Default.pre"), files.Presim)
	assert.Equal(t, filepath.Join("/sims", "He-Default.recoil"), files.Recoil)
	assert.Equal(t, filepath.Join("/sims", "He-Default.42.erd"), files.Result)
}

func TestNewFileSetRBSUsesScatterSuffix(t *testing.T) {
	s := testSettings("/sims")
	s.Type = TypeRBS
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/sims", "He-Default.scatter"), files.Recoil)
}

func TestNewFileSetOptimizeFluenceNaming(t *testing.T) {
	s := testSettings("/sims")
	s.OptimizeFluence = true
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/sims", "He-optfl"), files.Command)
	assert.Equal(t, filepath.Join("/sims", "He-optfl.42.erd"), files.Result)
}

func TestStagingIsDeterministic(t *testing.T) {
	s := testSettings("/sims")
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	renderers := map[string]func() (string, error){
		"command":  func() (string, error) { return RenderCommandFile(s, files) },
		"target":   func() (string, error) { return RenderTargetFile(s) },
		"detector": func() (string, error) { return RenderDetectorFile(s, files) },
		"foils":    func() (string, error) { return RenderFoilsFile(s) },
		"recoil":   func() (string, error) { return RenderRecoilFile(s) },
	}
	for name, render := range renderers {
		first, err := render()
		require.NoError(t, err, name)
		second, err := render()
		require.NoError(t, err, name)
		assert.Equal(t, first, second, "%s file must render byte-identical", name)
		assert.NotEmpty(t, first, name)
	}
}

func TestRenderCommandFileOrder(t *testing.T) {
	s := testSettings("/sims")
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	content, err := RenderCommandFile(s, files)
	require.NoError(t, err)
	lines := strings.Split(content, "\n")

	prefixes := []string{
		"Type of simulation: ERD",
		"Beam ion: 35Cl",
		"Beam energy: 8.515 MeV",
		"Target description file: ",
		"Detector description file: ",
		"Recoiling atom: He",
		"Recoiling material distribution: ",
		"Target angle: 20.5 deg",
		"Beam spot size: 0.5 3.0 mm",
		"Minimum angle of scattering: 0.05 deg",
		"Minimum main scattering angle: 20 deg",
		"Minimum energy of ions: 1 MeV",
		"Average number of recoils per primary ion: 10",
		"Recoil angle width (wide or narrow): narrow",
		"Presimulation * result file: ",
		"Number of real ions per each scaling ion: 5",
		"Number of ions: 1000000",
		"Number of ions in the presimulation: 100000",
		"Seed number of the random number generator: 42",
	}
	require.Len(t, lines, len(prefixes))
	for i, prefix := range prefixes {
		assert.True(t, strings.HasPrefix(lines[i], prefix),
			"line %d = %q, want prefix %q", i, lines[i], prefix)
	}
}

func TestRenderTargetFileIndexedElements(t *testing.T) {
	s := testSettings("/sims")
	content, err := RenderTargetFile(s)
	require.NoError(t, err)
	lines := strings.Split(content, "\n")

	// Three element rows across both layers come first.
	assert.Equal(t, "28.086 Si", lines[0])
	assert.Equal(t, "28.086 Si", lines[1])
	assert.Equal(t, "14.007 N", lines[2])

	// Then the fixed surface-calculation block.
	assert.Equal(t, "0.01 nm", lines[3])
	assert.Equal(t, "0 1.0", lines[7])

	// Element indices run across layers without resetting.
	assert.Contains(t, lines, "0 1.000")
	assert.Contains(t, lines, "1 0.428")
	assert.Contains(t, lines, "2 0.572")
}

func TestRenderDetectorFile(t *testing.T) {
	s := testSettings("/sims")
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	content, err := RenderDetectorFile(s, files)
	require.NoError(t, err)
	lines := strings.Split(content, "\n")

	assert.Equal(t, "Detector type: TOF", lines[0])
	assert.Equal(t, "Detector angle: 41.12", lines[1])
	assert.Equal(t, "Virtual detector size: 2.0 5.0", lines[2])
	assert.Equal(t, "Timing detector numbers: 1 2", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "Description file for the detector foils: "))
	assert.Equal(t, "==========", lines[5])
	assert.Contains(t, lines, "Foil type: circular")
	assert.Contains(t, lines, "----------")
	assert.Contains(t, lines, "Foil type: rectangular")
	assert.Contains(t, lines, "Foil size: 14 14")
}

func TestRenderFoilsFileHonorsOnlyFirstLayer(t *testing.T) {
	s := testSettings("/sims")
	content, err := RenderFoilsFile(s)
	require.NoError(t, err)

	// The first foil has two layers; only the first may be staged, so
	// exactly two element rows (one per foil) and two index rows appear.
	assert.Equal(t, 2, strings.Count(content, "12.011 C"))
	assert.Equal(t, 2, strings.Count(content, "ZBL\nZBL"))
	assert.Contains(t, content, "0 1.000")
	assert.Contains(t, content, "1 1.000")
	// The ignored second layer is 13 nm thick.
	assert.NotContains(t, content, "13 nm")
}

func TestRenderRecoilFile(t *testing.T) {
	s := testSettings("/sims")
	content, err := RenderRecoilFile(s)
	require.NoError(t, err)
	assert.Equal(t, "0.00 0.5000\n30.00 0.5000\n100.00 0.0001", content)
}

func TestStageWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	require.NoError(t, Stage(s, files))

	for _, path := range []string{files.Command, files.Target, files.Detector, files.Foils, files.Recoil} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Greater(t, info.Size(), int64(0), path)
	}
	// Presimulation and result files are produced by the executable, not
	// by staging.
	_, err = os.Stat(files.Presim)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(files.Result)
	assert.True(t, os.IsNotExist(err))
}

func TestStageFailsFastOnIncompleteSettings(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	s.Beam.Energy = 0
	files, err := NewFileSet(s, "Default")
	require.NoError(t, err)

	err = Stage(s, files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beam energy")

	// Nothing may be written when validation fails.
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestValidateNamesFirstMissingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"bad type", func(s *Settings) { s.Type = "XYZ" }, "simulation type"},
		{"bad mode", func(s *Settings) { s.Mode = "loose" }, "simulation mode"},
		{"no dir", func(s *Settings) { s.SimDir = "" }, "simulation directory"},
		{"no target layers", func(s *Settings) { s.Target.Layers = nil }, "target has no layers"},
		{"no foils", func(s *Settings) { s.Detector.Foils = nil }, "detector has no foils"},
		{"no recoil points", func(s *Settings) { s.Recoil.Points = nil }, "distribution points"},
		{"zero-area recoil", func(s *Settings) {
			s.Recoil.Points = []Point{{X: 0, Y: 0}, {X: 100, Y: 0}}
		}, "zero area"},
		{"no ions", func(s *Settings) { s.IonCount = 0 }, "ion count"},
		{"bad foil shape", func(s *Settings) { s.Detector.Foils[0].Shape = "oval" }, "foil shape"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSettings("/sims")
			tc.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
