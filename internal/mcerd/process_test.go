package mcerd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/beamlab/erdsim/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings(dir string) *sim.Settings {
	return &sim.Settings{
		Type:   sim.TypeERD,
		Mode:   sim.ModeNarrow,
		SimDir: dir,
		Seed:   42,
		Beam: sim.Beam{
			Ion:        sim.Element{Symbol: "Cl", Isotope: 35, Mass: 34.969},
			Energy:     8.515,
			SpotWidth:  0.5,
			SpotHeight: 3.0,
		},
		Target: sim.Target{
			Theta: 20.5,
			Layers: []sim.Layer{{
				Thickness: 100, Density: 2.32,
				Elements:  []sim.Element{{Symbol: "Si", Mass: 28.086, Amount: 1.0}},
			}},
		},
		Detector: sim.Detector{
			Type: "TOF", Theta: 41.12, VirtualWidth: 2, VirtualHeight: 5,
			TimingFoils: [2]int{1, 2},
			Foils: []sim.Foil{{
				Shape: sim.FoilCircular, Diameter: 7, Distance: 256,
				Layers: []sim.Layer{{
					Thickness: 0.1, Density: 2.25,
					Elements:  []sim.Element{{Symbol: "C", Mass: 12.011, Amount: 1.0}},
				}},
			}},
		},
		Recoil: sim.RecoilElement{
			Element: sim.Element{Symbol: "He", Mass: 4.003},
			Name:    "Default",
			Points:  []sim.Point{{X: 0, Y: 0.5}, {X: 100, Y: 0.0001}},
		},
		MinScatterAngle:     0.05,
		MinMainScatterAngle: 20,
		MinIonEnergy:        1.0,
		RecoilCount:         10,
		ScalingIonCount:     5,
		IonCount:            1000,
		PresimIonCount:      100,
	}
}

// writeFakeBinary installs a shell script standing in for the simulation
// executable and returns the directory to use as BinDir.
func writeFakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake simulation binary requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "mcerd")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return dir
}

func newTestProcess(t *testing.T, simDir, binDir string) *Process {
	t.Helper()
	proc, err := NewProcess(testSettings(simDir), "Default", Options{
		BinDir:       binDir,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return proc
}

func TestCommandLinePOSIX(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX command construction")
	}
	proc := newTestProcess(t, "/sims", "/opt/bin")
	line := proc.CommandLine()
	assert.Contains(t, line, "ulimit -s 64000; exec '/opt/bin/mcerd' '/sims/He-Default'")
	assert.True(t, strings.HasPrefix(line, "/bin/sh -c "))
}

func TestRunStreamsProgressAndTerminates(t *testing.T) {
	binDir := writeFakeBinary(t, strings.Join([]string{
		`echo "Presimulation finished"`,
		`echo "Calculated 10 of 100 ions (10%)"`,
		`echo "angave done"`,
	}, "\n"))
	simDir := t.TempDir()
	proc := newTestProcess(t, simDir, binDir)

	records, err := proc.Run(context.Background())
	require.NoError(t, err)

	var got []Record
	timeout := time.After(10 * time.Second)
	for {
		var rec Record
		var ok bool
		select {
		case rec, ok = <-records:
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
		if !ok {
			break
		}
		got = append(got, rec)
	}

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, 100, last.Percentage)
	assert.Equal(t, "angave done", last.Msg)

	// Staged inputs exist after the run.
	for _, path := range []string{proc.Files().Command, proc.Files().Target, proc.Files().Detector, proc.Files().Foils, proc.Files().Recoil} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestRunDeliversAllOutputToSlowConsumer(t *testing.T) {
	// The child floods its pipes and exits immediately. A consumer that
	// drains slower than the child produces must still see every line and
	// the terminal marker; nothing buffered at exit time may be lost.
	binDir := writeFakeBinary(t, strings.Join([]string{
		`i=1`,
		`while [ $i -le 500 ]; do`,
		`  echo "line $i"`,
		`  i=$((i+1))`,
		`done`,
		`echo "angave done"`,
	}, "\n"))
	proc := newTestProcess(t, t.TempDir(), binDir)

	records, err := proc.Run(context.Background())
	require.NoError(t, err)

	var count int
	var last Record
	for rec := range records {
		count++
		last = rec
		time.Sleep(2 * time.Millisecond)
	}

	assert.Equal(t, 501, count)
	assert.Equal(t, "angave done", last.Msg)
	assert.Equal(t, 100, last.Percentage)
}

func TestRunFailsWithoutExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX launch semantics")
	}
	simDir := t.TempDir()
	proc := newTestProcess(t, simDir, filepath.Join(simDir, "nonexistent"))

	// The shell spawns fine and fails inside; the stream still terminates
	// via the liveness poll once the shell exits.
	records, err := proc.Run(context.Background())
	require.NoError(t, err)

	timeout := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-records:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
	}
}

func TestRunRejectsSecondLaunch(t *testing.T) {
	binDir := writeFakeBinary(t, `echo "angave"`)
	proc := newTestProcess(t, t.TempDir(), binDir)

	records, err := proc.Run(context.Background())
	require.NoError(t, err)
	for range records {
	}

	_, err = proc.Run(context.Background())
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	binDir := writeFakeBinary(t, "sleep 60")
	proc := newTestProcess(t, t.TempDir(), binDir)

	records, err := proc.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, proc.Stop())

	// Second stop after the process is already dead must be a no-op.
	assert.Eventually(t, func() bool { return !proc.Running() }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, proc.Stop())

	// The stream terminates on its own via the liveness poll.
	timeout := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-records:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not terminate after stop")
		}
	}
}

func TestStopBeforeRunIsNoOp(t *testing.T) {
	proc := newTestProcess(t, t.TempDir(), "/opt/bin")
	require.NoError(t, proc.Stop())
	require.NoError(t, proc.Stop())
}

func TestDeleteUnneededFiles(t *testing.T) {
	simDir := t.TempDir()
	proc := newTestProcess(t, simDir, "/opt/bin")
	files := proc.Files()

	require.NoError(t, sim.Stage(testSettings(simDir), files))

	// Intermediate files the binary would leave behind, plus one
	// unrelated file that must survive.
	intermediates := []string{
		"He-Default.42.out",
		"He-Default.dat",
		"He-Default.range",
		"He-Default.pre",
	}
	for _, name := range intermediates {
		require.NoError(t, os.WriteFile(filepath.Join(simDir, name), []byte("x"), 0o644))
	}
	unrelated := filepath.Join(simDir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep me"), 0o644))
	require.NoError(t, os.WriteFile(files.Result, []byte("results"), 0o644))

	proc.DeleteUnneededFiles()

	for _, path := range []string{files.Command, files.Detector, files.Target, files.Foils} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}
	for _, name := range intermediates {
		_, err := os.Stat(filepath.Join(simDir, name))
		assert.True(t, os.IsNotExist(err), name)
	}
	// The unrelated file, the recoil file and the result survive.
	_, err := os.Stat(unrelated)
	assert.NoError(t, err)
	_, err = os.Stat(files.Recoil)
	assert.NoError(t, err)
	_, err = os.Stat(files.Result)
	assert.NoError(t, err)
}

func TestDeleteUnneededFilesMissingIsQuiet(t *testing.T) {
	proc := newTestProcess(t, t.TempDir(), "/opt/bin")
	// Nothing staged; must not panic or error.
	proc.DeleteUnneededFiles()
}

func TestCopyResults(t *testing.T) {
	simDir := t.TempDir()
	dest := t.TempDir()
	proc := newTestProcess(t, simDir, "/opt/bin")
	files := proc.Files()

	require.NoError(t, os.WriteFile(files.Result, []byte("erd data"), 0o644))
	require.NoError(t, os.WriteFile(files.Recoil, []byte("recoil data"), 0o644))

	require.NoError(t, proc.CopyResults(dest))

	got, err := os.ReadFile(filepath.Join(dest, "He-Default.42.erd"))
	require.NoError(t, err)
	assert.Equal(t, "erd data", string(got))
	got, err = os.ReadFile(filepath.Join(dest, "He-Default.recoil"))
	require.NoError(t, err)
	assert.Equal(t, "recoil data", string(got))
}

func TestCopyResultsMissingSource(t *testing.T) {
	simDir := t.TempDir()
	dest := t.TempDir()
	proc := newTestProcess(t, simDir, "/opt/bin")

	err := proc.CopyResults(dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSource)

	// Destination stays untouched on failure.
	entries, readErr := os.ReadDir(dest)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestCopyRecoilMissingSource(t *testing.T) {
	proc := newTestProcess(t, t.TempDir(), "/opt/bin")
	err := proc.CopyRecoil(t.TempDir())
	assert.ErrorIs(t, err, ErrMissingSource)
}
