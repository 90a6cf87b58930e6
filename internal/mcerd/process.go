package mcerd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beamlab/erdsim/internal/logging"
	"github.com/beamlab/erdsim/internal/sim"
	"go.uber.org/zap"
)

// ErrMissingSource marks a collection failure caused by a source file
// that does not exist. Callers distinguish "still running" from "never
// produced" by also checking process state.
var ErrMissingSource = errors.New("source file missing")

// intermediateSuffixes are the extensions of per-recoil scratch files the
// binary leaves behind; cleanup removes them together with the staged
// inputs.
var intermediateSuffixes = []string{".out", ".dat", ".range", ".pre"}

// Options configures a Process.
type Options struct {
	// BinDir holds the mcerd executable.
	BinDir string
	// PollInterval is the liveness poll period.
	PollInterval time.Duration
	// Logger receives lifecycle and cleanup messages. Optional.
	Logger *logging.Logger
	// EchoProgress tees every progress record to the logger.
	EchoProgress bool
}

// Process stages files for, launches and supervises one MCERD child
// process. It exclusively owns the child's handle and the staged file
// paths. One Process runs at most one child in its lifetime.
type Process struct {
	settings *sim.Settings
	files    sim.FileSet
	recName  string
	opts     Options
	logger   *logging.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited atomic.Bool
}

// NewProcess creates a process controller. base names the shared target,
// detector, foils and presimulation files.
func NewProcess(settings *sim.Settings, base string, opts Options) (*Process, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	files, err := sim.NewFileSet(settings, base)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Process{
		settings: settings,
		files:    files,
		recName:  settings.RecoilName(),
		opts:     opts,
		logger:   logger.WithRun(settings.Seed, settings.RecoilName()),
	}, nil
}

// Files returns the staged file paths of this run.
func (p *Process) Files() sim.FileSet { return p.files }

// Seed returns the run's random seed.
func (p *Process) Seed() int { return p.settings.Seed }

// Name returns the recoil filename stem identifying this run.
func (p *Process) Name() string { return p.recName }

// Running reports whether the child process is currently alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	started := p.cmd != nil
	p.mu.Unlock()
	return started && !p.exited.Load()
}

// command builds the platform-appropriate launch invocation. POSIX runs
// through a shell so the stack-size limit can be relaxed before exec
// replaces the shell; Windows invokes the executable directly.
func (p *Process) command(ctx context.Context) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, filepath.Join(p.opts.BinDir, "mcerd.exe"), p.files.Command)
	}
	line := fmt.Sprintf("ulimit -s 64000; exec %s %s",
		shellQuote(filepath.Join(p.opts.BinDir, "mcerd")),
		shellQuote(p.files.Command))
	return exec.CommandContext(ctx, "/bin/sh", "-c", line)
}

// CommandLine returns the launch command for logging and inspection.
func (p *Process) CommandLine() string {
	cmd := p.command(context.Background())
	return strings.Join(cmd.Args, " ")
}

// Run stages the input files, spawns the child and returns its progress
// stream. It does not block beyond the spawn; staging and launch errors
// are returned synchronously.
func (p *Process) Run(ctx context.Context) (<-chan Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil, fmt.Errorf("process for %s.%d already launched", p.recName, p.settings.Seed)
	}

	if err := sim.Stage(p.settings, p.files); err != nil {
		return nil, err
	}

	cmd := p.command(ctx)

	// The pipes are owned here, not obtained from StdoutPipe/StderrPipe:
	// Wait closes exec-managed pipes the moment the child exits, which
	// would destroy any output still buffered in the kernel before the
	// readers reach it. Self-owned pipes stay readable until EOF.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("launch: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("launch: %w", err)
	}
	// The child holds the write ends now; dropping the parent's copies
	// lets the read ends see EOF once the child exits.
	stdoutW.Close()
	stderrW.Close()

	p.cmd = cmd
	p.logger.Info("simulation process started",
		zap.String("command", strings.Join(cmd.Args, " ")))

	go func() {
		// Wait reaps the child; the liveness poll observes the flip.
		_ = cmd.Wait()
		p.exited.Store(true)
	}()

	pipeline := NewPipeline(p.settings.Seed, p.recName, p.opts.PollInterval)
	if p.opts.EchoProgress {
		pipeline = pipeline.WithEcho(p.echoRecord)
	}
	records := pipeline.Run(stdoutR, stderrR, func() bool { return !p.exited.Load() })

	// Forward the stream and release the read ends once it terminates,
	// unblocking any pump still mid-Read.
	out := make(chan Record)
	go func() {
		defer close(out)
		defer stderrR.Close()
		defer stdoutR.Close()
		for rec := range records {
			out <- rec
		}
	}()
	return out, nil
}

// echoRecord mirrors one progress record to the run's logger. The logger
// is safe for concurrent use across runs.
func (p *Process) echoRecord(rec Record) {
	p.logger.Info("simulation progress",
		zap.Bool("presim", rec.Presim),
		zap.Int("calculated", rec.Calculated),
		zap.Int("total", rec.Total),
		zap.Int("percentage", rec.Percentage),
		zap.String("msg", rec.Msg))
}

// Stop terminates the child process. It is idempotent and safe to call
// concurrently with stream reads: killing an already-exited process is a
// no-op, and the liveness poll ends the stream within one interval.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil || p.exited.Load() {
		return nil
	}

	if runtime.GOOS == "windows" {
		kill := exec.Command("TASKKILL", "/F", "/PID", strconv.Itoa(cmd.Process.Pid), "/T")
		if err := kill.Run(); err != nil {
			p.logger.Warn("taskkill failed", zap.Error(err))
		}
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// DeleteUnneededFiles removes the staged command, detector, target and
// foils files, then sweeps the simulation directory for this recoil's
// intermediate files. Every removal is best-effort: failures are logged
// and never abort the remaining removals.
func (p *Process) DeleteUnneededFiles() {
	for _, path := range []string{p.files.Command, p.files.Detector, p.files.Target, p.files.Foils} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("could not delete staged file",
				zap.String("path", path), zap.Error(err))
		}
	}

	entries, err := os.ReadDir(p.settings.SimDir)
	if err != nil {
		p.logger.Warn("could not scan simulation directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, p.recName) || !hasAnySuffix(name, intermediateSuffixes) {
			continue
		}
		path := filepath.Join(p.settings.SimDir, name)
		if err := os.Remove(path); err != nil {
			p.logger.Warn("could not delete intermediate file",
				zap.String("path", path), zap.Error(err))
		}
	}
}

// CopyResults copies the main result file and the recoil file to the
// destination directory. A missing source is a reported failure.
func (p *Process) CopyResults(destination string) error {
	if err := copyFile(p.files.Result, destination); err != nil {
		return err
	}
	return p.CopyRecoil(destination)
}

// CopyRecoil copies the recoil distribution file to the destination
// directory.
func (p *Process) CopyRecoil(destination string) error {
	return copyFile(p.files.Recoil, destination)
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// copyFile copies src into directory dst, keeping the base name.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingSource, src)
		}
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dst, filepath.Base(src)))
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Sync()
}

// shellQuote wraps s in single quotes for safe interpolation into the
// POSIX launch line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
