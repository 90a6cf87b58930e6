// Package runner owns the set of concurrently running simulations. One
// Manager supervises many processes (one per recoil element or
// optimization trial), caps how many run side by side, and fans each
// run's progress stream out to its subscribers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beamlab/erdsim/internal/config"
	"github.com/beamlab/erdsim/internal/logging"
	"github.com/beamlab/erdsim/internal/mcerd"
	"github.com/beamlab/erdsim/internal/monitoring"
	"github.com/beamlab/erdsim/internal/shared/id"
	"github.com/beamlab/erdsim/internal/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrTooManyRuns is returned when the concurrency cap is reached.
	ErrTooManyRuns = errors.New("too many concurrent simulations")
)

// RunInfo is a point-in-time snapshot of one run.
type RunInfo struct {
	ID         id.RunID      `json:"id"`
	Seed       int           `json:"seed"`
	Name       string        `json:"name"`
	Running    bool          `json:"running"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	ResultFile string        `json:"result_file"`
	Last       *mcerd.Record `json:"last,omitempty"`
}

// Run pairs one process with its progress broadcast.
type Run struct {
	id        id.RunID
	proc      *mcerd.Process
	startedAt time.Time

	mu          sync.RWMutex
	last        mcerd.Record
	haveLast    bool
	finishedAt  time.Time
	finished    bool
	subscribers map[chan mcerd.Record]struct{}
}

// subscriberBuffer bounds each subscriber channel. Slow subscribers lose
// intermediate records, never the stream itself.
const subscriberBuffer = 256

// Manager launches and tracks simulation runs.
type Manager struct {
	cfg     config.SimConfig
	logger  *logging.Logger
	metrics *monitoring.Metrics
	sem     *semaphore.Weighted
	runs    sync.Map // id.RunID -> *Run
}

// NewManager creates a run manager. metrics may be nil.
func NewManager(cfg config.SimConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency())),
	}
}

// Launch stages and starts one simulation. It returns synchronously once
// the child process is spawned; staging and launch errors propagate to
// the caller, and ErrTooManyRuns is returned when the cap is hit.
func (m *Manager) Launch(ctx context.Context, settings *sim.Settings, base string) (RunInfo, error) {
	proc, err := mcerd.NewProcess(settings, base, mcerd.Options{
		BinDir:       m.cfg.BinDir,
		PollInterval: m.cfg.PollInterval,
		Logger:       m.logger,
		EchoProgress: m.cfg.EchoProgress,
	})
	if err != nil {
		return RunInfo{}, err
	}

	if !m.sem.TryAcquire(1) {
		return RunInfo{}, fmt.Errorf("%w (cap %d)", ErrTooManyRuns, m.cfg.Concurrency())
	}

	records, err := proc.Run(ctx)
	if err != nil {
		m.sem.Release(1)
		m.metrics.RecordLaunchFailure()
		return RunInfo{}, err
	}

	run := &Run{
		id:          id.NewRunID(),
		proc:        proc,
		startedAt:   time.Now(),
		subscribers: make(map[chan mcerd.Record]struct{}),
	}
	m.runs.Store(run.id, run)
	m.metrics.RecordLaunch()
	m.logger.Info("run launched",
		zap.String("run", string(run.id)),
		zap.Int("seed", proc.Seed()),
		zap.String("recoil", proc.Name()))

	go m.consume(run, records)

	return run.snapshot(), nil
}

// consume drains one run's record stream, tracking the latest record and
// fanning it out to subscribers until the stream terminates.
func (m *Manager) consume(run *Run, records <-chan mcerd.Record) {
	for rec := range records {
		m.metrics.RecordProgress()
		run.publish(rec)
	}
	run.finish()
	m.sem.Release(1)
	m.metrics.RecordFinish(time.Since(run.startedAt))
	m.logger.Info("run finished",
		zap.String("run", string(run.id)),
		zap.Duration("duration", time.Since(run.startedAt)))
}

// Get returns a snapshot of one run.
func (m *Manager) Get(runID id.RunID) (RunInfo, error) {
	run, err := m.lookup(runID)
	if err != nil {
		return RunInfo{}, err
	}
	return run.snapshot(), nil
}

// List returns snapshots of all known runs.
func (m *Manager) List() []RunInfo {
	infos := make([]RunInfo, 0)
	m.runs.Range(func(_, value any) bool {
		infos = append(infos, value.(*Run).snapshot())
		return true
	})
	return infos
}

// Stop terminates a run's process. Stopping an already-finished run is a
// no-op; the run's stream ends on its own within one poll interval.
func (m *Manager) Stop(runID id.RunID) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	return run.proc.Stop()
}

// Subscribe attaches a new subscriber to a run's progress stream. The
// latest record, if any, is delivered first. The returned cancel func
// detaches the subscriber and closes its channel; it is also called
// automatically when the run finishes.
func (m *Manager) Subscribe(runID id.RunID) (<-chan mcerd.Record, func(), error) {
	run, err := m.lookup(runID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := run.subscribe()
	return ch, cancel, nil
}

// Collect copies the run's result and recoil files to destination.
func (m *Manager) Collect(runID id.RunID, destination string) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	return run.proc.CopyResults(destination)
}

// CollectRecoil copies only the recoil distribution file to destination.
func (m *Manager) CollectRecoil(runID id.RunID, destination string) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	return run.proc.CopyRecoil(destination)
}

// Remove stops a run, deletes its staged and intermediate files and
// forgets it. Cleanup failures are logged inside the process controller,
// never raised.
func (m *Manager) Remove(runID id.RunID) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	if err := run.proc.Stop(); err != nil {
		return err
	}
	run.proc.DeleteUnneededFiles()
	m.runs.Delete(runID)
	return nil
}

// StopAll terminates every live run. Used on service shutdown.
func (m *Manager) StopAll() {
	m.runs.Range(func(_, value any) bool {
		if err := value.(*Run).proc.Stop(); err != nil {
			m.logger.Warn("stop failed during shutdown", zap.Error(err))
		}
		return true
	})
}

func (m *Manager) lookup(runID id.RunID) (*Run, error) {
	value, ok := m.runs.Load(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return value.(*Run), nil
}

func (r *Run) snapshot() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := RunInfo{
		ID:         r.id,
		Seed:       r.proc.Seed(),
		Name:       r.proc.Name(),
		Running:    !r.finished && r.proc.Running(),
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		ResultFile: r.proc.Files().Result,
	}
	if r.haveLast {
		rec := r.last
		info.Last = &rec
	}
	return info
}

func (r *Run) publish(rec mcerd.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = rec
	r.haveLast = true
	for ch := range r.subscribers {
		select {
		case ch <- rec:
		default:
			// Subscriber is behind; drop this record for it.
		}
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = true
	r.finishedAt = time.Now()
	for ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, ch)
	}
}

func (r *Run) subscribe() (<-chan mcerd.Record, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan mcerd.Record, subscriberBuffer)
	if r.finished {
		if r.haveLast {
			ch <- r.last
		}
		close(ch)
		return ch, func() {}
	}
	if r.haveLast {
		ch <- r.last
	}
	r.subscribers[ch] = struct{}{}

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}
