package mcerd

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// Record is one immutable snapshot of simulation progress. Consumers must
// not mutate it; a new Record is emitted per folded event.
type Record struct {
	Seed       int    `json:"seed"`
	Name       string `json:"name"`
	Presim     bool   `json:"presim"`
	Calculated int    `json:"calculated"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Msg        string `json:"msg"`
	Running    bool   `json:"running"`
}

// Pipeline merges a process's stdout and stderr with a periodic liveness
// poll into one ordered, terminating sequence of Records. Seed and name
// are constants stamped onto every record at construction.
type Pipeline struct {
	seed     int
	name     string
	interval time.Duration
	echo     func(Record)
}

// NewPipeline creates a pipeline for one process. interval is the
// liveness poll period; the first poll happens immediately.
func NewPipeline(seed int, name string, interval time.Duration) *Pipeline {
	return &Pipeline{seed: seed, name: name, interval: interval}
}

// WithEcho tees every emitted record to sink, typically a logger. The sink
// must tolerate concurrent calls when multiple pipelines share it.
func (p *Pipeline) WithEcho(sink func(Record)) *Pipeline {
	p.echo = sink
	return p
}

// foldState is the accumulator threaded through the line fold.
type foldState struct {
	presim     bool
	calculated int
	total      int
	percentage int
}

// Run starts the merge and returns the record channel. The channel closes
// once the terminal marker is seen, or once alive reports false and the
// output already buffered at that point has been folded; the triggering
// record is still emitted. The caller must drain the channel.
func (p *Pipeline) Run(stdout, stderr io.Reader, alive func() bool) <-chan Record {
	out := make(chan Record)
	lines := make(chan string)
	done := make(chan struct{})

	var pumps sync.WaitGroup
	pumps.Add(2)
	go pump(stdout, lines, done, &pumps)
	go pump(stderr, lines, done, &pumps)
	go func() {
		pumps.Wait()
		close(lines)
	}()

	go func() {
		defer close(out)
		defer close(done)

		state := foldState{presim: true}
		var last Record
		haveRecord := false
		running := alive()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		emit := func(rec Record) {
			if p.echo != nil {
				p.echo(rec)
			}
			out <- rec
		}

		if !running {
			// Exited before producing anything observable; nothing to
			// combine, nothing to emit.
			if p.drainFirst(lines, &state, &last) {
				last.Running = false
				emit(last)
			}
			return
		}

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					// Both pipes hit EOF. Keep polling; the liveness flip
					// terminates the stream within one interval.
					lines = nil
					continue
				}
				last = p.fold(&state, line)
				last.Running = running
				haveRecord = true
				emit(last)
				if IsTerminal(last.Msg) {
					return
				}
			case <-ticker.C:
				if alive() {
					continue
				}
				// The process is gone, but its last writes may still sit
				// in the pipe buffers. Fold whatever arrives until the
				// pipes close or stay quiet for a full interval (a
				// straggler holding a write end open must not stall the
				// stream forever).
				drained := false
				for lines != nil {
					quiet := time.NewTimer(p.interval)
					select {
					case line, ok := <-lines:
						quiet.Stop()
						if !ok {
							lines = nil
							continue
						}
						last = p.fold(&state, line)
						last.Running = false
						haveRecord = true
						drained = true
						emit(last)
						if IsTerminal(last.Msg) {
							return
						}
					case <-quiet.C:
						lines = nil
					}
				}
				if haveRecord && !drained {
					last.Running = false
					emit(last)
				}
				return
			}
		}
	}()

	return out
}

// fold advances the parser state by one line and produces the complete
// record for it. Fields absent from the parsed update carry forward.
func (p *Pipeline) fold(state *foldState, line string) Record {
	state.presim = state.presim && line != presimFinishedMsg

	u := ParseLine(line)
	if u.HasCalculated {
		state.calculated = u.Calculated
	}
	if u.HasTotal {
		state.total = u.Total
	}
	if u.HasPercentage {
		state.percentage = u.Percentage
	}
	msg := ""
	if u.HasMsg {
		msg = u.Msg
	}

	return Record{
		Seed:       p.seed,
		Name:       p.name,
		Presim:     state.presim,
		Calculated: state.calculated,
		Total:      state.total,
		Percentage: state.percentage,
		Msg:        msg,
	}
}

// drainFirst folds at most one already-buffered line so a process that
// exited instantly still yields its first message if one arrived.
func (p *Pipeline) drainFirst(lines <-chan string, state *foldState, last *Record) bool {
	select {
	case line, ok := <-lines:
		if !ok {
			return false
		}
		*last = p.fold(state, line)
		return true
	default:
		return false
	}
}

// pump reads trimmed lines from r into sink until EOF or cancellation.
func pump(r io.Reader, sink chan<- string, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			// A blank line would fold into an empty opaque record that
			// carries nothing; drop it at the source.
			continue
		}
		select {
		case sink <- line:
		case <-done:
			return
		}
	}
}
