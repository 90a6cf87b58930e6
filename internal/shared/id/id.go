// Package id provides run identifier generation.
//
// Run IDs are prefixed ULIDs: lexicographically sortable by launch time,
// readable in logs, and unique across concurrently launched simulations.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one launched simulation process.
type RunID string

// RunPrefix marks run IDs in logs and API responses.
const RunPrefix = "run"

// Generator generates prefixed ULIDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewRunID creates a new run identifier.
func (g *Generator) NewRunID() RunID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return RunID(fmt.Sprintf("%s_%s", RunPrefix, u.String()))
}

// NewRunID creates a new run identifier using the default generator.
func NewRunID() RunID {
	return Default().NewRunID()
}
