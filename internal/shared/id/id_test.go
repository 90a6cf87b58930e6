package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunIDPrefix(t *testing.T) {
	runID := NewRunID()
	assert.True(t, strings.HasPrefix(string(runID), "run_"))
	assert.Len(t, string(runID), len("run_")+26)
}

func TestNewRunIDUnique(t *testing.T) {
	seen := make(map[RunID]struct{})
	for i := 0; i < 1000; i++ {
		runID := NewRunID()
		_, dup := seen[runID]
		assert.False(t, dup, "duplicate run ID %s", runID)
		seen[runID] = struct{}{}
	}
}
