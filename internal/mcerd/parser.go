package mcerd

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// presimFinishedMsg is the literal line marking the end of the
	// presimulation phase.
	presimFinishedMsg = "Presimulation finished"

	// terminalMarker prefixes the binary's final summary line. Seeing it
	// means the run is done.
	terminalMarker = "angave"
)

var progressPattern = regexp.MustCompile(`^Calculated (\d+) of (\d+) ions \((\d+)%\)`)

// Update is a partial progress update parsed from one raw output line.
// Absent fields inherit their previous values in the pipeline fold.
type Update struct {
	Calculated int
	Total      int
	Percentage int
	Msg        string

	HasCalculated bool
	HasTotal      bool
	HasPercentage bool
	HasMsg        bool
}

// ParseLine converts one trimmed output line into a partial update. It is
// stateless; all state threading happens in the pipeline fold. Lines that
// match no recognized shape (including "Calculated" lines whose numbers
// fail to parse) pass through as opaque messages, never as errors.
func ParseLine(line string) Update {
	if m := progressPattern.FindStringSubmatch(line); m != nil {
		calculated, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		percentage, err3 := strconv.Atoi(m[3])
		if err1 == nil && err2 == nil && err3 == nil {
			return Update{
				Calculated:    calculated,
				Total:         total,
				Percentage:    percentage,
				HasCalculated: true,
				HasTotal:      true,
				HasPercentage: true,
			}
		}
	}

	if line == presimFinishedMsg {
		return Update{
			Calculated:    0,
			Percentage:    0,
			Msg:           line,
			HasCalculated: true,
			HasPercentage: true,
			HasMsg:        true,
		}
	}

	if strings.HasPrefix(line, terminalMarker) {
		return Update{
			Percentage:    100,
			Msg:           line,
			HasPercentage: true,
			HasMsg:        true,
		}
	}

	return Update{Msg: line, HasMsg: true}
}

// IsTerminal reports whether a message line signals the end of the run.
func IsTerminal(msg string) bool {
	return strings.HasPrefix(msg, terminalMarker)
}
