// Package progress extracts the structured progress value from a host
// answer to the reserved progress question.
package progress

import (
	"regexp"
	"strconv"
)

var progressLine = regexp.MustCompile(`Progress:\s*(\d{1,3})%`)

// Parse extracts the first "Progress: N%" value from answer, clamped
// to [0, 100]. The second return is false when no such line exists.
func Parse(answer string) (int, bool) {
	m := progressLine.FindStringSubmatch(answer)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return Clamp(n), true
}

// Clamp bounds a progress value to [0, 100].
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Tracker remembers the last successfully parsed value. A parse miss
// keeps the previous value rather than resetting the display.
type Tracker struct {
	value int
	set   bool
}

// Observe parses answer and updates the tracked value on a hit.
func (t *Tracker) Observe(answer string) {
	if n, ok := Parse(answer); ok {
		t.value = n
		t.set = true
	}
}

// Value returns the tracked progress and whether one has been seen.
func (t *Tracker) Value() (int, bool) {
	return t.value, t.set
}
