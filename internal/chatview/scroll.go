// Package chatview tracks scroll position and unread-message state for
// a transcript view, independent of any particular UI toolkit.
package chatview

// DefaultBottomThreshold is how many lines from the bottom still count
// as "at the bottom" for auto-scroll purposes.
const DefaultBottomThreshold = 3

// Tracker decides when the view should stick to the newest message and
// how many messages arrived while the reader was scrolled up.
type Tracker struct {
	threshold int
	offset    int
	height    int
	total     int
	unread    int
}

// NewTracker creates a tracker with the given bottom threshold. A
// non-positive threshold falls back to the default.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultBottomThreshold
	}
	return &Tracker{threshold: threshold}
}

// SetViewport records the current scroll offset (top line index) and
// visible height. Reaching the bottom clears the unread count.
func (t *Tracker) SetViewport(offset, height int) {
	t.offset = offset
	t.height = height
	if t.NearBottom() {
		t.unread = 0
	}
}

// SetTotal records the total rendered line count. New lines arriving
// while the reader is scrolled up are counted as unread.
func (t *Tracker) SetTotal(total int) {
	if total > t.total && !t.NearBottom() {
		t.unread += total - t.total
	}
	t.total = total
	if t.NearBottom() {
		t.unread = 0
	}
}

// NearBottom reports whether the view is within the threshold of the
// last line. An undersized transcript is always at the bottom.
func (t *Tracker) NearBottom() bool {
	if t.total <= t.height {
		return true
	}
	distance := t.total - (t.offset + t.height)
	return distance <= t.threshold
}

// Unread returns how many lines arrived while scrolled up.
func (t *Tracker) Unread() int {
	return t.unread
}

// MarkRead clears the unread counter, for an explicit jump-to-bottom.
func (t *Tracker) MarkRead() {
	t.unread = 0
}
