package captions

import (
	"sort"

	"github.com/tiger/caption-call/api/caption"
)

// DefaultCapacity bounds the caption log. The oldest record is evicted when
// the bound is hit.
const DefaultCapacity = 200

// captionLog is a bounded append-ordered record of captions. Entries are
// kept in insertion order; snapshots sort by timestamp with insertion order
// as the tie-break.
type captionLog struct {
	capacity int
	entries  []caption.Caption
}

func newCaptionLog(capacity int) *captionLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &captionLog{capacity: capacity}
}

func (l *captionLog) append(c caption.Caption) {
	if len(l.entries) >= l.capacity {
		drop := len(l.entries) - l.capacity + 1
		l.entries = append(l.entries[:0], l.entries[drop:]...)
	}
	l.entries = append(l.entries, c)
}

// snapshot returns the log sorted ascending by timestamp. The underlying
// slice stays in insertion order, so the stable sort breaks timestamp ties
// by arrival.
func (l *captionLog) snapshot() []caption.Caption {
	out := make([]caption.Caption, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMS < out[j].TimestampMS
	})
	return out
}

func (l *captionLog) clear() {
	l.entries = nil
}

func (l *captionLog) len() int {
	return len(l.entries)
}
