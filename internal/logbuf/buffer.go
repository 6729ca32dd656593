package logbuf

import "github.com/tinytelemetry/logdesk/internal/model"

// Buffer is an insertion-ordered log buffer with a fixed capacity.
// When full, the oldest entries are dropped first. It is not safe for
// concurrent use; the owning controller serializes access.
type Buffer struct {
	entries  []model.LogEntry
	capacity int
}

// New creates a buffer. A non-positive capacity falls back to the default.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = model.DefaultLogBuffer
	}
	return &Buffer{
		entries:  make([]model.LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Len returns the number of buffered entries.
func (b *Buffer) Len() int { return len(b.entries) }

// Append adds an entry and trims the oldest prefix if the capacity was
// exceeded. It reports whether anything was evicted.
func (b *Buffer) Append(e model.LogEntry) bool {
	b.entries = append(b.entries, e)
	if len(b.entries) <= b.capacity {
		return false
	}
	b.trim()
	return true
}

// Replace swaps the contents for entries, keeping only the newest capacity.
func (b *Buffer) Replace(entries []model.LogEntry) {
	b.entries = append(b.entries[:0], entries...)
	if len(b.entries) > b.capacity {
		b.trim()
	}
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.entries = b.entries[:0]
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []model.LogEntry {
	out := make([]model.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// trim drops the oldest entries. It copies into a fresh backing array so
// the evicted prefix can be collected.
func (b *Buffer) trim() {
	kept := make([]model.LogEntry, b.capacity, b.capacity+1)
	copy(kept, b.entries[len(b.entries)-b.capacity:])
	b.entries = kept
}
