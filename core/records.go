package core

import (
	"sync"

	"pillbox/protocol"
)

// RecordRing keeps the most recent exported records. When full the oldest
// record is overwritten.
type RecordRing struct {
	mu      sync.Mutex
	records []protocol.Record
	head    int // Next write position
	count   int
	dropped uint32
}

// NewRecordRing creates a ring holding up to capacity records
func NewRecordRing(capacity int) *RecordRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecordRing{records: make([]protocol.Record, capacity)}
}

// Append stores a record stamped with timestamp
func (r *RecordRing) Append(timestamp uint64, value uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.head] = protocol.Record{Timestamp: timestamp, Value: value & protocol.ValueMask}
	r.head = (r.head + 1) % len(r.records)
	if r.count < len(r.records) {
		r.count++
	} else {
		r.dropped++
	}
}

// Len returns the number of stored records
func (r *RecordRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity
func (r *RecordRing) Cap() int {
	return len(r.records)
}

// Overwritten returns how many records were lost to wraparound
func (r *RecordRing) Overwritten() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Snapshot returns all stored records from oldest to newest
func (r *RecordRing) Snapshot() []protocol.Record {
	return r.Latest(-1)
}

// Latest returns up to n of the newest records, oldest first. A negative n
// returns everything.
func (r *RecordRing) Latest(n int) []protocol.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 0 || n > r.count {
		n = r.count
	}
	out := make([]protocol.Record, n)
	start := r.head - n
	if start < 0 {
		start += len(r.records)
	}
	for i := range out {
		out[i] = r.records[(start+i)%len(r.records)]
	}
	return out
}

// Clear discards all records
func (r *RecordRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}
