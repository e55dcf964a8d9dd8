// Package collector is the peer side of the record export link. It reads
// record batches from an SPP/RFCOMM serial device and accumulates them.
package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"pillbox/host/serial"
	"pillbox/protocol"
)

// Collector represents a connection to a pillbox device
type Collector struct {
	// Record stream over the port
	stream *protocol.RecordStream

	// Serial port
	port serial.Port

	mu sync.Mutex
	// Occurrences of each record. Devices resend their ring, so batches
	// overlap; a record counts as often as it appears in any one batch.
	records map[protocol.Record]int
	batches int

	// Connection state
	connected bool
}

// Summary describes what has been collected so far
type Summary struct {
	Batches int           `json:"batches"`
	Records int           `json:"records"`
	First   uint64        `json:"first_ms,omitempty"`
	Last    uint64        `json:"last_ms,omitempty"`
	ByValue map[uint8]int `json:"by_value"`
}

// New creates a new Collector instance (not yet connected)
func New() *Collector {
	return &Collector{
		records: make(map[protocol.Record]int),
	}
}

// Connect connects to a device via serial port
func (c *Collector) Connect(device string) error {
	return c.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to a device with a custom serial config
func (c *Collector) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	c.Attach(port)
	return nil
}

// Attach starts reading batches from an already open port
func (c *Collector) Attach(port serial.Port) {
	c.port = port
	c.stream = protocol.NewRecordStream(port)
	c.connected = true
}

// Close closes the connection to the device
func (c *Collector) Close() error {
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			return err
		}
	}
	c.connected = false
	return nil
}

// Wait blocks until the next batch arrives and merges it. It returns the
// number of records in the batch.
func (c *Collector) Wait(timeout time.Duration) (int, error) {
	if !c.connected {
		return 0, fmt.Errorf("not connected to device")
	}

	batch, err := c.stream.Next(timeout)
	if err != nil {
		return 0, fmt.Errorf("failed to receive record batch: %w", err)
	}
	c.Merge(batch)
	return len(batch), nil
}

// Drain merges every batch already received without blocking
func (c *Collector) Drain() int {
	if !c.connected {
		return 0
	}
	n := 0
	for {
		select {
		case batch, ok := <-c.stream.Batches():
			if !ok {
				return n
			}
			c.Merge(batch)
			n++
		default:
			return n
		}
	}
}

// Merge adds a batch to the collection
func (c *Collector) Merge(batch []protocol.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[protocol.Record]int, len(batch))
	for _, r := range batch {
		seen[r]++
	}
	for r, n := range seen {
		if n > c.records[r] {
			c.records[r] = n
		}
	}
	c.batches++
}

// Records returns the collected records ordered by timestamp
func (c *Collector) Records() []protocol.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.Record, 0, len(c.records))
	for r, n := range c.records {
		for ; n > 0; n-- {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Clear discards everything collected
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[protocol.Record]int)
	c.batches = 0
}

// Summary returns counts over the collected records
func (c *Collector) Summary() Summary {
	records := c.Records()

	c.mu.Lock()
	s := Summary{Batches: c.batches, Records: len(records), ByValue: make(map[uint8]int)}
	c.mu.Unlock()

	for _, r := range records {
		s.ByValue[r.Value]++
	}
	if len(records) > 0 {
		s.First = records[0].Timestamp
		s.Last = records[len(records)-1].Timestamp
	}
	return s
}

// WriteJSON writes the collected records as a JSON array
func (c *Collector) WriteJSON(w io.Writer) error {
	type jsonRecord struct {
		Timestamp uint64 `json:"timestamp_ms"`
		Value     uint8  `json:"value"`
	}

	records := c.Records()
	out := make([]jsonRecord, len(records))
	for i, r := range records {
		out[i] = jsonRecord{Timestamp: r.Timestamp, Value: r.Value}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// PrintSummary prints a summary of the collection
func (c *Collector) PrintSummary(w io.Writer) {
	s := c.Summary()

	fmt.Fprintln(w, "\n=== Collected Records ===")
	fmt.Fprintf(w, "Batches: %d\n", s.Batches)
	fmt.Fprintf(w, "Records: %d\n", s.Records)
	if s.Records > 0 {
		fmt.Fprintf(w, "Span:    %d ms .. %d ms\n", s.First, s.Last)
	}
	for v := uint8(0); v <= protocol.ValueMask; v++ {
		if n := s.ByValue[v]; n > 0 {
			fmt.Fprintf(w, "  value %d: %d\n", v, n)
		}
	}
	fmt.Fprintln(w, "=========================")
}

// IsConnected returns whether the device is connected
func (c *Collector) IsConnected() bool {
	return c.connected
}
