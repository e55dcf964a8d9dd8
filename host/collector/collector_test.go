package collector

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pillbox/protocol"
)

// pipePort is a serial.Port fed by the test through w
type pipePort struct {
	*io.PipeReader
	w *io.PipeWriter
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{PipeReader: r, w: w}
}

func (p *pipePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *pipePort) Flush() error                { return nil }

func (p *pipePort) send(t *testing.T, records []protocol.Record) {
	t.Helper()
	data := protocol.AppendRecords(nil, records, protocol.MaxTransfer)
	go p.w.Write(data)
}

func TestCollectorMergesBatches(t *testing.T) {
	port := newPipePort()
	c := New()
	c.Attach(port)
	defer c.Close()

	require.True(t, c.IsConnected())

	port.send(t, []protocol.Record{{Timestamp: 10, Value: 1}, {Timestamp: 20, Value: 2}})
	n, err := c.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The device resends its ring; records seen before are not counted twice
	port.send(t, []protocol.Record{{Timestamp: 20, Value: 2}, {Timestamp: 5, Value: 0}})
	_, err = c.Wait(time.Second)
	require.NoError(t, err)

	records := c.Records()
	require.Len(t, records, 3)
	assert.Equal(t, uint64(5), records[0].Timestamp)
	assert.Equal(t, uint64(20), records[2].Timestamp)

	s := c.Summary()
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, uint64(5), s.First)
	assert.Equal(t, uint64(20), s.Last)
	assert.Equal(t, 1, s.ByValue[2])

	var out bytes.Buffer
	c.PrintSummary(&out)
	assert.Contains(t, out.String(), "Records: 3")

	c.Clear()
	assert.Empty(t, c.Records())
}

func TestCollectorKeepsSameMillisecondRecords(t *testing.T) {
	c := New()

	// Buttons 0 and 1 pressed within the same millisecond
	c.Merge([]protocol.Record{{Timestamp: 100, Value: 0}, {Timestamp: 100, Value: 1}})
	assert.Equal(t, []protocol.Record{{Timestamp: 100, Value: 0}, {Timestamp: 100, Value: 1}}, c.Records())

	// Buttons 0 and 4 share a value; both survive, and a resend adds nothing
	c.Merge([]protocol.Record{{Timestamp: 200, Value: 0}, {Timestamp: 200, Value: 0}})
	c.Merge([]protocol.Record{{Timestamp: 100, Value: 1}, {Timestamp: 200, Value: 0}, {Timestamp: 200, Value: 0}})
	assert.Len(t, c.Records(), 4)
	assert.Equal(t, 4, c.Summary().Records)
}

func TestCollectorWriteJSON(t *testing.T) {
	c := New()
	c.Merge([]protocol.Record{{Timestamp: 7, Value: 3}})

	var buf bytes.Buffer
	require.NoError(t, c.WriteJSON(&buf))

	var decoded []map[string]uint64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, uint64(7), decoded[0]["timestamp_ms"])
	assert.Equal(t, uint64(3), decoded[0]["value"])
}

func TestCollectorNotConnected(t *testing.T) {
	c := New()
	_, err := c.Wait(10 * time.Millisecond)
	assert.Error(t, err)
	assert.Zero(t, c.Drain())
}

func TestCollectorWaitTimeout(t *testing.T) {
	port := newPipePort()
	c := New()
	c.Attach(port)
	defer c.Close()

	_, err := c.Wait(20 * time.Millisecond)
	assert.Error(t, err)
}
