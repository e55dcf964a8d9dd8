package protocol

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestRecordStreamReassemblesBatches(t *testing.T) {
	pr, pw := io.Pipe()
	stream := NewRecordStream(pr)
	defer stream.Close()

	first := AppendRecords(nil, []Record{{Timestamp: 1, Value: 1}, {Timestamp: 2, Value: 2}}, MaxTransfer)
	second := AppendRecords(nil, []Record{{Timestamp: 3, Value: 3}}, MaxTransfer)

	go func() {
		// Split the first batch mid-record and glue the second onto its tail
		pw.Write(first[:7])
		pw.Write(append(first[7:], second...))
		pw.Close()
	}()

	batch, err := stream.Next(time.Second)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if len(batch) != 2 || batch[1].Timestamp != 2 {
		t.Errorf("Unexpected first batch %v", batch)
	}

	batch, err = stream.Next(time.Second)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if len(batch) != 1 || batch[0].Value != 3 {
		t.Errorf("Unexpected second batch %v", batch)
	}

	// EOF closes the stream
	if _, err := stream.Next(time.Second); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed after EOF, got %v", err)
	}
}

func TestRecordStreamClose(t *testing.T) {
	pr, _ := io.Pipe()
	stream := NewRecordStream(pr)

	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op
	if err := stream.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	if _, ok := <-stream.Batches(); ok {
		t.Error("Expected batches channel closed")
	}
	if stream.Overruns() != 0 {
		t.Errorf("Expected no overruns, got %d", stream.Overruns())
	}
}
