package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// streamBufferSize holds the largest possible batch with room to spare
const streamBufferSize = 4096

// ErrStreamClosed is returned once the stream has stopped
var ErrStreamClosed = errors.New("record stream closed")

// RecordStream reassembles record batches arriving on a byte stream such as
// an SPP serial link. A background goroutine reads the port and publishes
// every complete batch.
type RecordStream struct {
	port io.ReadCloser

	inputBuffer *StreamBuffer
	batches     chan []Record

	readMutex sync.Mutex
	overruns  int

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewRecordStream starts reading batches from port
func NewRecordStream(port io.ReadCloser) *RecordStream {
	s := &RecordStream{
		port:        port,
		inputBuffer: NewStreamBuffer(streamBufferSize),
		batches:     make(chan []Record, 16),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}

	go s.readLoop()

	return s
}

// Batches returns the channel of decoded batches. It is closed when the
// port reaches EOF or the stream is closed.
func (s *RecordStream) Batches() <-chan []Record {
	return s.batches
}

// Next waits up to timeout for the next batch
func (s *RecordStream) Next(timeout time.Duration) ([]Record, error) {
	select {
	case batch, ok := <-s.batches:
		if !ok {
			return nil, ErrStreamClosed
		}
		return batch, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no record batch after %v", timeout)
	}
}

// Overruns returns how many times the input buffer overflowed and was reset
func (s *RecordStream) Overruns() int {
	s.readMutex.Lock()
	defer s.readMutex.Unlock()
	return s.overruns
}

// readLoop continuously reads from the port and decodes batches
func (s *RecordStream) readLoop() {
	defer close(s.doneChan)
	defer close(s.batches)

	buffer := make([]byte, 256)

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		n, err := s.port.Read(buffer)
		if n > 0 {
			s.processBatches(buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-s.stopChan:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

// processBatches buffers data and publishes every complete batch
func (s *RecordStream) processBatches(data []byte) {
	s.readMutex.Lock()
	defer s.readMutex.Unlock()

	if written := s.inputBuffer.Write(data); written < len(data) {
		// Lost bytes; the stream can no longer be trusted to be aligned
		s.overruns++
		s.inputBuffer.Reset()
		return
	}

	for {
		batch, err := DecodeRecords(s.inputBuffer)
		if err != nil {
			return
		}
		select {
		case s.batches <- batch:
		case <-s.stopChan:
			return
		}
	}
}

// Close stops the read loop and closes the port
func (s *RecordStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		if s.port != nil {
			err = s.port.Close()
		}
		<-s.doneChan // Wait for read loop to finish
	})
	return err
}
