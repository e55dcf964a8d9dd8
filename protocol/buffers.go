package protocol

// InputBuffer is a source of encoded batches
type InputBuffer interface {
	// Data returns the unread bytes
	Data() []byte

	// Available returns len(Data())
	Available() int

	// Pop discards n bytes from the front
	Pop(n int)
}

// OutputBuffer is a sink for encoded batches
type OutputBuffer interface {
	Output(data []byte)

	// CurPosition returns the current write offset
	CurPosition() int

	// Update overwrites one byte already written, e.g. a count placeholder
	Update(pos int, val byte)
}

// SliceInputBuffer reads from a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is an OutputBuffer over a fixed array sized for one
// transfer. Output beyond the capacity is dropped.
type ScratchOutput struct {
	buf [MaxTransfer]byte
	pos int
}

// NewScratchOutput creates an empty ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

// Free returns the remaining capacity
func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// Result returns the bytes written so far
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset empties the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// StreamBuffer accumulates bytes from a stream until whole batches can be
// decoded. Unread bytes are kept contiguous, moving them to the front when
// the tail runs out of room, so Data never copies.
type StreamBuffer struct {
	buf   []byte
	read  int
	write int
}

// NewStreamBuffer creates a StreamBuffer holding up to capacity bytes
func NewStreamBuffer(capacity int) *StreamBuffer {
	return &StreamBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count
func (b *StreamBuffer) Write(data []byte) int {
	if len(b.buf)-b.write < len(data) && b.read > 0 {
		b.write = copy(b.buf, b.buf[b.read:b.write])
		b.read = 0
	}
	n := copy(b.buf[b.write:], data)
	b.write += n
	return n
}

func (b *StreamBuffer) Data() []byte {
	return b.buf[b.read:b.write]
}

func (b *StreamBuffer) Available() int {
	return b.write - b.read
}

// Free returns how many more bytes Write accepts
func (b *StreamBuffer) Free() int {
	return len(b.buf) - b.Available()
}

func (b *StreamBuffer) Pop(n int) {
	b.read += min(n, b.Available())
	if b.read == b.write {
		b.read, b.write = 0, 0
	}
}

// Reset discards all buffered bytes
func (b *StreamBuffer) Reset() {
	b.read, b.write = 0, 0
}
