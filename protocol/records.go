package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrShortBatch = errors.New("incomplete record batch")
	ErrNoSpace    = errors.New("output too small for batch header")
)

// Record is one exported event
type Record struct {
	Timestamp uint64 // Milliseconds
	Value     uint8  // Low two bits significant
}

// BatchLen returns the encoded size of a batch of count records
func BatchLen(count int) int {
	return BatchHeader + count*RecordSize
}

// RecordsFit returns how many records fit in maxLen bytes
func RecordsFit(maxLen int) int {
	if maxLen < BatchHeader {
		return 0
	}
	n := (maxLen - BatchHeader) / RecordSize
	if n > MaxRecords {
		n = MaxRecords
	}
	return n
}

// EncodeRecords writes a batch holding the leading records that fit in
// maxLen bytes (and in output) and returns how many were written.
func EncodeRecords(output OutputBuffer, records []Record, maxLen int) (int, error) {
	if free, ok := output.(interface{ Free() int }); ok && free.Free() < maxLen {
		maxLen = free.Free()
	}
	if maxLen < BatchHeader {
		return 0, ErrNoSpace
	}

	n := RecordsFit(maxLen)
	if n > len(records) {
		n = len(records)
	}

	countPos := output.CurPosition()
	output.Output([]byte{0}) // Count placeholder

	var rec [RecordSize]byte
	for _, r := range records[:n] {
		binary.LittleEndian.PutUint64(rec[:TimestampSize], r.Timestamp)
		rec[TimestampSize] = r.Value & ValueMask
		output.Output(rec[:])
	}

	output.Update(countPos, byte(n))
	return n, nil
}

// AppendRecords appends an encoded batch to dst. Like EncodeRecords it keeps
// the leading records that fit in maxLen bytes.
func AppendRecords(dst []byte, records []Record, maxLen int) []byte {
	n := RecordsFit(maxLen)
	if n > len(records) {
		n = len(records)
	}

	dst = append(dst, byte(n))
	for _, r := range records[:n] {
		dst = binary.LittleEndian.AppendUint64(dst, r.Timestamp)
		dst = append(dst, r.Value&ValueMask)
	}
	return dst
}

// DecodeRecords consumes one batch from input. When the batch is not yet
// complete it returns ErrShortBatch and leaves input untouched.
func DecodeRecords(input InputBuffer) ([]Record, error) {
	data := input.Data()
	if len(data) < BatchHeader {
		return nil, ErrShortBatch
	}

	count := int(data[0])
	size := BatchLen(count)
	if len(data) < size {
		return nil, ErrShortBatch
	}

	records := make([]Record, count)
	for i := range records {
		rec := data[BatchHeader+i*RecordSize:]
		records[i] = Record{
			Timestamp: binary.LittleEndian.Uint64(rec[:TimestampSize]),
			Value:     rec[TimestampSize] & ValueMask,
		}
	}

	input.Pop(size)
	return records, nil
}
