// Package protocol implements the record export wire format shared by the
// BLE characteristic and the SPP link.
//
// A batch is one count byte (0-255) followed by count records. Each record
// is an 8-byte little-endian millisecond timestamp and one value byte of
// which only the low two bits are significant. Batches are truncated to the
// transport's maximum transfer size.
package protocol

// Wire format constants
const (
	MaxTransfer   = 512 // Largest batch a transport accepts (BLE read buffer)
	BatchHeader   = 1   // Count byte
	RecordSize    = 9   // Timestamp (8) + value (1)
	MaxRecords    = 255 // Count is a single byte
	TimestampSize = 8
	ValueMask     = 0x03 // Significant bits of the value byte
)
