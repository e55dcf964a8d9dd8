package core

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a button pipeline event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Button    uint8  // Button index
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtDebounce    = 1 // Debounce expired; v1 = sampled level, v2 = event kind
	EvtLongPress   = 2 // Long-press timer expired
	EvtQueueDrop   = 3 // Event dropped on a full queue; v1 = event kind, v2 = total drops
	EvtRegistryUp  = 4 // Registry initialized; v1 = button count
	EvtRegistryOff = 5 // Registry deinitialized
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugMu      sync.RWMutex
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled atomic.Bool

	// Timing capture ring buffer (non-blocking, for post-mortem)
	timingCrit     critical
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8 // Next write position

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, a host logger, etc.
func SetDebugWriter(writer DebugWriter) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

func currentWriter() DebugWriter {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugPrintln
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker(debugChan)
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker(ch <-chan string) {
	for msg := range ch {
		if w := currentWriter(); w != nil {
			w(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if w := currentWriter(); w != nil {
		w(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Falls back to DebugPrintln when the async worker is not running and
// drops the message when the channel is full.
func DebugAsync(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTiming captures a timing event in the ring buffer
// Non-blocking; must not be called from interrupt handlers.
func RecordTiming(eventType, button uint8, clock, value1, value2 uint32) {
	state := timingCrit.enter()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Button:    button,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	timingCrit.exit(state)
}

// TimingEvents returns the captured events from oldest to newest
func TimingEvents() []TimingEvent {
	state := timingCrit.enter()
	defer timingCrit.exit(state)

	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpTimingRing outputs the timing ring buffer through the debug writer
// regardless of whether debug output is enabled.
func DumpTimingRing() {
	w := currentWriter()
	if w == nil {
		return
	}

	w("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		var name string
		switch evt.EventType {
		case EvtDebounce:
			name = "DEBOUNCE"
		case EvtLongPress:
			name = "LONG_PRESS"
		case EvtQueueDrop:
			name = "QUEUE_DROP!"
		case EvtRegistryUp:
			name = "REGISTRY_UP"
		case EvtRegistryOff:
			name = "REGISTRY_OFF"
		default:
			name = "UNKNOWN"
		}

		w("[TIMING] " + name +
			" btn=" + strconv.Itoa(int(evt.Button)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := timingCrit.enter()
	defer timingCrit.exit(state)

	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
