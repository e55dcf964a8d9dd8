package core

import (
	"strings"
	"testing"
)

func captureDebug(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	t.Cleanup(func() {
		SetDebugWriter(func(string) {})
		SetDebugEnabled(false)
	})
	return &lines
}

func TestDebugPrintlnGated(t *testing.T) {
	lines := captureDebug(t)

	DebugPrintln("hidden")
	if len(*lines) != 0 {
		t.Fatalf("Output while disabled: %v", *lines)
	}

	SetDebugEnabled(true)
	if !IsDebugEnabled() {
		t.Fatal("Debug should be enabled")
	}
	DebugPrintln("shown")
	if len(*lines) != 1 || (*lines)[0] != "shown" {
		t.Errorf("Unexpected output %v", *lines)
	}
}

func TestTimingRing(t *testing.T) {
	lines := captureDebug(t)
	ClearTimingRing()
	defer ClearTimingRing()

	RecordTiming(EvtDebounce, 1, 95, 0, uint32(EventPress))
	RecordTiming(EvtQueueDrop, 0, 120, uint32(EventRelease), 3)

	events := TimingEvents()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].EventType != EvtDebounce || events[0].Button != 1 || events[0].Clock != 95 {
		t.Errorf("Unexpected first event %+v", events[0])
	}

	// Dump does not depend on debug being enabled
	DumpTimingRing()
	out := strings.Join(*lines, "\n")
	if !strings.Contains(out, "[TIMING] DEBOUNCE btn=1 clock=95") {
		t.Errorf("Dump missing debounce line:\n%s", out)
	}
	if !strings.Contains(out, "QUEUE_DROP! btn=0 clock=120 v1=1 v2=3") {
		t.Errorf("Dump missing drop line:\n%s", out)
	}

	// The ring keeps only the newest entries
	ClearTimingRing()
	for i := 0; i < TimingRingSize+5; i++ {
		RecordTiming(EvtLongPress, 0, uint32(i), 0, 0)
	}
	events = TimingEvents()
	if len(events) != TimingRingSize || events[0].Clock != 5 {
		t.Errorf("Expected %d events starting at clock 5, got %d starting at %d",
			TimingRingSize, len(events), events[0].Clock)
	}
}
