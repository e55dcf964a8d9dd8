package core

import (
	"errors"
	"testing"
)

// fakeHX711 shifts a 24-bit value out on DOUT, one bit per rising clock
// edge, and is ready again after the 25th pulse.
type fakeHX711 struct {
	gpio  *mockGPIO
	pins  HX711Pins
	value int32
	bit   int
}

func (f *fakeHX711) load(v int32) {
	f.value = v
	f.bit = 0
	f.gpio.setLevel(f.pins.Data, false) // Conversion ready
}

func (f *fakeHX711) clock(pin GPIOPin, level bool) {
	if pin != f.pins.Clock || !level {
		return
	}
	if f.bit < hx711DataBits {
		f.gpio.setLevel(f.pins.Data, (uint32(f.value)>>(23-f.bit))&1 != 0)
		f.bit++
		return
	}
	f.bit = 0
	f.gpio.setLevel(f.pins.Data, false)
}

// fakeTicks returns a clock that advances one tick per call
func fakeTicks() func() uint32 {
	var t uint32
	return func() uint32 {
		t++
		return t
	}
}

func newTestHX711(t *testing.T, pins ...HX711Pins) (*HX711, []*fakeHX711) {
	t.Helper()
	gpio := newMockGPIO()
	fakes := make([]*fakeHX711, len(pins))
	for i, p := range pins {
		fakes[i] = &fakeHX711{gpio: gpio, pins: p}
	}
	gpio.onSet = func(pin GPIOPin, level bool) {
		for _, f := range fakes {
			f.clock(pin, level)
		}
	}

	h, err := NewHX711(gpio, pins)
	if err != nil {
		t.Fatalf("NewHX711 failed: %v", err)
	}
	h.now = fakeTicks()
	h.sleep = func(uint32) {}

	for _, p := range pins {
		if gpio.mode(p.Data) != "pullup" || gpio.mode(p.Clock) != "output" {
			t.Fatalf("Unexpected pin modes for %+v", p)
		}
		if gpio.level(p.Clock) {
			t.Fatalf("Clock pin %d left high", p.Clock)
		}
	}
	return h, fakes
}

func TestHX711ReadRaw(t *testing.T) {
	h, fakes := newTestHX711(t, HX711Pins{Data: 10, Clock: 11})

	tests := []int32{0, 1, 123456, 0x7FFFFF, -1, -5, -0x800000}
	for _, want := range tests {
		fakes[0].load(want)
		if got := h.ReadRaw(0); got != want {
			t.Errorf("ReadRaw = %d, want %d", got, want)
		}
	}
}

func TestHX711Sentinels(t *testing.T) {
	h, _ := newTestHX711(t, HX711Pins{Data: 10, Clock: 11})

	// DOUT still high from the pull-up: never ready
	if got := h.ReadRaw(0); got != HX711Timeout {
		t.Errorf("Expected timeout sentinel, got %#x", got)
	}
	if got := h.ReadRaw(1); got != HX711BadIndex {
		t.Errorf("Expected bad index sentinel, got %#x", got)
	}
	if got := h.ReadRaw(-1); got != HX711BadIndex {
		t.Errorf("Expected bad index sentinel for -1, got %#x", got)
	}
	if h.Weight(0) != 0 || h.Weight(5) != 0 {
		t.Error("Weight should read 0 on timeout or bad index")
	}
}

func TestHX711TareAndWeight(t *testing.T) {
	h, fakes := newTestHX711(t,
		HX711Pins{Data: 10, Clock: 11},
		HX711Pins{Data: 12, Clock: 13},
	)
	if h.Count() != 2 {
		t.Fatalf("Expected 2 channels, got %d", h.Count())
	}

	fakes[1].load(1000)
	if err := h.Tare(1, 4); err != nil {
		t.Fatalf("Tare failed: %v", err)
	}
	if h.Offset(1) != 1000 {
		t.Errorf("Expected offset 1000, got %d", h.Offset(1))
	}
	if h.Offset(0) != 0 {
		t.Errorf("Channel 0 offset changed to %d", h.Offset(0))
	}

	if err := h.SetCalibration(1, 2); err != nil {
		t.Fatalf("SetCalibration failed: %v", err)
	}
	fakes[1].load(3000)
	if w := h.Weight(1); w != 1000 {
		t.Errorf("Expected weight 1000, got %v", w)
	}
}

func TestHX711Errors(t *testing.T) {
	h, _ := newTestHX711(t, HX711Pins{Data: 10, Clock: 11})

	if err := h.Tare(0, 3); !errors.Is(err, ErrTimeout) {
		t.Errorf("Tare with no samples: expected ErrTimeout, got %v", err)
	}
	if err := h.Tare(3, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Tare bad index: expected ErrInvalidArgument, got %v", err)
	}
	if err := h.Tare(0, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Tare zero samples: expected ErrInvalidArgument, got %v", err)
	}
	if err := h.SetCalibration(0, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Zero calibration: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewHX711(newMockGPIO(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("No pins: expected ErrInvalidArgument, got %v", err)
	}
}
