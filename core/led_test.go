package core

import (
	"errors"
	"testing"
)

func TestLEDsActiveHigh(t *testing.T) {
	gpio := newMockGPIO()
	leds, err := NewLEDs(gpio, []GPIOPin{20, 21}, false)
	if err != nil {
		t.Fatalf("NewLEDs failed: %v", err)
	}

	if gpio.mode(20) != "output" || gpio.level(20) || gpio.level(21) {
		t.Fatal("LEDs should be outputs driven off")
	}

	if err := leds.Set(1, true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !gpio.level(21) {
		t.Error("LED 1 pin should be high")
	}

	if err := leds.Toggle(1); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if on, _ := leds.Level(1); on || gpio.level(21) {
		t.Error("Toggle should switch LED 1 off")
	}

	leds.Toggle(0)
	if on, _ := leds.Level(0); !on {
		t.Error("Toggle should switch LED 0 on")
	}
	if err := leds.Off(); err != nil {
		t.Fatalf("Off failed: %v", err)
	}
	if gpio.level(20) {
		t.Error("Off left LED 0 lit")
	}
}

func TestLEDsActiveLow(t *testing.T) {
	gpio := newMockGPIO()
	leds, err := NewLEDs(gpio, []GPIOPin{7}, true)
	if err != nil {
		t.Fatalf("NewLEDs failed: %v", err)
	}

	if !gpio.level(7) {
		t.Error("Active-low LED should idle high")
	}
	leds.Set(0, true)
	if gpio.level(7) {
		t.Error("Active-low LED should be driven low when lit")
	}
	if on, _ := leds.Level(0); !on {
		t.Error("Level should report the logical state")
	}
}

func TestLEDsErrors(t *testing.T) {
	gpio := newMockGPIO()
	leds, _ := NewLEDs(gpio, []GPIOPin{1}, false)

	if err := leds.Set(1, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set bad index: expected ErrInvalidArgument, got %v", err)
	}
	if err := leds.Toggle(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Toggle bad index: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := leds.Level(3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Level bad index: expected ErrInvalidArgument, got %v", err)
	}

	gpio.failConfigure[9] = true
	if _, err := NewLEDs(gpio, []GPIOPin{9}, false); !errors.Is(err, errMockPin) {
		t.Errorf("Expected wrapped configure error, got %v", err)
	}
	if _, err := NewLEDs(gpio, nil, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("No pins: expected ErrInvalidArgument, got %v", err)
	}
}

func TestLEDsToggleUsesTrackedLevel(t *testing.T) {
	gpio := newMockGPIO()
	leds, err := NewLEDs(gpio, []GPIOPin{20}, false)
	if err != nil {
		t.Fatalf("NewLEDs failed: %v", err)
	}
	leds.Set(0, true)

	// Output latches do not always read back what was driven
	gpio.setLevel(20, false)
	before := gpio.reads.Load()

	if err := leds.Toggle(0); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if on, _ := leds.Level(0); on {
		t.Error("Toggle should switch the lit LED off")
	}
	if gpio.level(20) {
		t.Error("LED pin should be driven low")
	}
	if got := gpio.reads.Load() - before; got != 0 {
		t.Errorf("Toggle read the pin %d times", got)
	}
}
