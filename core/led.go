// LED output support
// Stateless pin writes with optional active-low inversion; the driver keeps
// the logical level so Toggle does not depend on reading back an output.
package core

import (
	"fmt"
	"strconv"
	"sync"
)

// LED flags
const (
	LF_ON         = 1 << 0 // Current logical state (1=lit)
	LF_ACTIVE_LOW = 1 << 1 // Pin is driven low to light the LED
)

// led is one configured output
type led struct {
	Pin   GPIOPin
	Flags uint8
}

// LEDs drives a fixed set of LED outputs by index
type LEDs struct {
	mu   sync.Mutex
	gpio GPIODriver
	leds []led
}

// NewLEDs configures pins as outputs and switches every LED off.
func NewLEDs(gpio GPIODriver, pins []GPIOPin, activeLow bool) (*LEDs, error) {
	if gpio == nil || len(pins) == 0 {
		return nil, fmt.Errorf("led init: %w", ErrInvalidArgument)
	}

	l := &LEDs{gpio: gpio, leds: make([]led, len(pins))}
	for i, pin := range pins {
		l.leds[i].Pin = pin
		if activeLow {
			l.leds[i].Flags |= LF_ACTIVE_LOW
		}
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, fmt.Errorf("configure led %d pin %d: %w", i, pin, err)
		}
		if err := l.write(&l.leds[i], false); err != nil {
			return nil, fmt.Errorf("led %d off: %w", i, err)
		}
	}

	DebugAsync("LED module initialized (" + strconv.Itoa(len(pins)) + " LEDs)")
	return l, nil
}

// Count returns the number of LEDs
func (l *LEDs) Count() int {
	return len(l.leds)
}

// Set lights (on=true) or clears LED index
func (l *LEDs) Set(index int, on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.get(index)
	if err != nil {
		return err
	}
	if err := l.write(d, on); err != nil {
		return err
	}
	DebugAsync("led_set idx=" + strconv.Itoa(index) + " level=" + utoa(boolToU32(on)) + " gpio=" + utoa(uint32(d.Pin)))
	return nil
}

// Toggle inverts LED index
func (l *LEDs) Toggle(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.get(index)
	if err != nil {
		return err
	}
	cur := d.Flags&LF_ON != 0
	if err := l.write(d, !cur); err != nil {
		return err
	}
	DebugAsync("led_toggle idx=" + strconv.Itoa(index) + " gpio=" + utoa(uint32(d.Pin)) +
		" from=" + utoa(boolToU32(cur)) + " to=" + utoa(boolToU32(!cur)))
	return nil
}

// Level reports whether LED index is lit
func (l *LEDs) Level(index int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.get(index)
	if err != nil {
		return false, err
	}
	return d.Flags&LF_ON != 0, nil
}

// Off switches every LED off
func (l *LEDs) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.leds {
		if err := l.write(&l.leds[i], false); err != nil {
			return fmt.Errorf("led %d off: %w", i, err)
		}
	}
	return nil
}

func (l *LEDs) get(index int) (*led, error) {
	if index < 0 || index >= len(l.leds) {
		return nil, fmt.Errorf("led %d: %w", index, ErrInvalidArgument)
	}
	return &l.leds[index], nil
}

// write drives the pin for logical state on and updates the flags
func (l *LEDs) write(d *led, on bool) error {
	level := on
	if d.Flags&LF_ACTIVE_LOW != 0 {
		level = !on
	}
	if err := l.gpio.SetPin(d.Pin, level); err != nil {
		return err
	}
	if on {
		d.Flags |= LF_ON
	} else {
		d.Flags &^= LF_ON
	}
	return nil
}
