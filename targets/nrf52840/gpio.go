//go:build nrf52840

package main

import (
	"machine"

	"pillbox/core"
)

// NRFGPIODriver implements core.InterruptDriver on nRF52840 GPIO and GPIOTE
type NRFGPIODriver struct {
	// Track configured pins to prevent conflicts
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewNRFGPIODriver creates a new nRF52840 GPIO driver
func NewNRFGPIODriver() *NRFGPIODriver {
	return &NRFGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output
func (d *NRFGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d *NRFGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *NRFGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

func (d *NRFGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	// P0.00-P0.31 then P1.00-P1.15
	if pin > 47 {
		return core.ErrInvalidArgument
	}
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *NRFGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		// Pin isn't configured - configure it first
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	machinePin.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *NRFGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return false, core.ErrInvalidArgument
	}
	return machinePin.Get(), nil
}

func (d *NRFGPIODriver) ReadPin(pin core.GPIOPin) bool {
	value, _ := d.GetPin(pin)
	return value
}

// SetInterrupt arms a GPIOTE event on pin. The handler runs in interrupt
// context. The chip has eight GPIOTE channels.
func (d *NRFGPIODriver) SetInterrupt(pin core.GPIOPin, edge core.PinEdge, handler core.InterruptHandler) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists || handler == nil {
		return core.ErrInvalidArgument
	}

	var change machine.PinChange
	switch edge {
	case core.EdgeRising:
		change = machine.PinRising
	case core.EdgeFalling:
		change = machine.PinFalling
	case core.EdgeBoth:
		change = machine.PinToggle
	default:
		return core.ErrInvalidArgument
	}

	return machinePin.SetInterrupt(change, func(machine.Pin) {
		handler(pin)
	})
}

// ClearInterrupt releases the pin's GPIOTE channel
func (d *NRFGPIODriver) ClearInterrupt(pin core.GPIOPin) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return core.ErrInvalidArgument
	}
	return machinePin.SetInterrupt(0, nil)
}
