package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PinEdge selects which transitions raise a pin interrupt
type PinEdge uint8

const (
	EdgeNone    PinEdge = 0
	EdgeRising  PinEdge = 1 << 0
	EdgeFalling PinEdge = 1 << 1
	EdgeBoth            = EdgeRising | EdgeFalling
)

// String returns a short name for the edge selection
func (e PinEdge) String() string {
	switch e {
	case EdgeNone:
		return "none"
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "invalid"
	}
}

// InterruptHandler is invoked in interrupt context when a watched pin changes.
// Implementations must not block or allocate.
type InterruptHandler func(pin GPIOPin)

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInputPullDown configures a pin as a digital input with pull-down resistor
	ConfigureInputPullDown(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)

	// ReadPin reads the current pin state (alias for GetPin for convenience)
	ReadPin(pin GPIOPin) bool
}

// InterruptDriver is implemented by GPIO drivers that can deliver pin
// change interrupts.
type InterruptDriver interface {
	GPIODriver

	// SetInterrupt installs handler for the given edges on pin, replacing
	// any handler already installed there.
	SetInterrupt(pin GPIOPin, edge PinEdge, handler InterruptHandler) error

	// ClearInterrupt removes the handler for pin. Once it returns, the
	// handler is no longer invoked for that pin.
	ClearInterrupt(pin GPIOPin) error
}

// Global singleton used by board code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// MustInterruptGPIO returns the configured driver as an InterruptDriver or
// panics if the platform driver cannot deliver interrupts.
func MustInterruptGPIO() InterruptDriver {
	d, ok := MustGPIO().(InterruptDriver)
	if !ok {
		panic("GPIO driver does not support interrupts")
	}
	return d
}
