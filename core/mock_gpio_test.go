package core

import (
	"errors"
	"sync"
	"sync/atomic"
)

var errMockPin = errors.New("mock pin failure")

// mockGPIO is an in-memory InterruptDriver. Inputs follow their pull until a
// test drives them with trigger or setLevel.
type mockGPIO struct {
	mu       sync.Mutex
	levels   map[GPIOPin]bool
	modes    map[GPIOPin]string
	handlers map[GPIOPin]InterruptHandler
	edges    map[GPIOPin]PinEdge

	failConfigure map[GPIOPin]bool
	failInterrupt map[GPIOPin]bool

	// onSet is called after every SetPin, outside the lock
	onSet func(pin GPIOPin, level bool)

	reads atomic.Int32
}

func newMockGPIO() *mockGPIO {
	return &mockGPIO{
		levels:        make(map[GPIOPin]bool),
		modes:         make(map[GPIOPin]string),
		handlers:      make(map[GPIOPin]InterruptHandler),
		edges:         make(map[GPIOPin]PinEdge),
		failConfigure: make(map[GPIOPin]bool),
		failInterrupt: make(map[GPIOPin]bool),
	}
}

func (m *mockGPIO) configure(pin GPIOPin, mode string, level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfigure[pin] {
		return errMockPin
	}
	m.modes[pin] = mode
	m.levels[pin] = level
	return nil
}

func (m *mockGPIO) ConfigureOutput(pin GPIOPin) error {
	return m.configure(pin, "output", false)
}

func (m *mockGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	return m.configure(pin, "pullup", true)
}

func (m *mockGPIO) ConfigureInputPullDown(pin GPIOPin) error {
	return m.configure(pin, "pulldown", false)
}

func (m *mockGPIO) SetPin(pin GPIOPin, value bool) error {
	m.mu.Lock()
	m.levels[pin] = value
	hook := m.onSet
	m.mu.Unlock()

	if hook != nil {
		hook(pin, value)
	}
	return nil
}

func (m *mockGPIO) GetPin(pin GPIOPin) (bool, error) {
	return m.ReadPin(pin), nil
}

func (m *mockGPIO) ReadPin(pin GPIOPin) bool {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *mockGPIO) SetInterrupt(pin GPIOPin, edge PinEdge, handler InterruptHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInterrupt[pin] {
		return errMockPin
	}
	m.handlers[pin] = handler
	m.edges[pin] = edge
	return nil
}

func (m *mockGPIO) ClearInterrupt(pin GPIOPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, pin)
	delete(m.edges, pin)
	return nil
}

// setLevel changes an input without raising an interrupt
func (m *mockGPIO) setLevel(pin GPIOPin, level bool) {
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
}

// trigger drives pin to level and runs its interrupt handler, if any
func (m *mockGPIO) trigger(pin GPIOPin, level bool) {
	m.mu.Lock()
	m.levels[pin] = level
	handler := m.handlers[pin]
	m.mu.Unlock()

	if handler != nil {
		handler(pin)
	}
}

func (m *mockGPIO) mode(pin GPIOPin) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modes[pin]
}

func (m *mockGPIO) level(pin GPIOPin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *mockGPIO) handlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *mockGPIO) edge(pin GPIOPin) PinEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[pin]
}

// manualClock is a tick source advanced by tests
type manualClock struct {
	ticks atomic.Uint32
}

func (c *manualClock) Now() uint32 {
	return c.ticks.Load()
}

func (c *manualClock) Set(ticks uint32) {
	c.ticks.Store(ticks)
}
