// Package gpio implements the core GPIO and interrupt drivers on Linux
// boards through periph.io. Pin interrupts are delivered by one edge-watch
// goroutine per pin.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"pillbox/core"
)

// edgePoll bounds WaitForEdge so a watcher notices ClearInterrupt
const edgePoll = 100 * time.Millisecond

// LookupFunc resolves a pin name such as "GPIO17"
type LookupFunc func(name string) gpio.PinIO

type pinState struct {
	io   gpio.PinIO
	pull gpio.Pull

	stop chan struct{}
	done chan struct{}
}

// Driver implements core.InterruptDriver on periph.io pins
type Driver struct {
	mu     sync.Mutex
	lookup LookupFunc
	pins   map[core.GPIOPin]*pinState
	logger *zap.SugaredLogger
}

// Open initializes the periph.io host drivers and returns a Driver using the
// board's pin registry.
func Open(logger *zap.SugaredLogger) (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return New(gpioreg.ByName, logger), nil
}

// New returns a Driver resolving pins through lookup
func New(lookup LookupFunc, logger *zap.SugaredLogger) *Driver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver{
		lookup: lookup,
		pins:   make(map[core.GPIOPin]*pinState),
		logger: logger.Named("gpio"),
	}
}

// resolve looks up a GPIO pin by number, caching the result.
func (d *Driver) resolve(pin core.GPIOPin) (*pinState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pins[pin]; ok {
		return p, nil
	}

	name := fmt.Sprintf("GPIO%d", pin)
	p := d.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", pin, name)
	}
	st := &pinState{io: p, pull: gpio.PullNoChange}
	d.pins[pin] = st
	return st, nil
}

func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	if err := p.io.Out(gpio.Low); err != nil {
		return fmt.Errorf("set pin %d to output: %w", pin, err)
	}
	return nil
}

func (d *Driver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configureInput(pin, gpio.PullUp)
}

func (d *Driver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configureInput(pin, gpio.PullDown)
}

func (d *Driver) configureInput(pin core.GPIOPin, pull gpio.Pull) error {
	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	if err := p.io.In(pull, gpio.NoEdge); err != nil {
		return fmt.Errorf("set pin %d to input: %w", pin, err)
	}
	d.mu.Lock()
	p.pull = pull
	d.mu.Unlock()
	return nil
}

func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	p, err := d.resolve(pin)
	if err != nil {
		return err
	}
	return p.io.Out(gpio.Level(value))
}

func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	p, err := d.resolve(pin)
	if err != nil {
		return false, err
	}
	return p.io.Read() == gpio.High, nil
}

func (d *Driver) ReadPin(pin core.GPIOPin) bool {
	v, _ := d.GetPin(pin)
	return v
}

// SetInterrupt arms edge detection on pin and starts a watcher goroutine
// that calls handler for every edge. A previous handler is replaced.
func (d *Driver) SetInterrupt(pin core.GPIOPin, edge core.PinEdge, handler core.InterruptHandler) error {
	if handler == nil || edge == core.EdgeNone {
		return fmt.Errorf("pin %d interrupt: %w", pin, core.ErrInvalidArgument)
	}
	if err := d.ClearInterrupt(pin); err != nil {
		return err
	}

	p, err := d.resolve(pin)
	if err != nil {
		return err
	}

	d.mu.Lock()
	pull := p.pull
	d.mu.Unlock()

	if err := p.io.In(pull, periphEdge(edge)); err != nil {
		return fmt.Errorf("arm %s edges on pin %d: %w", edge, pin, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	d.mu.Lock()
	p.stop = stop
	p.done = done
	d.mu.Unlock()

	go d.watch(pin, p.io, handler, stop, done)

	d.logger.Debugw("Interrupt armed", "pin", pin, "edge", edge.String())
	return nil
}

// ClearInterrupt stops the watcher for pin and waits for it to exit, so
// the handler is never called afterwards.
func (d *Driver) ClearInterrupt(pin core.GPIOPin) error {
	d.mu.Lock()
	p, ok := d.pins[pin]
	if !ok || p.stop == nil {
		d.mu.Unlock()
		return nil
	}
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	pull := p.pull
	d.mu.Unlock()

	close(stop)
	<-done

	if err := p.io.In(pull, gpio.NoEdge); err != nil {
		return fmt.Errorf("disarm pin %d: %w", pin, err)
	}
	d.logger.Debugw("Interrupt cleared", "pin", pin)
	return nil
}

// Close stops every watcher and halts the pins
func (d *Driver) Close() error {
	d.mu.Lock()
	pins := make([]core.GPIOPin, 0, len(d.pins))
	for pin := range d.pins {
		pins = append(pins, pin)
	}
	d.mu.Unlock()

	var firstErr error
	for _, pin := range pins {
		if err := d.ClearInterrupt(pin); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Driver) watch(pin core.GPIOPin, io gpio.PinIO, handler core.InterruptHandler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if io.WaitForEdge(edgePoll) {
			select {
			case <-stop:
				return
			default:
			}
			handler(pin)
		}
	}
}

func periphEdge(edge core.PinEdge) gpio.Edge {
	switch edge {
	case core.EdgeRising:
		return gpio.RisingEdge
	case core.EdgeFalling:
		return gpio.FallingEdge
	case core.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}
