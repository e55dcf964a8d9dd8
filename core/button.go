// Button input handling
// Turns raw pin interrupts into debounced press, release and long-press
// events delivered to a single consumer goroutine.
package core

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// EventKind classifies a debounced button event
type EventKind uint8

const (
	EventPress EventKind = iota
	EventRelease
	EventLongPress
)

// String returns the event name used in logs
func (k EventKind) String() string {
	switch k {
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventLongPress:
		return "long_press"
	default:
		return "unknown"
	}
}

// ButtonEvent is one queued notification
type ButtonEvent struct {
	Index int // Position of the button in the Init slice
	Kind  EventKind
}

// EventSink receives button events. Notify is only ever called from the
// registry's dispatch goroutine, one call at a time.
type EventSink interface {
	Notify(index int, kind EventKind)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(index int, kind EventKind)

// Notify calls f(index, kind)
func (f EventSinkFunc) Notify(index int, kind EventKind) {
	f(index, kind)
}

// ButtonConfig describes one button. It is copied at Init and never changed.
type ButtonConfig struct {
	Pin       GPIOPin
	ActiveLow bool // Pressed reads low; pin gets a pull-up
}

// PressedLevel is the pin level that means "pressed"
func (c ButtonConfig) PressedLevel() bool {
	return !c.ActiveLow
}

// PressEdge is the transition that starts a press. Pins are armed on both
// edges; this one is only reported.
func (c ButtonConfig) PressEdge() PinEdge {
	if c.ActiveLow {
		return EdgeFalling
	}
	return EdgeRising
}

// Button timing defaults, in timer ticks
const (
	DefaultDebounceInterval    = 50
	DefaultLongPressInterval   = 5000
	DefaultQueueDepthPerButton = 4
)

// ButtonOptions tunes a ButtonRegistry. Zero fields take the defaults.
type ButtonOptions struct {
	DebounceInterval    uint32 // Line must be stable this long before sampling
	LongPressInterval   uint32 // Hold time after a press before LongPress fires
	QueueDepthPerButton int    // Event queue slots per button
}

func (o ButtonOptions) withDefaults() ButtonOptions {
	if o.DebounceInterval == 0 {
		o.DebounceInterval = DefaultDebounceInterval
	}
	if o.LongPressInterval == 0 {
		o.LongPressInterval = DefaultLongPressInterval
	}
	if o.QueueDepthPerButton <= 0 {
		o.QueueDepthPerButton = DefaultQueueDepthPerButton
	}
	return o
}

// RegistryState is the lifecycle state of a ButtonRegistry
type RegistryState uint32

const (
	RegistryUninitialized RegistryState = iota
	RegistryInitializing
	RegistryReady
	RegistryDeinitialized
)

// String returns the state name
func (s RegistryState) String() string {
	switch s {
	case RegistryUninitialized:
		return "uninitialized"
	case RegistryInitializing:
		return "initializing"
	case RegistryReady:
		return "ready"
	case RegistryDeinitialized:
		return "deinitialized"
	default:
		return "invalid"
	}
}

// buttonRuntime is the mutable per-button state. The timers' handlers close
// over it, which is how an expiring timer knows its button.
type buttonRuntime struct {
	index    int
	config   ButtonConfig
	debounce *SoftTimer
	long     *SoftTimer
	queue    chan<- ButtonEvent
	onEdge   InterruptHandler
}

// ButtonRegistry owns the pins, timers, event queue and dispatch goroutine
// of a set of buttons.
//
// Three contexts touch it: pin interrupts (onEdge, timer start/reset only),
// the TimerService dispatch (pin sampling and classification) and the
// dispatch goroutine (EventSink calls).
type ButtonRegistry struct {
	mu    sync.Mutex // Serializes Init and Deinit
	state atomic.Uint32

	gpio   InterruptDriver
	timers *TimerService
	opts   ButtonOptions

	buttons []*buttonRuntime
	quit    chan struct{}
	done    chan struct{}

	dropped atomic.Uint32
}

// NewButtonRegistry creates an uninitialized registry that will use gpio for
// pins and interrupts and timers for debounce and long-press timing.
func NewButtonRegistry(gpio InterruptDriver, timers *TimerService, opts ButtonOptions) *ButtonRegistry {
	return &ButtonRegistry{
		gpio:   gpio,
		timers: timers,
		opts:   opts.withDefaults(),
	}
}

// State returns the current lifecycle state
func (r *ButtonRegistry) State() RegistryState {
	return RegistryState(r.state.Load())
}

// Dropped returns how many events were lost to a full queue
func (r *ButtonRegistry) Dropped() uint32 {
	return r.dropped.Load()
}

// Options returns the effective timing options
func (r *ButtonRegistry) Options() ButtonOptions {
	return r.opts
}

// InitDefault initializes active-low buttons on pins
func (r *ButtonRegistry) InitDefault(pins []GPIOPin, sink EventSink) error {
	return r.InitPins(pins, sink, true)
}

// InitPins initializes buttons on pins that all share one polarity
func (r *ButtonRegistry) InitPins(pins []GPIOPin, sink EventSink, activeLow bool) error {
	buttons := make([]ButtonConfig, len(pins))
	for i, pin := range pins {
		buttons[i] = ButtonConfig{Pin: pin, ActiveLow: activeLow}
	}
	return r.Init(buttons, sink)
}

// Init configures the button pins, creates the timers, the event queue and
// the dispatch goroutine, and installs the pin interrupts. It is
// all-or-nothing: on error every resource created so far is released and
// the registry stays uninitialized.
func (r *ButtonRegistry) Init(buttons []ButtonConfig, sink EventSink) error {
	if len(buttons) == 0 || isNilSink(sink) || r.gpio == nil || r.timers == nil {
		return fmt.Errorf("button init: %w", ErrInvalidArgument)
	}
	seen := make(map[GPIOPin]bool, len(buttons))
	for _, b := range buttons {
		if seen[b.Pin] {
			return fmt.Errorf("button init: pin %d listed twice: %w", b.Pin, ErrInvalidArgument)
		}
		seen[b.Pin] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == RegistryReady {
		return fmt.Errorf("button init: %w", ErrAlreadyInitialized)
	}
	r.state.Store(uint32(RegistryInitializing))

	queue := make(chan ButtonEvent, r.opts.QueueDepthPerButton*len(buttons))
	rts := make([]*buttonRuntime, len(buttons))
	for i, b := range buttons {
		rt := &buttonRuntime{index: i, config: b, queue: queue}
		rt.onEdge = func(GPIOPin) { r.onEdge(rt) }
		rts[i] = rt
	}

	fail := func(installed int, quit, done chan struct{}, err error) error {
		r.release(rts, installed, quit, done)
		r.state.Store(uint32(RegistryUninitialized))
		DebugAsync("button init failed: " + err.Error())
		return err
	}

	// Pin direction and pulls
	for _, rt := range rts {
		var err error
		if rt.config.ActiveLow {
			err = r.gpio.ConfigureInputPullUp(rt.config.Pin)
		} else {
			err = r.gpio.ConfigureInputPullDown(rt.config.Pin)
		}
		if err != nil {
			return fail(0, nil, nil, fmt.Errorf("configure button %d pin %d: %w", rt.index, rt.config.Pin, err))
		}
	}

	// Debounce timers
	for _, rt := range rts {
		rt := rt
		t, err := r.timers.CreateTimer("btn_db_"+strconv.Itoa(rt.index), r.opts.DebounceInterval, func(*SoftTimer) {
			r.debounceExpired(rt)
		})
		if err != nil {
			return fail(0, nil, nil, fmt.Errorf("create debounce timer %d: %w", rt.index, ErrOutOfMemory))
		}
		rt.debounce = t
	}

	// Long-press timers
	for _, rt := range rts {
		rt := rt
		t, err := r.timers.CreateTimer("btn_long_"+strconv.Itoa(rt.index), r.opts.LongPressInterval, func(*SoftTimer) {
			r.longPressExpired(rt)
		})
		if err != nil {
			return fail(0, nil, nil, fmt.Errorf("create long-press timer %d: %w", rt.index, ErrOutOfMemory))
		}
		rt.long = t
	}

	// Event queue consumer
	quit := make(chan struct{})
	done := make(chan struct{})
	go dispatchEvents(queue, sink, quit, done)

	// Interrupts go last so no edge can reach a half-built button
	for i, rt := range rts {
		if err := r.gpio.SetInterrupt(rt.config.Pin, EdgeBoth, rt.onEdge); err != nil {
			return fail(i, quit, done, fmt.Errorf("install interrupt for button %d pin %d: %w", rt.index, rt.config.Pin, err))
		}
		DebugAsync("button " + strconv.Itoa(rt.index) + " pin " + utoa(uint32(rt.config.Pin)) +
			" press on " + rt.config.PressEdge().String() + " edge")
	}

	r.buttons = rts
	r.quit = quit
	r.done = done
	r.state.Store(uint32(RegistryReady))

	RecordTiming(EvtRegistryUp, 0, r.timers.now(), uint32(len(rts)), 0)
	DebugAsync("button module initialized (" + strconv.Itoa(len(rts)) + " buttons)")
	return nil
}

// Deinit removes the pin interrupts, deletes the timers and stops the
// dispatch goroutine.
//
// Callers must quiesce the buttons first: Deinit is not safe against a press
// that is in flight, and it must not be called from the EventSink since it
// waits for the dispatch goroutine to exit.
func (r *ButtonRegistry) Deinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != RegistryReady {
		return fmt.Errorf("button deinit: %w", ErrNotInitialized)
	}

	r.release(r.buttons, len(r.buttons), r.quit, r.done)
	r.buttons = nil
	r.quit = nil
	r.done = nil
	r.state.Store(uint32(RegistryDeinitialized))

	RecordTiming(EvtRegistryOff, 0, r.timers.now(), 0, 0)
	DebugAsync("button module deinitialized")
	return nil
}

// release tears down what Init built. Interrupts are removed before their
// timers are deleted so no handler can touch a deleted timer.
func (r *ButtonRegistry) release(rts []*buttonRuntime, installed int, quit, done chan struct{}) {
	for i := 0; i < installed; i++ {
		if err := r.gpio.ClearInterrupt(rts[i].config.Pin); err != nil {
			DebugAsync("button " + strconv.Itoa(i) + " clear interrupt: " + err.Error())
		}
	}
	for _, rt := range rts {
		r.timers.Delete(rt.debounce)
		r.timers.Delete(rt.long)
	}
	if quit != nil {
		close(quit)
		<-done
	}
}

// onEdge runs in interrupt context. It only restarts the debounce timer,
// starting it when it was idle; the pin is sampled once the line settles.
func (r *ButtonRegistry) onEdge(rt *buttonRuntime) {
	if !r.timers.Reset(rt.debounce) {
		r.timers.Start(rt.debounce)
	}
}

// debounceExpired runs in timer-service context once the line has been
// stable for the debounce interval.
func (r *ButtonRegistry) debounceExpired(rt *buttonRuntime) {
	level := r.gpio.ReadPin(rt.config.Pin)

	kind := EventRelease
	if level == rt.config.PressedLevel() {
		kind = EventPress
		r.timers.Start(rt.long)
	} else {
		r.timers.Stop(rt.long)
	}

	RecordTiming(EvtDebounce, uint8(rt.index), r.timers.now(), boolToU32(level), uint32(kind))
	DebugAsync("button " + strconv.Itoa(rt.index) + " " + kind.String() + " (debounced), level=" + utoa(boolToU32(level)))
	r.enqueue(rt, kind)
}

// longPressExpired runs in timer-service context when a press was held for
// the long-press interval. It does not re-arm; Release still follows.
func (r *ButtonRegistry) longPressExpired(rt *buttonRuntime) {
	RecordTiming(EvtLongPress, uint8(rt.index), r.timers.now(), 0, 0)
	DebugAsync("button " + strconv.Itoa(rt.index) + " long-press detected")
	r.enqueue(rt, EventLongPress)
}

// enqueue never blocks; a full queue drops the new event and counts it
func (r *ButtonRegistry) enqueue(rt *buttonRuntime, kind EventKind) {
	select {
	case rt.queue <- ButtonEvent{Index: rt.index, Kind: kind}:
	default:
		total := r.dropped.Add(1)
		RecordTiming(EvtQueueDrop, uint8(rt.index), r.timers.now(), uint32(kind), total)
		DebugAsync("button " + strconv.Itoa(rt.index) + " event queue full, dropped " + kind.String())
	}
}

// dispatchEvents is the single consumer of the event queue
func dispatchEvents(queue <-chan ButtonEvent, sink EventSink, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case e := <-queue:
			sink.Notify(e.Index, e.Kind)
		}
	}
}

func isNilSink(sink EventSink) bool {
	if sink == nil {
		return true
	}
	if f, ok := sink.(EventSinkFunc); ok && f == nil {
		return true
	}
	return false
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
