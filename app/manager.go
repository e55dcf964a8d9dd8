// Package app wires the button, LED, load cell and export components into
// the device application: a press toggles the button's LED and records an
// event, a long press opens the radios and pushes the records.
package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"pillbox/core"
	"pillbox/protocol"
)

// Manager coordinates all device components
type Manager struct {
	config *Config

	timers  *core.TimerService
	buttons *core.ButtonRegistry
	leds    *core.LEDs
	scale   *core.HX711
	records *core.RecordRing

	// Radios (optional)
	advertiser Advertiser
	sender     Sender

	uptime func() uint64

	mu      sync.Mutex
	weights []float32
	stats   Stats

	// Status
	initialized bool
}

// Stats counts handled button events
type Stats struct {
	Presses    int
	Releases   int
	LongPress  int
	Exports    int
	ExportErrs int
}

// NewManager creates a new manager from JSON configuration
func NewManager(configData []byte) (*Manager, error) {
	// Load configuration
	cfg, err := LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, core.ErrInvalidArgument
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		config:  cfg,
		records: core.NewRecordRing(cfg.RecordCapacity),
		uptime:  core.GetUptime,
	}, nil
}

// SetRadios attaches the BLE advertiser and the SPP sender. Either may be nil.
func (m *Manager) SetRadios(advertiser Advertiser, sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advertiser = advertiser
	m.sender = sender
}

// Initialize sets up all components. Buttons come last so no event can
// arrive before the LEDs and record ring exist.
func (m *Manager) Initialize(gpio core.InterruptDriver) error {
	if m.initialized {
		return core.ErrAlreadyInitialized
	}
	if gpio == nil {
		return core.ErrInvalidArgument
	}

	cfg := m.config
	m.timers = core.NewTimerService(cfg.TimerCapacity, nil)

	if len(cfg.LEDs) > 0 {
		pins := make([]core.GPIOPin, len(cfg.LEDs))
		for i, p := range cfg.LEDs {
			pins[i] = core.GPIOPin(p)
		}
		leds, err := core.NewLEDs(gpio, pins, cfg.LEDActiveLow)
		if err != nil {
			return err
		}
		m.leds = leds
	}

	if len(cfg.LoadCells) > 0 {
		pins := make([]core.HX711Pins, len(cfg.LoadCells))
		for i, lc := range cfg.LoadCells {
			pins[i] = core.HX711Pins{Data: core.GPIOPin(lc.DataPin), Clock: core.GPIOPin(lc.ClockPin)}
		}
		scale, err := core.NewHX711(gpio, pins)
		if err != nil {
			return err
		}
		for i, lc := range cfg.LoadCells {
			if err := scale.SetCalibration(i, lc.Calibration); err != nil {
				return err
			}
			// A missing cell must not keep the buttons from working
			if err := scale.Tare(i, lc.TareSamples); err != nil {
				core.DebugAsync("hx711 " + strconv.Itoa(i) + " tare failed: " + err.Error())
			}
		}
		m.scale = scale
		m.weights = make([]float32, len(pins))
	}

	m.buttons = core.NewButtonRegistry(gpio, m.timers, core.ButtonOptions{
		DebounceInterval:    core.TimerFromMS(cfg.DebounceMS),
		LongPressInterval:   core.TimerFromMS(cfg.LongPressMS),
		QueueDepthPerButton: cfg.QueueDepth,
	})
	if err := m.buttons.Init(cfg.ButtonConfigs(), m); err != nil {
		return err
	}

	m.initialized = true
	return nil
}

// Run drives the timer service and the load cell sampler until ctx is
// cancelled, then shuts the buttons down.
func (m *Manager) Run(ctx context.Context) error {
	if !m.initialized {
		return core.ErrNotInitialized
	}

	var wg sync.WaitGroup
	if m.scale != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.sampleLoop(ctx)
		}()
	}

	err := m.timers.Run(ctx)
	wg.Wait()

	if shutdownErr := m.Shutdown(); shutdownErr != nil {
		return shutdownErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown deinitializes the buttons and switches the LEDs off
func (m *Manager) Shutdown() error {
	if !m.initialized {
		return nil
	}
	m.initialized = false

	err := m.buttons.Deinit()
	if m.leds != nil {
		if ledErr := m.leds.Off(); ledErr != nil && err == nil {
			err = ledErr
		}
	}
	return err
}

// Notify handles a debounced button event. It runs on the button
// registry's dispatch goroutine.
func (m *Manager) Notify(index int, kind core.EventKind) {
	switch kind {
	case core.EventPress:
		m.count(func(s *Stats) { s.Presses++ })
		if m.leds != nil && m.leds.Count() > 0 {
			if err := m.leds.Toggle(index % m.leds.Count()); err != nil {
				core.DebugAsync("led toggle: " + err.Error())
			}
		}
		m.records.Append(m.uptime(), uint8(index)&protocol.ValueMask)
		m.refreshExport()

	case core.EventRelease:
		m.count(func(s *Stats) { s.Releases++ })

	case core.EventLongPress:
		m.count(func(s *Stats) { s.LongPress++ })
		m.export()
	}
	core.DebugAsync("button " + strconv.Itoa(index) + " " + kind.String())
}

// ReadRecords fills buf with the newest records that fit. It is the BLE
// characteristic read callback.
func (m *Manager) ReadRecords(buf []byte) int {
	limit := len(buf)
	if limit > m.config.MTU {
		limit = m.config.MTU
	}
	if limit < protocol.BatchHeader {
		return 0
	}
	latest := m.records.Latest(protocol.RecordsFit(limit))
	return len(protocol.AppendRecords(buf[:0], latest, limit))
}

// ExportBatch encodes the newest records that fit in one transfer
func (m *Manager) ExportBatch() []byte {
	out := protocol.NewScratchOutput()
	latest := m.records.Latest(protocol.RecordsFit(m.config.MTU))
	if _, err := protocol.EncodeRecords(out, latest, m.config.MTU); err != nil {
		return nil
	}
	return append([]byte(nil), out.Result()...)
}

// SampleWeights reads every load cell once and stores the weights
func (m *Manager) SampleWeights() []float32 {
	if m.scale == nil {
		return nil
	}

	weights := make([]float32, m.scale.Count())
	for i := range weights {
		weights[i] = m.scale.Weight(i)
		core.DebugAsync("hx711 " + strconv.Itoa(i) + " weight=" +
			strconv.FormatFloat(float64(weights[i]), 'f', 2, 32))
	}

	m.mu.Lock()
	copy(m.weights, weights)
	m.mu.Unlock()
	return weights
}

// Weights returns the last sampled weights
func (m *Manager) Weights() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.weights...)
}

// Records returns the export ring
func (m *Manager) Records() *core.RecordRing {
	return m.records
}

// Buttons returns the button registry (nil before Initialize)
func (m *Manager) Buttons() *core.ButtonRegistry {
	return m.buttons
}

// Config returns the active configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Stats returns event counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) count(f func(*Stats)) {
	m.mu.Lock()
	f(&m.stats)
	m.mu.Unlock()
}

func (m *Manager) radios() (Advertiser, Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advertiser, m.sender
}

// refreshExport pushes the new record set into the BLE characteristic
func (m *Manager) refreshExport() {
	adv, _ := m.radios()
	if r, ok := adv.(interface{ Refresh() error }); ok {
		if err := r.Refresh(); err != nil {
			core.DebugAsync("export refresh: " + err.Error())
		}
	}
}

// export starts advertising and sends the records to an SPP peer
func (m *Manager) export() {
	adv, sender := m.radios()

	if adv != nil {
		if err := adv.StartAdvertising(); err != nil {
			core.DebugAsync("start advertising: " + err.Error())
		}
	}
	if sender == nil {
		return
	}

	if p, ok := sender.(interface{ StartPairing() error }); ok {
		if err := p.StartPairing(); err != nil {
			core.DebugAsync("start pairing: " + err.Error())
		}
	}
	if err := sender.Send(m.ExportBatch()); err != nil {
		m.count(func(s *Stats) { s.ExportErrs++ })
		core.DebugAsync("send records: " + err.Error())
		return
	}
	m.count(func(s *Stats) { s.Exports++ })
}

// sampleLoop reads the load cells every SamplePeriodMS
func (m *Manager) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.config.SamplePeriodMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SampleWeights()
		}
	}
}
