package app

import (
	"encoding/json"
	"fmt"

	"pillbox/core"
	"pillbox/protocol"
)

// Configuration defaults
const (
	DefaultDeviceName     = "PILL_DEVICE"
	DefaultRecordCapacity = 64
	DefaultSamplePeriodMS = 1000
	DefaultTareSamples    = 10
	DefaultLogLevel       = "info"
)

// LoadConfig parses a JSON configuration string and returns a Config
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	ApplyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills in missing configuration values
func ApplyDefaults(config *Config) {
	if config.DeviceName == "" {
		config.DeviceName = DefaultDeviceName
	}

	// Button timing
	if config.DebounceMS == 0 {
		config.DebounceMS = core.DefaultDebounceInterval
	}
	if config.LongPressMS == 0 {
		config.LongPressMS = core.DefaultLongPressInterval
	}
	if config.QueueDepth == 0 {
		config.QueueDepth = core.DefaultQueueDepthPerButton
	}

	// Export
	if config.RecordCapacity == 0 {
		config.RecordCapacity = DefaultRecordCapacity
	}
	if config.MTU == 0 {
		config.MTU = protocol.MaxTransfer
	}

	// Load cells
	if config.SamplePeriodMS == 0 {
		config.SamplePeriodMS = DefaultSamplePeriodMS
	}
	for i := range config.LoadCells {
		if config.LoadCells[i].Calibration == 0 {
			config.LoadCells[i].Calibration = 1
		}
		if config.LoadCells[i].TareSamples == 0 {
			config.LoadCells[i].TareSamples = DefaultTareSamples
		}
	}

	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
}

// Validate checks a configuration after defaults were applied
func (c *Config) Validate() error {
	if len(c.Buttons) == 0 {
		return fmt.Errorf("config: no buttons: %w", core.ErrInvalidArgument)
	}

	used := make(map[uint32]string)
	claim := func(pin uint32, what string) error {
		if prev, ok := used[pin]; ok {
			return fmt.Errorf("config: pin %d used by %s and %s: %w", pin, prev, what, core.ErrInvalidArgument)
		}
		used[pin] = what
		return nil
	}
	for i, b := range c.Buttons {
		if err := claim(b.Pin, fmt.Sprintf("button %d", i)); err != nil {
			return err
		}
	}
	for i, pin := range c.LEDs {
		if err := claim(pin, fmt.Sprintf("led %d", i)); err != nil {
			return err
		}
	}
	for i, lc := range c.LoadCells {
		if err := claim(lc.DataPin, fmt.Sprintf("load cell %d data", i)); err != nil {
			return err
		}
		if err := claim(lc.ClockPin, fmt.Sprintf("load cell %d clock", i)); err != nil {
			return err
		}
	}

	if c.DebounceMS >= c.LongPressMS {
		return fmt.Errorf("config: debounce %d ms must be shorter than long press %d ms: %w",
			c.DebounceMS, c.LongPressMS, core.ErrInvalidArgument)
	}
	if c.LongPressMS > core.MaxTimerMS {
		return fmt.Errorf("config: long press %d ms exceeds %d ms: %w",
			c.LongPressMS, core.MaxTimerMS, core.ErrInvalidArgument)
	}
	if c.QueueDepth < 0 || c.RecordCapacity < 0 || c.TimerCapacity < 0 {
		return fmt.Errorf("config: negative size: %w", core.ErrInvalidArgument)
	}
	if c.MTU < protocol.BatchHeader+protocol.RecordSize || c.MTU > protocol.MaxTransfer {
		return fmt.Errorf("config: mtu %d outside %d-%d: %w", c.MTU,
			protocol.BatchHeader+protocol.RecordSize, protocol.MaxTransfer, core.ErrInvalidArgument)
	}
	return nil
}

// ButtonConfigs converts the button list for core.ButtonRegistry
func (c *Config) ButtonConfigs() []core.ButtonConfig {
	out := make([]core.ButtonConfig, len(c.Buttons))
	for i, b := range c.Buttons {
		out[i] = core.ButtonConfig{Pin: core.GPIOPin(b.Pin), ActiveLow: !b.ActiveHigh}
	}
	return out
}

// DefaultConfig returns the configuration of the reference board: two
// buttons, two LEDs and one load cell.
func DefaultConfig() *Config {
	config := &Config{
		Buttons: []ButtonConfig{
			{Pin: 13},
			{Pin: 14},
		},
		LEDs: []uint32{27, 2},
		LoadCells: []LoadCellConfig{
			{DataPin: 16, ClockPin: 17},
		},
	}
	ApplyDefaults(config)
	return config
}
