package app

// ButtonConfig is one button input
type ButtonConfig struct {
	Pin        uint32 `json:"pin" mapstructure:"pin"`
	ActiveHigh bool   `json:"active_high,omitempty" mapstructure:"active_high"` // Default is active-low with pull-up
}

// LoadCellConfig is one HX711 channel
type LoadCellConfig struct {
	DataPin     uint32  `json:"data_pin" mapstructure:"data_pin"`
	ClockPin    uint32  `json:"clock_pin" mapstructure:"clock_pin"`
	Calibration float32 `json:"calibration,omitempty" mapstructure:"calibration"` // Raw counts per gram
	TareSamples int     `json:"tare_samples,omitempty" mapstructure:"tare_samples"`
}

// Config represents the complete device configuration
type Config struct {
	DeviceName string `json:"device_name" mapstructure:"device_name"` // Advertised BLE name

	Buttons      []ButtonConfig   `json:"buttons" mapstructure:"buttons"`
	LEDs         []uint32         `json:"leds" mapstructure:"leds"` // LED i follows button i
	LEDActiveLow bool             `json:"led_active_low,omitempty" mapstructure:"led_active_low"`
	LoadCells    []LoadCellConfig `json:"load_cells" mapstructure:"load_cells"`

	// Button timing (milliseconds)
	DebounceMS  uint32 `json:"debounce_ms" mapstructure:"debounce_ms"`
	LongPressMS uint32 `json:"long_press_ms" mapstructure:"long_press_ms"`
	QueueDepth  int    `json:"queue_depth" mapstructure:"queue_depth"` // Event slots per button

	// Soft timer pool; 0 means unlimited
	TimerCapacity int `json:"timer_capacity,omitempty" mapstructure:"timer_capacity"`

	// Record export
	RecordCapacity int `json:"record_capacity" mapstructure:"record_capacity"`
	MTU            int `json:"mtu" mapstructure:"mtu"` // Largest batch per transfer

	// Load cell sampling period (milliseconds)
	SamplePeriodMS uint32 `json:"sample_period_ms" mapstructure:"sample_period_ms"`

	// Host only
	SPPDevice string `json:"spp_device,omitempty" mapstructure:"spp_device"`
	LogLevel  string `json:"log_level,omitempty" mapstructure:"log_level"`
}

// Advertiser makes the device discoverable over BLE
type Advertiser interface {
	StartAdvertising() error
}

// Sender pushes one encoded record batch to a connected peer
type Sender interface {
	Send(data []byte) error
}
