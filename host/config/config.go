// Package config loads the pillboxd configuration from a YAML file and the
// environment, and watches the file for changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"pillbox/app"
)

const (
	configName = "pillbox"
	configType = "yaml"
	envPrefix  = "PILLBOX"

	// DefaultSPPDevice is the RFCOMM tty bound to the SPP channel
	DefaultSPPDevice = "/dev/rfcomm0"
)

// Keys with defaults; only these are read from PILLBOX_* variables
const (
	keyDeviceName     = "device_name"
	keyButtons        = "buttons"
	keyLEDs           = "leds"
	keyLEDActiveLow   = "led_active_low"
	keyLoadCells      = "load_cells"
	keyDebounceMS     = "debounce_ms"
	keyLongPressMS    = "long_press_ms"
	keyQueueDepth     = "queue_depth"
	keyTimerCapacity  = "timer_capacity"
	keyRecordCapacity = "record_capacity"
	keyMTU            = "mtu"
	keySamplePeriodMS = "sample_period_ms"
	keySPPDevice      = "spp_device"
	keyLogLevel       = "log_level"
)

// Loader reads app.Config through viper
type Loader struct {
	logger *zap.SugaredLogger
	v      *viper.Viper

	stopWatchChan chan struct{}
	stopOnce      sync.Once
}

// New creates a loader. An empty path searches the working directory and
// /etc/pillbox for pillbox.yaml.
func New(logger *zap.SugaredLogger, path string) *Loader {
	logger = logger.Named("config")

	v := viper.New()
	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pillbox")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := app.DefaultConfig()
	v.SetDefault(keyDeviceName, defaults.DeviceName)
	v.SetDefault(keyButtons, defaults.Buttons)
	v.SetDefault(keyLEDs, defaults.LEDs)
	v.SetDefault(keyLEDActiveLow, defaults.LEDActiveLow)
	v.SetDefault(keyLoadCells, defaults.LoadCells)
	v.SetDefault(keyDebounceMS, defaults.DebounceMS)
	v.SetDefault(keyLongPressMS, defaults.LongPressMS)
	v.SetDefault(keyQueueDepth, defaults.QueueDepth)
	v.SetDefault(keyTimerCapacity, defaults.TimerCapacity)
	v.SetDefault(keyRecordCapacity, defaults.RecordCapacity)
	v.SetDefault(keyMTU, defaults.MTU)
	v.SetDefault(keySamplePeriodMS, defaults.SamplePeriodMS)
	v.SetDefault(keySPPDevice, DefaultSPPDevice)
	v.SetDefault(keyLogLevel, defaults.LogLevel)

	logger.Debug("Created config loader")

	return &Loader{
		logger:        logger,
		v:             v,
		stopWatchChan: make(chan struct{}),
	}
}

// Load reads the config file if one exists and returns the validated config.
// A missing file is not an error: defaults and the environment still apply.
func (l *Loader) Load() (*app.Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			l.logger.Warnw("Viper failed to read config", "error", err)
			return nil, fmt.Errorf("read config: %w", err)
		}
		l.logger.Infow("No config file found, using defaults", "name", configName)
	} else {
		l.logger.Debugw("Read config", "path", l.v.ConfigFileUsed())
	}

	var cfg app.Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	app.ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.logger.Infow("Config values",
		"deviceName", cfg.DeviceName,
		"buttons", len(cfg.Buttons),
		"leds", len(cfg.LEDs),
		"loadCells", len(cfg.LoadCells),
		"debounceMS", cfg.DebounceMS,
		"longPressMS", cfg.LongPressMS,
		"sppDevice", cfg.SPPDevice,
		"logLevel", cfg.LogLevel)

	return &cfg, nil
}

// ConfigFileUsed returns the path of the file read by Load, if any
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the config whenever the file is written and passes the result
// to onReload. It blocks until Stop is called.
func (l *Loader) Watch(onReload func(*app.Config)) {
	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	l.logger.Debugw("Starting to watch config file for changes", "path", l.v.ConfigFileUsed())

	var lastAttemptedReload time.Time

	l.v.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write != fsnotify.Write {
			return
		}
		now := time.Now()
		if !lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {
			return
		}
		lastAttemptedReload = now

		l.logger.Debugw("Config file modified, attempting reload", "event", event)
		<-time.After(delayBetweenEventAndReload)

		cfg, err := l.Load()
		if err != nil {
			l.logger.Warnw("Failed to reload config file", "error", err)
			return
		}
		l.logger.Info("Reloaded config successfully")
		onReload(cfg)
	})
	l.v.WatchConfig()

	<-l.stopWatchChan
	l.logger.Debug("Stopping config file watcher")
	l.v.OnConfigChange(func(fsnotify.Event) {})
}

// Stop ends Watch. It is safe to call more than once.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() { close(l.stopWatchChan) })
}
