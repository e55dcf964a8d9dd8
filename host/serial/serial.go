// Package serial opens byte-stream links to a peer. Bluetooth SPP reaches
// Linux as an RFCOMM tty (bound with `rfcomm bind` or `rfcomm watch`), so
// the same tarm/serial port serves both SPP and wired UARTs.
package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// ErrNoDevice means the device node does not exist yet, which for RFCOMM
// means no peer has connected
var ErrNoDevice = errors.New("serial: device not present")

// Port is an open link
type Port interface {
	io.ReadWriteCloser

	// Flush waits for pending output
	Flush() error
}

// Config describes a link
type Config struct {
	Device      string // e.g. /dev/rfcomm0, /dev/ttyUSB0
	Baud        int    // Ignored by RFCOMM ttys
	ReadTimeout int    // Milliseconds; 0 blocks
}

// DefaultConfig returns the configuration used for SPP links
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100, // Lets readers notice Close
	}
}

// IsRFCOMM reports whether the device is a Bluetooth RFCOMM tty
func (c *Config) IsRFCOMM() bool {
	return strings.HasPrefix(c.Device, "/dev/rfcomm")
}

type tarmPort struct {
	*serial.Port
}

// Flush is a no-op: tarm/serial writes synchronously and its own Flush
// discards unread input instead
func (tarmPort) Flush() error { return nil }

// Open opens the device described by cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("serial: no device configured")
	}
	if _, err := os.Stat(cfg.Device); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, cfg.Device)
	}

	baud := cfg.Baud
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return tarmPort{port}, nil
}
