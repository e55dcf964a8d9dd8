// Package spp sends record batches to a classic Bluetooth peer over a Serial
// Port Profile link. The Linux Bluetooth stack owns the RFCOMM channel; a
// connected peer shows up as a tty (see `rfcomm watch`), which is opened
// with tarm/serial through pillbox/host/serial.
package spp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"pillbox/host/serial"
)

// ErrNoClient is returned by Send when no peer is attached
var ErrNoClient = errors.New("spp: no client connected")

// Pairing breaker settings
const (
	pairMaxFailures uint32 = 3
	pairRetryAfter         = 10 * time.Second
)

// OpenFunc opens the link device
type OpenFunc func(cfg *serial.Config) (serial.Port, error)

// Link is the SPP server side of the record export
type Link struct {
	mu     sync.Mutex
	cfg    *serial.Config
	open   OpenFunc
	port   serial.Port
	logger *zap.SugaredLogger

	// Stops reopening an absent device on every long press
	breaker *gobreaker.CircuitBreaker[serial.Port]
}

// New creates a Link for the RFCOMM device described by cfg
func New(cfg *serial.Config, logger *zap.SugaredLogger) *Link {
	return NewWithOpener(cfg, serial.Open, logger)
}

// NewWithOpener is New with a custom device opener
func NewWithOpener(cfg *serial.Config, open OpenFunc, logger *zap.SugaredLogger) *Link {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("spp")

	breaker := gobreaker.NewCircuitBreaker[serial.Port](gobreaker.Settings{
		Name:        "spp",
		MaxRequests: 1,
		Timeout:     pairRetryAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= pairMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Debugw("Pairing breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &Link{
		cfg:     cfg,
		open:    open,
		logger:  logger,
		breaker: breaker,
	}
}

// StartPairing attaches to the peer if its RFCOMM device is present. It is
// a no-op when a client is already attached. After repeated failures it
// fails fast with gobreaker.ErrOpenState until the retry interval passes.
func (l *Link) StartPairing() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		return nil
	}
	if l.cfg == nil || l.cfg.Device == "" {
		return fmt.Errorf("spp pairing: no device configured")
	}

	port, err := l.breaker.Execute(func() (serial.Port, error) {
		return l.open(l.cfg)
	})
	if err != nil {
		if errors.Is(err, serial.ErrNoDevice) {
			l.logger.Debugw("No SPP client yet", "device", l.cfg.Device)
		} else {
			l.logger.Warnw("Failed to open SPP device", "device", l.cfg.Device, "error", err)
		}
		return fmt.Errorf("spp pairing: %w", err)
	}
	l.port = port
	l.logger.Infow("Client connected", "device", l.cfg.Device, "rfcomm", l.cfg.IsRFCOMM())
	return nil
}

// Connected reports whether a client is attached
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Send writes one record batch to the client. A failed write drops the
// client; the next StartPairing reattaches.
func (l *Link) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return ErrNoClient
	}

	if _, err := l.port.Write(data); err != nil {
		l.logger.Warnw("SPP connection closed", "error", err)
		l.port.Close()
		l.port = nil
		return fmt.Errorf("spp send: %w", err)
	}
	if err := l.port.Flush(); err != nil {
		return fmt.Errorf("spp flush: %w", err)
	}

	l.logger.Debugw("Sent records", "bytes", len(data))
	return nil
}

// BreakerState returns the pairing circuit breaker state
func (l *Link) BreakerState() gobreaker.State {
	return l.breaker.State()
}

// Close detaches the client
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}
