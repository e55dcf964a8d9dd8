// Package ble exposes the record export as a read-only GATT characteristic
// and advertises the device, using tinygo.org/x/bluetooth. The same code runs
// on BlueZ (Linux) and on the nRF SoftDevice under TinyGo.
package ble

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"pillbox/core"
	"pillbox/protocol"
)

// GATT layout of the export service
var (
	ServiceUUID        = bluetooth.New16BitUUID(0xA000)
	CharacteristicUUID = bluetooth.New16BitUUID(0xA001)
)

// DefaultName is advertised when no name is configured
const DefaultName = "PILL_DEVICE"

// ErrNotEnabled is returned before Enable has succeeded
var ErrNotEnabled = errors.New("ble: stack not enabled")

// ReadFunc fills buf with the current export payload and returns its length
type ReadFunc func(buf []byte) int

// Stack is the part of the Bluetooth adapter the server needs
type Stack interface {
	Enable() error
	AddService(svc *bluetooth.Service) error
	Advertise(opts bluetooth.AdvertisementOptions) error
	WriteValue(char *bluetooth.Characteristic, value []byte) error
}

// AdapterStack runs the server on a tinygo bluetooth adapter
type AdapterStack struct {
	Adapter *bluetooth.Adapter

	// The default advertisement can only be configured once on BlueZ
	adv *bluetooth.Advertisement
}

func (s *AdapterStack) Enable() error {
	return s.Adapter.Enable()
}

func (s *AdapterStack) AddService(svc *bluetooth.Service) error {
	return s.Adapter.AddService(svc)
}

// Advertise configures the default advertisement on first use, then starts it
func (s *AdapterStack) Advertise(opts bluetooth.AdvertisementOptions) error {
	if s.adv == nil {
		adv := s.Adapter.DefaultAdvertisement()
		if err := adv.Configure(opts); err != nil {
			return err
		}
		s.adv = adv
	}
	return s.adv.Start()
}

func (s *AdapterStack) WriteValue(char *bluetooth.Characteristic, value []byte) error {
	_, err := char.Write(value)
	return err
}

// Server owns the export service
type Server struct {
	mu      sync.Mutex
	stack   Stack
	name    string
	read    ReadFunc
	enabled bool
	adverts bool // Advertising started

	char bluetooth.Characteristic
	buf  [protocol.MaxTransfer]byte
}

// New creates a server advertising as name. read supplies the
// characteristic value.
func New(stack Stack, name string, read ReadFunc) *Server {
	if name == "" {
		name = DefaultName
	}
	return &Server{stack: stack, name: name, read: read}
}

// NewDefault creates a server on bluetooth.DefaultAdapter
func NewDefault(name string, read ReadFunc) *Server {
	return New(&AdapterStack{Adapter: bluetooth.DefaultAdapter}, name, read)
}

// Enable starts the Bluetooth stack and registers the export service
func (s *Server) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return nil
	}
	if s.read == nil {
		return fmt.Errorf("ble enable: %w", core.ErrInvalidArgument)
	}

	if err := s.stack.Enable(); err != nil {
		return fmt.Errorf("ble enable adapter: %w", err)
	}

	err := s.stack.AddService(&bluetooth.Service{
		UUID: ServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &s.char,
				UUID:   CharacteristicUUID,
				Value:  append([]byte(nil), s.fill()...),
				Flags:  bluetooth.CharacteristicReadPermission,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ble add service: %w", err)
	}

	s.enabled = true
	core.DebugAsync("BLE GATT service registered")
	return nil
}

// Enabled reports whether the stack is up
func (s *Server) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Refresh pulls a new payload from the read callback into the
// characteristic. Call it whenever the exported data changes.
func (s *Server) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return ErrNotEnabled
	}
	if err := s.stack.WriteValue(&s.char, s.fill()); err != nil {
		return fmt.Errorf("ble update characteristic: %w", err)
	}
	return nil
}

// StartAdvertising makes the device connectable under its name. Once
// advertising has started further calls do nothing.
func (s *Server) StartAdvertising() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return ErrNotEnabled
	}
	if s.adverts {
		return nil
	}

	err := s.stack.Advertise(bluetooth.AdvertisementOptions{
		LocalName:    s.name,
		ServiceUUIDs: []bluetooth.UUID{ServiceUUID},
	})
	if err != nil {
		return fmt.Errorf("ble advertise: %w", err)
	}
	s.adverts = true
	core.DebugAsync("BLE advertising as " + s.name)
	return nil
}

// fill runs the read callback into the transfer buffer. Caller holds mu.
func (s *Server) fill() []byte {
	n := s.read(s.buf[:])
	if n < 0 {
		n = 0
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	return s.buf[:n]
}
