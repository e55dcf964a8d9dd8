package ble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"

	"pillbox/core"
)

type fakeStack struct {
	enableErr error
	enabled   bool
	services  []*bluetooth.Service
	adverts   []bluetooth.AdvertisementOptions
	advertErr error // Returned once
	started   bool
	values    [][]byte
}

func (f *fakeStack) Enable() error {
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled = true
	return nil
}

func (f *fakeStack) AddService(svc *bluetooth.Service) error {
	f.services = append(f.services, svc)
	return nil
}

// Advertise behaves like BlueZ: the advertisement cannot be configured again
// after a successful start
func (f *fakeStack) Advertise(opts bluetooth.AdvertisementOptions) error {
	if f.started {
		panic("advertisement configured a second time")
	}
	f.adverts = append(f.adverts, opts)
	if f.advertErr != nil {
		err := f.advertErr
		f.advertErr = nil
		return err
	}
	f.started = true
	return nil
}

func (f *fakeStack) WriteValue(_ *bluetooth.Characteristic, value []byte) error {
	f.values = append(f.values, append([]byte(nil), value...))
	return nil
}

func TestServerRegistersReadOnlyService(t *testing.T) {
	stack := &fakeStack{}
	payload := []byte{1, 2, 3}
	srv := New(stack, "", func(buf []byte) int { return copy(buf, payload) })

	require.NoError(t, srv.Enable())
	require.NoError(t, srv.Enable(), "enable is idempotent")
	require.Len(t, stack.services, 1)

	svc := stack.services[0]
	assert.Equal(t, ServiceUUID, svc.UUID)
	require.Len(t, svc.Characteristics, 1)

	char := svc.Characteristics[0]
	assert.Equal(t, CharacteristicUUID, char.UUID)
	assert.Equal(t, bluetooth.CharacteristicReadPermission, char.Flags)
	assert.Equal(t, payload, char.Value)
}

func TestServerRequiresEnable(t *testing.T) {
	srv := New(&fakeStack{}, "box", func([]byte) int { return 0 })

	assert.ErrorIs(t, srv.StartAdvertising(), ErrNotEnabled)
	assert.ErrorIs(t, srv.Refresh(), ErrNotEnabled)
	assert.False(t, srv.Enabled())

	failing := New(&fakeStack{enableErr: errors.New("no adapter")}, "box", func([]byte) int { return 0 })
	assert.Error(t, failing.Enable())
	assert.ErrorIs(t, failing.StartAdvertising(), ErrNotEnabled)

	noRead := New(&fakeStack{}, "box", nil)
	assert.ErrorIs(t, noRead.Enable(), core.ErrInvalidArgument)
}

func TestServerAdvertisesName(t *testing.T) {
	stack := &fakeStack{}
	srv := New(stack, "", func([]byte) int { return 0 })
	require.NoError(t, srv.Enable())
	require.NoError(t, srv.StartAdvertising())

	require.Len(t, stack.adverts, 1)
	assert.Equal(t, DefaultName, stack.adverts[0].LocalName)
	assert.Equal(t, []bluetooth.UUID{ServiceUUID}, stack.adverts[0].ServiceUUIDs)
}

func TestServerRefreshClampsPayload(t *testing.T) {
	stack := &fakeStack{}
	size := 10
	srv := New(stack, "box", func(buf []byte) int {
		assert.Len(t, buf, 512)
		return size
	})
	require.NoError(t, srv.Enable())

	size = 4096
	require.NoError(t, srv.Refresh())
	size = -1
	require.NoError(t, srv.Refresh())

	require.Len(t, stack.values, 2)
	assert.Len(t, stack.values[0], 512)
	assert.Empty(t, stack.values[1])
}

func TestServerAdvertisesOnce(t *testing.T) {
	stack := &fakeStack{advertErr: errors.New("adapter busy")}
	srv := New(stack, "box", func([]byte) int { return 0 })
	require.NoError(t, srv.Enable())

	assert.Error(t, srv.StartAdvertising())
	require.NoError(t, srv.StartAdvertising(), "retry after a failed start")
	require.NoError(t, srv.StartAdvertising(), "repeat long press keeps advertising")
	require.NoError(t, srv.StartAdvertising())

	assert.Len(t, stack.adverts, 2)
}
