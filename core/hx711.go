// HX711 load-cell ADC support
// Bit-banged two-wire protocol: wait for DOUT low, clock 24 data bits MSB
// first, then one extra pulse to select channel A with gain 128.
package core

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ReadRaw sentinels
const (
	HX711Timeout  int32 = 0x7FFFFFFF // DOUT never went low
	HX711BadIndex int32 = 0x7FFFFFFE // No such channel
)

const (
	HX711ReadyTimeout = 20 // Ticks to wait for DOUT low
	HX711TareSpacing  = 5  // Ticks between tare samples
	hx711DataBits     = 24
)

// HX711Pins is the wiring of one HX711
type HX711Pins struct {
	Data  GPIOPin // DOUT
	Clock GPIOPin // PD_SCK
}

type hx711Channel struct {
	Pins   HX711Pins
	Offset int32   // Tare offset in raw counts
	Scale  float32 // Raw counts per unit of weight
}

// HX711 reads one or more HX711 converters
type HX711 struct {
	mu       sync.Mutex
	gpio     GPIODriver
	now      func() uint32
	sleep    func(ticks uint32)
	channels []hx711Channel
}

// NewHX711 configures the data pins as inputs and the clock pins as outputs
// driven low (a high clock for >60us powers the chip down).
func NewHX711(gpio GPIODriver, pins []HX711Pins) (*HX711, error) {
	if gpio == nil || len(pins) == 0 {
		return nil, fmt.Errorf("hx711 init: %w", ErrInvalidArgument)
	}

	h := &HX711{
		gpio:     gpio,
		now:      GetTime,
		sleep:    func(ticks uint32) { time.Sleep(TimerToDuration(ticks)) },
		channels: make([]hx711Channel, len(pins)),
	}
	for i, p := range pins {
		h.channels[i] = hx711Channel{Pins: p, Scale: 1}
		if err := gpio.ConfigureInputPullUp(p.Data); err != nil {
			return nil, fmt.Errorf("configure hx711 %d data pin %d: %w", i, p.Data, err)
		}
		if err := gpio.ConfigureOutput(p.Clock); err != nil {
			return nil, fmt.Errorf("configure hx711 %d clock pin %d: %w", i, p.Clock, err)
		}
		if err := gpio.SetPin(p.Clock, false); err != nil {
			return nil, fmt.Errorf("hx711 %d clock low: %w", i, err)
		}
	}

	DebugAsync("HX711 module initialized (" + strconv.Itoa(len(pins)) + " sensors)")
	return h, nil
}

// Count returns the number of configured converters
func (h *HX711) Count() int {
	return len(h.channels)
}

// ReadRaw returns one sign-extended 24-bit sample, HX711Timeout when the chip
// is not ready in time, or HX711BadIndex for an unknown channel.
func (h *HX711) ReadRaw(index int) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.channels) {
		return HX711BadIndex
	}
	return h.readPins(h.channels[index].Pins)
}

// readPins performs the bit-banged transfer. Caller holds mu.
func (h *HX711) readPins(p HX711Pins) int32 {
	start := h.now()
	for h.gpio.ReadPin(p.Data) {
		if h.now()-start > HX711ReadyTimeout {
			return HX711Timeout
		}
	}

	var data uint32
	for i := 0; i < hx711DataBits; i++ {
		h.gpio.SetPin(p.Clock, true)
		h.gpio.SetPin(p.Clock, false)
		data <<= 1
		if h.gpio.ReadPin(p.Data) {
			data |= 1
		}
	}

	// Extra pulse: channel A, gain 128 for the next conversion
	h.gpio.SetPin(p.Clock, true)
	h.gpio.SetPin(p.Clock, false)

	if data&0x800000 != 0 {
		return int32(data | 0xFF000000)
	}
	return int32(data)
}

// Tare averages samples readings and stores the result as the zero offset.
// Timed-out readings are skipped; it fails if none succeed.
func (h *HX711) Tare(index, samples int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.channels) || samples <= 0 {
		return fmt.Errorf("hx711 tare: %w", ErrInvalidArgument)
	}

	ch := &h.channels[index]
	var sum int64
	got := 0
	for i := 0; i < samples; i++ {
		v := h.readPins(ch.Pins)
		if v == HX711Timeout {
			continue
		}
		sum += int64(v)
		got++
		h.sleep(HX711TareSpacing)
	}
	if got == 0 {
		return fmt.Errorf("hx711 %d tare: %w", index, ErrTimeout)
	}

	ch.Offset = int32(sum / int64(got))
	DebugAsync("hx711 " + strconv.Itoa(index) + " tare offset=" + strconv.Itoa(int(ch.Offset)))
	return nil
}

// SetCalibration sets the raw counts per unit of weight for index
func (h *HX711) SetCalibration(index int, factor float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.channels) || factor == 0 {
		return fmt.Errorf("hx711 calibration: %w", ErrInvalidArgument)
	}
	h.channels[index].Scale = factor
	return nil
}

// Offset returns the tare offset of index
func (h *HX711) Offset(index int) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.channels) {
		return 0
	}
	return h.channels[index].Offset
}

// Weight reads index and converts it with the tare offset and calibration.
// A timeout or unknown channel reads as 0.
func (h *HX711) Weight(index int) float32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.channels) {
		return 0
	}
	ch := h.channels[index]
	raw := h.readPins(ch.Pins)
	if raw == HX711Timeout {
		return 0
	}
	return float32(raw-ch.Offset) / ch.Scale
}
