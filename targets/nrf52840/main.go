//go:build nrf52840

// Firmware for the nRF52840 pill box: buttons and LEDs on GPIO, the load cell
// on a bit-banged HX711, records exported over a BLE characteristic.
package main

import (
	"context"
	"machine"
	"time"

	"pillbox/app"
	"pillbox/core"
	"pillbox/radio/ble"
)

// ledBlink blinks the LED a specific number of times for diagnostics
func ledBlink(count int) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; i < count; i++ {
		led.High()
		time.Sleep(150 * time.Millisecond)
		led.Low()
		time.Sleep(150 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond) // Pause after blink sequence
}

func main() {
	InitDebugUART()

	mgr, err := app.NewManagerWithConfig(app.DefaultConfig())
	if err != nil {
		core.DebugPrintln("config: " + err.Error())
		halt(1)
	}

	server := ble.NewDefault(mgr.Config().DeviceName, mgr.ReadRecords)
	if err := server.Enable(); err != nil {
		// Buttons and LEDs still work without the radio
		core.DebugPrintln("ble: " + err.Error())
		mgr.SetRadios(nil, nil)
	} else {
		mgr.SetRadios(server, nil)
	}

	core.SetGPIODriver(NewNRFGPIODriver())
	if err := mgr.Initialize(core.MustInterruptGPIO()); err != nil {
		core.DebugPrintln("init: " + err.Error())
		halt(2)
	}

	// DIAGNOSTIC: 1 blink = buttons armed
	ledBlink(1)

	if err := mgr.Run(context.Background()); err != nil {
		core.DebugPrintln("run: " + err.Error())
		halt(3)
	}
}

// halt blinks the error code forever
func halt(code int) {
	for {
		ledBlink(code)
	}
}
