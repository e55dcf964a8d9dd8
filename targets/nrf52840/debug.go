//go:build nrf52840

package main

import (
	"machine"

	"pillbox/core"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART0 at 115200 baud on the
// board's default TX/RX pins.
func InitDebugUART() {
	debugUART = machine.DefaultUART

	err := debugUART.Configure(machine.UARTConfig{BaudRate: 115200})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	core.DebugPrintln("=== nRF52840 Debug UART Initialized ===")
}
