//go:build !tinygo

package core

// irqState is a placeholder for interrupt state on regular Go
type irqState uintptr

// disableInterrupts is a no-op on regular Go; hosted builds rely on the
// mutex taken alongside it in enterCritical.
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go
func restoreInterrupts(state irqState) {
	// No-op
}
