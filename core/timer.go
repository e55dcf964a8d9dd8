package core

import (
	"math"
	"time"
)

// Timer frequency of the soft-timer clock. One tick is one millisecond,
// which is the resolution of every interval the firmware schedules.
const (
	TimerFreq = 1000
)

var bootTime = time.Now()

// GetTime returns the current system time in timer ticks (milliseconds).
// The value wraps after ~49.7 days; compare with timerIsBefore.
func GetTime() uint32 {
	return uint32(time.Since(bootTime).Milliseconds())
}

// GetUptime returns 64-bit uptime in milliseconds. Record timestamps use it
// because they must not wrap.
func GetUptime() uint64 {
	return uint64(time.Since(bootTime).Milliseconds())
}

// MaxTimerMS is the longest interval TimerFromMS converts without overflow
const MaxTimerMS = math.MaxUint32 / TimerFreq

// TimerFromMS converts milliseconds to timer ticks. ms must not exceed
// MaxTimerMS.
func TimerFromMS(ms uint32) uint32 {
	return ms * TimerFreq / 1000
}

// TimerToDuration converts timer ticks to a time.Duration
func TimerToDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * time.Second / TimerFreq
}

// timerIsBefore reports whether tick a is before tick b, tolerating wrap.
func timerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
