package core

import (
	"context"
	"sync"
	"time"
)

// SoftTimer is a one-shot timer owned by a TimerService. Its handler runs in
// timer-service context, never in interrupt context.
type SoftTimer struct {
	Name    string
	Period  uint32 // Ticks between arming and expiry
	Handler func(*SoftTimer)

	wakeTime uint32
	active   bool
	deleted  bool
	next     *SoftTimer
}

// critical guards state shared with interrupt handlers. On TinyGo the
// interrupt mask keeps ISRs out; hosted Go has no interrupts, so the mutex
// serializes the edge-watch goroutines instead.
type critical struct {
	mu sync.Mutex
}

func (c *critical) enter() irqState {
	state := disableInterrupts()
	c.mu.Lock()
	return state
}

func (c *critical) exit(state irqState) {
	c.mu.Unlock()
	restoreInterrupts(state)
}

// idleWait bounds how long Run sleeps when no timer is armed.
const idleWait = time.Hour

// TimerService keeps armed soft timers in a list sorted by wake time and
// runs their handlers one at a time, like an RTOS timer daemon.
type TimerService struct {
	crit     critical
	dispatch sync.Mutex

	now      func() uint32
	list     *SoftTimer
	count    int // Timers created and not yet deleted
	capacity int // Maximum live timers (0 = unlimited)

	wake chan struct{}
}

// NewTimerService creates a timer service able to hold capacity live timers.
// A nil now uses GetTime.
func NewTimerService(capacity int, now func() uint32) *TimerService {
	if now == nil {
		now = GetTime
	}
	return &TimerService{
		now:      now,
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// CreateTimer allocates a dormant one-shot timer. It fails with
// ErrOutOfMemory once the service's capacity is used up.
func (s *TimerService) CreateTimer(name string, period uint32, handler func(*SoftTimer)) (*SoftTimer, error) {
	if period == 0 || handler == nil {
		return nil, ErrInvalidArgument
	}

	state := s.crit.enter()
	defer s.crit.exit(state)

	if s.capacity > 0 && s.count >= s.capacity {
		return nil, ErrOutOfMemory
	}
	s.count++

	return &SoftTimer{
		Name:    name,
		Period:  period,
		Handler: handler,
	}, nil
}

// Start arms t to expire Period ticks from now, restarting it if it was
// already running. Safe to call from interrupt context.
func (s *TimerService) Start(t *SoftTimer) bool {
	if t == nil {
		return false
	}

	state := s.crit.enter()
	if t.deleted {
		s.crit.exit(state)
		return false
	}
	s.arm(t)
	s.crit.exit(state)

	s.signal()
	return true
}

// Reset restarts t only if it is currently running. It returns false for
// a dormant timer so the caller can decide to Start it instead. Safe to call
// from interrupt context.
func (s *TimerService) Reset(t *SoftTimer) bool {
	if t == nil {
		return false
	}

	state := s.crit.enter()
	if t.deleted || !t.active {
		s.crit.exit(state)
		return false
	}
	s.arm(t)
	s.crit.exit(state)

	s.signal()
	return true
}

// Stop disarms t and reports whether it was running.
func (s *TimerService) Stop(t *SoftTimer) bool {
	if t == nil {
		return false
	}

	state := s.crit.enter()
	defer s.crit.exit(state)

	if !t.active {
		return false
	}
	s.unlink(t)
	return true
}

// Delete disarms t and releases its slot. Further operations on t are
// no-ops. Deleting twice is harmless.
func (s *TimerService) Delete(t *SoftTimer) {
	if t == nil {
		return
	}

	state := s.crit.enter()
	defer s.crit.exit(state)

	if t.deleted {
		return
	}
	if t.active {
		s.unlink(t)
	}
	t.deleted = true
	s.count--
}

// Active reports whether t is armed
func (s *TimerService) Active(t *SoftTimer) bool {
	state := s.crit.enter()
	defer s.crit.exit(state)
	return t != nil && t.active
}

// Count returns the number of live (created, not deleted) timers
func (s *TimerService) Count() int {
	state := s.crit.enter()
	defer s.crit.exit(state)
	return s.count
}

// NextWake returns the wake time of the earliest armed timer
func (s *TimerService) NextWake() (uint32, bool) {
	state := s.crit.enter()
	defer s.crit.exit(state)

	if s.list == nil {
		return 0, false
	}
	return s.list.wakeTime, true
}

// Dispatch runs the handlers of all due timers in wake order and returns
// how many fired. Handlers run outside the critical section so they may
// start and stop other timers. Concurrent callers are serialized.
func (s *TimerService) Dispatch() int {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	fired := 0
	for {
		state := s.crit.enter()
		t := s.list
		if t == nil || timerIsBefore(s.now(), t.wakeTime) {
			s.crit.exit(state)
			return fired
		}
		s.list = t.next
		t.next = nil
		t.active = false
		s.crit.exit(state)

		t.Handler(t)
		fired++
	}
}

// Run is the timer-service loop. It sleeps until the earliest wake time or
// until a timer is (re)armed, dispatches due timers, and returns when ctx
// is cancelled.
func (s *TimerService) Run(ctx context.Context) error {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		s.Dispatch()

		wait := idleWait
		if wake, ok := s.NextWake(); ok {
			delta := int32(wake - s.now())
			if delta < 0 {
				delta = 0
			}
			wait = TimerToDuration(uint32(delta))
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// arm (re)inserts t in sorted order by wake time. Caller holds crit.
func (s *TimerService) arm(t *SoftTimer) {
	if t.active {
		s.unlink(t)
	}
	t.wakeTime = s.now() + t.Period
	t.active = true

	if s.list == nil || timerIsBefore(t.wakeTime, s.list.wakeTime) {
		t.next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.next != nil && !timerIsBefore(t.wakeTime, current.next.wakeTime) {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

// unlink removes t from the armed list. Caller holds crit.
func (s *TimerService) unlink(t *SoftTimer) {
	if s.list == t {
		s.list = t.next
	} else {
		for current := s.list; current != nil; current = current.next {
			if current.next == t {
				current.next = t.next
				break
			}
		}
	}
	t.next = nil
	t.active = false
}

// signal wakes Run so it recomputes its sleep. Never blocks.
func (s *TimerService) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
