package daemon

import (
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued and
// cancelling it is a no-op.
type Handle uint64

type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) Handle
	ScheduleRepeating(interval time.Duration, fn func()) Handle
	Cancel(h Handle)
}

// TimerScheduler runs callbacks on their own goroutines. A repeating
// callback never overlaps itself; ticks that fire while it runs are dropped.
type TimerScheduler struct {
	mu    sync.Mutex
	next  Handle
	stops map[Handle]func()
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{stops: make(map[Handle]func())}
}

func (s *TimerScheduler) register(stop func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.stops[s.next] = stop
	return s.next
}

func (s *TimerScheduler) forget(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stops, h)
}

func (s *TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) Handle {
	var (
		h     Handle
		ready = make(chan struct{})
	)

	t := time.AfterFunc(delay, func() {
		<-ready
		s.forget(h)
		fn()
	})

	h = s.register(func() { t.Stop() })
	close(ready)

	return h
}

// ScheduleRepeating returns the zero Handle without scheduling anything when
// interval is not positive.
func (s *TimerScheduler) ScheduleRepeating(interval time.Duration, fn func()) Handle {
	if interval <= 0 {
		return 0
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	return s.register(func() {
		ticker.Stop()
		close(done)
	})
}

func (s *TimerScheduler) Cancel(h Handle) {
	s.mu.Lock()
	stop, ok := s.stops[h]
	delete(s.stops, h)
	s.mu.Unlock()

	if ok {
		stop()
	}
}

// Pending returns how many callbacks are still scheduled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops)
}

// CancelAll stops every scheduled callback.
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	stops := s.stops
	s.stops = make(map[Handle]func())
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}
