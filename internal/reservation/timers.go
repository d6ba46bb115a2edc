package reservation

import (
	"sync"
	"time"
)

// TimerController owns the per-scope expiry timer and countdown refresher.
// Invariants: at most one live expiry timer and one live countdown per scope;
// rescheduling an expiry always cancels the previous one first, and stopping a
// timer always clears the stored handle so a stale timer can never fire into a
// reused scope.
type TimerController struct {
	mu         sync.Mutex
	expiry     map[string]*time.Timer
	countdowns map[string]chan struct{}
}

func NewTimerController() *TimerController {
	return &TimerController{
		expiry:     make(map[string]*time.Timer),
		countdowns: make(map[string]chan struct{}),
	}
}

// ScheduleExpiry arms the expiry timer for a scope, replacing any previously
// scheduled one. The handle is cleared before fire runs so the firing timer is
// never observable as still pending.
func (t *TimerController) ScheduleExpiry(scope string, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.expiry[scope]; ok {
		old.Stop()
	}
	t.expiry[scope] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.expiry, scope)
		t.mu.Unlock()
		fire()
	})
}

func (t *TimerController) StopExpiry(scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.expiry[scope]; ok {
		tm.Stop()
		delete(t.expiry, scope)
	}
}

// StartCountdown launches the periodic refresher for a scope if none is
// running. tick is called on every period and returns false to stop the
// countdown (order gone, completed, or deadline passed).
func (t *TimerController) StartCountdown(scope string, period time.Duration, tick func() bool) {
	t.mu.Lock()
	if _, ok := t.countdowns[scope]; ok {
		t.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.countdowns[scope] = stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !tick() {
					t.StopCountdown(scope)
					return
				}
			}
		}
	}()
}

func (t *TimerController) StopCountdown(scope string) {
	t.mu.Lock()
	stop, ok := t.countdowns[scope]
	if ok {
		delete(t.countdowns, scope)
	}
	t.mu.Unlock()
	if ok {
		close(stop)
	}
}

// StopAll cancels every live timer; used on shutdown.
func (t *TimerController) StopAll() {
	t.mu.Lock()
	for scope, tm := range t.expiry {
		tm.Stop()
		delete(t.expiry, scope)
	}
	stops := make([]chan struct{}, 0, len(t.countdowns))
	for scope, stop := range t.countdowns {
		stops = append(stops, stop)
		delete(t.countdowns, scope)
	}
	t.mu.Unlock()
	for _, stop := range stops {
		close(stop)
	}
}

func (t *TimerController) expiryArmed(scope string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.expiry[scope]
	return ok
}

func (t *TimerController) countdownRunning(scope string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.countdowns[scope]
	return ok
}
