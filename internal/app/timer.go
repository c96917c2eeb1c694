package app

import (
	"sync"
	"time"
)

// timerRegistry keeps at most one outstanding auto-end timer per session.
// Scheduling for a session that already has a timer replaces it, so a stale
// timer can never fire an end against a later question.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string]*time.Timer)}
}

func (r *timerRegistry) schedule(code string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[code]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.timers[code] == t {
			delete(r.timers, code)
		}
		r.mu.Unlock()
		fn()
	})
	r.timers[code] = t
}

func (r *timerRegistry) cancel(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[code]; ok {
		t.Stop()
		delete(r.timers, code)
	}
}

func (r *timerRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, t := range r.timers {
		t.Stop()
		delete(r.timers, code)
	}
}
