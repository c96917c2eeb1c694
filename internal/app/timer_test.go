package app

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerRegistryReplaceDropsOldTimer(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.stopAll()

	var first, second atomic.Int32
	registry.schedule("123456", 30*time.Millisecond, func() { first.Add(1) })
	registry.schedule("123456", 60*time.Millisecond, func() { second.Add(1) })

	time.Sleep(150 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("replaced timer fired %d times", first.Load())
	}
	if second.Load() != 1 {
		t.Fatalf("active timer fired %d times, want 1", second.Load())
	}
}

func TestTimerRegistryCancelStopsFire(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.stopAll()

	var fired atomic.Int32
	registry.schedule("123456", 30*time.Millisecond, func() { fired.Add(1) })
	registry.cancel("123456")

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer fired %d times", fired.Load())
	}
}

func TestTimerRegistryTracksSessionsIndependently(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.stopAll()

	var a, b atomic.Int32
	registry.schedule("111111", 30*time.Millisecond, func() { a.Add(1) })
	registry.schedule("222222", 30*time.Millisecond, func() { b.Add(1) })
	registry.cancel("111111")

	time.Sleep(100 * time.Millisecond)
	if a.Load() != 0 || b.Load() != 1 {
		t.Fatalf("unexpected fires: a=%d b=%d", a.Load(), b.Load())
	}
}

func TestTimerRegistryFiredEntryRemoved(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.stopAll()

	done := make(chan struct{})
	registry.schedule("123456", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}

	// The fired timer removes itself, so the next schedule for the code is
	// a fresh entry rather than a replace.
	registry.mu.Lock()
	_, present := registry.timers["123456"]
	registry.mu.Unlock()
	if present {
		t.Fatalf("fired timer left in registry")
	}
}
