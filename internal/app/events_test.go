package app

import (
	"testing"
	"time"
)

func TestBrokerScopesAdminEvents(t *testing.T) {
	broker := NewBroker()

	participant, cancelP := broker.Subscribe("123456", false)
	defer cancelP()
	admin, cancelA := broker.Subscribe("123456", true)
	defer cancelA()

	broker.Publish(Event{Type: EventAnswerReceived, Code: "123456", Scope: ScopeAdmin})
	broker.Publish(Event{Type: EventQuestionStarted, Code: "123456", Scope: ScopeBroadcast})

	got := <-admin
	if got.Type != EventAnswerReceived {
		t.Fatalf("admin first event: %s", got.Type)
	}
	got = <-admin
	if got.Type != EventQuestionStarted {
		t.Fatalf("admin second event: %s", got.Type)
	}

	// The participant only sees the broadcast.
	got = <-participant
	if got.Type != EventQuestionStarted {
		t.Fatalf("participant event: %s", got.Type)
	}
	select {
	case ev := <-participant:
		t.Fatalf("participant received unexpected %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerIsolatesSessions(t *testing.T) {
	broker := NewBroker()

	other, cancel := broker.Subscribe("222222", false)
	defer cancel()

	broker.Publish(Event{Type: EventSessionStarted, Code: "111111", Scope: ScopeBroadcast})
	select {
	case ev := <-other:
		t.Fatalf("leaked event across sessions: %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewBroker()

	events, cancel := broker.Subscribe("123456", false)
	cancel()

	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	// Cancel is idempotent and publishing afterwards is a no-op.
	cancel()
	broker.Publish(Event{Type: EventSessionStarted, Code: "123456", Scope: ScopeBroadcast})
}

func TestBrokerDropsOldestWhenSlow(t *testing.T) {
	broker := NewBroker()

	events, cancel := broker.Subscribe("123456", false)
	defer cancel()

	// Overflow the buffer without reading; the oldest events are shed and
	// the newest survive.
	for i := 0; i < 40; i++ {
		broker.Publish(Event{Type: EventStandingsUpdated, Code: "123456", Scope: ScopeBroadcast, Payload: i})
	}

	var last int
	drained := 0
	for {
		select {
		case ev := <-events:
			last = ev.Payload.(int)
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 {
		t.Fatalf("no events delivered")
	}
	if last != 39 {
		t.Fatalf("latest event lost, last seen %d", last)
	}
}
