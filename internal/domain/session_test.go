package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionValidatesCapacity(t *testing.T) {
	now := time.Now()
	if _, err := NewSession("123456", "q", ModeOnline, 0, nil, now); err != ErrBadCapacity {
		t.Fatalf("capacity 0: expected bad capacity, got %v", err)
	}
	if _, err := NewSession("123456", "q", ModeOnline, MaxCapacity+1, nil, now); err != ErrBadCapacity {
		t.Fatalf("capacity over max: expected bad capacity, got %v", err)
	}
	if _, err := NewSession("123456", "q", ModeOnline, MaxCapacity, nil, now); err != nil {
		t.Fatalf("capacity at max: %v", err)
	}
}

func TestNewSessionInitialStatusByMode(t *testing.T) {
	now := time.Now()
	online, err := NewSession("123456", "q", ModeOnline, 10, nil, now)
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if online.Status != StatusWaiting {
		t.Fatalf("online session born %s, want waiting", online.Status)
	}

	schedule := &Schedule{StartTime: now, EndTime: now.Add(time.Hour)}
	offline, err := NewSession("123456", "q", ModeOffline, 10, schedule, now)
	if err != nil {
		t.Fatalf("offline: %v", err)
	}
	if offline.Status != StatusActive {
		t.Fatalf("offline session born %s, want active", offline.Status)
	}
}

func TestNewSessionOfflineRequiresValidSchedule(t *testing.T) {
	now := time.Now()
	if _, err := NewSession("123456", "q", ModeOffline, 10, nil, now); err != ErrBadSchedule {
		t.Fatalf("nil schedule: expected bad schedule, got %v", err)
	}
	inverted := &Schedule{StartTime: now.Add(time.Hour), EndTime: now}
	if _, err := NewSession("123456", "q", ModeOffline, 10, inverted, now); err != ErrBadSchedule {
		t.Fatalf("inverted schedule: expected bad schedule, got %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"  Alice  ", "Alice", nil},
		{"Al", "Al", nil},
		{" A ", "", ErrNameTooShort},
		{"", "", ErrNameTooShort},
		{strings.Repeat("x", 50), strings.Repeat("x", 50), nil},
		{strings.Repeat("x", 51), "", ErrNameTooLong},
	}
	for _, c := range cases {
		got, err := NormalizeName(c.in)
		if err != c.err || got != c.want {
			t.Fatalf("NormalizeName(%q) = %q, %v; want %q, %v", c.in, got, err, c.want, c.err)
		}
	}
}

func TestFindByNameFoldsCaseAndSpace(t *testing.T) {
	sess := &Session{Participants: []Participant{{Name: "Alice"}}}
	if sess.FindByName("  ALICE ") == nil {
		t.Fatalf("expected case-insensitive match")
	}
	if sess.FindByName("Bob") != nil {
		t.Fatalf("unexpected match for absent name")
	}
}

func TestCloneIsDeep(t *testing.T) {
	done := time.Now()
	orig := &Session{
		Code:     "123456",
		Schedule: &Schedule{StartTime: done, EndTime: done.Add(time.Hour)},
		Participants: []Participant{
			{Name: "Alice", Answers: []Answer{{QuestionIndex: 0, Points: 10}}, CompletedAt: &done},
		},
		Standings: []Standing{{Rank: 1, Name: "Alice"}},
	}

	dup := orig.Clone()
	dup.Schedule.EndTime = done.Add(2 * time.Hour)
	dup.Participants[0].Answers[0].Points = 99
	*dup.Participants[0].CompletedAt = done.Add(time.Minute)
	dup.Standings[0].Rank = 5

	if orig.Schedule.EndTime != done.Add(time.Hour) {
		t.Fatalf("schedule shared between clone and original")
	}
	if orig.Participants[0].Answers[0].Points != 10 {
		t.Fatalf("answers shared between clone and original")
	}
	if !orig.Participants[0].CompletedAt.Equal(done) {
		t.Fatalf("completion timestamp shared between clone and original")
	}
	if orig.Standings[0].Rank != 1 {
		t.Fatalf("standings shared between clone and original")
	}
}

func TestAllActiveCompleted(t *testing.T) {
	done := time.Now()
	sess := &Session{}
	if sess.AllActiveCompleted() {
		t.Fatalf("empty session must not report completed")
	}

	sess.Participants = []Participant{
		{Name: "Alice", Active: true, CompletedAt: &done},
		{Name: "Bob", Active: true},
	}
	if sess.AllActiveCompleted() {
		t.Fatalf("unfinished active participant must block completion")
	}

	sess.Participants[1].Active = false
	if !sess.AllActiveCompleted() {
		t.Fatalf("inactive participants must not block completion")
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Now()
	sess := &Session{Schedule: &Schedule{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)}}
	if err := sess.WithinWindow(now); err != nil {
		t.Fatalf("inside window: %v", err)
	}
	if err := sess.WithinWindow(now.Add(-2 * time.Hour)); err != ErrNotStartedYet {
		t.Fatalf("before window: expected not started, got %v", err)
	}
	if err := sess.WithinWindow(now.Add(2 * time.Hour)); err != ErrWindowExpired {
		t.Fatalf("after window: expected expired, got %v", err)
	}

	if err := (&Session{}).WithinWindow(now); err != nil {
		t.Fatalf("no schedule: %v", err)
	}
}

func TestTimeLimitOrDefault(t *testing.T) {
	if got := (Question{TimeLimit: 45}).TimeLimitOrDefault(); got != 45 {
		t.Fatalf("explicit limit: got %d", got)
	}
	if got := (Question{}).TimeLimitOrDefault(); got != 30 {
		t.Fatalf("default limit: got %d", got)
	}
}
