package domain

import (
	"strings"
	"time"
)

// MaxCapacity caps how many active participants a session may hold.
const MaxCapacity = 1000

// NewSession builds a session document with all derived state computed up
// front. Offline sessions are born active; online sessions wait for the
// admin to start them.
func NewSession(code, quizID string, mode Mode, capacity int, schedule *Schedule, now time.Time) (*Session, error) {
	if capacity < 1 || capacity > MaxCapacity {
		return nil, ErrBadCapacity
	}
	status := StatusWaiting
	if mode == ModeOffline {
		if schedule == nil || !schedule.StartTime.Before(schedule.EndTime) {
			return nil, ErrBadSchedule
		}
		status = StatusActive
	}
	return &Session{
		Code:         code,
		QuizID:       quizID,
		Mode:         mode,
		Status:       status,
		Capacity:     capacity,
		Schedule:     schedule,
		Participants: []Participant{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeName trims a display name and validates its length.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 {
		return "", ErrNameTooShort
	}
	if len(trimmed) > 50 {
		return "", ErrNameTooLong
	}
	return trimmed, nil
}

// Clone returns a deep copy. Stores hand copies to mutation callbacks so a
// rejected update never leaves partial effects on the committed document.
func (s *Session) Clone() *Session {
	dup := *s
	if s.Schedule != nil {
		sched := *s.Schedule
		dup.Schedule = &sched
	}
	dup.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		dup.Participants[i] = p
		if p.CompletedAt != nil {
			ts := *p.CompletedAt
			dup.Participants[i].CompletedAt = &ts
		}
		dup.Participants[i].Answers = append([]Answer(nil), p.Answers...)
	}
	dup.Standings = append([]Standing(nil), s.Standings...)
	return &dup
}

// ActiveCount counts participants currently marked active.
func (s *Session) ActiveCount() int {
	n := 0
	for i := range s.Participants {
		if s.Participants[i].Active {
			n++
		}
	}
	return n
}

// FindByName locates a participant by case-insensitive trimmed name.
func (s *Session) FindByName(name string) *Participant {
	folded := strings.ToLower(strings.TrimSpace(name))
	for i := range s.Participants {
		if strings.ToLower(strings.TrimSpace(s.Participants[i].Name)) == folded {
			return &s.Participants[i]
		}
	}
	return nil
}

// FindByConnRef locates a participant by its transport connection reference.
func (s *Session) FindByConnRef(ref string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ConnectionRef == ref {
			return &s.Participants[i]
		}
	}
	return nil
}

// HasAnswered reports whether the participant already recorded an answer
// for the given question index.
func (p *Participant) HasAnswered(questionIndex int) bool {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

// CorrectCount counts the participant's correct answers.
func (p *Participant) CorrectCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// AllActiveCompleted reports whether every active participant has finished.
// False when nobody is active, so an emptied-out session never auto-flips
// to completed.
func (s *Session) AllActiveCompleted() bool {
	active := 0
	for i := range s.Participants {
		p := &s.Participants[i]
		if !p.Active {
			continue
		}
		active++
		if p.CompletedAt == nil {
			return false
		}
	}
	return active > 0
}

// WithinWindow checks the offline schedule against now. Sessions without a
// schedule are always within window.
func (s *Session) WithinWindow(now time.Time) error {
	if s.Schedule == nil {
		return nil
	}
	if now.Before(s.Schedule.StartTime) {
		return ErrNotStartedYet
	}
	if now.After(s.Schedule.EndTime) {
		return ErrWindowExpired
	}
	return nil
}
