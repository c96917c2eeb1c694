package app

import (
	"sync"

	"live-test-service/internal/domain"
)

// EventType names a state-change notification.
type EventType string

const (
	EventSessionStarted    EventType = "session.started"
	EventSessionCompleted  EventType = "session.completed"
	EventSessionCancelled  EventType = "session.cancelled"
	EventQuestionStarted   EventType = "question.started"
	EventQuestionEnded     EventType = "question.ended"
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
	EventStandingsUpdated  EventType = "standings.updated"
	EventAnswerReceived    EventType = "answer.received"
)

// Scope restricts who receives an event.
type Scope int

const (
	ScopeBroadcast Scope = iota
	ScopeAdmin
)

// Event is the immutable value produced by a successful store mutation.
type Event struct {
	Type    EventType   `json:"type"`
	Code    string      `json:"code"`
	Scope   Scope       `json:"-"`
	Payload interface{} `json:"payload"`
}

// ParticipantPresence is the payload for joined/left events.
type ParticipantPresence struct {
	Name             string `json:"name"`
	ParticipantCount int    `json:"participantCount"`
	Capacity         int    `json:"capacity"`
}

// QuestionStarted is the payload for question.started.
type QuestionStarted struct {
	Index     int             `json:"index"`
	Content   string          `json:"content"`
	Options   []domain.Option `json:"options"`
	TimeLimit int             `json:"timeLimit"`
}

// Tally is the per-option answer distribution for one question.
type Tally struct {
	QuestionIndex     int            `json:"questionIndex"`
	Distribution      map[string]int `json:"distribution"`
	TotalAnswers      int            `json:"totalAnswers"`
	CorrectAnswers    int            `json:"correctAnswers"`
	TotalParticipants int            `json:"totalParticipants"`
}

// QuestionEnded is the payload for question.ended.
type QuestionEnded struct {
	Index         int    `json:"index"`
	CorrectOption string `json:"correctOption"`
	Tally         Tally  `json:"tally"`
}

// AnswerReceived is the admin-only payload emitted on every submission.
type AnswerReceived struct {
	Name          string `json:"name"`
	QuestionIndex int    `json:"questionIndex"`
	Option        string `json:"option"`
	Tally         Tally  `json:"tally"`
}

type subscriber struct {
	ch    chan Event
	admin bool
}

// Broker fans successful store mutations out to subscribed connections. It
// is a pure observer of session state: per-session subscriber sets are
// process-local bookkeeping, never authoritative, and can be rebuilt from
// the store after a restart.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a connection for a session's events. Admin
// subscriptions additionally receive admin-scoped events. The caller must
// invoke the returned cancel function to avoid leaks.
func (b *Broker) Subscribe(code string, admin bool) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 16), admin: admin}

	b.mu.Lock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[*subscriber]struct{})
	}
	b.subs[code][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[code]; ok {
			if _, ok := set[sub]; ok {
				delete(set, sub)
				close(sub.ch)
			}
			if len(set) == 0 {
				delete(b.subs, code)
			}
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers the event to every matching subscriber. Slow consumers
// lose their oldest pending event instead of blocking the publisher.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[ev.Code] {
		if ev.Scope == ScopeAdmin && !sub.admin {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}
