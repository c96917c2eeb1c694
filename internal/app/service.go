package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"live-test-service/internal/domain"
)

// SessionStore is the single synchronization primitive for session state.
// TryUpdate loads the current document, runs filter against it, applies
// mutate to a copy, bumps the version, and commits only if no concurrent
// mutation landed in between. A filter rejection means "precondition
// violated", never an infrastructure error, and must not be retried
// blindly by the store.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, code string) (domain.Session, error)
	TryUpdate(ctx context.Context, code string, filter func(*domain.Session) error, mutate func(*domain.Session) error) (domain.Session, error)
	Delete(ctx context.Context, code string) error
	Codes(ctx context.Context) ([]string, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Service contains the test session use cases. All state lives in the
// store; the service itself only holds process-local bookkeeping (timers,
// subscribers) that can be rebuilt from store contents.
type Service struct {
	store   SessionStore
	quizzes QuizRepository
	broker  *Broker
	timers  *timerRegistry
	grace   time.Duration
	now     func() time.Time

	codeMu  sync.Mutex
	codeRnd *rand.Rand
}

// Option tweaks service construction.
type Option func(*Service)

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGrace sets the slack added to a question's time limit before the
// auto-end timer fires.
func WithGrace(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

func NewService(store SessionStore, quizzes QuizRepository, opts ...Option) *Service {
	s := &Service{
		store:   store,
		quizzes: quizzes,
		broker:  NewBroker(),
		timers:  newTimerRegistry(),
		grace:   time.Second,
		now:     time.Now,
		codeRnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broker exposes the fan-out side for transports to subscribe on.
func (s *Service) Broker() *Broker { return s.broker }

// Close cancels all outstanding question timers.
func (s *Service) Close() { s.timers.stopAll() }

const codeAttempts = 10

// CreateSession launches a new test session against an authored quiz and
// returns its join code.
func (s *Service) CreateSession(ctx context.Context, quizID string, mode domain.Mode, capacity int, schedule *domain.Schedule) (domain.Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	if quiz.Mode != "" && quiz.Mode != mode {
		return domain.Session{}, domain.ErrModeMismatch
	}
	if capacity > domain.MaxCapacity {
		capacity = domain.MaxCapacity
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		session, err := domain.NewSession(s.nextCode(), quizID, mode, capacity, schedule, s.now())
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.store.Create(ctx, session); err != nil {
			if errors.Is(err, domain.ErrCodeTaken) {
				continue
			}
			return domain.Session{}, err
		}
		return *session, nil
	}
	return domain.Session{}, fmt.Errorf("could not allocate a unique join code after %d attempts", codeAttempts)
}

// nextCode produces a 6-digit numeric join code.
func (s *Service) nextCode() string {
	s.codeMu.Lock()
	defer s.codeMu.Unlock()
	return fmt.Sprintf("%06d", 100000+s.codeRnd.Intn(900000))
}

// Join registers a participant in a session, or reactivates an inactive
// one with the same name. Capacity, name uniqueness and eligibility are all
// part of the same conditional update, so two joins racing for the last
// slot or the same name resolve to exactly one winner.
func (s *Service) Join(ctx context.Context, code, name, connRef string) (domain.Participant, domain.Session, error) {
	trimmed, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Participant{}, domain.Session{}, err
	}
	now := s.now()

	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			switch sess.Status {
			case domain.StatusCompleted, domain.StatusCancelled:
				return domain.ErrWrongStatus
			}
			if sess.Mode == domain.ModeOffline {
				if sess.Status != domain.StatusActive {
					return domain.ErrWrongStatus
				}
				if err := sess.WithinWindow(now); err != nil {
					return err
				}
			} else if sess.Status != domain.StatusWaiting {
				return domain.ErrWrongStatus
			}
			if existing := sess.FindByName(trimmed); existing != nil && existing.Active {
				return domain.ErrNameTaken
			} else if existing == nil && sess.ActiveCount() >= sess.Capacity {
				return domain.ErrSessionFull
			}
			return nil
		},
		func(sess *domain.Session) error {
			if existing := sess.FindByName(trimmed); existing != nil {
				// Reconnect path: keep score and answers, refresh presence.
				existing.Active = true
				existing.ConnectionRef = connRef
				existing.JoinedAt = now
				return nil
			}
			sess.Participants = append(sess.Participants, domain.Participant{
				Name:          trimmed,
				ConnectionRef: connRef,
				Score:         0,
				Answers:       []domain.Answer{},
				Active:        true,
				JoinedAt:      now,
			})
			return nil
		})
	if err != nil {
		return domain.Participant{}, domain.Session{}, err
	}

	joined := updated.FindByName(trimmed)
	s.broker.Publish(Event{
		Type:  EventParticipantJoined,
		Code:  code,
		Scope: ScopeBroadcast,
		Payload: ParticipantPresence{
			Name:             joined.Name,
			ParticipantCount: updated.ActiveCount(),
			Capacity:         updated.Capacity,
		},
	})
	return *joined, updated, nil
}

// Leave marks a participant inactive, preserving score and answers so a
// rejoin with the same name picks up where it left off. Idempotent: leaving
// twice is a no-op.
func (s *Service) Leave(ctx context.Context, code, connRef string) error {
	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			p := sess.FindByConnRef(connRef)
			if p == nil || !p.Active {
				return domain.ErrParticipantNotFound
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.FindByConnRef(connRef).Active = false
			return nil
		})
	if err != nil {
		if domain.IsRejection(err) {
			return nil
		}
		return err
	}

	left := updated.FindByConnRef(connRef)
	s.broker.Publish(Event{
		Type:  EventParticipantLeft,
		Code:  code,
		Scope: ScopeBroadcast,
		Payload: ParticipantPresence{
			Name:             left.Name,
			ParticipantCount: updated.ActiveCount(),
			Capacity:         updated.Capacity,
		},
	})
	return nil
}

// RegisterAdmin binds the admin's connection reference to the session so
// later lifecycle controls can be authorized against it.
func (s *Service) RegisterAdmin(ctx context.Context, code, connRef string) (domain.Session, error) {
	return s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			switch sess.Status {
			case domain.StatusCompleted, domain.StatusCancelled:
				return domain.ErrWrongStatus
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.AdminConnRef = connRef
			return nil
		})
}
