package app

import (
	"context"
	"log"
	"time"

	"live-test-service/internal/domain"
)

// StartSession moves an online session from waiting to active. Requires at
// least one active participant and the registered admin connection.
func (s *Service) StartSession(ctx context.Context, code, adminRef string) (domain.Session, error) {
	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			if err := requireAdmin(sess, adminRef); err != nil {
				return err
			}
			if sess.Status != domain.StatusWaiting {
				return domain.ErrWrongStatus
			}
			if sess.ActiveCount() == 0 {
				return domain.ErrNoParticipants
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.Status = domain.StatusActive
			sess.CurrentQuestion = 0
			sess.QuestionLive = false
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}

	s.broker.Publish(Event{Type: EventSessionStarted, Code: code, Scope: ScopeBroadcast, Payload: snapshotOf(updated)})
	return updated, nil
}

// StartQuestion opens question index for answers across all participants
// and schedules the auto-end timer. Starting a new question cancels any
// timer still outstanding for a previous one.
func (s *Service) StartQuestion(ctx context.Context, code string, index int, adminRef string) (domain.Session, error) {
	quiz, limit, err := s.questionWindow(ctx, code, index)
	if err != nil {
		return domain.Session{}, err
	}
	now := s.now()

	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			if err := requireAdmin(sess, adminRef); err != nil {
				return err
			}
			if sess.Mode != domain.ModeOnline {
				return domain.ErrWrongStatus
			}
			if sess.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.CurrentQuestion = index
			sess.QuestionLive = true
			sess.QuestionStartedAt = now
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}

	window := time.Duration(limit)*time.Second + s.grace
	s.timers.schedule(code, window, func() {
		s.autoEndQuestion(code, index)
	})

	s.broker.Publish(Event{
		Type:  EventQuestionStarted,
		Code:  code,
		Scope: ScopeBroadcast,
		Payload: QuestionStarted{
			Index:     index,
			Content:   quiz.Questions[index].Content,
			Options:   quiz.Questions[index].Options,
			TimeLimit: limit,
		},
	})
	return updated, nil
}

// EndQuestion closes the live question. Safe against the racing auto-end
// timer: whichever reaches the store first wins, the loser hits the
// QuestionLive filter and no second question.ended event is emitted.
func (s *Service) EndQuestion(ctx context.Context, code, adminRef string) (domain.Session, error) {
	return s.endQuestion(ctx, code, adminRef, -1)
}

// autoEndQuestion is the timer path. It pins the question index so a stale
// timer can never end a later question, and treats a lost race as a no-op.
func (s *Service) autoEndQuestion(code string, index int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.endQuestion(ctx, code, "", index); err != nil {
		if domain.IsRejection(err) {
			log.Printf("auto-end for session %s question %d superseded: %v", code, index, err)
			return
		}
		log.Printf("auto-end for session %s question %d failed: %v", code, index, err)
	}
}

func (s *Service) endQuestion(ctx context.Context, code, adminRef string, pinnedIndex int) (domain.Session, error) {
	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			if pinnedIndex < 0 {
				if err := requireAdmin(sess, adminRef); err != nil {
					return err
				}
			} else if sess.CurrentQuestion != pinnedIndex {
				return domain.ErrWrongQuestion
			}
			if !sess.QuestionLive {
				return domain.ErrQuestionNotLive
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.QuestionLive = false
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}
	s.timers.cancel(code)

	index := updated.CurrentQuestion
	correct := ""
	if quiz, qerr := s.quizzes.GetQuiz(ctx, updated.QuizID); qerr == nil && index < len(quiz.Questions) {
		correct = quiz.Questions[index].CorrectOption
	}
	s.broker.Publish(Event{
		Type:  EventQuestionEnded,
		Code:  code,
		Scope: ScopeBroadcast,
		Payload: QuestionEnded{
			Index:         index,
			CorrectOption: correct,
			Tally:         tallyFor(&updated, index),
		},
	})
	return updated, nil
}

// CompleteSession finishes an online session: final standings over all
// active participants, terminal status, any live question closed.
func (s *Service) CompleteSession(ctx context.Context, code, adminRef string) (domain.Session, error) {
	now := s.now()
	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			if err := requireAdmin(sess, adminRef); err != nil {
				return err
			}
			if sess.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			return nil
		},
		func(sess *domain.Session) error {
			for i := range sess.Participants {
				p := &sess.Participants[i]
				if p.Active && p.CompletedAt == nil {
					ts := now
					p.CompletedAt = &ts
				}
			}
			sess.Standings = ComputeStandings(sess.Participants)
			sess.Status = domain.StatusCompleted
			sess.QuestionLive = false
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}
	s.timers.cancel(code)

	s.broker.Publish(Event{Type: EventSessionCompleted, Code: code, Scope: ScopeBroadcast, Payload: updated.Standings})
	return updated, nil
}

// CancelSession is the admin abort. Terminal: no further answers or
// transitions are accepted afterwards.
func (s *Service) CancelSession(ctx context.Context, code, adminRef string) (domain.Session, error) {
	updated, err := s.store.TryUpdate(ctx, code,
		func(sess *domain.Session) error {
			if err := requireAdmin(sess, adminRef); err != nil {
				return err
			}
			switch sess.Status {
			case domain.StatusCompleted, domain.StatusCancelled:
				return domain.ErrWrongStatus
			}
			return nil
		},
		func(sess *domain.Session) error {
			sess.Status = domain.StatusCancelled
			sess.QuestionLive = false
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}
	s.timers.cancel(code)

	s.broker.Publish(Event{Type: EventSessionCancelled, Code: code, Scope: ScopeBroadcast, Payload: snapshotOf(updated)})
	return updated, nil
}

// requireAdmin authorizes lifecycle controls for online sessions. Offline
// sessions have no registered admin connection and skip the check.
func requireAdmin(sess *domain.Session, connRef string) error {
	if sess.Mode != domain.ModeOnline {
		return nil
	}
	if sess.AdminConnRef == "" || sess.AdminConnRef != connRef {
		return domain.ErrNotAdmin
	}
	return nil
}

// questionWindow validates the index against the quiz and returns the
// quiz plus the question's answer window in seconds.
func (s *Service) questionWindow(ctx context.Context, code string, index int) (domain.Quiz, int, error) {
	sess, err := s.store.Get(ctx, code)
	if err != nil {
		return domain.Quiz{}, 0, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return domain.Quiz{}, 0, err
	}
	if index < 0 || index >= len(quiz.Questions) {
		return domain.Quiz{}, 0, domain.ErrBadQuestionIndex
	}
	return quiz, quiz.Questions[index].TimeLimitOrDefault(), nil
}
