package app

import (
	"context"

	"live-test-service/internal/domain"
)

// basePoints is the award for a correct answer before the time bonus.
const basePoints = 10

// AnswerResult summarizes the outcome of one submission.
type AnswerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	Points        int  `json:"points"`
	NewScore      int  `json:"newScore"`
}

// scorePoints awards base points plus a bonus proportional to the fraction
// of the answer window remaining: an instant answer is worth roughly double
// base, a last-second answer base only.
func scorePoints(correct bool, timeRemaining, limit int) int {
	if !correct {
		return 0
	}
	return basePoints + basePoints*timeRemaining/limit
}

// SubmitAnswer validates and records one answer. Online mode requires the
// submitted index to be the live question; offline mode lets each
// participant move at their own pace. The no-prior-answer rule is part of
// the store filter, so a duplicate submission (retried request, double
// click) is rejected rather than double-scored.
func (s *Service) SubmitAnswer(ctx context.Context, code, identity string, questionIndex int, option string, timeRemaining int) (AnswerResult, error) {
	sess, err := s.store.Get(ctx, code)
	if err != nil {
		return AnswerResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return AnswerResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return AnswerResult{}, domain.ErrBadQuestionIndex
	}
	question := quiz.Questions[questionIndex]
	if !hasOption(question, option) {
		return AnswerResult{}, domain.ErrBadOption
	}
	limit := question.TimeLimitOrDefault()
	if timeRemaining < 0 || timeRemaining > limit {
		return AnswerResult{}, domain.ErrBadTimeRemaining
	}

	correct := question.CorrectOption == option
	answer := domain.Answer{
		QuestionIndex: questionIndex,
		Option:        option,
		Correct:       correct,
		TimeRemaining: timeRemaining,
		Points:        scorePoints(correct, timeRemaining, limit),
	}
	offline := sess.Mode == domain.ModeOffline

	updated, err := s.store.TryUpdate(ctx, code,
		func(cur *domain.Session) error {
			if cur.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			p := findParticipant(cur, identity, offline)
			if p == nil {
				return domain.ErrParticipantNotFound
			}
			if !p.Active {
				return domain.ErrParticipantInactive
			}
			if offline {
				if p.CompletedAt != nil {
					return domain.ErrAlreadyCompleted
				}
			} else {
				if !cur.QuestionLive {
					return domain.ErrQuestionNotLive
				}
				if cur.CurrentQuestion != questionIndex {
					return domain.ErrWrongQuestion
				}
			}
			if p.HasAnswered(questionIndex) {
				return domain.ErrAlreadyAnswered
			}
			return nil
		},
		func(cur *domain.Session) error {
			p := findParticipant(cur, identity, offline)
			p.Answers = append(p.Answers, answer)
			p.Score += answer.Points
			return nil
		})
	if err != nil {
		return AnswerResult{}, err
	}

	recorded := findParticipant(&updated, identity, offline)
	s.broker.Publish(Event{
		Type:  EventAnswerReceived,
		Code:  code,
		Scope: ScopeAdmin,
		Payload: AnswerReceived{
			Name:          recorded.Name,
			QuestionIndex: questionIndex,
			Option:        option,
			Tally:         tallyFor(&updated, questionIndex),
		},
	})
	return AnswerResult{
		QuestionIndex: questionIndex,
		Correct:       correct,
		Points:        answer.Points,
		NewScore:      recorded.Score,
	}, nil
}

// FinishParticipant records an offline participant's completion instant,
// recomputes standings, and opportunistically flips the session to
// completed once every active participant has finished. CompletedAt is set
// exactly once; a concurrent duplicate finish loses the store race and gets
// a precondition rejection.
func (s *Service) FinishParticipant(ctx context.Context, code, name string) (domain.Session, error) {
	sess, err := s.store.Get(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return domain.Session{}, err
	}
	questionCount := len(quiz.Questions)
	now := s.now()

	updated, err := s.store.TryUpdate(ctx, code,
		func(cur *domain.Session) error {
			if cur.Mode != domain.ModeOffline {
				return domain.ErrWrongStatus
			}
			if cur.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			p := cur.FindByName(name)
			if p == nil {
				return domain.ErrParticipantNotFound
			}
			if !p.Active {
				return domain.ErrParticipantInactive
			}
			if p.CompletedAt != nil {
				return domain.ErrAlreadyCompleted
			}
			if len(p.Answers) < questionCount {
				return domain.ErrNotAllAnswered
			}
			return nil
		},
		func(cur *domain.Session) error {
			ts := now
			cur.FindByName(name).CompletedAt = &ts
			cur.Standings = ComputeStandings(cur.Participants)
			return nil
		})
	if err != nil {
		return domain.Session{}, err
	}

	s.broker.Publish(Event{Type: EventStandingsUpdated, Code: code, Scope: ScopeBroadcast, Payload: updated.Standings})

	final, completed, err := s.checkAndComplete(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	if completed {
		return final, nil
	}
	return updated, nil
}

// checkAndComplete flips an offline session to completed when all active
// participants have finished. The status=active condition is part of the
// filter, so when two participants complete within the same instant exactly
// one of the racing sweeps performs the flip and emits the event.
func (s *Service) checkAndComplete(ctx context.Context, code string) (domain.Session, bool, error) {
	updated, err := s.store.TryUpdate(ctx, code,
		func(cur *domain.Session) error {
			if cur.Mode != domain.ModeOffline || cur.Status != domain.StatusActive {
				return domain.ErrWrongStatus
			}
			if !cur.AllActiveCompleted() {
				return domain.ErrNotAllAnswered
			}
			return nil
		},
		func(cur *domain.Session) error {
			cur.Status = domain.StatusCompleted
			cur.Standings = ComputeStandings(cur.Participants)
			return nil
		})
	if err != nil {
		if domain.IsRejection(err) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}

	s.broker.Publish(Event{Type: EventSessionCompleted, Code: code, Scope: ScopeBroadcast, Payload: updated.Standings})
	return updated, true, nil
}

// findParticipant resolves identity by name for offline sessions and by
// connection ref for online ones, mirroring how each mode addresses
// participants on the wire.
func findParticipant(sess *domain.Session, identity string, offline bool) *domain.Participant {
	if offline {
		return sess.FindByName(identity)
	}
	return sess.FindByConnRef(identity)
}

func hasOption(q domain.Question, option string) bool {
	for _, o := range q.Options {
		if o.Letter == option {
			return true
		}
	}
	return false
}
