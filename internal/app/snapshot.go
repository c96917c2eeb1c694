package app

import (
	"context"

	"live-test-service/internal/domain"
)

// ParticipantProgress is the per-participant view inside a snapshot.
type ParticipantProgress struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Answered  int    `json:"answered"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// CompletionProgress summarizes how far an offline session has advanced.
type CompletionProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// SessionSnapshot is the poll-friendly view of a session, for clients that
// cannot hold a push connection.
type SessionSnapshot struct {
	Code             string                `json:"code"`
	QuizID           string                `json:"quizId"`
	Mode             domain.Mode           `json:"mode"`
	Status           domain.Status         `json:"status"`
	CurrentQuestion  int                   `json:"currentQuestion"`
	QuestionLive     bool                  `json:"questionLive"`
	ParticipantCount int                   `json:"participantCount"`
	Capacity         int                   `json:"capacity"`
	Schedule         *domain.Schedule      `json:"schedule,omitempty"`
	Participants     []ParticipantProgress `json:"participants"`
	Standings        []domain.Standing     `json:"standings,omitempty"`
	Progress         *CompletionProgress   `json:"progress,omitempty"`
	Version          int64                 `json:"version"`
}

// GetSnapshot returns the current session view by join code.
func (s *Service) GetSnapshot(ctx context.Context, code string) (SessionSnapshot, error) {
	sess, err := s.store.Get(ctx, code)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return snapshotOf(sess), nil
}

func snapshotOf(sess domain.Session) SessionSnapshot {
	snap := SessionSnapshot{
		Code:             sess.Code,
		QuizID:           sess.QuizID,
		Mode:             sess.Mode,
		Status:           sess.Status,
		CurrentQuestion:  sess.CurrentQuestion,
		QuestionLive:     sess.QuestionLive,
		ParticipantCount: sess.ActiveCount(),
		Capacity:         sess.Capacity,
		Schedule:         sess.Schedule,
		Standings:        sess.Standings,
		Version:          sess.Version,
	}
	for i := range sess.Participants {
		p := &sess.Participants[i]
		snap.Participants = append(snap.Participants, ParticipantProgress{
			Name:      p.Name,
			Score:     p.Score,
			Answered:  len(p.Answers),
			Active:    p.Active,
			Completed: p.CompletedAt != nil,
		})
	}
	if sess.Mode == domain.ModeOffline {
		total, done := 0, 0
		for i := range sess.Participants {
			if !sess.Participants[i].Active {
				continue
			}
			total++
			if sess.Participants[i].CompletedAt != nil {
				done++
			}
		}
		progress := &CompletionProgress{Total: total, Completed: done}
		if total > 0 {
			progress.Percentage = done * 100 / total
		}
		snap.Progress = progress
	}
	return snap
}

// QuestionTally returns the live per-option distribution for a question.
// Admin view; participants see the tally only in question.ended.
func (s *Service) QuestionTally(ctx context.Context, code string, questionIndex int) (Tally, error) {
	sess, err := s.store.Get(ctx, code)
	if err != nil {
		return Tally{}, err
	}
	return tallyFor(&sess, questionIndex), nil
}
