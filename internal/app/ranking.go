package app

import (
	"sort"

	"live-test-service/internal/domain"
)

// ComputeStandings recomputes the full ranked snapshot from the completed,
// active participants. It is a pure function of its input: higher score
// first, ties broken by earlier completion, exact ties share a rank and the
// next distinct entry skips past them (two tied at 1 are both rank 1, the
// next is rank 3).
func ComputeStandings(participants []domain.Participant) []domain.Standing {
	eligible := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Active && p.CompletedAt != nil {
			eligible = append(eligible, p)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		return eligible[i].CompletedAt.Before(*eligible[j].CompletedAt)
	})

	standings := make([]domain.Standing, 0, len(eligible))
	rank := 1
	for i, p := range eligible {
		if i > 0 {
			prev := eligible[i-1]
			if p.Score != prev.Score || !p.CompletedAt.Equal(*prev.CompletedAt) {
				rank = i + 1
			}
		}
		standings = append(standings, domain.Standing{
			Rank:           rank,
			Name:           p.Name,
			Score:          p.Score,
			CorrectAnswers: p.CorrectCount(),
			TotalAnswers:   len(p.Answers),
			CompletedAt:    *p.CompletedAt,
		})
	}
	return standings
}

// tallyFor counts submitted options for one question across active
// participants, for the admin's live per-option distribution.
func tallyFor(sess *domain.Session, questionIndex int) Tally {
	tally := Tally{
		QuestionIndex: questionIndex,
		Distribution:  map[string]int{},
	}
	for i := range sess.Participants {
		p := &sess.Participants[i]
		if !p.Active {
			continue
		}
		tally.TotalParticipants++
		for _, a := range p.Answers {
			if a.QuestionIndex != questionIndex {
				continue
			}
			tally.TotalAnswers++
			tally.Distribution[a.Option]++
			if a.Correct {
				tally.CorrectAnswers++
			}
		}
	}
	return tally
}
