package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-test-service/internal/domain"
)

type countingLoader struct {
	quizzes map[string]domain.Quiz
	calls   atomic.Int32
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Sample",
		Mode:  domain.ModeOnline,
		Questions: []domain.Question{
			{
				Content:       "What is 2 + 2?",
				Options:       []domain.Option{{Letter: "A", Text: "3"}, {Letter: "B", Text: "4"}},
				CorrectOption: "B",
				TimeLimit:     30,
			},
		},
	}
}

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{quizzes: map[string]domain.Quiz{"quiz-1": sampleQuiz()}}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected cached redis key")
	}

	// Second call hits the cache with full question content intact.
	again, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if len(again.Questions) != 1 || again.Questions[0].CorrectOption != quiz.Questions[0].CorrectOption {
		t.Fatalf("cached quiz lost content: %+v", again)
	}
	if len(again.Questions[0].Options) != 2 {
		t.Fatalf("cached quiz lost options: %+v", again.Questions[0])
	}
}

func TestQuizRepositoryReloadsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{quizzes: map[string]domain.Quiz{"quiz-1": sampleQuiz()}}
	repo := NewQuizRepository(client, loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}

	// Jitter keeps the TTL between 1x and 1.1x the configured value.
	mr.FastForward(2 * time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls.Load())
	}
}

func TestQuizRepositoryPropagatesNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{quizzes: map[string]domain.Quiz{}}
	repo := NewQuizRepository(client, loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
