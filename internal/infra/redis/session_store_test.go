package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-test-service/internal/domain"
)

func testStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionStore(client, time.Hour), mr
}

func storedSession(t *testing.T, store *SessionStore, code string) *domain.Session {
	t.Helper()
	sess, err := domain.NewSession(code, "quiz-1", domain.ModeOnline, 10, nil, time.Now())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	return sess
}

func TestSessionStoreCreateSetsKeyOnce(t *testing.T) {
	store, mr := testStore(t)
	storedSession(t, store, "123456")

	if !mr.Exists("test:session:123456") {
		t.Fatalf("expected redis key to be set")
	}

	dup, _ := domain.NewSession("123456", "quiz-2", domain.ModeOnline, 10, nil, time.Now())
	if err := store.Create(context.Background(), dup); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
}

func TestSessionStoreGetRoundTrips(t *testing.T) {
	store, _ := testStore(t)
	storedSession(t, store, "123456")

	sess, err := store.Get(context.Background(), "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Code != "123456" || sess.QuizID != "quiz-1" || sess.Status != domain.StatusWaiting {
		t.Fatalf("unexpected round trip: %+v", sess)
	}

	if _, err := store.Get(context.Background(), "999999"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreTryUpdateCommitsAndBumpsVersion(t *testing.T) {
	store, _ := testStore(t)
	storedSession(t, store, "123456")

	updated, err := store.TryUpdate(context.Background(), "123456",
		func(cur *domain.Session) error { return nil },
		func(cur *domain.Session) error {
			cur.Participants = append(cur.Participants, domain.Participant{Name: "Alice", Active: true})
			return nil
		})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 1 || len(updated.Participants) != 1 {
		t.Fatalf("unexpected committed document: %+v", updated)
	}

	reloaded, err := store.Get(context.Background(), "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Version != 1 || len(reloaded.Participants) != 1 {
		t.Fatalf("commit not persisted: %+v", reloaded)
	}
}

func TestSessionStoreTryUpdateRejectionDoesNotWrite(t *testing.T) {
	store, _ := testStore(t)
	storedSession(t, store, "123456")

	_, err := store.TryUpdate(context.Background(), "123456",
		func(cur *domain.Session) error { return domain.ErrSessionFull },
		func(cur *domain.Session) error {
			cur.Status = domain.StatusActive
			return nil
		})
	if !errors.Is(err, domain.ErrSessionFull) {
		t.Fatalf("expected rejection, got %v", err)
	}

	sess, _ := store.Get(context.Background(), "123456")
	if sess.Version != 0 || sess.Status != domain.StatusWaiting {
		t.Fatalf("rejected update wrote: %+v", sess)
	}
}

func TestSessionStoreTryUpdateMissingSession(t *testing.T) {
	store, _ := testStore(t)

	_, err := store.TryUpdate(context.Background(), "999999",
		func(cur *domain.Session) error { return nil },
		func(cur *domain.Session) error { return nil })
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreDeleteAndCodes(t *testing.T) {
	store, mr := testStore(t)
	storedSession(t, store, "111111")
	storedSession(t, store, "222222")

	codes, err := store.Codes(context.Background())
	if err != nil {
		t.Fatalf("codes: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %v", codes)
	}

	if err := store.Delete(context.Background(), "111111"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("test:session:111111") {
		t.Fatalf("expected key removed")
	}
	if err := store.Delete(context.Background(), "111111"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
