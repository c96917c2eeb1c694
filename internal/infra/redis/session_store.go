package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"live-test-service/internal/domain"
)

const sessionKeyPrefix = "test:session:"

// maxCASRetries bounds how often a TryUpdate re-runs after losing the
// version race to a concurrent writer. Precondition rejections are never
// retried here; only WATCH conflicts are.
const maxCASRetries = 5

// SessionStore keeps each session as one JSON document under a watched
// key, so the conditional update holds across processes: WATCH pins the
// version we read, and the MULTI write is discarded if any other writer
// touched the key in between.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.Code), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return domain.ErrCodeTaken
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, code string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) TryUpdate(ctx context.Context, code string, filter func(*domain.Session) error, mutate func(*domain.Session) error) (domain.Session, error) {
	key := s.key(code)
	var committed domain.Session

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			return fmt.Errorf("load session: %w", err)
		}
		var session domain.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		if err := filter(&session); err != nil {
			return err
		}
		next := session.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.Version = session.Version + 1
		next.UpdatedAt = time.Now()

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		committed = *next
		return nil
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return committed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.Session{}, err
	}
	return domain.Session{}, domain.ErrVersionConflict
}

func (s *SessionStore) Delete(ctx context.Context, code string) error {
	n, err := s.client.Del(ctx, s.key(code)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, iter.Val()[len(sessionKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return codes, nil
}

func (s *SessionStore) key(code string) string {
	return sessionKeyPrefix + code
}
