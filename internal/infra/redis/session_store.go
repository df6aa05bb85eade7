package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// SessionStore persists session records so a restarted process can recover them.
//
// Layout:
//
//	HSET quiz:session:{id} record {json} code {CODE}
//	SET  quiz:code:{CODE} {id}
//
// Both keys expire after ttl and are refreshed on every save.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) SaveRecord(ctx context.Context, rec domain.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	id := rec.Snapshot.SessionID
	code := strings.ToUpper(rec.Snapshot.Code)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(id), "record", raw, "code", code)
	pipe.Set(ctx, s.codeKey(code), id, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.sessionKey(id), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) LoadRecord(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	raw, err := s.client.HGet(ctx, s.sessionKey(sessionID), "record").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SessionRecord{}, domain.ErrSessionNotFound
		}
		return domain.SessionRecord{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	return rec, nil
}

func (s *SessionStore) ResolveCode(ctx context.Context, code string) (string, error) {
	id, err := s.client.Get(ctx, s.codeKey(strings.ToUpper(code))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("resolve code %s: %w", code, err)
	}
	return id, nil
}

func (s *SessionStore) DeleteRecord(ctx context.Context, sessionID string) error {
	code, err := s.client.HGet(ctx, s.sessionKey(sessionID), "code").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	keys := []string{s.sessionKey(sessionID)}
	if code != "" {
		keys = append(keys, s.codeKey(code))
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) codeKey(code string) string {
	return "quiz:code:" + code
}
