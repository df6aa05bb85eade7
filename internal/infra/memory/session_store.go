package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SnapshotStore.
// Records are kept JSON encoded so recovery exercises the same decode path as Redis.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	codes   map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string][]byte),
		codes:   make(map[string]string),
	}
}

func (s *SessionStore) SaveRecord(_ context.Context, rec domain.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Snapshot.SessionID] = raw
	s.codes[rec.Snapshot.Code] = rec.Snapshot.SessionID
	return nil
}

func (s *SessionStore) LoadRecord(_ context.Context, sessionID string) (domain.SessionRecord, error) {
	s.mu.RLock()
	raw, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	return rec, nil
}

func (s *SessionStore) ResolveCode(_ context.Context, code string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	return id, nil
}

func (s *SessionStore) DeleteRecord(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, id := range s.codes {
		if id == sessionID {
			delete(s.codes, code)
		}
	}
	delete(s.records, sessionID)
	return nil
}

// Len reports how many records are stored.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
