package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// SnapshotStore persists session records so sessions survive a restart.
// LoadRecord returns domain.ErrSessionNotFound when nothing is stored and
// domain.ErrCorruptRecord when the stored record cannot be decoded.
type SnapshotStore interface {
	SaveRecord(ctx context.Context, rec domain.SessionRecord) error
	LoadRecord(ctx context.Context, sessionID string) (domain.SessionRecord, error)
	ResolveCode(ctx context.Context, code string) (string, error)
	DeleteRecord(ctx context.Context, sessionID string) error
}

// RegistryConfig controls retention and persistence of sessions.
type RegistryConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
	SaveTimeout   time.Duration
	CodeLength    int
	Engine        EngineConfig
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Retention:     10 * time.Minute,
		SweepInterval: time.Minute,
		SaveTimeout:   2 * time.Second,
		CodeLength:    6,
		Engine:        DefaultEngineConfig(),
	}
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

func WithRegistryClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

func WithRegistryConfig(cfg RegistryConfig) RegistryOption {
	return func(r *Registry) { r.cfg = cfg }
}

// WithSnapshotStore enables persistence and recovery of session records.
func WithSnapshotStore(store SnapshotStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// Registry owns every live session engine of the process.
type Registry struct {
	pub   Publisher
	store SnapshotStore
	clock clockwork.Clock
	cfg   RegistryConfig

	mu          sync.RWMutex
	engines     map[string]*Engine
	codes       map[string]string
	unavailable map[string]error

	pendingMu sync.Mutex
	pending   map[string]domain.SessionRecord
	saveMu    sync.Mutex
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRegistry(pub Publisher, opts ...RegistryOption) *Registry {
	if pub == nil {
		pub = nopPublisher{}
	}
	r := &Registry{
		pub:         pub,
		clock:       clockwork.NewRealClock(),
		cfg:         DefaultRegistryConfig(),
		engines:     make(map[string]*Engine),
		codes:       make(map[string]string),
		unavailable: make(map[string]error),
		pending:     make(map[string]domain.SessionRecord),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store != nil {
		r.wg.Add(1)
		go r.persistLoop()
	}
	return r
}

// Create starts a new waiting session for quiz with a fresh id and join code.
func (r *Registry) Create(quiz domain.Quiz, roster ...domain.Player) (*Engine, error) {
	return r.GetOrCreate(uuid.NewString(), quiz, roster...)
}

// GetOrCreate returns the live engine for id, creating it from quiz when absent.
func (r *Registry) GetOrCreate(id string, quiz domain.Quiz, roster ...domain.Player) (*Engine, error) {
	quiz = quiz.Clone()
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if engine, ok := r.engines[id]; ok {
		return engine, nil
	}
	code := r.newCodeLocked()
	engine := NewEngine(id, code, quiz, r.pub, r.engineOptions(WithRoster(roster))...)
	r.engines[id] = engine
	r.codes[code] = id
	delete(r.unavailable, id)
	r.enqueue(engine.Record())

	log.Info().Str("session_id", id).Str("code", code).Str("quiz_id", quiz.ID).Msg("session created")
	return engine, nil
}

// Get returns the engine for id, recovering it from the snapshot store when it is not live.
func (r *Registry) Get(ctx context.Context, id string) (*Engine, error) {
	r.mu.RLock()
	engine, ok := r.engines[id]
	cause := r.unavailable[id]
	r.mu.RUnlock()

	if ok {
		return engine, nil
	}
	if cause != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSessionUnavailable, id, cause)
	}
	if r.store == nil {
		return nil, domain.ErrSessionNotFound
	}

	rec, err := r.store.LoadRecord(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}
	if err != nil && !errors.Is(err, domain.ErrCorruptRecord) {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if err == nil {
		engine, err = RestoreEngine(rec, r.pub, r.engineOptions()...)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("session record unusable")
		r.mu.Lock()
		r.unavailable[id] = err
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSessionUnavailable, id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.engines[id]; ok {
		engine.Close()
		return existing, nil
	}
	r.engines[id] = engine
	r.codes[engine.Code()] = id
	return engine, nil
}

// ByCode resolves a join code to its session engine. Codes are case-insensitive.
func (r *Registry) ByCode(ctx context.Context, code string) (*Engine, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.RLock()
	id, ok := r.codes[code]
	r.mu.RUnlock()

	if !ok {
		if r.store == nil {
			return nil, domain.ErrSessionNotFound
		}
		var err error
		id, err = r.store.ResolveCode(ctx, code)
		if err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, id)
}

// List returns the snapshots of every live session, oldest first.
func (r *Registry) List() []domain.SessionSnapshot {
	r.mu.RLock()
	snapshots := make([]domain.SessionSnapshot, 0, len(r.engines))
	for _, engine := range r.engines {
		snapshots = append(snapshots, engine.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Sweep drops finished sessions whose retention has elapsed, together with their stored
// records, and returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.cfg.Retention)

	r.mu.Lock()
	var expired []string
	for id, engine := range r.engines {
		snap := engine.Snapshot()
		if snap.Phase != domain.PhaseFinished || snap.EndedAt == nil || snap.EndedAt.After(cutoff) {
			continue
		}
		engine.Close()
		delete(r.engines, id)
		delete(r.codes, snap.Code)
		expired = append(expired, id)
	}
	live := len(r.engines)
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	for _, id := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
		if err := r.forget(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("delete swept session record failed")
		}
		cancel()
	}
	log.Info().Int("removed", len(expired)).Int("live", live).Msg("swept finished sessions")
	return len(expired)
}

// Remove stops and forgets a session, deleting its stored record.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	engine, ok := r.engines[id]
	if ok {
		delete(r.engines, id)
		delete(r.codes, engine.Code())
	}
	delete(r.unavailable, id)
	r.mu.Unlock()

	if ok {
		engine.Close()
	}
	if r.store == nil && !ok {
		return domain.ErrSessionNotFound
	}
	return r.forget(ctx, id)
}

// forget drops the pending and stored record of a session that is no longer live.
func (r *Registry) forget(ctx context.Context, id string) error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	r.pendingMu.Lock()
	delete(r.pending, id)
	r.pendingMu.Unlock()
	if err := r.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Close stops every engine timer and flushes pending records.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		for _, engine := range r.engines {
			engine.Close()
		}
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()
	})
}

func (r *Registry) engineOptions(extra ...EngineOption) []EngineOption {
	opts := []EngineOption{
		WithClock(r.clock),
		WithEngineConfig(r.cfg.Engine),
		WithObserver(r.enqueue),
	}
	return append(opts, extra...)
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newCodeLocked picks a code that is neither live nor held by a stored record.
func (r *Registry) newCodeLocked() string {
	length := r.cfg.CodeLength
	if length <= 0 {
		length = 6
	}
	buf := make([]byte, length)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.codes[code]; taken {
			continue
		}
		if r.storedCode(code) {
			continue
		}
		return code
	}
}

func (r *Registry) storedCode(code string) bool {
	if r.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
	defer cancel()
	_, err := r.store.ResolveCode(ctx, code)
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		log.Warn().Err(err).Str("code", code).Msg("resolve stored join code failed")
	}
	return false
}

// enqueue keeps only the newest record per session; the persister writes it asynchronously.
func (r *Registry) enqueue(rec domain.SessionRecord) {
	if r.store == nil {
		return
	}
	r.pendingMu.Lock()
	r.pending[rec.Snapshot.SessionID] = rec
	r.pendingMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Registry) persistLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.wake:
			r.flush()
		case <-r.done:
			r.flush()
			return
		}
	}
}

func (r *Registry) flush() {
	r.pendingMu.Lock()
	batch := r.pending
	r.pending = make(map[string]domain.SessionRecord, len(batch))
	r.pendingMu.Unlock()

	for id, rec := range batch {
		r.save(id, rec)
	}
}

func (r *Registry) save(id string, rec domain.SessionRecord) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	// Removed sessions must not be written back.
	r.mu.RLock()
	_, live := r.engines[id]
	r.mu.RUnlock()
	if !live {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
	defer cancel()
	if err := r.store.SaveRecord(ctx, rec); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("persist session record failed")
	}
}
