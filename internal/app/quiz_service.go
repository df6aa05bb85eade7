package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Command is a host control action on a session.
type Command string

const (
	CommandStart  Command = "start"
	CommandNext   Command = "next"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandEnd    Command = "end"
)

// QuizService contains the quiz use cases shared by every transport.
type QuizService struct {
	sessions *Registry
	quizzes  QuizRepository
}

func NewQuizService(sessions *Registry, quizzes QuizRepository) *QuizService {
	return &QuizService{sessions: sessions, quizzes: quizzes}
}

// CreateSession opens a waiting session for quizID.
func (s *QuizService) CreateSession(ctx context.Context, quizID string) (domain.SessionSnapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("create session for quiz %s: %w", quizID, err)
	}
	engine, err := s.sessions.Create(quiz)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return engine.Snapshot(), nil
}

// JoinResult is returned to a player registering through a join code.
type JoinResult struct {
	SessionID string        `json:"sessionId"`
	Code      string        `json:"code"`
	Player    domain.Player `json:"player"`
}

// JoinByCode registers a new player under a freshly generated id.
func (s *QuizService) JoinByCode(ctx context.Context, code, nickname string) (JoinResult, error) {
	engine, err := s.sessions.ByCode(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}
	player, err := engine.Join(uuid.NewString(), nickname)
	if err != nil {
		return JoinResult{}, err
	}
	log.Info().Str("session_id", engine.ID()).Str("player_id", player.ID).Msg("player joined")
	return JoinResult{SessionID: engine.ID(), Code: engine.Code(), Player: player}, nil
}

// Session returns the engine of a live or recoverable session.
func (s *QuizService) Session(ctx context.Context, sessionID string) (*Engine, error) {
	return s.sessions.Get(ctx, sessionID)
}

// Sessions lists every live session.
func (s *QuizService) Sessions() []domain.SessionSnapshot {
	return s.sessions.List()
}

// DeleteSession stops a session and removes its stored record.
func (s *QuizService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Remove(ctx, sessionID)
}

// Control applies a host command and returns the resulting snapshot.
func (s *QuizService) Control(ctx context.Context, sessionID string, cmd Command) (domain.SessionSnapshot, error) {
	engine, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := Apply(engine, cmd); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return engine.Snapshot(), nil
}

// Apply dispatches cmd to engine.
func Apply(engine *Engine, cmd Command) error {
	switch cmd {
	case CommandStart:
		return engine.Start()
	case CommandNext:
		return engine.Advance()
	case CommandPause:
		return engine.Pause()
	case CommandResume:
		return engine.Resume()
	case CommandEnd:
		return engine.End()
	default:
		return domain.ErrUnsupportedCommand
	}
}

// Leaderboard returns the top limit players of a session.
func (s *QuizService) Leaderboard(ctx context.Context, sessionID string, limit int) (domain.Leaderboard, error) {
	engine, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return engine.Leaderboard(limit), nil
}
