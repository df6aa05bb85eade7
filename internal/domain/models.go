package domain

import (
	"fmt"
	"math"
	"time"
)

// Phase is the state-machine state of a live session.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseQuestion Phase = "question"
	PhaseResults  Phase = "results"
	PhasePaused   Phase = "paused"
	PhaseFinished Phase = "finished"
)

// Question models a single-correct-answer choice question.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimit    int      `json:"timeLimit"` // seconds
	Points       int      `json:"points"`
}

// TimeLimitDuration returns the countdown length of the question.
func (q Question) TimeLimitDuration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// Quiz is an ordered collection of questions. It is immutable once a session starts.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Clone returns a copy that shares no slices with q.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		out.Questions[i] = question
	}
	return out
}

// Validate checks the quiz invariants and fills missing question ids.
func (q *Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrInvalidQuiz, q.ID)
	}
	for i := range q.Questions {
		question := &q.Questions[i]
		if question.ID == "" {
			question.ID = fmt.Sprintf("q%d", i+1)
		}
		switch {
		case len(question.Options) < 2:
			return fmt.Errorf("%w: question %s needs at least two options", ErrInvalidQuiz, question.ID)
		case question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options):
			return fmt.Errorf("%w: question %s correct index %d out of range", ErrInvalidQuiz, question.ID, question.CorrectIndex)
		case question.TimeLimit <= 0:
			return fmt.Errorf("%w: question %s time limit must be positive", ErrInvalidQuiz, question.ID)
		case question.Points <= 0:
			return fmt.Errorf("%w: question %s points must be positive", ErrInvalidQuiz, question.ID)
		}
	}
	return nil
}

// AnswerRecord is one entry of a player's bounded answer history.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	Answer        int       `json:"answer"`
	Correct       bool      `json:"correct"`
	PointsEarned  int       `json:"pointsEarned"`
	ResponseTime  float64   `json:"responseTime"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Player is a participant of a session and their accumulated standing.
type Player struct {
	ID               string         `json:"id"`
	Nickname         string         `json:"nickname"`
	Score            int            `json:"score"`
	Rank             int            `json:"rank"`
	PreviousRank     int            `json:"previousRank"`
	FinalRank        int            `json:"finalRank,omitempty"`
	LastAnswer       *int           `json:"lastAnswer,omitempty"`
	LastCorrect      bool           `json:"lastCorrect"`
	LastResponseTime float64        `json:"lastResponseTime"`
	History          []AnswerRecord `json:"history,omitempty"`
	Streak           int            `json:"streak"`
	BestStreak       int            `json:"bestStreak"`
	CorrectAnswers   int            `json:"correctAnswers"`
	TotalAnswers     int            `json:"totalAnswers"`
	Online           bool           `json:"online"`
	JoinedAt         time.Time      `json:"joinedAt"`
}

// Clone returns a deep copy safe to hand to readers.
func (p Player) Clone() Player {
	out := p
	if p.LastAnswer != nil {
		answer := *p.LastAnswer
		out.LastAnswer = &answer
	}
	if p.History != nil {
		out.History = append([]AnswerRecord(nil), p.History...)
	}
	return out
}

// Accuracy is the rounded percentage of correct answers.
func (p Player) Accuracy() float64 {
	if p.TotalAnswers == 0 {
		return 0
	}
	return math.Round(float64(p.CorrectAnswers)/float64(p.TotalAnswers)*1000) / 10
}

// Submission is one player's recorded choice for the active question.
type Submission struct {
	PlayerID      string    `json:"playerId"`
	QuestionIndex int       `json:"questionIndex"`
	Option        int       `json:"option"`
	ArrivedAt     time.Time `json:"arrivedAt"`
}

// PublicQuestion is the question as shown to participants.
// CorrectIndex is only populated once answers are locked.
type PublicQuestion struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	TimeLimit      int      `json:"timeLimit"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	CorrectIndex   *int     `json:"correctIndex,omitempty"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	PlayerID     string  `json:"playerId"`
	Nickname     string  `json:"nickname"`
	Score        int     `json:"score"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previousRank"`
	Streak       int     `json:"streak"`
	LastCorrect  bool    `json:"lastCorrect"`
	Accuracy     float64 `json:"accuracy"`
	Online       bool    `json:"online"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID      string             `json:"sessionId"`
	Entries        []LeaderboardEntry `json:"players"`
	TotalResponses int                `json:"totalResponses"`
	TotalPlayers   int                `json:"totalPlayers"`
	ResponseRate   int                `json:"responseRate"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// OptionStat is one row of a response distribution.
type OptionStat struct {
	OptionIndex int    `json:"optionIndex"`
	OptionText  string `json:"optionText"`
	Count       int    `json:"count"`
	Percentage  int    `json:"percentage"`
	Correct     bool   `json:"correct"`
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	QuestionID   string  `json:"questionId"`
	Correct      bool    `json:"correct"`
	PointsEarned int     `json:"pointsEarned"`
	TotalScore   int     `json:"totalScore"`
	ResponseTime float64 `json:"responseTime"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previousRank"`
	Streak       int     `json:"streak"`
}

// GameStats is reported once when a session finishes.
type GameStats struct {
	TotalPlayers       int                `json:"totalPlayers"`
	QuestionsCompleted int                `json:"questionsCompleted"`
	TotalQuestions     int                `json:"totalQuestions"`
	AverageScore       int                `json:"averageScore"`
	HighestScore       int                `json:"highestScore"`
	CompletionRate     int                `json:"completionRate"`
	DurationMinutes    int                `json:"durationMinutes"`
	TopPerformers      []LeaderboardEntry `json:"topPerformers"`
}

// SessionSnapshot is an immutable copy of a session published after each mutation.
type SessionSnapshot struct {
	SessionID      string          `json:"sessionId"`
	Code           string          `json:"code"`
	QuizID         string          `json:"quizId"`
	Title          string          `json:"title"`
	Phase          Phase           `json:"phase"`
	PausedFrom     Phase           `json:"pausedFrom,omitempty"`
	QuestionIndex  int             `json:"questionIndex"`
	TotalQuestions int             `json:"totalQuestions"`
	Question       *PublicQuestion `json:"question,omitempty"`
	TimeRemaining  int             `json:"timeRemaining"`
	Responses      int             `json:"responses"`
	Players        []Player        `json:"players"`
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	EndedAt        *time.Time      `json:"endedAt,omitempty"`
	Version        uint64          `json:"version"`
}

// SessionRecord is everything needed to rebuild an engine after a restart.
type SessionRecord struct {
	Snapshot          SessionSnapshot `json:"snapshot"`
	Quiz              Quiz            `json:"quiz"`
	Submissions       []Submission    `json:"submissions"`
	QuestionStartedAt time.Time       `json:"questionStartedAt"`
	QuestionsEntered  int             `json:"questionsEntered"`
}

// Validate reports whether the record is internally consistent.
func (r *SessionRecord) Validate() error {
	if r.Snapshot.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrCorruptRecord)
	}
	if err := r.Quiz.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	count := len(r.Quiz.Questions)
	idx := r.Snapshot.QuestionIndex
	switch phase := r.Snapshot.Phase; phase {
	case PhaseWaiting:
	case PhaseQuestion, PhaseResults, PhasePaused:
		if idx < 0 || idx >= count {
			return fmt.Errorf("%w: question index %d out of range in phase %s", ErrCorruptRecord, idx, phase)
		}
	case PhaseFinished:
		if idx < 0 || idx > count {
			return fmt.Errorf("%w: question index %d out of range", ErrCorruptRecord, idx)
		}
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrCorruptRecord, phase)
	}
	roster := make(map[string]struct{}, len(r.Snapshot.Players))
	for _, p := range r.Snapshot.Players {
		roster[p.ID] = struct{}{}
	}
	for _, sub := range r.Submissions {
		if _, ok := roster[sub.PlayerID]; !ok {
			return fmt.Errorf("%w: submission from unknown player %s", ErrCorruptRecord, sub.PlayerID)
		}
	}
	return nil
}
