package app

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

// EngineConfig tunes the behaviour of every session engine.
type EngineConfig struct {
	TickInterval    time.Duration
	ResultsDelay    time.Duration
	MaxPlayers      int
	HistorySize     int
	LeaderboardSize int
	FinalBoardSize  int
	TopPerformers   int
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval:    time.Second,
		ResultsDelay:    3 * time.Second,
		MaxPlayers:      250,
		HistorySize:     5,
		LeaderboardSize: 50,
		FinalBoardSize:  100,
		TopPerformers:   10,
	}
}

// EngineOption customises an Engine at construction.
type EngineOption func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithEngineConfig overrides the default engine configuration.
func WithEngineConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// WithObserver registers a persistence observer.
func WithObserver(observe RecordObserver) EngineOption {
	return func(e *Engine) { e.observe = observe }
}

// WithRoster seeds the engine with already registered players.
func WithRoster(players []domain.Player) EngineOption {
	return func(e *Engine) {
		for _, p := range players {
			player := p.Clone()
			e.addPlayerLocked(&player)
		}
	}
}

// Engine is the single-writer state machine of one live session. Every command and timer
// callback takes mu, so mutations of a session are serialized while sessions run in parallel.
type Engine struct {
	id      string
	code    string
	quiz    domain.Quiz
	cfg     EngineConfig
	clock   clockwork.Clock
	pub     Publisher
	observe RecordObserver

	mu                sync.Mutex
	phase             domain.Phase
	pausedFrom        domain.Phase
	pausedLeft        time.Duration
	pausedAt          time.Time
	index             int
	timeRemaining     int
	roster            []*domain.Player
	players           map[string]*domain.Player
	nicknames         map[string]string
	submissions       map[string]domain.Submission
	order             []domain.Submission
	questionStartedAt time.Time
	questionsEntered  int
	createdAt         time.Time
	startedAt         time.Time
	endedAt           time.Time
	version           uint64
	timer             *phaseTimer

	snapshot atomic.Pointer[domain.SessionSnapshot]
}

// NewEngine builds an engine in the waiting phase. quiz must already be validated.
func NewEngine(id, code string, quiz domain.Quiz, pub Publisher, opts ...EngineOption) *Engine {
	if pub == nil {
		pub = nopPublisher{}
	}
	e := &Engine{
		id:          id,
		code:        code,
		quiz:        quiz,
		cfg:         DefaultEngineConfig(),
		clock:       clockwork.NewRealClock(),
		pub:         pub,
		phase:       domain.PhaseWaiting,
		players:     make(map[string]*domain.Player),
		nicknames:   make(map[string]string),
		submissions: make(map[string]domain.Submission),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.timer = newPhaseTimer(e.clock)
	e.createdAt = e.clock.Now()

	e.mu.Lock()
	e.publishLocked(false)
	e.mu.Unlock()
	return e
}

// RestoreEngine rebuilds an engine from a persisted record. Sessions that were mid-question or
// showing results come back paused, since their timers did not survive.
func RestoreEngine(rec domain.SessionRecord, pub Publisher, opts ...EngineOption) (*Engine, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	snap := rec.Snapshot
	e := NewEngine(snap.SessionID, snap.Code, rec.Quiz, pub, opts...)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.roster = e.roster[:0]
	e.players = make(map[string]*domain.Player, len(snap.Players))
	e.nicknames = make(map[string]string, len(snap.Players))
	for _, p := range snap.Players {
		player := p.Clone()
		player.Online = false
		e.addPlayerLocked(&player)
	}
	for _, sub := range rec.Submissions {
		e.submissions[sub.PlayerID] = sub
		e.order = append(e.order, sub)
	}

	e.index = snap.QuestionIndex
	e.timeRemaining = snap.TimeRemaining
	e.questionStartedAt = rec.QuestionStartedAt
	e.questionsEntered = rec.QuestionsEntered
	e.createdAt = snap.CreatedAt
	if snap.StartedAt != nil {
		e.startedAt = *snap.StartedAt
	}
	if snap.EndedAt != nil {
		e.endedAt = *snap.EndedAt
	}

	switch snap.Phase {
	case domain.PhaseQuestion, domain.PhaseResults:
		e.phase = domain.PhasePaused
		e.pausedFrom = snap.Phase
		e.pausedAt = e.clock.Now()
	case domain.PhasePaused:
		e.phase = domain.PhasePaused
		e.pausedFrom = snap.PausedFrom
		if e.pausedFrom != domain.PhaseResults {
			e.pausedFrom = domain.PhaseQuestion
		}
		e.pausedAt = e.clock.Now()
	default:
		e.phase = snap.Phase
	}
	e.version = snap.Version
	e.publishLocked(false)

	log.Info().
		Str("session_id", e.id).
		Str("phase", string(e.phase)).
		Int("players", len(e.roster)).
		Msg("session restored from record")
	return e, nil
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Code returns the join code.
func (e *Engine) Code() string { return e.code }

// Quiz returns the quiz the session runs.
func (e *Engine) Quiz() domain.Quiz { return e.quiz }

// Snapshot returns the last published snapshot. Callers must treat it as read-only.
func (e *Engine) Snapshot() domain.SessionSnapshot {
	return *e.snapshot.Load()
}

// Join registers a player. Players may only join while the session is waiting.
func (e *Engine) Join(playerID, nickname string) (domain.Player, error) {
	nickname = strings.TrimSpace(nickname)

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.players[playerID]; ok {
		return existing.Clone(), nil
	}
	switch e.phase {
	case domain.PhaseWaiting:
	case domain.PhaseFinished:
		return domain.Player{}, domain.ErrSessionFinished
	default:
		return domain.Player{}, domain.ErrSessionStarted
	}
	if nickname == "" || playerID == "" {
		return domain.Player{}, domain.ErrInvalidNickname
	}
	if e.cfg.MaxPlayers > 0 && len(e.roster) >= e.cfg.MaxPlayers {
		return domain.Player{}, domain.ErrSessionFull
	}
	if _, taken := e.nicknames[strings.ToLower(nickname)]; taken {
		return domain.Player{}, domain.ErrNicknameTaken
	}

	player := &domain.Player{
		ID:       playerID,
		Nickname: nickname,
		Online:   true,
		JoinedAt: e.clock.Now(),
	}
	e.addPlayerLocked(player)

	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventPlayerJoined, Payload: domain.PlayerPayload{
		PlayerID:     player.ID,
		Nickname:     player.Nickname,
		TotalPlayers: len(e.roster),
	}})
	e.publishLocked(true)
	return player.Clone(), nil
}

func (e *Engine) addPlayerLocked(player *domain.Player) {
	if player.Rank == 0 {
		player.Rank = len(e.roster) + 1
	}
	e.roster = append(e.roster, player)
	e.players[player.ID] = player
	e.nicknames[strings.ToLower(player.Nickname)] = player.ID
}

// Connect marks a registered player online, announcing reconnections.
func (e *Engine) Connect(playerID string) (domain.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrUnknownPlayer
	}
	if !player.Online {
		player.Online = true
		e.pub.Broadcast(e.id, domain.Event{Type: domain.EventPlayerJoined, Payload: domain.PlayerPayload{
			PlayerID:     player.ID,
			Nickname:     player.Nickname,
			TotalPlayers: len(e.roster),
		}})
		e.publishLocked(true)
	}
	return player.Clone(), nil
}

// Disconnect marks a player offline. Membership is never revoked.
func (e *Engine) Disconnect(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[playerID]
	if !ok || !player.Online {
		return
	}
	player.Online = false
	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventPlayerLeft, Payload: domain.PlayerPayload{
		PlayerID:     player.ID,
		Nickname:     player.Nickname,
		TotalPlayers: len(e.roster),
	}})
	e.publishLocked(true)
}

// Start moves a waiting session to its first question, resetting every player's standing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case domain.PhaseWaiting:
	case domain.PhaseFinished:
		return domain.ErrSessionFinished
	default:
		return domain.ErrSessionStarted
	}
	if len(e.roster) == 0 {
		return domain.ErrNoPlayers
	}

	for i, p := range e.roster {
		p.Score = 0
		p.Rank = i + 1
		p.PreviousRank = 0
		p.FinalRank = 0
		p.LastAnswer = nil
		p.LastCorrect = false
		p.LastResponseTime = 0
		p.History = nil
		p.Streak = 0
		p.BestStreak = 0
		p.CorrectAnswers = 0
		p.TotalAnswers = 0
	}
	e.startedAt = e.clock.Now()

	log.Info().Str("session_id", e.id).Int("players", len(e.roster)).Msg("session started")
	e.enterQuestionLocked(0, domain.EventGameStarted)
	e.publishLocked(true)
	return nil
}

// Advance is the host's "next" command: question -> results, results -> next question or finished.
func (e *Engine) Advance() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case domain.PhaseQuestion:
		e.enterResultsLocked()
	case domain.PhaseResults:
		e.timer.cancel()
		e.advanceFromResultsLocked()
	case domain.PhaseFinished:
		return domain.ErrSessionFinished
	default:
		return domain.ErrInvalidPhase
	}
	e.publishLocked(true)
	return nil
}

// Pause suspends the countdown of a question or results phase, keeping the exact time left.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case domain.PhaseQuestion, domain.PhaseResults:
	case domain.PhaseFinished:
		return domain.ErrSessionFinished
	default:
		return domain.ErrInvalidPhase
	}

	e.pausedLeft = e.timer.remaining()
	e.timer.cancel()
	e.pausedFrom = e.phase
	e.pausedAt = e.clock.Now()
	e.phase = domain.PhasePaused

	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventGamePaused, Payload: domain.PausePayload{
		Phase:         e.pausedFrom,
		TimeRemaining: e.timeRemaining,
	}})
	e.publishLocked(true)
	return nil
}

// Resume restarts a paused session from the captured remaining duration.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case domain.PhasePaused:
	case domain.PhaseFinished:
		return domain.ErrSessionFinished
	default:
		return domain.ErrInvalidPhase
	}

	now := e.clock.Now()
	e.phase = e.pausedFrom
	e.pausedFrom = ""
	left := e.pausedLeft
	e.pausedLeft = 0

	switch e.phase {
	case domain.PhaseQuestion:
		// Time spent paused does not count against response times.
		e.questionStartedAt = e.questionStartedAt.Add(now.Sub(e.pausedAt))
		if left <= 0 {
			left = e.cfg.TickInterval
		}
		e.timer.schedule(left, e.onTick)
	case domain.PhaseResults:
		if left <= 0 {
			left = e.cfg.ResultsDelay
		}
		e.timer.schedule(left, e.onResultsElapsed)
	}

	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventGameResumed, Payload: domain.PausePayload{
		Phase:         e.phase,
		TimeRemaining: e.timeRemaining,
	}})
	e.publishLocked(true)
	return nil
}

// End terminates the session from any non-finished phase.
func (e *Engine) End() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == domain.PhaseFinished {
		return domain.ErrSessionFinished
	}
	e.finishLocked()
	e.publishLocked(true)
	return nil
}

// Answer is an inbound submit-answer command.
type Answer struct {
	PlayerID   string
	QuestionID string
	Option     int
	// Timestamp is when the answer arrived; zero means now.
	Timestamp time.Time
}

// SubmitAnswer records and scores a player's answer for the active question.
// At most one answer per player per question is accepted.
func (e *Engine) SubmitAnswer(answer Answer) (domain.AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	player, ok := e.players[answer.PlayerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrUnknownPlayer
	}
	switch e.phase {
	case domain.PhaseQuestion:
	case domain.PhaseFinished:
		return domain.AnswerResult{}, domain.ErrSessionFinished
	default:
		return domain.AnswerResult{}, domain.ErrInvalidPhase
	}
	question := e.quiz.Questions[e.index]
	if answer.QuestionID != "" && answer.QuestionID != question.ID {
		return domain.AnswerResult{}, domain.ErrQuestionMismatch
	}
	if answer.Option < 0 || answer.Option >= len(question.Options) {
		return domain.AnswerResult{}, domain.ErrInvalidOption
	}
	if _, dup := e.submissions[player.ID]; dup {
		return domain.AnswerResult{}, domain.ErrDuplicateSubmission
	}

	arrived := answer.Timestamp
	if arrived.IsZero() {
		arrived = e.clock.Now()
	}
	sub := domain.Submission{
		PlayerID:      player.ID,
		QuestionIndex: e.index,
		Option:        answer.Option,
		ArrivedAt:     arrived,
	}
	e.submissions[player.ID] = sub
	e.order = append(e.order, sub)

	points := scoring.Score(question, sub, e.questionStartedAt, e.order)
	correct := sub.Option == question.CorrectIndex
	responseTime := math.Round(scoring.Elapsed(question, sub, e.questionStartedAt)*100) / 100

	option := sub.Option
	player.Score += points
	player.LastAnswer = &option
	player.LastCorrect = correct
	player.LastResponseTime = responseTime
	player.TotalAnswers++
	if correct {
		player.CorrectAnswers++
	}
	player.History = append(player.History, domain.AnswerRecord{
		QuestionIndex: e.index,
		Answer:        option,
		Correct:       correct,
		PointsEarned:  points,
		ResponseTime:  responseTime,
		AnsweredAt:    arrived,
	})
	if size := e.cfg.HistorySize; size > 0 && len(player.History) > size {
		player.History = append([]domain.AnswerRecord(nil), player.History[len(player.History)-size:]...)
	}
	player.Streak = scoring.Streak(player.History)
	if player.Streak > player.BestStreak {
		player.BestStreak = player.Streak
	}

	scoring.Rank(e.roster)

	result := domain.AnswerResult{
		QuestionID:   question.ID,
		Correct:      correct,
		PointsEarned: points,
		TotalScore:   player.Score,
		ResponseTime: responseTime,
		Rank:         player.Rank,
		PreviousRank: player.PreviousRank,
		Streak:       player.Streak,
	}

	e.pub.SendTo(e.id, player.ID, domain.Event{Type: domain.EventAnswerResult, Payload: result})
	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventLeaderboardUpdate, Payload: e.leaderboardLocked(e.cfg.LeaderboardSize)})
	e.pub.BroadcastHosts(e.id, domain.Event{Type: domain.EventAnswerReceived, Payload: domain.AnswerReceivedPayload{
		PlayerID:      player.ID,
		Answer:        option,
		Correct:       correct,
		PointsEarned:  points,
		ResponseTime:  responseTime,
		ResponseCount: len(e.order),
		Distribution:  scoring.Distribution(question, e.order),
	}})
	e.publishLocked(true)
	return result, nil
}

// Leaderboard returns the top limit players (all when limit <= 0) with response counters.
func (e *Engine) Leaderboard(limit int) domain.Leaderboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderboardLocked(limit)
}

// Distribution returns the response distribution of the current question.
func (e *Engine) Distribution() []domain.OptionStat {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index >= len(e.quiz.Questions) {
		return nil
	}
	return scoring.Distribution(e.quiz.Questions[e.index], e.order)
}

// Record returns everything needed to restore the session.
func (e *Engine) Record() domain.SessionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordLocked(e.snapshotLocked())
}

// Close cancels any pending timer. The engine keeps serving reads.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timer.cancel()
}

func (e *Engine) enterQuestionLocked(index int, eventType domain.EventType) {
	question := e.quiz.Questions[index]

	e.phase = domain.PhaseQuestion
	e.index = index
	e.submissions = make(map[string]domain.Submission, len(e.roster))
	e.order = nil
	e.timeRemaining = question.TimeLimit
	e.questionStartedAt = e.clock.Now()
	if index+1 > e.questionsEntered {
		e.questionsEntered = index + 1
	}
	e.timer.schedule(e.cfg.TickInterval, e.onTick)

	e.pub.Broadcast(e.id, domain.Event{Type: eventType, Payload: domain.QuestionPayload{
		Question: *e.publicQuestionLocked(),
	}})
}

func (e *Engine) enterResultsLocked() {
	e.timer.cancel()
	question := e.quiz.Questions[e.index]

	e.phase = domain.PhaseResults
	e.timeRemaining = 0

	correct := 0
	for _, sub := range e.order {
		if sub.Option == question.CorrectIndex {
			correct++
		}
	}
	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventQuestionResults, Payload: domain.QuestionResultsPayload{
		QuestionIndex:    e.index,
		CorrectIndex:     question.CorrectIndex,
		TotalResponses:   len(e.order),
		CorrectResponses: correct,
		Accuracy:         scoring.Percent(correct, len(e.order)),
		Distribution:     scoring.Distribution(question, e.order),
	}})
	e.timer.schedule(e.cfg.ResultsDelay, e.onResultsElapsed)
}

func (e *Engine) advanceFromResultsLocked() {
	next := e.index + 1
	if next >= len(e.quiz.Questions) {
		e.finishLocked()
		return
	}
	e.enterQuestionLocked(next, domain.EventNewQuestion)
}

func (e *Engine) finishLocked() {
	e.timer.cancel()

	e.phase = domain.PhaseFinished
	e.pausedFrom = ""
	if !e.startedAt.IsZero() {
		e.index = len(e.quiz.Questions)
	}
	e.timeRemaining = 0
	e.endedAt = e.clock.Now()

	scoring.Rank(e.roster)
	for _, p := range e.roster {
		p.FinalRank = p.Rank
	}

	n := len(e.roster)
	if e.cfg.FinalBoardSize > 0 && n > e.cfg.FinalBoardSize {
		n = e.cfg.FinalBoardSize
	}
	final := make([]domain.Player, 0, n)
	for _, p := range e.roster[:n] {
		final = append(final, p.Clone())
	}

	stats := e.statsLocked()
	log.Info().
		Str("session_id", e.id).
		Int("players", stats.TotalPlayers).
		Int("questions_completed", stats.QuestionsCompleted).
		Int("highest_score", stats.HighestScore).
		Msg("session finished")

	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventGameEnded, Payload: domain.GameEndedPayload{
		FinalLeaderboard: final,
		GameStats:        stats,
	}})
}

func (e *Engine) statsLocked() domain.GameStats {
	total := 0
	highest := 0
	for _, p := range e.roster {
		total += p.Score
		if p.Score > highest {
			highest = p.Score
		}
	}
	average := 0
	if len(e.roster) > 0 {
		average = int(math.Round(float64(total) / float64(len(e.roster))))
	}
	duration := 0
	if !e.startedAt.IsZero() {
		duration = int(math.Round(e.clock.Since(e.startedAt).Minutes()))
	}
	return domain.GameStats{
		TotalPlayers:       len(e.roster),
		QuestionsCompleted: e.questionsEntered,
		TotalQuestions:     len(e.quiz.Questions),
		AverageScore:       average,
		HighestScore:       highest,
		CompletionRate:     scoring.Percent(e.questionsEntered, len(e.quiz.Questions)),
		DurationMinutes:    duration,
		TopPerformers:      scoring.Entries(e.roster, e.cfg.TopPerformers),
	}
}

func (e *Engine) onTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.timer.current(gen) || e.phase != domain.PhaseQuestion {
		return
	}
	e.timer.fired()

	e.timeRemaining--
	if e.timeRemaining < 0 {
		e.timeRemaining = 0
	}
	e.pub.Broadcast(e.id, domain.Event{Type: domain.EventTimeUpdate, Payload: domain.TimeUpdatePayload{
		TimeRemaining: e.timeRemaining,
	}})

	if e.timeRemaining == 0 {
		e.enterResultsLocked()
		e.publishLocked(true)
		return
	}
	e.timer.schedule(e.cfg.TickInterval, e.onTick)
	e.publishLocked(false)
}

func (e *Engine) onResultsElapsed(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.timer.current(gen) || e.phase != domain.PhaseResults {
		return
	}
	e.timer.fired()
	e.advanceFromResultsLocked()
	e.publishLocked(true)
}

func (e *Engine) leaderboardLocked(limit int) domain.Leaderboard {
	return domain.Leaderboard{
		SessionID:      e.id,
		Entries:        scoring.Entries(e.roster, limit),
		TotalResponses: len(e.order),
		TotalPlayers:   len(e.roster),
		ResponseRate:   scoring.Percent(len(e.order), len(e.roster)),
		UpdatedAt:      e.clock.Now(),
	}
}

func (e *Engine) publicQuestionLocked() *domain.PublicQuestion {
	if e.startedAt.IsZero() || e.index >= len(e.quiz.Questions) {
		return nil
	}
	question := e.quiz.Questions[e.index]
	public := &domain.PublicQuestion{
		ID:             question.ID,
		Text:           question.Text,
		Options:        append([]string(nil), question.Options...),
		TimeLimit:      question.TimeLimit,
		QuestionNumber: e.index + 1,
		TotalQuestions: len(e.quiz.Questions),
	}
	if e.phase == domain.PhaseResults || (e.phase == domain.PhasePaused && e.pausedFrom == domain.PhaseResults) {
		correct := question.CorrectIndex
		public.CorrectIndex = &correct
	}
	return public
}

// publishLocked stores a fresh immutable snapshot and, when persist is set, hands the full
// record to the observer.
func (e *Engine) publishLocked(persist bool) {
	e.version++

	snap := e.snapshotLocked()
	public := snap
	if e.answersOpenLocked() {
		public.Players = hideOpenAnswers(snap.Players, e.index)
	}
	e.snapshot.Store(&public)

	if persist && e.observe != nil {
		e.observe(e.recordLocked(snap))
	}
}

// snapshotLocked captures the full state, including answers to the open question.
func (e *Engine) snapshotLocked() domain.SessionSnapshot {
	players := make([]domain.Player, len(e.roster))
	for i, p := range e.roster {
		players[i] = p.Clone()
	}
	snap := domain.SessionSnapshot{
		SessionID:      e.id,
		Code:           e.code,
		QuizID:         e.quiz.ID,
		Title:          e.quiz.Title,
		Phase:          e.phase,
		PausedFrom:     e.pausedFrom,
		QuestionIndex:  e.index,
		TotalQuestions: len(e.quiz.Questions),
		Question:       e.publicQuestionLocked(),
		TimeRemaining:  e.timeRemaining,
		Responses:      len(e.order),
		Players:        players,
		CreatedAt:      e.createdAt,
		Version:        e.version,
	}
	if !e.startedAt.IsZero() {
		started := e.startedAt
		snap.StartedAt = &started
	}
	if !e.endedAt.IsZero() {
		ended := e.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// answersOpenLocked reports whether the active question still accepts answers, possibly paused.
func (e *Engine) answersOpenLocked() bool {
	return e.phase == domain.PhaseQuestion || (e.phase == domain.PhasePaused && e.pausedFrom == domain.PhaseQuestion)
}

// hideOpenAnswers strips what each player answered for question index from public copies.
func hideOpenAnswers(players []domain.Player, index int) []domain.Player {
	out := make([]domain.Player, len(players))
	for i, p := range players {
		if n := len(p.History); n > 0 && p.History[n-1].QuestionIndex == index {
			p.History = p.History[:n-1 : n-1]
			p.LastAnswer = nil
			p.LastCorrect = false
			p.LastResponseTime = 0
		}
		out[i] = p
	}
	return out
}

func (e *Engine) recordLocked(snap domain.SessionSnapshot) domain.SessionRecord {
	return domain.SessionRecord{
		Snapshot:          snap,
		Quiz:              e.quiz,
		Submissions:       append([]domain.Submission(nil), e.order...),
		QuestionStartedAt: e.questionStartedAt,
		QuestionsEntered:  e.questionsEntered,
	}
}
