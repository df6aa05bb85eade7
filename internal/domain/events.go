package domain

// EventType is the discriminator of an outbound message.
type EventType string

const (
	EventGameState         EventType = "game_state"
	EventGameStarted       EventType = "game_started"
	EventNewQuestion       EventType = "new_question"
	EventTimeUpdate        EventType = "time_update"
	EventQuestionResults   EventType = "question_results"
	EventAnswerResult      EventType = "answer_result"
	EventAnswerReceived    EventType = "answer_received"
	EventLeaderboardUpdate EventType = "leaderboard_update"
	EventPlayerJoined      EventType = "player_joined"
	EventPlayerLeft        EventType = "player_left"
	EventGamePaused        EventType = "game_paused"
	EventGameResumed       EventType = "game_resumed"
	EventGameEnded         EventType = "game_ended"
	EventRejected          EventType = "rejected"
)

// Event is the envelope written to every subscriber.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

type QuestionPayload struct {
	Question PublicQuestion `json:"question"`
}

type TimeUpdatePayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

type QuestionResultsPayload struct {
	QuestionIndex    int          `json:"questionIndex"`
	CorrectIndex     int          `json:"correctIndex"`
	TotalResponses   int          `json:"totalResponses"`
	CorrectResponses int          `json:"correctResponses"`
	Accuracy         int          `json:"accuracy"`
	Distribution     []OptionStat `json:"distribution"`
}

type AnswerReceivedPayload struct {
	PlayerID      string       `json:"playerId"`
	Answer        int          `json:"answer"`
	Correct       bool         `json:"correct"`
	PointsEarned  int          `json:"pointsEarned"`
	ResponseTime  float64      `json:"responseTime"`
	ResponseCount int          `json:"responseCount"`
	Distribution  []OptionStat `json:"distribution"`
}

type PlayerPayload struct {
	PlayerID     string `json:"playerId"`
	Nickname     string `json:"nickname"`
	TotalPlayers int    `json:"totalPlayers"`
}

type PausePayload struct {
	Phase         Phase `json:"phase"`
	TimeRemaining int   `json:"timeRemaining"`
}

type GameEndedPayload struct {
	FinalLeaderboard []Player  `json:"finalLeaderboard"`
	GameStats        GameStats `json:"gameStats"`
}

type RejectedPayload struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
