package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live or recoverable session exists for an id or code.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionUnavailable marks a session whose persisted record could not be loaded.
	ErrSessionUnavailable = errors.New("quiz session unavailable")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates a quiz definition violates its invariants.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrCorruptRecord indicates a stored session record failed to decode or validate.
	ErrCorruptRecord = errors.New("corrupt session record")
)

// RejectedError is a non-fatal command outcome. State is unchanged when one is returned.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return e.Code + ": " + e.Message
}

func reject(code, message string) *RejectedError {
	return &RejectedError{Code: code, Message: message}
}

var (
	ErrNoPlayers           = reject("no_players", "cannot start a session without players")
	ErrInvalidPhase        = reject("invalid_phase", "command not allowed in the current phase")
	ErrUnknownPlayer       = reject("unknown_player", "player has not joined this session")
	ErrDuplicateSubmission = reject("duplicate_submission", "an answer was already recorded for this question")
	ErrSessionFull         = reject("session_full", "session has reached its player limit")
	ErrSessionStarted      = reject("session_started", "session has already started")
	ErrSessionFinished     = reject("session_finished", "session has finished")
	ErrNicknameTaken       = reject("nickname_taken", "nickname already taken")
	ErrInvalidNickname     = reject("invalid_nickname", "nickname is required")
	ErrInvalidOption       = reject("invalid_option", "answer is not one of the question options")
	ErrQuestionMismatch    = reject("question_mismatch", "answer is for a question that is not active")
	ErrHostOnly            = reject("host_only", "only the host connection may issue this command")
	ErrUnsupportedCommand  = reject("unsupported_command", "unsupported message type")
	ErrInvalidPayload      = reject("invalid_payload", "message payload could not be decoded")
)

// RejectionCode returns the outcome code of err, or "" if err is not a rejection.
func RejectionCode(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Code
	}
	return ""
}
