package app

import (
	"live-quiz-service/internal/domain"
)

// Publisher delivers engine events to connected parties. Implementations must not block:
// engines call them while holding their session lock.
type Publisher interface {
	// Broadcast delivers event to every subscriber of the session.
	Broadcast(sessionID string, event domain.Event)
	// BroadcastHosts delivers event to host subscribers only.
	BroadcastHosts(sessionID string, event domain.Event)
	// SendTo delivers event privately to the connection bound to playerID.
	SendTo(sessionID, playerID string, event domain.Event)
}

// RecordObserver receives the session record after each persisted mutation. It must not block.
type RecordObserver func(domain.SessionRecord)

type nopPublisher struct{}

func (nopPublisher) Broadcast(string, domain.Event)      {}
func (nopPublisher) BroadcastHosts(string, domain.Event) {}
func (nopPublisher) SendTo(string, string, domain.Event) {}
