// Package nats mirrors session events onto NATS subjects for out-of-process consumers.
package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quiz.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect logging.
func Connect(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("live-quiz-service"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// MsgPublisher is the subset of *nats.Conn the relay needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Audience values carried in the Audience header.
const (
	AudienceAll    = "all"
	AudienceHosts  = "hosts"
	AudiencePlayer = "player"
)

// EventRelay forwards every event to the wrapped publisher and mirrors it to
// <prefix>.<sessionId>.<eventType>. Countdown ticks are not mirrored.
//
// Core NATS publishes are buffered by the client, so the relay never blocks the engine.
type EventRelay struct {
	next   app.Publisher
	conn   MsgPublisher
	prefix string
}

func NewEventRelay(next app.Publisher, conn MsgPublisher, prefix string) *EventRelay {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &EventRelay{next: next, conn: conn, prefix: prefix}
}

func (r *EventRelay) Broadcast(sessionID string, event domain.Event) {
	r.next.Broadcast(sessionID, event)
	r.mirror(sessionID, AudienceAll, "", event)
}

func (r *EventRelay) BroadcastHosts(sessionID string, event domain.Event) {
	r.next.BroadcastHosts(sessionID, event)
	r.mirror(sessionID, AudienceHosts, "", event)
}

func (r *EventRelay) SendTo(sessionID, playerID string, event domain.Event) {
	r.next.SendTo(sessionID, playerID, event)
	r.mirror(sessionID, AudiencePlayer, playerID, event)
}

// Subject returns the subject an event of type typ in sessionID is published on.
func (r *EventRelay) Subject(sessionID string, typ domain.EventType) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, sessionID, typ)
}

func (r *EventRelay) mirror(sessionID, audience, playerID string, event domain.Event) {
	if r.conn == nil || event.Type == domain.EventTimeUpdate {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("marshal relayed event failed")
		return
	}
	msg := &nats.Msg{
		Subject: r.Subject(sessionID, event.Type),
		Data:    data,
		Header: nats.Header{
			"Session-ID": []string{sessionID},
			"Event-Type": []string{string(event.Type)},
			"Audience":   []string{audience},
		},
	}
	if playerID != "" {
		msg.Header.Set("Player-ID", playerID)
	}
	if err := r.conn.PublishMsg(msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("relay event to NATS failed")
	}
}

var _ app.Publisher = (*EventRelay)(nil)
