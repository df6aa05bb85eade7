package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/hub"
)

// WSConfig holds websocket connection limits.
type WSConfig struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
	}
}

type WSHandler struct {
	service  *app.QuizService
	hub      *hub.Hub
	cfg      WSConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, h *hub.Hub, cfg WSConfig) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     h,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

type answerPayload struct {
	PlayerID   string `json:"playerId"`
	QuestionID string `json:"questionId"`
	Answer     *int   `json:"answer"`
	// Timestamp is the client send time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

var hostCommands = map[string]app.Command{
	"start_game":    app.CommandStart,
	"next_question": app.CommandNext,
	"pause_game":    app.CommandPause,
	"resume_game":   app.CommandResume,
	"end_game":      app.CommandEnd,
}

// ServeWS upgrades HTTP requests to websockets and subscribes them to a session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	role := hub.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = hub.RolePlayer
	}
	if role != hub.RolePlayer && role != hub.RoleHost {
		http.Error(w, "role must be player or host", http.StatusBadRequest)
		return
	}

	engine, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("ws upgrade failed")
		return
	}

	s := &wsSession{
		handler: h,
		conn:    conn,
		client:  h.hub.Register(sessionID, role),
		engine:  engine,
	}
	log.Info().
		Str("connection_id", s.client.ID).
		Str("session_id", sessionID).
		Str("role", string(role)).
		Msg("websocket connection established")

	if playerID := r.URL.Query().Get("playerId"); playerID != "" {
		s.connect("join", playerID)
	}
	h.hub.SendClient(s.client, domain.Event{Type: domain.EventGameState, Payload: engine.Snapshot()})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	s.readPump()
	h.hub.Unregister(s.client)
	<-writerDone
	s.leave()
}

// wsSession is the state of one websocket connection. Only the read loop mutates it.
type wsSession struct {
	handler  *WSHandler
	conn     *websocket.Conn
	client   *hub.Client
	engine   *app.Engine
	playerID string
}

func (s *wsSession) writePump() {
	cfg := s.handler.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.client.Send():
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("connection_id", s.client.ID).Msg("ws write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) readPump() {
	cfg := s.handler.cfg
	s.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", s.client.ID).Msg("unexpected websocket close")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reject("", domain.ErrInvalidPayload)
			continue
		}
		if err := s.dispatch(msg); err != nil {
			s.reject(msg.Type, err)
		}
	}
}

func (s *wsSession) dispatch(msg inboundMessage) error {
	if cmd, ok := hostCommands[msg.Type]; ok {
		if s.client.Role != hub.RoleHost {
			return domain.ErrHostOnly
		}
		return app.Apply(s.engine, cmd)
	}

	switch msg.Type {
	case "join":
		var payload joinPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.PlayerID == "" {
			return domain.ErrInvalidPayload
		}
		if payload.Nickname != "" {
			if _, err := s.engine.Join(payload.PlayerID, payload.Nickname); err != nil {
				return err
			}
		}
		s.connect(msg.Type, payload.PlayerID)
		return nil

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Answer == nil {
			return domain.ErrInvalidPayload
		}
		if s.playerID == "" || (payload.PlayerID != "" && payload.PlayerID != s.playerID) {
			return domain.ErrUnknownPlayer
		}
		answer := app.Answer{
			PlayerID:   s.playerID,
			QuestionID: payload.QuestionID,
			Option:     *payload.Answer,
		}
		if payload.Timestamp > 0 {
			answer.Timestamp = time.UnixMilli(payload.Timestamp)
		}
		_, err := s.engine.SubmitAnswer(answer)
		return err

	default:
		return domain.ErrUnsupportedCommand
	}
}

func (s *wsSession) connect(command, playerID string) {
	if _, err := s.engine.Connect(playerID); err != nil {
		s.reject(command, err)
		return
	}
	s.playerID = playerID
	s.handler.hub.Bind(s.client, playerID)
}

// leave marks the player offline unless a newer connection took over its binding.
func (s *wsSession) leave() {
	if s.playerID == "" || s.handler.hub.IsBound(s.engine.ID(), s.playerID) {
		return
	}
	s.engine.Disconnect(s.playerID)
}

func (s *wsSession) reject(command string, err error) {
	message := err.Error()
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		message = rejected.Message
	}
	code := domain.RejectionCode(err)
	if code == "" {
		code = "internal"
		log.Error().Err(err).Str("connection_id", s.client.ID).Str("command", command).Msg("command failed")
	}
	s.handler.hub.SendClient(s.client, domain.Event{Type: domain.EventRejected, Payload: domain.RejectedPayload{
		Command: command,
		Code:    code,
		Message: message,
	}})
}
