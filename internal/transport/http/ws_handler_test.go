package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/hub"
	"live-quiz-service/internal/infra/memory"
)

func TestWebSocketGameFlow(t *testing.T) {
	server, service := newTestServer(t)
	snap, err := service.CreateSession(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	host := dial(t, server, "/ws/"+snap.SessionID+"?role=host")
	readUntil(t, host, "game_state")

	player := dial(t, server, "/ws/"+snap.SessionID)
	state := readUntil(t, player, "game_state")
	if state["phase"] != "waiting" {
		t.Fatalf("expected waiting snapshot, got %v", state["phase"])
	}

	send(t, player, "join", map[string]any{"playerId": "p1", "nickname": "Alice"})
	joined := readUntil(t, host, "player_joined")
	if joined["nickname"] != "Alice" {
		t.Fatalf("expected Alice to join, got %v", joined)
	}

	send(t, player, "start_game", nil)
	rejected := readUntil(t, player, "rejected")
	if rejected["code"] != "host_only" {
		t.Fatalf("expected host_only rejection, got %v", rejected)
	}

	send(t, host, "start_game", nil)
	started := readUntil(t, player, "game_started")
	question, _ := started["question"].(map[string]any)
	if question["id"] != "q1" {
		t.Fatalf("expected first question, got %v", started)
	}
	if _, leaked := question["correctIndex"]; leaked {
		t.Fatalf("correct index must be withheld during the question")
	}

	send(t, player, "answer", map[string]any{"playerId": "p1", "questionId": "q1", "answer": 1})
	result := readUntil(t, player, "answer_result")
	if result["correct"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}
	if points, _ := result["pointsEarned"].(float64); points < 1000 {
		t.Fatalf("expected at least base points, got %v", result["pointsEarned"])
	}
	readUntil(t, host, "answer_received")

	send(t, player, "answer", map[string]any{"playerId": "p1", "questionId": "q1", "answer": 0})
	dup := readUntil(t, player, "rejected")
	if dup["code"] != "duplicate_submission" {
		t.Fatalf("expected duplicate_submission, got %v", dup)
	}

	send(t, host, "end_game", nil)
	ended := readUntil(t, player, "game_ended")
	if board, _ := ended["finalLeaderboard"].([]any); len(board) != 1 {
		t.Fatalf("expected one player on the final leaderboard, got %v", ended["finalLeaderboard"])
	}
}

func TestWebSocketReconnectRestoresPrivateDelivery(t *testing.T) {
	server, service := newTestServer(t)
	snap, _ := service.CreateSession(context.Background(), "quiz-1")
	joined, err := service.JoinByCode(context.Background(), snap.Code, "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	first := dial(t, server, "/ws/"+snap.SessionID+"?playerId="+joined.Player.ID)
	readUntil(t, first, "game_state")
	first.Close()

	second := dial(t, server, "/ws/"+snap.SessionID+"?playerId="+joined.Player.ID)
	readUntil(t, second, "game_state")

	if _, err := service.Control(context.Background(), snap.SessionID, app.CommandStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	send(t, second, "answer", map[string]any{"questionId": "q1", "answer": 0})
	result := readUntil(t, second, "answer_result")
	if result["correct"] != false {
		t.Fatalf("expected wrong answer result, got %v", result)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestWebSocketRejectsUnknownCommand(t *testing.T) {
	server, service := newTestServer(t)
	snap, _ := service.CreateSession(context.Background(), "quiz-1")

	conn := dial(t, server, "/ws/"+snap.SessionID+"?role=host")
	readUntil(t, conn, "game_state")

	send(t, conn, "rewind", nil)
	if got := readUntil(t, conn, "rejected"); got["code"] != "unsupported_command" {
		t.Fatalf("expected unsupported_command, got %v", got)
	}
	send(t, conn, "answer", map[string]any{"answer": 1})
	if got := readUntil(t, conn, "rejected"); got["code"] != "unknown_player" {
		t.Fatalf("expected unknown_player, got %v", got)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	h := hub.New(64)
	registry := app.NewRegistry(h)
	t.Cleanup(registry.Close)

	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewQuizService(registry, quizRepo)
	router := NewRouter(NewAdminHandler(service, h), NewWSHandler(service, h, DefaultWSConfig()), nil)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if payload == nil {
		payload = map[string]any{}
	}
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips unrelated events (ticks, leaderboard updates) until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s event received", expect)
	return nil
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is 2 + 2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
					TimeLimit:    30,
					Points:       1000,
				},
				{
					ID:           "q2",
					Text:         "Is the sky blue?",
					Options:      []string{"True", "False"},
					CorrectIndex: 0,
					TimeLimit:    30,
					Points:       500,
				},
			},
		},
	}
}
