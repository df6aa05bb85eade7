package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminSessionLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	var created struct {
		SessionID string `json:"sessionId"`
		Code      string `json:"code"`
		Phase     string `json:"phase"`
	}
	resp := do(t, server, http.MethodPost, "/api/sessions", map[string]string{"quizId": "quiz-1"}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if created.SessionID == "" || len(created.Code) != 6 || created.Phase != "waiting" {
		t.Fatalf("unexpected session: %+v", created)
	}

	var joined struct {
		SessionID string `json:"sessionId"`
		Player    struct {
			ID       string `json:"id"`
			Nickname string `json:"nickname"`
		} `json:"player"`
	}
	resp = do(t, server, http.MethodPost, "/api/join", map[string]string{"code": created.Code, "nickname": "Alice"}, &joined)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on join, got %d", resp.StatusCode)
	}
	if joined.SessionID != created.SessionID || joined.Player.ID == "" {
		t.Fatalf("unexpected join result: %+v", joined)
	}

	resp = do(t, server, http.MethodPost, "/api/join", map[string]string{"code": created.Code, "nickname": "alice"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for taken nickname, got %d", resp.StatusCode)
	}

	var started struct {
		Phase         string `json:"phase"`
		QuestionIndex int    `json:"questionIndex"`
	}
	resp = do(t, server, http.MethodPost, "/api/sessions/"+created.SessionID+"/start", nil, &started)
	if resp.StatusCode != http.StatusOK || started.Phase != "question" {
		t.Fatalf("expected question phase, got %d %+v", resp.StatusCode, started)
	}

	resp = do(t, server, http.MethodPost, "/api/sessions/"+created.SessionID+"/start", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", resp.StatusCode)
	}

	resp = do(t, server, http.MethodPost, "/api/sessions/"+created.SessionID+"/rewind", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", resp.StatusCode)
	}

	var board struct {
		Players []struct {
			Nickname string `json:"nickname"`
			Rank     int    `json:"rank"`
		} `json:"players"`
		TotalPlayers int `json:"totalPlayers"`
	}
	resp = do(t, server, http.MethodGet, "/api/leaderboard/"+created.SessionID, nil, &board)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for leaderboard, got %d", resp.StatusCode)
	}
	if board.TotalPlayers != 1 || len(board.Players) != 1 || board.Players[0].Nickname != "Alice" {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	var list []json.RawMessage
	do(t, server, http.MethodGet, "/api/sessions", nil, &list)
	if len(list) != 1 {
		t.Fatalf("expected one listed session, got %d", len(list))
	}

	resp = do(t, server, http.MethodDelete, "/api/sessions/"+created.SessionID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", resp.StatusCode)
	}
	resp = do(t, server, http.MethodGet, "/api/sessions/"+created.SessionID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestAdminErrors(t *testing.T) {
	server, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown quiz", http.MethodPost, "/api/sessions", map[string]string{"quizId": "missing"}, http.StatusNotFound},
		{"missing quiz id", http.MethodPost, "/api/sessions", map[string]string{}, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/sessions/missing", nil, http.StatusNotFound},
		{"unknown join code", http.MethodPost, "/api/join", map[string]string{"code": "ZZZZZZ", "nickname": "Bob"}, http.StatusNotFound},
		{"unknown leaderboard", http.MethodGet, "/api/leaderboard/missing", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body struct {
				Error string `json:"error"`
			}
			resp := do(t, server, tc.method, tc.path, tc.body, &body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if body.Error == "" {
				t.Fatalf("expected an error message")
			}
		})
	}
}

func TestHealthAndInfo(t *testing.T) {
	server, _ := newTestServer(t)

	resp := do(t, server, http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	var info struct {
		Sessions    int `json:"sessions"`
		Connections struct {
			Connections int `json:"connections"`
		} `json:"connections"`
	}
	do(t, server, http.MethodGet, "/info", nil, &info)
	if info.Sessions != 0 || info.Connections.Connections != 0 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func do(t *testing.T, server *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}
