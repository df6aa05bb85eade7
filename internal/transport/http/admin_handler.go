package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/hub"
)

// AdminHandler serves the REST API used by host dashboards and the join page.
type AdminHandler struct {
	service   *app.QuizService
	hub       *hub.Hub
	startedAt time.Time
}

func NewAdminHandler(service *app.QuizService, h *hub.Hub) *AdminHandler {
	return &AdminHandler{service: service, hub: h, startedAt: time.Now()}
}

func (h *AdminHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var input struct {
		QuizID string `json:"quizId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.QuizID == "" {
		writeError(w, r, domain.ErrInvalidPayload)
		return
	}

	snap, err := h.service.CreateSession(r.Context(), input.QuizID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Sessions())
}

func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	engine, err := h.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.Snapshot())
}

func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.hub.CloseSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// Control applies start, next, pause, resume or end.
func (h *AdminHandler) Control(w http.ResponseWriter, r *http.Request) {
	cmd := app.Command(chi.URLParam(r, "action"))
	snap, err := h.service.Control(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *AdminHandler) Join(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code     string `json:"code"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, domain.ErrInvalidPayload)
		return
	}

	joined, err := h.service.JoinByCode(r.Context(), input.Code, input.Nickname)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, joined)
}

func (h *AdminHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

type infoResponse struct {
	Uptime      string    `json:"uptime"`
	Sessions    int       `json:"sessions"`
	Connections hub.Stats `json:"connections"`
}

func (h *AdminHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Uptime:      time.Since(h.startedAt).Round(time.Second).String(),
		Sessions:    len(h.service.Sessions()),
		Connections: h.hub.Stats(),
	})
}
