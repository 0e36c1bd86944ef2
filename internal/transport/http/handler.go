package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"quiz-trainer-service/internal/app"
	"quiz-trainer-service/internal/domain"
)

// Handler exposes the quiz lifecycle over JSON/HTTP. Identity arrives as the
// X-User-Id header, installed by the authenticating proxy; the handler never
// authenticates anyone itself.
type Handler struct {
	service *app.GameService
	log     *logrus.Logger
}

func NewHandler(service *app.GameService, log *logrus.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses/{id}/origins", h.handleOrigins)
	mux.HandleFunc("POST /api/courses/{id}/game", h.handleStartGame)
	mux.HandleFunc("POST /api/game/{sessionId}/guess", h.handleAddGuess)
	mux.HandleFunc("POST /api/game/{sessionId}/finish", h.handleFinish)
	mux.HandleFunc("GET /api/game/{sessionId}/results", h.handleResults)
	mux.HandleFunc("GET /api/game/results/me", h.handleHistory)
}

type startGameRequest struct {
	Origin          string `json:"origin"`
	AmountQuestions *int   `json:"amountQuestions"`
	Order           string `json:"order"`
}

type startGameResponse struct {
	GameSession domain.GameSession           `json:"gameSession"`
	Questions   []domain.QuestionWithOptions `json:"questions"`
}

func (h *Handler) handleStartGame(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req startGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.Origin == "" {
		h.badRequest(w, "origin is required")
		return
	}
	amount := -1
	if req.AmountQuestions != nil {
		amount = *req.AmountQuestions
	}
	order, err := app.ParseOrder(req.Order)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	session, questions, err := h.service.StartGame(r.Context(), userID, r.PathValue("id"), req.Origin, amount, order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.WithFields(logrus.Fields{"userId": userID, "sessionId": session.ID, "questions": len(questions)}).Info("game started")
	h.writeJSON(w, http.StatusCreated, startGameResponse{GameSession: session, Questions: questions})
}

type addGuessRequest struct {
	QuestionID string           `json:"questionId"`
	AnswerData domain.RawAnswer `json:"answerData"`
}

func (h *Handler) handleAddGuess(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req addGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.QuestionID == "" || len(req.AnswerData) == 0 {
		h.badRequest(w, "questionId and answerData are required")
		return
	}

	guess, err := h.service.AddGuess(r.Context(), userID, r.PathValue("sessionId"), req.QuestionID, req.AnswerData)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, guess)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	session, err := h.service.Finish(r.Context(), userID, r.PathValue("sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.WithFields(logrus.Fields{"userId": userID, "sessionId": session.ID}).Info("game finished")
	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	results, err := h.service.Results(r.Context(), userID, r.PathValue("sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

type historyResponse struct {
	GameSessions []domain.GameSession `json:"gameSessions"`
	Total        int                  `json:"total"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	page := queryInt(r, "page", 0)
	limit := queryInt(r, "limit", 30)
	sessions, total, err := h.service.History(r.Context(), userID, limit, page*limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{GameSessions: sessions, Total: total})
}

func (h *Handler) handleOrigins(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}
	origins, err := h.service.Origins(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, origins)
}

type errorResponse struct {
	Message string `json:"message"`
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "missing identity"})
		return "", false
	}
	return userID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMalformedAnswer):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrCourseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrSessionIncomplete):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		h.writeJSON(w, status, errorResponse{Message: "internal error"})
		return
	}
	h.writeJSON(w, status, errorResponse{Message: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("encode response")
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
