package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-trainer-service/internal/app"
	"quiz-trainer-service/internal/domain"
)

// WSHandler runs a whole quiz over one websocket: the client starts a game,
// the server streams one question at a time, each guess is acked, and the
// final message carries the recomputed results.
type WSHandler struct {
	service  *app.GameService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
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

type startPayload struct {
	CourseID        string `json:"courseId"`
	Origin          string `json:"origin"`
	AmountQuestions *int   `json:"amountQuestions"`
	Order           string `json:"order"`
}

type guessPayload struct {
	QuestionID string           `json:"questionId"`
	AnswerData domain.RawAnswer `json:"answerData"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startedPayload struct {
	GameSession     domain.GameSession `json:"gameSession"`
	AmountQuestions int                `json:"amountQuestions"`
}

type questionPayload struct {
	Index    int                        `json:"index"`
	Total    int                        `json:"total"`
	Question domain.QuestionWithOptions `json:"question"`
}

type guessAckPayload struct {
	QuestionID string `json:"questionId"`
	Synced     bool   `json:"synced"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives the quiz loop. The userId query
// parameter carries the authenticated identity because browsers cannot set
// headers on websocket dials; the authenticating proxy validates it upstream.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan any, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Warn("ws write error")
				return
			}
		}
	}()

	h.playLoop(r, conn, userID, send)
	close(send)
	<-writerDone
}

func (h *WSHandler) playLoop(r *http.Request, conn *websocket.Conn, userID string, send chan<- any) {
	var (
		session   domain.GameSession
		questions []domain.QuestionWithOptions
		answered  int
		started   bool
	)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "start":
			if started {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "game already started"}}
				continue
			}
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.CourseID == "" || payload.Origin == "" {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
				continue
			}
			order, err := app.ParseOrder(payload.Order)
			if err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			amount := -1
			if payload.AmountQuestions != nil {
				amount = *payload.AmountQuestions
			}
			session, questions, err = h.service.StartGame(r.Context(), userID, payload.CourseID, payload.Origin, amount, order)
			if err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			started = true
			send <- outboundMessage[startedPayload]{Type: "started", Payload: startedPayload{
				GameSession:     session,
				AmountQuestions: len(questions),
			}}
			h.sendNextQuestion(send, questions, answered)

		case "guess":
			if !started {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "no game started"}}
				continue
			}
			var payload guessPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "invalid guess payload"}}
				continue
			}
			_, err := h.service.AddGuess(r.Context(), userID, session.ID, payload.QuestionID, payload.AnswerData)
			if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			synced := err == nil
			// A retried frame is acked but must not advance the quiz, or a
			// duplicate would skip a question and strand the session.
			if synced {
				answered++
			}
			send <- outboundMessage[guessAckPayload]{Type: "guessAck", Payload: guessAckPayload{
				QuestionID: payload.QuestionID,
				Synced:     synced,
			}}
			if answered < len(questions) {
				h.sendNextQuestion(send, questions, answered)
				continue
			}
			h.finishAndReport(r, send, userID, session.ID)
			return

		case "finish":
			if !started {
				send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "no game started"}}
				continue
			}
			h.finishAndReport(r, send, userID, session.ID)
			return

		default:
			send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

func (h *WSHandler) sendNextQuestion(send chan<- any, questions []domain.QuestionWithOptions, index int) {
	if index >= len(questions) {
		return
	}
	send <- outboundMessage[questionPayload]{Type: "question", Payload: questionPayload{
		Index:    index,
		Total:    len(questions),
		Question: questions[index],
	}}
}

func (h *WSHandler) finishAndReport(r *http.Request, send chan<- any, userID, sessionID string) {
	if _, err := h.service.Finish(r.Context(), userID, sessionID); err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	results, err := h.service.Results(r.Context(), userID, sessionID)
	if err != nil {
		send <- outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage[domain.GameResults]{Type: "results", Payload: results}
}
