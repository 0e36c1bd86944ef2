package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-trainer-service/internal/app"
	"quiz-trainer-service/internal/domain"
	"quiz-trainer-service/internal/infra/memory"
)

func newWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	now := time.Now()
	store.AddCourse(domain.Course{ID: "BIO101", Name: "Biology", CreatedAt: now, UpdatedAt: now})
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("q%d", i)
		store.AddQuestion(
			domain.Question{
				ID: id, CourseID: "BIO101", Type: domain.MultipleChoice,
				Content: fmt.Sprintf("question %d", i), Origin: "2023-fall",
				CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
			},
			domain.QuestionOption{ID: id + "-right", QuestionID: id, Content: "right", Correct: true},
			domain.QuestionOption{ID: id + "-wrong", QuestionID: id, Content: "wrong"},
		)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	wsHandler := NewWSHandler(app.NewGameService(store, store), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/play", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg.Type, msg.Payload
}

func TestWebSocketPlayFlow(t *testing.T) {
	server := newWSServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/play?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := map[string]any{
		"type": "start",
		"payload": map[string]any{
			"courseId":        "BIO101",
			"origin":          "2023-fall",
			"amountQuestions": 2,
			"order":           "original",
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}

	typ, payload := readNext(t, conn)
	if typ != "started" {
		t.Fatalf("expected started, got %s (%s)", typ, payload)
	}
	var started startedPayload
	if err := json.Unmarshal(payload, &started); err != nil {
		t.Fatalf("decode started: %v", err)
	}
	if started.AmountQuestions != 2 {
		t.Fatalf("expected 2 questions, got %d", started.AmountQuestions)
	}

	for i := 0; i < 2; i++ {
		typ, payload = readNext(t, conn)
		if typ != "question" {
			t.Fatalf("expected question, got %s (%s)", typ, payload)
		}
		var q questionPayload
		if err := json.Unmarshal(payload, &q); err != nil {
			t.Fatalf("decode question: %v", err)
		}
		if q.Index != i || q.Total != 2 {
			t.Fatalf("expected question %d of 2, got %d of %d", i, q.Index, q.Total)
		}

		// Answer the first one right, the second one wrong.
		optionID := q.Question.Options[0].ID
		if i == 1 {
			optionID = q.Question.Options[1].ID
		}
		guess := map[string]any{
			"type": "guess",
			"payload": map[string]any{
				"questionId": q.Question.ID,
				"answerData": map[string]string{"optionId": optionID},
			},
		}
		if err := conn.WriteJSON(guess); err != nil {
			t.Fatalf("write guess: %v", err)
		}

		typ, payload = readNext(t, conn)
		if typ != "guessAck" {
			t.Fatalf("expected guessAck, got %s (%s)", typ, payload)
		}
		var ack guessAckPayload
		if err := json.Unmarshal(payload, &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if !ack.Synced || ack.QuestionID != q.Question.ID {
			t.Fatalf("unexpected ack: %+v", ack)
		}
	}

	// The last guess auto-finishes the game and streams the results.
	typ, payload = readNext(t, conn)
	if typ != "results" {
		t.Fatalf("expected results, got %s (%s)", typ, payload)
	}
	var results domain.GameResults
	if err := json.Unmarshal(payload, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.AmountCorrect != 1 || results.AmountIncorrect != 1 {
		t.Fatalf("expected 1/1, got %d/%d", results.AmountCorrect, results.AmountIncorrect)
	}
	if results.FinishedAt == nil {
		t.Fatalf("expected finished session in results")
	}
}

func TestWebSocketDuplicateGuessFrameDoesNotSkipQuestions(t *testing.T) {
	server := newWSServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/play?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	start := map[string]any{
		"type": "start",
		"payload": map[string]any{
			"courseId":        "BIO101",
			"origin":          "2023-fall",
			"amountQuestions": 2,
			"order":           "original",
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if typ, payload := readNext(t, conn); typ != "started" {
		t.Fatalf("expected started, got %s (%s)", typ, payload)
	}

	typ, payload := readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected question, got %s (%s)", typ, payload)
	}
	var first questionPayload
	if err := json.Unmarshal(payload, &first); err != nil {
		t.Fatalf("decode question: %v", err)
	}

	guess := map[string]any{
		"type": "guess",
		"payload": map[string]any{
			"questionId": first.Question.ID,
			"answerData": map[string]string{"optionId": first.Question.Options[0].ID},
		},
	}
	if err := conn.WriteJSON(guess); err != nil {
		t.Fatalf("write guess: %v", err)
	}
	if typ, payload := readNext(t, conn); typ != "guessAck" {
		t.Fatalf("expected guessAck, got %s (%s)", typ, payload)
	}
	typ, payload = readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected second question, got %s (%s)", typ, payload)
	}
	var second questionPayload
	if err := json.Unmarshal(payload, &second); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if second.Index != 1 {
		t.Fatalf("expected question index 1, got %d", second.Index)
	}

	// Retransmit the first guess. It must be acked unsynced and the quiz must
	// stay on the second question instead of finishing early.
	if err := conn.WriteJSON(guess); err != nil {
		t.Fatalf("rewrite guess: %v", err)
	}
	typ, payload = readNext(t, conn)
	if typ != "guessAck" {
		t.Fatalf("expected guessAck for duplicate, got %s (%s)", typ, payload)
	}
	var ack guessAckPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Synced {
		t.Fatalf("duplicate frame must not be synced")
	}
	typ, payload = readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected the pending question again, got %s (%s)", typ, payload)
	}
	var resent questionPayload
	if err := json.Unmarshal(payload, &resent); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	if resent.Question.ID != second.Question.ID {
		t.Fatalf("expected question %s resent, got %s", second.Question.ID, resent.Question.ID)
	}

	// The real second answer still completes the game.
	finalGuess := map[string]any{
		"type": "guess",
		"payload": map[string]any{
			"questionId": second.Question.ID,
			"answerData": map[string]string{"optionId": second.Question.Options[0].ID},
		},
	}
	if err := conn.WriteJSON(finalGuess); err != nil {
		t.Fatalf("write final guess: %v", err)
	}
	if typ, payload := readNext(t, conn); typ != "guessAck" {
		t.Fatalf("expected guessAck, got %s (%s)", typ, payload)
	}
	typ, payload = readNext(t, conn)
	if typ != "results" {
		t.Fatalf("expected results, got %s (%s)", typ, payload)
	}
	var results domain.GameResults
	if err := json.Unmarshal(payload, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if results.AmountCorrect+results.AmountIncorrect != 2 {
		t.Fatalf("expected 2 scored guesses, got %d/%d", results.AmountCorrect, results.AmountIncorrect)
	}
	if results.FinishedAt == nil {
		t.Fatalf("expected finished session in results")
	}
}

func TestWebSocketRejectsMissingIdentity(t *testing.T) {
	server := newWSServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/play"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without userId")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 handshake rejection, got %+v", resp)
	}
}

func TestWebSocketGuessBeforeStart(t *testing.T) {
	server := newWSServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/play?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	guess := map[string]any{
		"type": "guess",
		"payload": map[string]any{
			"questionId": "q0",
			"answerData": map[string]string{"optionId": "q0-right"},
		},
	}
	if err := conn.WriteJSON(guess); err != nil {
		t.Fatalf("write guess: %v", err)
	}
	typ, payload := readNext(t, conn)
	if typ != "error" {
		t.Fatalf("expected error, got %s (%s)", typ, payload)
	}
}
