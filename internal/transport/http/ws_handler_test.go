package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketLiveQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.service.Present(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	code := session.SessionCode

	host := env.dial(t, "?code="+code+"&role=host")
	defer host.Close()
	typ, payload := readNext(host, t, "session")
	if typ != "session" || payload["important"] != true {
		t.Fatalf("expected initial important session, got %s %v", typ, payload)
	}

	alice := env.dial(t, "?code="+code+"&role=participant&participantId=p-alice&name=Alice")
	defer alice.Close()
	_, payload = readNext(alice, t, "session")
	if payload["placement"] == nil {
		t.Fatalf("expected participant placement in first session message")
	}

	// Host sees the roster change, then starts the quiz.
	readUntil(host, t, func(typ string, payload map[string]any) bool {
		return typ == "session" && len(sessionOf(payload)["participants"].(map[string]any)) == 1
	})
	send(t, host, "start", nil)

	_, payload = readUntil(alice, t, func(typ string, payload map[string]any) bool {
		return typ == "session" && sessionOf(payload)["isActive"] == true
	})
	if payload["important"] != true {
		t.Fatalf("expected start to be an important change")
	}
	// Correct answers stay hidden from participants while answering.
	options := sessionOf(payload)["questions"].([]any)[0].(map[string]any)["options"].([]any)
	for _, o := range options {
		if o.(map[string]any)["isCorrect"] == true {
			t.Fatalf("participant view leaked the correct option")
		}
	}

	send(t, alice, "answer", map[string]any{"questionId": "q1", "optionId": "o2"})
	_, result := readUntil(alice, t, func(typ string, _ map[string]any) bool { return typ == "answerResult" })
	if result["correct"] != true || result["awarded"] != float64(100) || result["totalScore"] != float64(100) {
		t.Fatalf("unexpected answer result %v", result)
	}

	// Alice was the only participant, so results open without waiting for the timer.
	readUntil(host, t, func(typ string, payload map[string]any) bool {
		return typ == "session" && sessionOf(payload)["showResults"] == true
	})
}

func TestWebSocketRejectsCommandsFromWrongRole(t *testing.T) {
	env := newTestEnv(t)
	session, err := env.service.Present(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("present: %v", err)
	}

	conn := env.dial(t, "?code="+session.SessionCode+"&participantId=p1&name=Bob")
	defer conn.Close()
	readNext(conn, t, "session")

	send(t, conn, "start", nil)
	_, payload := readUntil(conn, t, func(typ string, _ map[string]any) bool { return typ == "error" })
	if payload["status"] != float64(http.StatusForbidden) {
		t.Fatalf("expected forbidden, got %v", payload)
	}

	send(t, conn, "dance", nil)
	_, payload = readUntil(conn, t, func(typ string, _ map[string]any) bool { return typ == "error" })
	if payload["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("expected bad request, got %v", payload)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + env.server.URL[len("http"):] + "/ws?code=NOPE00&role=display"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

type testEnv struct {
	server  *httptest.Server
	service *app.QuizService
	quizzes *memory.QuizStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	quizzes := memory.NewQuizStore(map[string]domain.Quiz{"quiz-1": sampleQuiz()})
	cache := memory.NewQuizRepository(quizzes, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	service := app.NewQuizService(ctx, memory.NewSessionStore(), cache, nil, logger)
	editor := app.NewQuizEditor(quizzes, cache, nil, nil, logger)
	api := NewAPI(service, editor, "https://toast.example.com/", logger)
	server := httptest.NewServer(NewRouter(api, NewWSHandler(service, logger)))

	t.Cleanup(func() {
		server.Close()
		cancel()
		service.Autopilot().Wait()
	})
	return &testEnv{server: server, service: service, quizzes: quizzes}
}

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + e.server.URL[len("http"):] + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	if err := conn.WriteJSON(inboundMessage{Type: typ, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func readUntil(conn *websocket.Conn, t *testing.T, match func(string, map[string]any) bool) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if match(typ, payload) {
			return typ, payload
		}
	}
	t.Fatalf("expected message not received")
	return "", nil
}

func sessionOf(payload map[string]any) map[string]any {
	s, _ := payload["session"].(map[string]any)
	return s
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Team trivia",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Question: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", IsCorrect: true},
				},
				PointType: domain.PointStandard,
			},
			{
				ID:       "q2",
				Question: "Largest planet?",
				Options: []domain.Option{
					{ID: "a", Text: "Mars"},
					{ID: "b", Text: "Jupiter", IsCorrect: true},
					{ID: "c", Text: "Venus"},
					{ID: "d", Text: "Earth"},
				},
				PointType: domain.PointDouble,
			},
		},
	}
}
