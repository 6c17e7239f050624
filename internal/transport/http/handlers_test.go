package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Error   bool            `json:"error"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e *testEnv) call(t *testing.T, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestRESTHostedQuiz(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.call(t, http.MethodPost, "/api/quizzes/quiz-1/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	var presented presentResponse
	require.NoError(t, json.Unmarshal(res.Data, &presented))
	code := presented.Session.SessionCode
	require.Len(t, code, domain.CodeLength)
	require.Equal(t, "https://toast.example.com/join/"+code, presented.JoinURL)

	// No one joined yet: the command fails and the body carries the stored session.
	status, res = env.call(t, http.MethodPost, "/api/sessions/"+code+"/start", nil)
	require.Equal(t, http.StatusConflict, status)
	require.True(t, res.Error)
	var resync domain.Session
	require.NoError(t, json.Unmarshal(res.Data, &resync))
	require.Equal(t, code, resync.SessionCode)
	require.False(t, resync.IsActive)

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/participants", joinRequest{ParticipantID: "p1", Username: "Alice"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/participants", joinRequest{ParticipantID: "p2", Username: "Bob"})
	require.Equal(t, http.StatusOK, status)

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/start", nil)
	require.Equal(t, http.StatusOK, status)

	status, res = env.call(t, http.MethodPost, "/api/sessions/"+code+"/answers", answerRequest{ParticipantID: "p1", QuestionID: "q1", OptionID: "o2"})
	require.Equal(t, http.StatusOK, status)
	var result domain.AnswerResult
	require.NoError(t, json.Unmarshal(res.Data, &result))
	require.True(t, result.Correct)
	require.Equal(t, 100, result.TotalScore)

	// Lower-case codes are accepted.
	status, res = env.call(t, http.MethodPost, "/api/sessions/"+lower(code)+"/results", nil)
	require.Equal(t, http.StatusOK, status)
	var shown domain.Session
	require.NoError(t, json.Unmarshal(res.Data, &shown))
	require.True(t, shown.ShowResults)
	require.Equal(t, "o1", shown.Participants["p2"].Responses["q1"])

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/answers", answerRequest{ParticipantID: "p2", QuestionID: "q1", OptionID: "o2"})
	require.Equal(t, http.StatusConflict, status)

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/final", nil)
	require.Equal(t, http.StatusConflict, status)

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/advance", nil)
	require.Equal(t, http.StatusOK, status)

	status, res = env.call(t, http.MethodPost, "/api/sessions/"+code+"/final", nil)
	require.Equal(t, http.StatusOK, status)
	var final finalResponse
	require.NoError(t, json.Unmarshal(res.Data, &final))
	require.False(t, final.Session.IsComplete)
	require.Equal(t, "p1", final.Leaderboard.Podium[0].ParticipantID)

	status, _ = env.call(t, http.MethodPost, "/api/sessions/"+code+"/finish", nil)
	require.Equal(t, http.StatusOK, status)

	status, res = env.call(t, http.MethodGet, "/api/sessions/"+code+"/leaderboard", nil)
	require.Equal(t, http.StatusOK, status)
	var board domain.Leaderboard
	require.NoError(t, json.Unmarshal(res.Data, &board))
	require.Len(t, board.Podium, 2)
	require.Equal(t, 1, board.Podium[0].Rank)
}

func TestRESTSessionNotFound(t *testing.T) {
	env := newTestEnv(t)
	status, res := env.call(t, http.MethodGet, "/api/sessions/NOPE00", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.True(t, res.Error)

	status, _ = env.call(t, http.MethodPost, "/api/quizzes/missing/sessions", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestRESTParticipantViewIsRedacted(t *testing.T) {
	env := newTestEnv(t)
	_, res := env.call(t, http.MethodPost, "/api/quizzes/quiz-1/sessions", nil)
	var presented presentResponse
	require.NoError(t, json.Unmarshal(res.Data, &presented))

	_, res = env.call(t, http.MethodGet, "/api/sessions/"+presented.Session.SessionCode+"?role=participant", nil)
	var view domain.Session
	require.NoError(t, json.Unmarshal(res.Data, &view))
	for _, q := range view.Questions {
		for _, o := range q.Options {
			require.False(t, o.IsCorrect)
		}
	}
}

func TestRESTEditor(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.call(t, http.MethodPost, "/api/quizzes/quiz-1/questions", domain.Question{
		Question: "Only one option?",
		Options:  []domain.Option{{Text: "yes", IsCorrect: true}},
	})
	require.Equal(t, http.StatusBadRequest, status)

	status, res := env.call(t, http.MethodPost, "/api/quizzes/quiz-1/questions", domain.Question{
		Question: "Best season?",
		Options:  []domain.Option{{Text: "Summer", IsCorrect: true}, {Text: "Winter"}},
	})
	require.Equal(t, http.StatusCreated, status)
	var quiz domain.Quiz
	require.NoError(t, json.Unmarshal(res.Data, &quiz))
	require.Len(t, quiz.Questions, 3)
	added := quiz.Questions[2]
	require.NotEmpty(t, added.ID)
	require.Equal(t, domain.DefaultTimeLimit, added.TimeLimit)

	status, res = env.call(t, http.MethodPost, "/api/quizzes/quiz-1/questions/"+added.ID+"/move", moveRequest{Index: 0})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(res.Data, &quiz))
	require.Equal(t, added.ID, quiz.Questions[0].ID)

	status, _ = env.call(t, http.MethodDelete, "/api/quizzes/quiz-1/questions/"+added.ID, nil)
	require.Equal(t, http.StatusOK, status)

	stored, err := env.quizzes.LoadQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)

	status, _ = env.call(t, http.MethodPost, "/api/quizzes/quiz-1/generate", generateRequest{Prompt: "space"})
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrSessionNotFound:                          http.StatusNotFound,
		fmt.Errorf("wrap: %w", domain.ErrQuestionNotFound): http.StatusNotFound,
		domain.ErrInvalidQuestion:                          http.StatusBadRequest,
		errBadRequestf("junk"):                             http.StatusBadRequest,
		domain.ErrQuestionClosed:                           http.StatusConflict,
		domain.ErrInvalidTransition:                        http.StatusConflict,
		errNotAllowed("start", app.RoleDisplay):            http.StatusForbidden,
		app.ErrUploaderUnavailable:                         http.StatusServiceUnavailable,
		errors.New("redis down"):                           http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}

func lower(s string) string {
	return string(bytes.ToLower([]byte(s)))
}
