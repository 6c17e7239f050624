package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 32 << 20

// API serves the REST endpoints for presenting, hosting and editing quizzes.
type API struct {
	service   *app.QuizService
	editor    *app.QuizEditor
	publicURL string
	logger    *slog.Logger
}

func NewAPI(service *app.QuizService, editor *app.QuizEditor, publicURL string, logger *slog.Logger) *API {
	return &API{
		service:   service,
		editor:    editor,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// JoinURL is the link participants open to join the session.
func (a *API) JoinURL(code string) string {
	return a.publicURL + "/join/" + code
}

type presentResponse struct {
	Session domain.Session `json:"session"`
	JoinURL string         `json:"joinUrl"`
}

func (a *API) Present(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	session, err := a.service.Present(r.Context(), quizID)
	if err != nil {
		a.logger.Warn("present quiz failed", "quiz", quizID, "error", err)
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, presentResponse{Session: session, JoinURL: a.JoinURL(session.SessionCode)})
}

// GetSession returns the document. ?role=participant&participantId= returns
// the redacted view for that participant.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.Session(r.Context(), sessionCode(r))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if r.URL.Query().Get("role") == string(app.RoleParticipant) {
		session = domain.RedactForParticipant(session, r.URL.Query().Get("participantId"))
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := a.service.Leaderboard(r.Context(), sessionCode(r))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type joinRequest struct {
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
}

type joinResponse struct {
	Session   domain.Session          `json:"session"`
	Placement domain.LeaderboardEntry `json:"placement"`
}

func (a *API) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	session, err := a.service.Join(r.Context(), sessionCode(r), req.ParticipantID, req.Username)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	view := domain.RedactForParticipant(session, req.ParticipantID)
	placement, _ := domain.Placement(view, req.ParticipantID)
	writeJSON(w, http.StatusOK, joinResponse{
		Session:   view,
		Placement: placement,
	})
}

type answerRequest struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	OptionID      string `json:"optionId"`
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	result, err := a.service.SubmitAnswer(r.Context(), sessionCode(r), domain.AnswerSubmission{
		ParticipantID: req.ParticipantID,
		QuestionID:    req.QuestionID,
		OptionID:      req.OptionID,
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type hostFunc func(ctx context.Context, code string) (domain.Session, error)

// hostCommand adapts a host transition to a handler. On failure the body still
// carries the session as currently stored.
func (a *API) hostCommand(action string, fn hostFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := sessionCode(r)
		session, err := fn(r.Context(), code)
		if err != nil {
			a.logger.Info("host command rejected", "session", code, "action", action, "error", err)
			writeError(w, err, resyncData(session))
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

type finalResponse struct {
	Leaderboard domain.Leaderboard `json:"leaderboard"`
	Session     domain.Session     `json:"session"`
}

func (a *API) ShowFinalResults(w http.ResponseWriter, r *http.Request) {
	board, session, err := a.service.ShowFinalResults(r.Context(), sessionCode(r))
	if err != nil {
		writeError(w, err, resyncData(session))
		return
	}
	writeJSON(w, http.StatusOK, finalResponse{Leaderboard: board, Session: session})
}

func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.editor.Load(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) SaveQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := decodeBody(w, r, &quiz); err != nil {
		writeError(w, err, nil)
		return
	}
	quiz.ID = chi.URLParam(r, "quizID")
	saved, err := a.editor.Save(r.Context(), quiz)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) AddQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeBody(w, r, &q); err != nil {
		writeError(w, err, nil)
		return
	}
	quiz, err := a.editor.AddQuestion(r.Context(), chi.URLParam(r, "quizID"), q)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeBody(w, r, &q); err != nil {
		writeError(w, err, nil)
		return
	}
	q.ID = chi.URLParam(r, "questionID")
	quiz, err := a.editor.UpdateQuestion(r.Context(), chi.URLParam(r, "quizID"), q)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) RemoveQuestion(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.editor.RemoveQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type moveRequest struct {
	Index int `json:"index"`
}

func (a *API) MoveQuestion(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	quiz, err := a.editor.MoveQuestion(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "questionID"), req.Index)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Quiz  domain.Quiz       `json:"quiz"`
	Added []domain.Question `json:"added"`
}

func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	quizID := chi.URLParam(r, "quizID")
	quiz, added, err := a.editor.Generate(r.Context(), quizID, req.Prompt)
	if err != nil {
		a.logger.Warn("generate questions failed", "quiz", quizID, "error", err)
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Quiz: quiz, Added: added})
}

// AttachMedia expects a multipart form with the file under "file".
func (a *API) AttachMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errBadRequestf("read upload: %v", err), nil)
		return
	}
	defer file.Close()

	quizID := chi.URLParam(r, "quizID")
	quiz, err := a.editor.AttachMedia(r.Context(), quizID, chi.URLParam(r, "questionID"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		a.logger.Warn("attach media failed", "quiz", quizID, "file", header.Filename, "error", err)
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func sessionCode(r *http.Request) string {
	return domain.NormalizeCode(chi.URLParam(r, "code"))
}

func resyncData(session domain.Session) any {
	if session.SessionCode == "" {
		return nil
	}
	return session
}
