package app_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// twoQuestionQuiz has a two-option standard question and a four-option double question.
func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Office party",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Question: "Is the office open on Sundays?",
				Options: []domain.Option{
					{ID: "yes", Text: "Yes"},
					{ID: "no", Text: "No", IsCorrect: true},
				},
				PointType: domain.PointStandard,
			},
			{
				ID:       "q2",
				Question: "Which floor is the kitchen on?",
				Options: []domain.Option{
					{ID: "f1", Text: "First"},
					{ID: "f2", Text: "Second"},
					{ID: "f3", Text: "Third", IsCorrect: true},
					{ID: "f4", Text: "Fourth"},
				},
				PointType: domain.PointDouble,
			},
		},
	}
}

// components wires the live quiz parts without the autopilot.
type components struct {
	store    *memory.SessionStore
	registry *app.Registry
	answers  *app.AnswerEngine
	host     *app.HostController
	events   *recordingPublisher
}

func newComponents(t *testing.T) *components {
	t.Helper()
	logger := discardLogger()
	store := memory.NewSessionStore()
	registry := app.NewRegistry(store, logger)
	events := &recordingPublisher{}
	return &components{
		store:    store,
		registry: registry,
		answers:  app.NewAnswerEngine(store, registry, logger),
		host:     app.NewHostController(store, events, logger),
		events:   events,
	}
}

// present creates a session for quiz and joins the given participants in order.
func (c *components) present(t *testing.T, quiz domain.Quiz, participants ...string) string {
	t.Helper()
	ctx := context.Background()
	session, err := c.host.CreateSession(ctx, quiz)
	require.NoError(t, err)
	for _, id := range participants {
		_, err := c.registry.Join(ctx, session.SessionCode, id, id)
		require.NoError(t, err)
	}
	return session.SessionCode
}

func (c *components) submit(t *testing.T, code, participant, question, option string) domain.AnswerResult {
	t.Helper()
	result, err := c.answers.Submit(context.Background(), code, domain.AnswerSubmission{
		ParticipantID: participant,
		QuestionID:    question,
		OptionID:      option,
	})
	require.NoError(t, err)
	return result
}

func (c *components) session(t *testing.T, code string) domain.Session {
	t.Helper()
	s, err := c.store.Get(context.Background(), code)
	require.NoError(t, err)
	return s
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []app.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e app.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []app.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]app.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// manualTimer hands out countdown channels that tests fire explicitly.
type manualTimer struct {
	requests chan timerRequest
}

type timerRequest struct {
	d    time.Duration
	fire chan time.Time
}

func newManualTimer() *manualTimer {
	return &manualTimer{requests: make(chan timerRequest, 16)}
}

func (m *manualTimer) after(d time.Duration) <-chan time.Time {
	fire := make(chan time.Time, 1)
	m.requests <- timerRequest{d: d, fire: fire}
	return fire
}

func (m *manualTimer) next(t *testing.T) timerRequest {
	t.Helper()
	select {
	case req := <-m.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no countdown started")
	}
	return timerRequest{}
}
