package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

const maxCodeAttempts = 8

// HostController drives a session through its phases. It is the only writer
// of currentQuestionIndex, isActive, showResults and isComplete.
//
// Every command returns the resulting session. When a write fails the command
// re-reads the store and returns that state together with the error, so the
// caller can resynchronize instead of keeping an optimistic view.
type HostController struct {
	store  SessionStore
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time

	// defaultTimeLimit replaces a zero time limit when a session is created.
	defaultTimeLimit int

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewHostController(store SessionStore, events EventPublisher, logger *slog.Logger) *HostController {
	if events == nil {
		events = NopPublisher{}
	}
	return &HostController{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),

		defaultTimeLimit: domain.DefaultTimeLimit,
	}
}

// WithDefaultTimeLimit sets the countdown, in seconds, for questions that do
// not carry one. Non-positive values keep the current default.
func (h *HostController) WithDefaultTimeLimit(seconds int) *HostController {
	if seconds > 0 {
		h.defaultTimeLimit = seconds
	}
	return h
}

// CreateSession snapshots the quiz questions into a new live session under a fresh code.
func (h *HostController) CreateSession(ctx context.Context, quiz domain.Quiz) (domain.Session, error) {
	if len(quiz.Questions) == 0 {
		return domain.Session{}, fmt.Errorf("%w: quiz %s has no questions", domain.ErrInvalidQuestion, quiz.ID)
	}
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		if q.TimeLimit == 0 {
			q.TimeLimit = h.defaultTimeLimit
		}
		q = domain.NormalizeQuestion(q)
		if err := domain.ValidateQuestion(q); err != nil {
			return domain.Session{}, err
		}
		questions[i] = q
	}

	code, err := h.freeCode(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	session := domain.NewSession(code, quiz.Title, questions, h.now())
	if err := h.store.Create(ctx, session); err != nil {
		h.logger.Error("create session failed", "session", code, "quiz", quiz.ID, "error", err)
		return domain.Session{}, err
	}
	created, err := h.store.Get(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	h.logger.Info("session created", "session", code, "quiz", quiz.ID, "questions", len(questions))
	h.publish(ctx, EventSessionCreated, created)
	return created, nil
}

func (h *HostController) freeCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		h.rndMu.Lock()
		code := domain.NewSessionCode(h.rnd)
		h.rndMu.Unlock()

		_, err := h.store.Get(ctx, code)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free session code after %d attempts", maxCodeAttempts)
}

// Start moves the lobby to the first question.
func (h *HostController) Start(ctx context.Context, code string) (domain.Session, error) {
	session, err := h.command(ctx, code, "start", func(s domain.Session) (domain.Patch, error) {
		if s.IsComplete {
			return nil, domain.ErrSessionComplete
		}
		if phase := domain.PhaseOf(s); phase != domain.PhaseLobby || s.CurrentQuestionIndex != 0 {
			return nil, fmt.Errorf("%w: cannot start from %s", domain.ErrInvalidTransition, phase)
		}
		if len(s.Participants) == 0 {
			return nil, domain.ErrNoParticipants
		}
		return domain.Patch{
			"currentQuestionIndex": 0,
			"isActive":             true,
			"showResults":          false,
		}, nil
	})
	if err != nil {
		return session, err
	}
	h.publish(ctx, EventSessionStart, session)
	h.publish(ctx, EventQuestionStart, session)
	return session, nil
}

// ToggleResults flips between answering and showing results for the current
// question. Before results are shown, every participant who has not answered
// is recorded with a wrong answer worth zero points.
func (h *HostController) ToggleResults(ctx context.Context, code string) (domain.Session, error) {
	revealed := false
	session, err := h.command(ctx, code, "toggle results", func(s domain.Session) (domain.Patch, error) {
		revealed = false
		switch phase := domain.PhaseOf(s); phase {
		case domain.PhaseQuestionLive:
			revealed = true
			return revealPatch(s), nil
		case domain.PhaseShowingResults:
			return domain.Patch{"showResults": false, "isActive": true}, nil
		case domain.PhaseFinished:
			return nil, domain.ErrSessionComplete
		default:
			return nil, fmt.Errorf("%w: cannot toggle results from %s", domain.ErrInvalidTransition, phase)
		}
	})
	if err != nil {
		return session, err
	}
	if revealed {
		h.publish(ctx, EventQuestionResults, session)
	}
	return session, nil
}

// RevealResults shows results for question index if it is still live. It is a
// no-op otherwise, which makes it safe for timers that may fire late.
func (h *HostController) RevealResults(ctx context.Context, code string, index int) (domain.Session, bool, error) {
	revealed := false
	session, err := h.command(ctx, code, "reveal results", func(s domain.Session) (domain.Patch, error) {
		revealed = false
		if domain.PhaseOf(s) != domain.PhaseQuestionLive || s.CurrentQuestionIndex != index {
			return nil, nil
		}
		revealed = true
		return revealPatch(s), nil
	})
	if err != nil {
		return session, false, err
	}
	if revealed {
		h.publish(ctx, EventQuestionResults, session)
	}
	return session, revealed, nil
}

// Advance moves to the next question. Advancing from the last question leaves
// the index one past the end with answering closed; isComplete is not set.
func (h *HostController) Advance(ctx context.Context, code string) (domain.Session, error) {
	session, err := h.command(ctx, code, "advance", func(s domain.Session) (domain.Patch, error) {
		switch phase := domain.PhaseOf(s); phase {
		case domain.PhaseFinished:
			return nil, domain.ErrSessionComplete
		case domain.PhaseQuestionsDone:
			return nil, domain.ErrNoMoreQuestions
		case domain.PhaseLobby:
			return nil, fmt.Errorf("%w: cannot advance from %s", domain.ErrInvalidTransition, phase)
		}
		next := s.CurrentQuestionIndex + 1
		return domain.Patch{
			"currentQuestionIndex": next,
			"isActive":             next < len(s.Questions),
			"showResults":          false,
		}, nil
	})
	if err != nil {
		return session, err
	}
	if _, ok := session.CurrentQuestion(); ok {
		h.publish(ctx, EventQuestionStart, session)
	}
	return session, nil
}

// ShowFinalResults closes answering and returns the leaderboard. It is valid
// once the last question was reached. isComplete stays false so participant
// devices do not react before the host is ready; see Finish.
func (h *HostController) ShowFinalResults(ctx context.Context, code string) (domain.Leaderboard, domain.Session, error) {
	session, err := h.command(ctx, code, "show final results", func(s domain.Session) (domain.Patch, error) {
		phase := domain.PhaseOf(s)
		switch phase {
		case domain.PhaseFinished, domain.PhaseQuestionsDone:
			return nil, nil
		case domain.PhaseLobby:
			return nil, fmt.Errorf("%w: cannot show final results from %s", domain.ErrInvalidTransition, phase)
		}
		if s.CurrentQuestionIndex < len(s.Questions)-1 {
			return nil, fmt.Errorf("%w: question %d of %d is not the last",
				domain.ErrInvalidTransition, s.CurrentQuestionIndex+1, len(s.Questions))
		}
		if phase == domain.PhaseQuestionLive {
			return revealPatch(s), nil
		}
		return nil, nil
	})
	if err != nil {
		return domain.Leaderboard{}, session, err
	}
	h.publish(ctx, EventSessionResults, session)
	return domain.BuildLeaderboard(session, h.now()), session, nil
}

// Finish marks the session complete. No transition is accepted afterwards.
func (h *HostController) Finish(ctx context.Context, code string) (domain.Session, error) {
	session, err := h.command(ctx, code, "finish", func(s domain.Session) (domain.Patch, error) {
		if s.IsComplete {
			return nil, domain.ErrSessionComplete
		}
		return domain.Patch{"isComplete": true, "isActive": false}, nil
	})
	if err != nil {
		return session, err
	}
	h.publish(ctx, EventSessionEnd, session)
	return session, nil
}

// Leaderboard computes the current standings.
func (h *HostController) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	session, err := h.store.Get(ctx, code)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.BuildLeaderboard(session, h.now()), nil
}

func (h *HostController) command(ctx context.Context, code, action string, fn MutateFunc) (domain.Session, error) {
	session, err := h.store.Mutate(ctx, code, fn)
	if err == nil {
		h.logger.Info("host command applied", "session", code, "action", action,
			"phase", domain.PhaseOf(session), "question", session.CurrentQuestionIndex)
		return session, nil
	}
	h.logger.Warn("host command failed", "session", code, "action", action, "error", err)
	fresh, getErr := h.store.Get(ctx, code)
	if getErr != nil {
		return domain.Session{}, err
	}
	return fresh, err
}

func (h *HostController) publish(ctx context.Context, typ EventType, s domain.Session) {
	event := Event{
		Type:          typ,
		SessionCode:   s.SessionCode,
		QuestionIndex: s.CurrentQuestionIndex,
		Participants:  len(s.Participants),
		At:            h.now(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Warn("publish event failed", "session", s.SessionCode, "event", typ, "error", err)
	}
}

func revealPatch(s domain.Session) domain.Patch {
	patch := domain.Patch{}
	if q, ok := s.CurrentQuestion(); ok {
		patch = autoAnswerPatch(s, q)
	}
	patch["isActive"] = false
	patch["showResults"] = true
	return patch
}
