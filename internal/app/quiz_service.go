package app

import (
	"context"
	"log/slog"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// QuizService contains the live quiz use cases used by the transports.
type QuizService struct {
	sessions  SessionStore
	quizzes   QuizRepository
	registry  *Registry
	answers   *AnswerEngine
	host      *HostController
	autopilot *Autopilot
	logger    *slog.Logger
}

// NewQuizService wires the live quiz components over one session store. The
// context bounds the lifetime of autopilot watchers.
func NewQuizService(ctx context.Context, store SessionStore, quizzes QuizRepository, events EventPublisher, logger *slog.Logger) *QuizService {
	registry := NewRegistry(store, logger)
	host := NewHostController(store, events, logger)
	return &QuizService{
		sessions:  store,
		quizzes:   quizzes,
		registry:  registry,
		answers:   NewAnswerEngine(store, registry, logger),
		host:      host,
		autopilot: NewAutopilot(ctx, store, host, logger),
		logger:    logger,
	}
}

// Host exposes the host controller so callers can tune session defaults.
func (s *QuizService) Host() *HostController {
	return s.host
}

// Autopilot exposes the auto-advance watcher, mainly for tests.
func (s *QuizService) Autopilot() *Autopilot {
	return s.autopilot
}

// Present creates a live session from the stored quiz.
func (s *QuizService) Present(ctx context.Context, quizID string) (domain.Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	return s.host.CreateSession(ctx, quiz)
}

// Session returns the current document.
func (s *QuizService) Session(ctx context.Context, code string) (domain.Session, error) {
	return s.sessions.Get(ctx, code)
}

// Join registers or refreshes a participant in a quiz session.
func (s *QuizService) Join(ctx context.Context, code, participantID, username string) (domain.Session, error) {
	return s.registry.Join(ctx, code, participantID, username)
}

// SubmitAnswer records an answer for a participant. The first answer that
// completes the live question shows its results.
func (s *QuizService) SubmitAnswer(ctx context.Context, code string, submission domain.AnswerSubmission) (domain.AnswerResult, error) {
	result, session, first, err := s.answers.submit(ctx, code, submission)
	if err != nil {
		return result, err
	}
	if first {
		s.autopilot.Answered(ctx, code, session, result.QuestionID)
	}
	return result, nil
}

// Subscribe returns a channel of session snapshots for code.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, code string) (<-chan domain.Snapshot, func(), error) {
	if _, err := s.sessions.Get(ctx, code); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.sessions.Subscribe(ctx, code)
	return ch, cancel, nil
}

// Start begins the first question and starts the countdown watcher.
func (s *QuizService) Start(ctx context.Context, code string) (domain.Session, error) {
	session, err := s.host.Start(ctx, code)
	if err != nil {
		return session, err
	}
	s.autopilot.Watch(code)
	return session, nil
}

func (s *QuizService) ToggleResults(ctx context.Context, code string) (domain.Session, error) {
	return s.host.ToggleResults(ctx, code)
}

func (s *QuizService) Advance(ctx context.Context, code string) (domain.Session, error) {
	session, err := s.host.Advance(ctx, code)
	if err == nil && domain.PhaseOf(session) == domain.PhaseQuestionLive {
		// Restarts the watcher after a process restart lost it.
		s.autopilot.Watch(code)
	}
	return session, err
}

func (s *QuizService) ShowFinalResults(ctx context.Context, code string) (domain.Leaderboard, domain.Session, error) {
	return s.host.ShowFinalResults(ctx, code)
}

// Finish completes the session and stops its watcher.
func (s *QuizService) Finish(ctx context.Context, code string) (domain.Session, error) {
	session, err := s.host.Finish(ctx, code)
	if err == nil {
		s.autopilot.Stop(code)
	}
	return session, err
}

func (s *QuizService) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	return s.host.Leaderboard(ctx, code)
}
