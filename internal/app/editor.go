package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/google/uuid"
)

// ErrGeneratorUnavailable is returned when no AI generation endpoint is configured.
var ErrGeneratorUnavailable = errors.New("question generator not configured")

// ErrUploaderUnavailable is returned when no upload endpoint is configured.
var ErrUploaderUnavailable = errors.New("media uploader not configured")

// QuizEditor edits the authoring copy of a quiz. Live sessions hold their own
// snapshot of the questions and are never touched by edits.
type QuizEditor struct {
	store     QuizStore
	cache     QuizRepository
	generator QuestionGenerator
	uploader  MediaUploader
	logger    *slog.Logger
	newID     func() string

	mu sync.Mutex
}

func NewQuizEditor(store QuizStore, cache QuizRepository, generator QuestionGenerator, uploader MediaUploader, logger *slog.Logger) *QuizEditor {
	return &QuizEditor{
		store:     store,
		cache:     cache,
		generator: generator,
		uploader:  uploader,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Load returns the quiz through the cache.
func (e *QuizEditor) Load(ctx context.Context, quizID string) (domain.Quiz, error) {
	return e.cache.GetQuiz(ctx, quizID)
}

// Save validates and persists the whole quiz.
func (e *QuizEditor) Save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range quiz.Questions {
		quiz.Questions[i] = e.prepare(quiz.Questions[i])
	}
	return e.save(ctx, quiz)
}

// AddQuestion appends q, assigning ids where missing.
func (e *QuizEditor) AddQuestion(ctx context.Context, quizID string, q domain.Question) (domain.Quiz, error) {
	return e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		quiz.Questions = append(quiz.Questions, e.prepare(q))
		return nil
	})
}

// UpdateQuestion replaces the question with the same id.
func (e *QuizEditor) UpdateQuestion(ctx context.Context, quizID string, q domain.Question) (domain.Quiz, error) {
	return e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		i := indexOf(quiz.Questions, q.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, q.ID)
		}
		quiz.Questions[i] = e.prepare(q)
		return nil
	})
}

// RemoveQuestion deletes a question.
func (e *QuizEditor) RemoveQuestion(ctx context.Context, quizID, questionID string) (domain.Quiz, error) {
	return e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		i := indexOf(quiz.Questions, questionID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
		}
		quiz.Questions = append(quiz.Questions[:i], quiz.Questions[i+1:]...)
		return nil
	})
}

// MoveQuestion moves a question to position to, clamped to the list bounds.
func (e *QuizEditor) MoveQuestion(ctx context.Context, quizID, questionID string, to int) (domain.Quiz, error) {
	return e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		from := indexOf(quiz.Questions, questionID)
		if from < 0 {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
		}
		if to < 0 {
			to = 0
		}
		if to >= len(quiz.Questions) {
			to = len(quiz.Questions) - 1
		}
		q := quiz.Questions[from]
		rest := append(append([]domain.Question{}, quiz.Questions[:from]...), quiz.Questions[from+1:]...)
		quiz.Questions = append(rest[:to], append([]domain.Question{q}, rest[to:]...)...)
		return nil
	})
}

// Generate asks the generator for new questions and appends the valid ones.
// Generated output is untrusted: ids are reassigned and invalid candidates dropped.
func (e *QuizEditor) Generate(ctx context.Context, quizID, prompt string) (domain.Quiz, []domain.Question, error) {
	if e.generator == nil {
		return domain.Quiz{}, nil, ErrGeneratorUnavailable
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.Quiz{}, nil, fmt.Errorf("%w: empty prompt", domain.ErrInvalidQuestion)
	}
	current, err := e.Load(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	candidates, err := e.generator.GenerateQuestions(ctx, prompt, current.Questions)
	if err != nil {
		e.logger.Warn("question generation failed", "quiz", quizID, "error", err)
		return domain.Quiz{}, nil, err
	}

	var accepted []domain.Question
	for _, c := range candidates {
		c.ID = ""
		c.Media = nil
		for i := range c.Options {
			c.Options[i].ID = ""
		}
		c = e.prepare(c)
		if err := domain.ValidateQuestion(c); err != nil {
			e.logger.Info("dropping generated question", "quiz", quizID, "error", err)
			continue
		}
		accepted = append(accepted, c)
	}

	quiz, err := e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		quiz.Questions = append(quiz.Questions, accepted...)
		return nil
	})
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	e.logger.Info("generated questions", "quiz", quizID, "candidates", len(candidates), "accepted", len(accepted))
	return quiz, accepted, nil
}

// AttachMedia uploads a file and references its URL from the question, so the
// live document never embeds binary payloads.
func (e *QuizEditor) AttachMedia(ctx context.Context, quizID, questionID, filename, contentType string, body io.Reader) (domain.Quiz, error) {
	if e.uploader == nil {
		return domain.Quiz{}, ErrUploaderUnavailable
	}
	mediaType, err := mediaTypeOf(contentType)
	if err != nil {
		return domain.Quiz{}, err
	}
	current, err := e.Load(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if indexOf(current.Questions, questionID) < 0 {
		return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}

	url, err := e.uploader.Upload(ctx, path.Base(filename), contentType, body)
	if err != nil {
		e.logger.Warn("media upload failed", "quiz", quizID, "question", questionID, "error", err)
		return domain.Quiz{}, err
	}
	return e.edit(ctx, quizID, func(quiz *domain.Quiz) error {
		i := indexOf(quiz.Questions, questionID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
		}
		quiz.Questions[i].Media = &domain.Media{Type: mediaType, URL: url}
		return nil
	})
}

func (e *QuizEditor) edit(ctx context.Context, quizID string, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	quiz, err := e.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := fn(&quiz); err != nil {
		return domain.Quiz{}, err
	}
	return e.save(ctx, quiz)
}

func (e *QuizEditor) save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	for _, q := range quiz.Questions {
		if err := domain.ValidateQuestion(q); err != nil {
			return domain.Quiz{}, err
		}
	}
	if err := e.store.SaveQuiz(ctx, quiz); err != nil {
		e.logger.Error("save quiz failed", "quiz", quiz.ID, "error", err)
		return domain.Quiz{}, err
	}
	if err := e.cache.Invalidate(ctx, quiz.ID); err != nil {
		e.logger.Warn("quiz cache invalidation failed", "quiz", quiz.ID, "error", err)
	}
	return quiz, nil
}

// prepare assigns missing ids and fills defaults.
func (e *QuizEditor) prepare(q domain.Question) domain.Question {
	if q.ID == "" {
		q.ID = e.newID()
	}
	q.Options = append([]domain.Option(nil), q.Options...)
	for i := range q.Options {
		if q.Options[i].ID == "" {
			q.Options[i].ID = e.newID()
		}
	}
	return domain.NormalizeQuestion(q)
}

func indexOf(questions []domain.Question, id string) int {
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return -1
}

func mediaTypeOf(contentType string) (domain.MediaType, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return domain.MediaImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return domain.MediaVideo, nil
	}
	return "", fmt.Errorf("%w: unsupported media type %q", domain.ErrInvalidQuestion, contentType)
}
