package app

import (
	"context"
	"io"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// MutateFunc computes a patch from the current document. It runs inside the
// store's atomic section; returning a nil patch leaves the document untouched.
type MutateFunc func(current domain.Session) (domain.Patch, error)

// SessionStore is the shared, versioned session document store (in-memory, Redis).
type SessionStore interface {
	// Create writes a new session, replacing any document with the same code.
	Create(ctx context.Context, session domain.Session) error
	// Get returns the current document or domain.ErrSessionNotFound.
	Get(ctx context.Context, code string) (domain.Session, error)
	// Update merges a dot-addressed patch into the document.
	Update(ctx context.Context, code string, patch domain.Patch) (domain.Session, error)
	// Mutate is a read-modify-write of the document, atomic per session.
	Mutate(ctx context.Context, code string, fn MutateFunc) (domain.Session, error)
	// Subscribe delivers the current document, then one snapshot per write.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context, code string) (<-chan domain.Snapshot, func())
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string) error
}

// QuizStore persists the authoring copy of a quiz inside its event segment.
type QuizStore interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuestionGenerator produces candidate questions from a natural-language prompt.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, prompt string, existing []domain.Question) ([]domain.Question, error)
}

// MediaUploader stores a binary file and returns a durable URL for it.
type MediaUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}
