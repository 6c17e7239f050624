package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SegmentStore reads and writes the quizData JSONB embedded in quiz segments.
// The surrounding event data is opaque here; only the quiz blob is touched.
type SegmentStore struct {
	pool *pgxpool.Pool
}

func NewSegmentStore(pool *pgxpool.Pool) *SegmentStore {
	return &SegmentStore{pool: pool}
}

func (s *SegmentStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT quiz_data FROM segments WHERE id=$1 AND type='quiz'`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	// Older segments stored quizData without its own id.
	quiz.ID = quizID
	return quiz, nil
}

func (s *SegmentStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO segments (id, type, title, quiz_data)
		VALUES ($1, 'quiz', $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, quiz_data = EXCLUDED.quiz_data, updated_at = now()`,
		quiz.ID, quiz.Title, string(data))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
