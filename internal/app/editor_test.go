package app_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	questions []domain.Question
	err       error
	existing  int
}

func (g *fakeGenerator) GenerateQuestions(_ context.Context, _ string, existing []domain.Question) ([]domain.Question, error) {
	g.existing = len(existing)
	return g.questions, g.err
}

type fakeUploader struct {
	filename string
	body     string
}

func (u *fakeUploader) Upload(_ context.Context, filename, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.filename, u.body = filename, string(data)
	return "https://cdn.example.com/" + filename, nil
}

type editorEnv struct {
	editor *app.QuizEditor
	store  *memory.QuizStore
}

func newEditor(t *testing.T, generator app.QuestionGenerator, uploader app.MediaUploader) editorEnv {
	t.Helper()
	store := memory.NewQuizStore(map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()})
	cache := memory.NewQuizRepository(store, time.Hour)
	return editorEnv{
		editor: app.NewQuizEditor(store, cache, generator, uploader, discardLogger()),
		store:  store,
	}
}

func newQuestion(prompt string) domain.Question {
	return domain.Question{
		Question: prompt,
		Options: []domain.Option{
			{Text: "left"},
			{Text: "right", IsCorrect: true},
		},
	}
}

func ids(quiz domain.Quiz) []string {
	out := make([]string, len(quiz.Questions))
	for i, q := range quiz.Questions {
		out[i] = q.ID
	}
	return out
}

func TestEditorEditsInvalidateCache(t *testing.T) {
	env := newEditor(t, nil, nil)
	ctx := context.Background()

	before, err := env.editor.Load(ctx, "quiz-1")
	require.NoError(t, err)
	require.Len(t, before.Questions, 2)

	quiz, err := env.editor.AddQuestion(ctx, "quiz-1", newQuestion("Coffee or tea?"))
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)
	added := quiz.Questions[2]
	require.NotEmpty(t, added.ID)
	for _, o := range added.Options {
		require.NotEmpty(t, o.ID)
	}

	after, err := env.editor.Load(ctx, "quiz-1")
	require.NoError(t, err)
	require.Len(t, after.Questions, 3)

	quiz, err = env.editor.MoveQuestion(ctx, "quiz-1", added.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []string{added.ID, "q1", "q2"}, ids(quiz))

	quiz, err = env.editor.MoveQuestion(ctx, "quiz-1", added.ID, 99)
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q2", added.ID}, ids(quiz))

	edited := quiz.Questions[0]
	edited.Question = "Really?"
	quiz, err = env.editor.UpdateQuestion(ctx, "quiz-1", edited)
	require.NoError(t, err)
	require.Equal(t, "Really?", quiz.Questions[0].Question)

	quiz, err = env.editor.RemoveQuestion(ctx, "quiz-1", "q2")
	require.NoError(t, err)
	require.Equal(t, []string{"q1", added.ID}, ids(quiz))

	stored, err := env.store.LoadQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	require.Equal(t, ids(quiz), ids(stored))
}

func TestEditorRejectsInvalidEdits(t *testing.T) {
	env := newEditor(t, nil, nil)
	ctx := context.Background()

	bad := newQuestion("No answer")
	bad.Options[1].IsCorrect = false
	_, err := env.editor.AddQuestion(ctx, "quiz-1", bad)
	require.ErrorIs(t, err, domain.ErrInvalidQuestion)

	_, err = env.editor.RemoveQuestion(ctx, "quiz-1", "missing")
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)

	stored, err := env.store.LoadQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	require.Len(t, stored.Questions, 2)
}

func TestEditorGenerateKeepsValidCandidates(t *testing.T) {
	broken := newQuestion("Three options")
	broken.Options = append(broken.Options, domain.Option{Text: "middle"})
	withID := newQuestion("Pick a side")
	withID.ID = "q1"
	withID.Media = &domain.Media{Type: domain.MediaImage, URL: "data:image/png;base64,AAAA"}

	gen := &fakeGenerator{questions: []domain.Question{broken, withID}}
	env := newEditor(t, gen, nil)

	quiz, added, err := env.editor.Generate(context.Background(), "quiz-1", "office trivia")
	require.NoError(t, err)
	require.Equal(t, 2, gen.existing)
	require.Len(t, added, 1)
	require.NotEqual(t, "q1", added[0].ID)
	require.Nil(t, added[0].Media)
	require.Len(t, quiz.Questions, 3)
}

func TestEditorGenerateFailures(t *testing.T) {
	ctx := context.Background()

	_, _, err := newEditor(t, nil, nil).editor.Generate(ctx, "quiz-1", "anything")
	require.ErrorIs(t, err, app.ErrGeneratorUnavailable)

	gen := &fakeGenerator{err: errors.New("upstream down")}
	env := newEditor(t, gen, nil)
	_, _, err = env.editor.Generate(ctx, "quiz-1", " ")
	require.ErrorIs(t, err, domain.ErrInvalidQuestion)
	_, _, err = env.editor.Generate(ctx, "quiz-1", "anything")
	require.EqualError(t, err, "upstream down")
}

func TestEditorAttachMedia(t *testing.T) {
	uploader := &fakeUploader{}
	env := newEditor(t, nil, uploader)
	ctx := context.Background()

	quiz, err := env.editor.AttachMedia(ctx, "quiz-1", "q2", "../../cat.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "cat.png", uploader.filename)
	require.Equal(t, "png-bytes", uploader.body)
	require.Equal(t, &domain.Media{Type: domain.MediaImage, URL: "https://cdn.example.com/cat.png"}, quiz.Questions[1].Media)

	_, err = env.editor.AttachMedia(ctx, "quiz-1", "q2", "notes.txt", "text/plain", strings.NewReader("x"))
	require.ErrorIs(t, err, domain.ErrInvalidQuestion)

	_, err = env.editor.AttachMedia(ctx, "quiz-1", "missing", "cat.png", "image/png", strings.NewReader("x"))
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)

	_, err = newEditor(t, nil, nil).editor.AttachMedia(ctx, "quiz-1", "q2", "cat.png", "image/png", strings.NewReader("x"))
	require.ErrorIs(t, err, app.ErrUploaderUnavailable)
}
