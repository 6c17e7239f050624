package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// AnswerEngine validates and scores answer submissions.
type AnswerEngine struct {
	store    SessionStore
	registry *Registry
	logger   *slog.Logger
}

func NewAnswerEngine(store SessionStore, registry *Registry, logger *slog.Logger) *AnswerEngine {
	return &AnswerEngine{store: store, registry: registry, logger: logger}
}

// Submit records one participant's answer to the live question. Resubmitting
// replaces the previous answer for that question (last answer wins).
func (e *AnswerEngine) Submit(ctx context.Context, code string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	result, _, _, err := e.submit(ctx, code, sub)
	return result, err
}

// submit also returns the written document and whether this was the
// participant's first answer to the question.
func (e *AnswerEngine) submit(ctx context.Context, code string, sub domain.AnswerSubmission) (domain.AnswerResult, domain.Session, bool, error) {
	log := e.logger.With("session", code, "participant", sub.ParticipantID, "question", sub.QuestionID, "option", sub.OptionID)

	current, err := e.store.Get(ctx, code)
	if err != nil {
		log.Warn("submit: load session", "error", err)
		return domain.AnswerResult{}, domain.Session{}, false, err
	}
	if _, ok := current.Participants[sub.ParticipantID]; !ok {
		if _, err := e.registry.AutoJoin(ctx, code, sub.ParticipantID); err != nil {
			log.Warn("submit: auto-join failed", "error", err)
			return domain.AnswerResult{}, domain.Session{}, false, fmt.Errorf("%w: auto-join: %v", domain.ErrParticipantNotFound, err)
		}
		log.Info("submit: auto-joined unknown participant")
	}

	var result domain.AnswerResult
	first := false
	session, err := e.store.Mutate(ctx, code, func(s domain.Session) (domain.Patch, error) {
		question, option, err := resolveSubmission(s, sub)
		if err != nil {
			return nil, err
		}
		participant, ok := s.Participants[sub.ParticipantID]
		if !ok {
			return nil, domain.ErrParticipantNotFound
		}
		_, answered := participant.Responses[question.ID]
		first = !answered
		awarded := question.Award(option)
		result = domain.AnswerResult{
			QuestionID: question.ID,
			OptionID:   option.ID,
			Correct:    option.IsCorrect,
			Awarded:    awarded,
		}
		return answerPatch(sub.ParticipantID, participant, question.ID, option.ID, awarded), nil
	})
	if err != nil {
		if isResolutionError(err) {
			log.Info("submit rejected", "error", err)
		} else {
			log.Warn("submit: write failed", "error", err)
		}
		return domain.AnswerResult{}, domain.Session{}, false, err
	}

	result.TotalScore = session.Participants[sub.ParticipantID].TotalScore
	log.Debug("answer recorded", "correct", result.Correct, "awarded", result.Awarded, "total", result.TotalScore)
	return result, session, first, nil
}

func isResolutionError(err error) bool {
	return errors.Is(err, domain.ErrQuestionNotFound) ||
		errors.Is(err, domain.ErrOptionNotFound) ||
		errors.Is(err, domain.ErrQuestionClosed) ||
		errors.Is(err, domain.ErrSessionComplete)
}

// resolveSubmission maps the submitted ids onto the live question and one of its options.
func resolveSubmission(s domain.Session, sub domain.AnswerSubmission) (domain.Question, domain.Option, error) {
	if s.IsComplete {
		return domain.Question{}, domain.Option{}, domain.ErrSessionComplete
	}
	if !s.IsActive {
		return domain.Question{}, domain.Option{}, fmt.Errorf("%w: answering is not open", domain.ErrQuestionClosed)
	}
	question, index, err := resolveQuestion(s, sub.QuestionID)
	if err != nil {
		return domain.Question{}, domain.Option{}, err
	}
	if index != s.CurrentQuestionIndex {
		return domain.Question{}, domain.Option{}, fmt.Errorf("%w: %s is question %d, live question is %d",
			domain.ErrQuestionClosed, question.ID, index, s.CurrentQuestionIndex)
	}
	option, err := resolveOption(question, sub.OptionID)
	if err != nil {
		return domain.Question{}, domain.Option{}, err
	}
	return question, option, nil
}

// resolveQuestion tries the exact id, then a match on the prompt text (ids
// regenerated since the client loaded), then the live question (stale client
// ids). A prompt naming an earlier question resolves to that question, so the
// caller rejects it as closed instead of scoring it against the live one.
func resolveQuestion(s domain.Session, questionID string) (domain.Question, int, error) {
	if i := s.QuestionIndex(questionID); i >= 0 {
		return s.Questions[i], i, nil
	}
	if i := matchPrompt(s.Questions, questionID); i >= 0 {
		return s.Questions[i], i, nil
	}
	if q, ok := s.CurrentQuestion(); ok {
		return q, s.CurrentQuestionIndex, nil
	}
	return domain.Question{}, -1, fmt.Errorf("%w: %q", domain.ErrQuestionNotFound, questionID)
}

// minFuzzyWords keeps short stale ids from matching inside a prompt.
const minFuzzyWords = 3

// matchPrompt finds the question whose prompt equals text, ignoring case and
// spacing, or failing that contains it (or is contained in it).
func matchPrompt(questions []domain.Question, text string) int {
	needle := foldText(text)
	if needle == "" {
		return -1
	}
	for i, q := range questions {
		if foldText(q.Question) == needle {
			return i
		}
	}
	if len(strings.Fields(needle)) < minFuzzyWords {
		return -1
	}
	for i, q := range questions {
		prompt := foldText(q.Question)
		if prompt != "" && (strings.Contains(prompt, needle) || strings.Contains(needle, prompt)) {
			return i
		}
	}
	return -1
}

// resolveOption tries the exact id, then the option text, then a zero-based index.
func resolveOption(q domain.Question, optionID string) (domain.Option, error) {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt, nil
		}
	}
	needle := foldText(optionID)
	if needle != "" {
		for _, opt := range q.Options {
			if foldText(opt.Text) == needle {
				return opt, nil
			}
		}
	}
	if i, err := strconv.Atoi(strings.TrimSpace(optionID)); err == nil && i >= 0 && i < len(q.Options) {
		return q.Options[i], nil
	}
	return domain.Option{}, fmt.Errorf("%w: %q in question %s", domain.ErrOptionNotFound, optionID, q.ID)
}

func foldText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// answerPatch writes the answer and score and the recomputed total.
func answerPatch(participantID string, p domain.Participant, questionID, optionID string, points int) domain.Patch {
	scores := make(map[string]int, len(p.Scores)+1)
	for k, v := range p.Scores {
		scores[k] = v
	}
	scores[questionID] = points
	return domain.Patch{
		domain.Path("participants", participantID, "responses", questionID): optionID,
		domain.Path("participants", participantID, "scores", questionID):    points,
		domain.Path("participants", participantID, "totalScore"):            domain.SumScores(scores),
	}
}

// autoAnswerPatch answers q with a wrong option for every participant who has
// not responded yet, so each participant has a response once results show.
func autoAnswerPatch(s domain.Session, q domain.Question) domain.Patch {
	wrong, ok := q.WrongOption()
	if !ok {
		return domain.Patch{}
	}
	patch := domain.Patch{}
	for _, id := range s.Unanswered(q.ID) {
		for path, v := range answerPatch(id, s.Participants[id], q.ID, wrong.ID, 0) {
			patch[path] = v
		}
	}
	return patch
}
