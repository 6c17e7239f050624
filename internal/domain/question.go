package domain

import (
	"fmt"
	"strings"
)

// DefaultTimeLimit is used for questions that do not set one.
const DefaultTimeLimit = 20

// ValidateQuestion enforces the question invariants: a prompt, 2 or 4 options,
// exactly one correct option, unique option ids and a known point type.
func ValidateQuestion(q Question) error {
	if err := ValidateID(q.ID); err != nil {
		return fmt.Errorf("%w: question id: %v", ErrInvalidQuestion, err)
	}
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: %s: empty prompt", ErrInvalidQuestion, q.ID)
	}
	if n := len(q.Options); n != 2 && n != 4 {
		return fmt.Errorf("%w: %s: expected 2 or 4 options, got %d", ErrInvalidQuestion, q.ID, n)
	}
	correct := 0
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if err := ValidateID(opt.ID); err != nil {
			return fmt.Errorf("%w: %s: option id: %v", ErrInvalidQuestion, q.ID, err)
		}
		if _, dup := seen[opt.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate option id %q", ErrInvalidQuestion, q.ID, opt.ID)
		}
		seen[opt.ID] = struct{}{}
		if opt.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("%w: %s: expected exactly one correct option, got %d", ErrInvalidQuestion, q.ID, correct)
	}
	if !q.PointType.Valid() {
		return fmt.Errorf("%w: %s: unknown point type %q", ErrInvalidQuestion, q.ID, q.PointType)
	}
	if q.TimeLimit < 0 {
		return fmt.Errorf("%w: %s: negative time limit", ErrInvalidQuestion, q.ID)
	}
	if q.Media != nil && q.Media.Type != MediaImage && q.Media.Type != MediaVideo {
		return fmt.Errorf("%w: %s: unknown media type %q", ErrInvalidQuestion, q.ID, q.Media.Type)
	}
	return nil
}

// NormalizeQuestion fills defaults: standard points and the default time limit.
func NormalizeQuestion(q Question) Question {
	if q.PointType == "" {
		q.PointType = PointStandard
	}
	if q.TimeLimit == 0 {
		q.TimeLimit = DefaultTimeLimit
	}
	return q
}

// ValidateID rejects ids that cannot be used as keys of the session document.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, ".") {
		return fmt.Errorf("%w: %q contains '.'", ErrInvalidID, id)
	}
	return nil
}

// CorrectOption returns the correct option of q.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// WrongOption returns some incorrect option of q, used when auto-answering.
func (q Question) WrongOption() (Option, bool) {
	for _, opt := range q.Options {
		if !opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// Award returns the points for choosing opt.
func (q Question) Award(opt Option) int {
	if !opt.IsCorrect {
		return 0
	}
	return q.PointType.Points()
}
