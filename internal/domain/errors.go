package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session code does not resolve to a document.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant is unknown and could not be auto-joined.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question could not be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option could not be resolved.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuestionClosed is returned for answers to a question that is not the live one.
	ErrQuestionClosed = errors.New("question is no longer accepting answers")
	// ErrSessionComplete is returned for any write after the session finished.
	ErrSessionComplete = errors.New("quiz session is complete")
	// ErrInvalidTransition is returned when a host action does not apply to the current phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNoParticipants is returned when starting a session nobody joined.
	ErrNoParticipants = errors.New("no participants have joined")
	// ErrNoMoreQuestions is returned when advancing past the end of the quiz.
	ErrNoMoreQuestions = errors.New("no more questions")
	// ErrInvalidQuestion wraps question validation failures.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidPatch is returned for malformed dot-addressed updates.
	ErrInvalidPatch = errors.New("invalid session patch")
	// ErrInvalidID is returned for ids that cannot be used as document keys.
	ErrInvalidID = errors.New("invalid id")
)
