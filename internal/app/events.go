package app

import (
	"context"
	"time"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventSessionCreated  EventType = "session.created"
	EventSessionStart    EventType = "session.start"
	EventQuestionStart   EventType = "question.start"
	EventQuestionResults EventType = "question.results"
	EventSessionResults  EventType = "session.results"
	EventSessionEnd      EventType = "session.end"
)

// Event is published after a successful host transition.
type Event struct {
	Type          EventType `json:"type"`
	SessionCode   string    `json:"sessionCode"`
	QuestionIndex int       `json:"questionIndex"`
	Participants  int       `json:"participants"`
	At            time.Time `json:"at"`
}

// EventPublisher forwards lifecycle events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
