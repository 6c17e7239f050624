package app

import (
	"fmt"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// Role identifies the kind of client a pushed document is reconciled for.
type Role string

const (
	RoleHost        Role = "host"
	RoleDisplay     Role = "display"
	RoleParticipant Role = "participant"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHost, RoleDisplay, RoleParticipant:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Decision is the outcome of reconciling one pushed document.
type Decision struct {
	// Apply is false when the push is a redelivery or would regress the view.
	Apply bool
	// Important is true when navigation state changed and the client should re-render.
	Important bool
	// ResetSelection is true when the live question changed.
	ResetSelection bool
	View           domain.Session
}

// Reconciler holds the last accepted state of one client and decides whether
// an incoming document should replace it. It is not safe for concurrent use.
type Reconciler struct {
	role   Role
	viewer string
	last *domain.Session // last accepted document as received
	view domain.Session  // what the client is showing
}

func NewReconciler(role Role) *Reconciler {
	return &Reconciler{role: role}
}

// WithViewer sets the participant whose own answers stay visible in redacted views.
func (r *Reconciler) WithViewer(participantID string) *Reconciler {
	r.viewer = participantID
	return r
}

// Reconcile applies the acceptance rules for the client's role.
func (r *Reconciler) Reconcile(incoming domain.Session) Decision {
	if r.last != nil {
		if incoming.Version <= r.last.Version {
			return Decision{}
		}
		if incoming.CurrentQuestionIndex < r.last.CurrentQuestionIndex {
			return Decision{}
		}
	}

	var d Decision
	if r.role == RoleParticipant {
		d = r.participant(incoming)
	} else {
		d = r.presenter(incoming)
	}
	received := incoming.Clone()
	r.last = &received
	r.view = d.View
	d.Apply = true
	return d
}

func (r *Reconciler) participant(incoming domain.Session) Decision {
	view := incoming.Clone()
	if r.last == nil {
		return Decision{Important: true, ResetSelection: true, View: domain.RedactForParticipant(view, r.viewer)}
	}
	// A pause for results is not the end of the quiz.
	if r.view.IsActive && !incoming.IsActive && !incoming.IsComplete {
		view.IsActive = true
	}
	indexChanged := incoming.CurrentQuestionIndex != r.last.CurrentQuestionIndex
	important := indexChanged ||
		incoming.IsActive != r.last.IsActive ||
		incoming.ShowResults != r.last.ShowResults ||
		incoming.IsComplete != r.last.IsComplete
	return Decision{
		Important:      important,
		ResetSelection: indexChanged,
		View:           domain.RedactForParticipant(view, r.viewer),
	}
}

func (r *Reconciler) presenter(incoming domain.Session) Decision {
	if r.last == nil || presenterImportant(*r.last, incoming) {
		return Decision{
			Important:      true,
			ResetSelection: r.last == nil || incoming.CurrentQuestionIndex != r.last.CurrentQuestionIndex,
			View:           incoming.Clone(),
		}
	}
	// Only responses changed: keep navigation state, merge the roster and tallies.
	view := r.view.Clone()
	fresh := incoming.Clone()
	view.Participants = fresh.Participants
	view.Responses = fresh.Responses
	view.Version = fresh.Version
	return Decision{View: view}
}

func presenterImportant(prev, next domain.Session) bool {
	return prev.CurrentQuestionIndex != next.CurrentQuestionIndex ||
		prev.IsActive != next.IsActive ||
		prev.ShowResults != next.ShowResults ||
		prev.IsComplete != next.IsComplete ||
		len(prev.Participants) != len(next.Participants)
}
