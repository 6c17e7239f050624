package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// Registry manages participants joining a session.
type Registry struct {
	store  SessionStore
	now    func() time.Time
	logger *slog.Logger
}

func NewRegistry(store SessionStore, logger *slog.Logger) *Registry {
	return &Registry{store: store, now: time.Now, logger: logger}
}

// Join registers a participant. Rejoining with a known id keeps the
// participant's answers and scores and only refreshes the display name.
func (r *Registry) Join(ctx context.Context, code, participantID, username string) (domain.Session, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		name = PlaceholderName(participantID)
	}
	return r.join(ctx, code, participantID, name, true)
}

// AutoJoin registers an unknown participant under a placeholder name. It only
// inserts: a participant that joined in the meantime keeps its own name.
func (r *Registry) AutoJoin(ctx context.Context, code, participantID string) (domain.Session, error) {
	return r.join(ctx, code, participantID, PlaceholderName(participantID), false)
}

func (r *Registry) join(ctx context.Context, code, participantID, name string, rename bool) (domain.Session, error) {
	if err := domain.ValidateID(participantID); err != nil {
		return domain.Session{}, fmt.Errorf("participant id: %w", err)
	}
	session, err := r.store.Mutate(ctx, code, func(current domain.Session) (domain.Patch, error) {
		return joinPatch(current, participantID, name, rename, r.now()), nil
	})
	if err != nil {
		r.logger.Warn("join failed", "session", code, "participant", participantID, "error", err)
		return domain.Session{}, err
	}
	r.logger.Info("participant joined", "session", code, "participant", participantID, "participants", len(session.Participants))
	return session, nil
}

// PlaceholderName is the display name given to participants who join without one.
func PlaceholderName(participantID string) string {
	suffix := participantID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Guest-" + strings.ToUpper(suffix)
}

// joinPatch inserts a new participant. An existing one is renamed when
// rename is set and left untouched otherwise.
func joinPatch(current domain.Session, participantID, name string, rename bool, now time.Time) domain.Patch {
	if _, ok := current.Participants[participantID]; ok {
		if !rename {
			return nil
		}
		return domain.Patch{domain.Path("participants", participantID, "username"): name}
	}
	return domain.Patch{
		domain.Path("participants", participantID): domain.Participant{
			Username:  name,
			Responses: map[string]string{},
			Scores:    map[string]int{},
			JoinedAt:  now,
			JoinOrder: nextJoinOrder(current),
		},
	}
}

func nextJoinOrder(s domain.Session) int {
	max := 0
	for _, p := range s.Participants {
		if p.JoinOrder > max {
			max = p.JoinOrder
		}
	}
	return max + 1
}
