package memory

import (
	"context"
	"sync"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

const subscriberBuffer = 8

// SessionStore is an in-memory implementation of app.SessionStore. Writes are
// serialized by one mutex and fanned out to in-process subscribers.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]domain.Session
	subscribers map[string]map[chan domain.Snapshot]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]domain.Session),
		subscribers: make(map[string]map[chan domain.Snapshot]struct{}),
	}
}

var _ app.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := session.Clone()
	doc.CurrentQuestionIndex = 0
	doc.IsActive = false
	doc.ShowResults = false
	doc.IsComplete = false
	doc.Participants = make(map[string]domain.Participant)
	doc.Normalize()
	doc.Version = s.sessions[doc.SessionCode].Version + 1

	s.sessions[doc.SessionCode] = doc
	s.broadcastLocked(doc.SessionCode)
	return nil
}

func (s *SessionStore) Get(_ context.Context, code string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return doc.Clone(), nil
}

func (s *SessionStore) Update(ctx context.Context, code string, patch domain.Patch) (domain.Session, error) {
	return s.Mutate(ctx, code, func(domain.Session) (domain.Patch, error) {
		return patch, nil
	})
}

func (s *SessionStore) Mutate(_ context.Context, code string, fn app.MutateFunc) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	patch, err := fn(doc.Clone())
	if err != nil {
		return domain.Session{}, err
	}
	if len(patch) == 0 {
		return doc.Clone(), nil
	}
	next, err := domain.ApplyPatch(doc, patch)
	if err != nil {
		return domain.Session{}, err
	}
	next.Version = doc.Version + 1
	s.sessions[code] = next
	s.broadcastLocked(code)
	return next.Clone(), nil
}

func (s *SessionStore) Subscribe(ctx context.Context, code string) (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, subscriberBuffer)

	s.mu.Lock()
	if s.subscribers[code] == nil {
		s.subscribers[code] = make(map[chan domain.Snapshot]struct{})
	}
	s.subscribers[code][ch] = struct{}{}
	ch <- s.snapshotLocked(code)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if subs, ok := s.subscribers[code]; ok {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(s.subscribers, code)
				}
			}
			s.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}
}

func (s *SessionStore) snapshotLocked(code string) domain.Snapshot {
	doc, ok := s.sessions[code]
	if !ok {
		return domain.Snapshot{}
	}
	c := doc.Clone()
	return domain.Snapshot{Session: &c}
}

func (s *SessionStore) broadcastLocked(code string) {
	for ch := range s.subscribers[code] {
		snap := s.snapshotLocked(code)
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop the stale snapshot, the newest one supersedes it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
