package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	maxTxRetries     = 16
	subscriberBuffer = 8
)

// SessionStore keeps each session as one JSON document in Redis.
//   - Document:  SET quiz:session:{code} <json>
//   - Updates:   PUBLISH quiz:session:{code}:updates <json> in the same MULTI
//
// Writes are optimistic transactions (WATCH/MULTI/EXEC) retried on conflict,
// so concurrent writers on different instances never lose each other's fields.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, logger: logger}
}

var _ app.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	key := s.key(session.SessionCode)
	doc := session.Clone()
	doc.CurrentQuestionIndex = 0
	doc.IsActive = false
	doc.ShowResults = false
	doc.IsComplete = false
	doc.Participants = make(map[string]domain.Participant)
	doc.Normalize()

	return s.retry(ctx, key, func(tx *redis.Tx) error {
		prev, err := s.read(ctx, tx, session.SessionCode)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			doc.Version = 1
		case err != nil:
			return err
		default:
			doc.Version = prev.Version + 1
		}
		return s.write(ctx, tx, doc)
	})
}

func (s *SessionStore) Get(ctx context.Context, code string) (domain.Session, error) {
	return s.read(ctx, s.client, code)
}

func (s *SessionStore) Update(ctx context.Context, code string, patch domain.Patch) (domain.Session, error) {
	return s.Mutate(ctx, code, func(domain.Session) (domain.Patch, error) {
		return patch, nil
	})
}

func (s *SessionStore) Mutate(ctx context.Context, code string, fn app.MutateFunc) (domain.Session, error) {
	var result domain.Session
	err := s.retry(ctx, s.key(code), func(tx *redis.Tx) error {
		doc, err := s.read(ctx, tx, code)
		if err != nil {
			return err
		}
		patch, err := fn(doc.Clone())
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			result = doc
			return nil
		}
		next, err := domain.ApplyPatch(doc, patch)
		if err != nil {
			return err
		}
		next.Version = doc.Version + 1
		if err := s.write(ctx, tx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return result, nil
}

// Subscribe listens on the session's update channel. The subscription is
// confirmed before the initial read so no write between the two is missed.
func (s *SessionStore) Subscribe(ctx context.Context, code string) (<-chan domain.Snapshot, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Snapshot, subscriberBuffer)

	pubsub := s.client.Subscribe(ctx, s.channel(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		s.logger.Warn("redis subscribe failed", "session", code, "error", err)
	}
	out <- s.snapshot(ctx, code)

	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var doc domain.Session
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					s.logger.Warn("decode session update", "session", code, "error", err)
					continue
				}
				doc.Normalize()
				offerLatest(out, domain.Snapshot{Session: &doc})
			}
		}
	}()
	return out, cancel
}

func (s *SessionStore) snapshot(ctx context.Context, code string) domain.Snapshot {
	doc, err := s.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("read session for subscriber", "session", code, "error", err)
		}
		return domain.Snapshot{}
	}
	return domain.Snapshot{Session: &doc}
}

func (s *SessionStore) read(ctx context.Context, c redis.Cmdable, code string) (domain.Session, error) {
	raw, err := c.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("read session %s: %w", code, err)
	}
	var doc domain.Session
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", code, err)
	}
	doc.Normalize()
	return doc, nil
}

func (s *SessionStore) write(ctx context.Context, tx *redis.Tx, doc domain.Session) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", doc.SessionCode, err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(doc.SessionCode), data, s.ttl)
		pipe.Publish(ctx, s.channel(doc.SessionCode), data)
		return nil
	})
	return err
}

func (s *SessionStore) retry(ctx context.Context, key string, txf func(*redis.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("session write conflict, retrying", "key", key, "attempt", attempt+1)
	}
	return fmt.Errorf("write %s: %w", key, redis.TxFailedErr)
}

func (s *SessionStore) key(code string) string {
	return "quiz:session:" + code
}

func (s *SessionStore) channel(code string) string {
	return "quiz:session:" + code + ":updates"
}

// offerLatest sends snap, dropping the oldest buffered snapshot when full.
// The caller must be the only sender on out.
func offerLatest(out chan domain.Snapshot, snap domain.Snapshot) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- snap
}
