package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
)

// Autopilot shows results for a live question when its countdown runs out or
// when the last joined participant answers it. One watcher runs per session.
type Autopilot struct {
	store  SessionStore
	host   *HostController
	logger *slog.Logger
	after  func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	base     context.Context
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func NewAutopilot(ctx context.Context, store SessionStore, host *HostController, logger *slog.Logger) *Autopilot {
	return &Autopilot{
		store:    store,
		host:     host,
		logger:   logger,
		after:    time.After,
		base:     ctx,
		watchers: make(map[string]context.CancelFunc),
	}
}

// WithTimer replaces the countdown source; tests use it to fire timers by hand.
func (a *Autopilot) WithTimer(after func(time.Duration) <-chan time.Time) *Autopilot {
	a.after = after
	return a
}

// Watch starts the watcher for code unless one is already running.
func (a *Autopilot) Watch(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.watchers[code]; ok {
		return
	}
	ctx, cancel := context.WithCancel(a.base)
	a.watchers[code] = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(ctx, code)
		a.mu.Lock()
		delete(a.watchers, code)
		a.mu.Unlock()
		cancel()
	}()
}

// Stop cancels the watcher for code.
func (a *Autopilot) Stop(code string) {
	a.mu.Lock()
	cancel, ok := a.watchers[code]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// Wait blocks until every watcher has returned.
func (a *Autopilot) Wait() {
	a.wg.Wait()
}

func (a *Autopilot) run(ctx context.Context, code string) {
	updates, cancel := a.store.Subscribe(ctx, code)
	defer cancel()

	log := a.logger.With("session", code)
	log.Debug("autopilot watching")

	var countdown <-chan time.Time
	timedIndex := -1

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if snap.Session == nil {
				log.Info("autopilot: session gone")
				return
			}
			s := *snap.Session
			switch domain.PhaseOf(s) {
			case domain.PhaseFinished, domain.PhaseQuestionsDone:
				log.Debug("autopilot: no questions left")
				return
			case domain.PhaseShowingResults:
				// Reopening the question starts a fresh countdown.
				timedIndex = -1
				countdown = nil
				continue
			case domain.PhaseLobby:
				countdown = nil
				continue
			}
			q, _ := s.CurrentQuestion()
			if timedIndex != s.CurrentQuestionIndex {
				timedIndex = s.CurrentQuestionIndex
				countdown = a.after(time.Duration(q.TimeLimit) * time.Second)
			}
		case <-countdown:
			countdown = nil
			a.reveal(ctx, code, timedIndex, "time up")
		}
	}
}

// Answered reveals results when s, the document written by a participant's
// first answer to questionID, has every participant answered. Reopened
// questions are not revealed again since nobody answers them for the first time.
func (a *Autopilot) Answered(ctx context.Context, code string, s domain.Session, questionID string) {
	if domain.PhaseOf(s) != domain.PhaseQuestionLive {
		return
	}
	q, ok := s.CurrentQuestion()
	if !ok || q.ID != questionID || !s.AllAnswered(q.ID) {
		return
	}
	a.reveal(ctx, code, s.CurrentQuestionIndex, "all answered")
}

func (a *Autopilot) reveal(ctx context.Context, code string, index int, reason string) {
	_, revealed, err := a.host.RevealResults(ctx, code, index)
	if err != nil {
		a.logger.Warn("autopilot reveal failed", "session", code, "question", index, "error", err)
		return
	}
	if revealed {
		a.logger.Info("autopilot revealed results", "session", code, "question", index, "reason", reason)
	}
}
