package app_test

import (
	"testing"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/stretchr/testify/require"
)

// pushes builds successive documents the way the store versions them.
type pushes struct {
	doc domain.Session
}

func newPushes() *pushes {
	s := domain.NewSession("ABC123", "Office party", twoQuestionQuiz().Questions, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	s.Version = 1
	return &pushes{doc: s}
}

func (p *pushes) next(change func(*domain.Session)) domain.Session {
	next := p.doc.Clone()
	change(&next)
	next.Version = p.doc.Version + 1
	next.Normalize()
	p.doc = next
	return next.Clone()
}

func join(id string, order int) func(*domain.Session) {
	return func(s *domain.Session) {
		s.Participants[id] = domain.Participant{Username: id, JoinOrder: order}
	}
}

func answer(id, question, option string) func(*domain.Session) {
	return func(s *domain.Session) {
		p := s.Participants[id]
		p.Responses = map[string]string{question: option}
		s.Participants[id] = p
	}
}

func TestParseRole(t *testing.T) {
	role, err := app.ParseRole("display")
	require.NoError(t, err)
	require.Equal(t, app.RoleDisplay, role)
	_, err = app.ParseRole("admin")
	require.Error(t, err)
}

func TestReconcileDropsRedeliveryAndRegression(t *testing.T) {
	p := newPushes()
	r := app.NewReconciler(app.RoleHost)

	live := p.next(func(s *domain.Session) { s.CurrentQuestionIndex = 1; s.IsActive = true })
	require.True(t, r.Reconcile(live).Apply)
	require.False(t, r.Reconcile(live).Apply, "redelivery")

	stale := live.Clone()
	stale.Version = live.Version + 1
	stale.CurrentQuestionIndex = 0
	require.False(t, r.Reconcile(stale).Apply, "regression")

	older := live.Clone()
	older.Version = live.Version - 1
	require.False(t, r.Reconcile(older).Apply, "out of order")
}

func TestParticipantKeepsActiveDuringResults(t *testing.T) {
	p := newPushes()
	r := app.NewReconciler(app.RoleParticipant)
	r.Reconcile(p.next(join("alice", 1)))

	d := r.Reconcile(p.next(func(s *domain.Session) { s.IsActive = true }))
	require.True(t, d.Apply)
	require.True(t, d.Important)
	require.True(t, d.View.IsActive)

	d = r.Reconcile(p.next(func(s *domain.Session) { s.IsActive = false; s.ShowResults = true }))
	require.True(t, d.Apply)
	require.True(t, d.Important)
	require.True(t, d.View.IsActive, "results pause must not look like the end")
	require.True(t, d.View.ShowResults)

	d = r.Reconcile(p.next(func(s *domain.Session) { s.IsComplete = true }))
	require.False(t, d.View.IsActive)
	require.True(t, d.View.IsComplete)
}

func TestParticipantSelectionResetsOnlyOnNewQuestion(t *testing.T) {
	p := newPushes()
	r := app.NewReconciler(app.RoleParticipant)
	r.Reconcile(p.next(func(s *domain.Session) { s.IsActive = true; join("alice", 1)(s) }))

	d := r.Reconcile(p.next(join("bob", 2)))
	require.True(t, d.Apply)
	require.False(t, d.Important)
	require.False(t, d.ResetSelection)
	require.Len(t, d.View.Participants, 2)

	d = r.Reconcile(p.next(func(s *domain.Session) { s.CurrentQuestionIndex = 1 }))
	require.True(t, d.ResetSelection)
}

func TestParticipantViewHidesAnswerUntilResults(t *testing.T) {
	p := newPushes()
	r := app.NewReconciler(app.RoleParticipant).WithViewer("bob")

	d := r.Reconcile(p.next(func(s *domain.Session) {
		s.IsActive = true
		join("alice", 1)(s)
		join("bob", 2)(s)
	}))
	for _, o := range d.View.Questions[0].Options {
		require.False(t, o.IsCorrect)
	}

	d = r.Reconcile(p.next(func(s *domain.Session) {
		answer("alice", "q1", "no")(s)
		alice := s.Participants["alice"]
		alice.Scores = map[string]int{"q1": 100}
		s.Participants["alice"] = alice
		answer("bob", "q1", "yes")(s)
	}))
	require.True(t, d.Apply)
	alice := d.View.Participants["alice"]
	require.Empty(t, alice.Responses)
	require.Empty(t, alice.Scores)
	require.Zero(t, alice.TotalScore)
	require.Equal(t, map[string][]string{"yes": {"bob"}, "no": {}}, d.View.Responses["q1"])
	require.Equal(t, "yes", d.View.Participants["bob"].Responses["q1"], "own answer stays visible")

	d = r.Reconcile(p.next(func(s *domain.Session) { s.IsActive = false; s.ShowResults = true }))
	correct, ok := d.View.Questions[0].CorrectOption()
	require.True(t, ok)
	require.Equal(t, "no", correct.ID)
	require.Equal(t, "no", d.View.Participants["alice"].Responses["q1"])
	require.Equal(t, 100, d.View.Participants["alice"].TotalScore)
	require.Equal(t, []string{"alice"}, d.View.Responses["q1"]["no"])
}

func TestPresenterMergesResponsesOnly(t *testing.T) {
	p := newPushes()
	r := app.NewReconciler(app.RoleDisplay)
	r.Reconcile(p.next(func(s *domain.Session) { s.IsActive = true; join("alice", 1)(s) }))

	d := r.Reconcile(p.next(answer("alice", "q1", "no")))
	require.True(t, d.Apply)
	require.False(t, d.Important)
	require.Equal(t, "no", d.View.Participants["alice"].Responses["q1"])
	require.Equal(t, []string{"alice"}, d.View.Responses["q1"]["no"])
	require.True(t, d.View.IsActive)

	d = r.Reconcile(p.next(join("bob", 2)))
	require.True(t, d.Important, "participant count changed")

	d = r.Reconcile(p.next(func(s *domain.Session) { s.ShowResults = true; s.IsActive = false }))
	require.True(t, d.Important)
	require.False(t, d.ResetSelection)
	require.True(t, d.View.ShowResults)
}
