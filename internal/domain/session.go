package domain

import (
	"sort"
	"time"
)

// Phase is the host-visible state of a session, derived from its flags.
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseQuestionLive   Phase = "question_live"
	PhaseShowingResults Phase = "showing_results"
	// PhaseQuestionsDone means the host advanced past the last question but
	// has not finished the session.
	PhaseQuestionsDone Phase = "questions_done"
	PhaseFinished      Phase = "finished"
)

// NewSession builds the initial document for a live quiz.
func NewSession(code, title string, questions []Question, now time.Time) Session {
	qs := make([]Question, len(questions))
	for i, q := range questions {
		qs[i] = cloneQuestion(NormalizeQuestion(q))
	}
	s := Session{
		SessionCode:  code,
		Title:        title,
		Questions:    qs,
		Participants: make(map[string]Participant),
		CreatedAt:    now,
	}
	s.Normalize()
	return s
}

// PhaseOf derives the phase of s.
func PhaseOf(s Session) Phase {
	switch {
	case s.IsComplete:
		return PhaseFinished
	case s.CurrentQuestionIndex >= len(s.Questions):
		return PhaseQuestionsDone
	case s.ShowResults:
		return PhaseShowingResults
	case s.IsActive:
		return PhaseQuestionLive
	default:
		return PhaseLobby
	}
}

// CurrentQuestion returns the question at CurrentQuestionIndex, if in bounds.
func (s Session) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// QuestionIndex returns the position of the question with the given id, or -1.
func (s Session) QuestionIndex(id string) int {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// Unanswered returns the ids of participants with no response to questionID, sorted.
func (s Session) Unanswered(questionID string) []string {
	var ids []string
	for id, p := range s.Participants {
		if _, ok := p.Responses[questionID]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AllAnswered reports whether at least one participant joined and every
// participant answered questionID.
func (s Session) AllAnswered(questionID string) bool {
	return len(s.Participants) > 0 && len(s.Unanswered(questionID)) == 0
}

// Normalize initializes nil maps and recomputes every derived field:
// participant totals and the per-option response index.
func (s *Session) Normalize() {
	if s.Participants == nil {
		s.Participants = make(map[string]Participant)
	}
	for id, p := range s.Participants {
		if p.Responses == nil {
			p.Responses = make(map[string]string)
		}
		if p.Scores == nil {
			p.Scores = make(map[string]int)
		}
		p.TotalScore = SumScores(p.Scores)
		s.Participants[id] = p
	}
	s.Responses = Tally(*s)
}

// SumScores adds all per-question scores.
func SumScores(scores map[string]int) int {
	total := 0
	for _, v := range scores {
		total += v
	}
	return total
}

// Tally aggregates participant responses into question id -> option id ->
// sorted participant ids. Every option of every question is present.
func Tally(s Session) map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(s.Questions))
	for _, q := range s.Questions {
		byOption := make(map[string][]string, len(q.Options))
		for _, opt := range q.Options {
			byOption[opt.ID] = []string{}
		}
		out[q.ID] = byOption
	}
	for pid, p := range s.Participants {
		for qid, oid := range p.Responses {
			byOption, ok := out[qid]
			if !ok {
				continue
			}
			if _, ok := byOption[oid]; !ok {
				continue
			}
			byOption[oid] = append(byOption[oid], pid)
		}
	}
	for _, byOption := range out {
		for _, ids := range byOption {
			sort.Strings(ids)
		}
	}
	return out
}

// Counts returns the number of responses per option for questionID.
func (s Session) Counts(questionID string) map[string]int {
	counts := make(map[string]int)
	for oid, ids := range Tally(s)[questionID] {
		counts[oid] = len(ids)
	}
	return counts
}

// RedactForParticipant is the document as participant viewerID may see it.
// Until results are shown it hides which option is correct and every other
// participant's answer and score for the live question, along with the live
// question's tally.
func RedactForParticipant(s Session, viewerID string) Session {
	if s.ShowResults || s.IsComplete {
		return s
	}
	out := s.Clone()
	for i := range out.Questions {
		for j := range out.Questions[i].Options {
			out.Questions[i].Options[j].IsCorrect = false
		}
	}
	q, ok := out.CurrentQuestion()
	if !ok {
		return out
	}
	for id, p := range out.Participants {
		if id == viewerID {
			continue
		}
		p.TotalScore -= p.Scores[q.ID]
		delete(p.Scores, q.ID)
		delete(p.Responses, q.ID)
		out.Participants[id] = p
	}
	live := make(map[string][]string, len(q.Options))
	for _, opt := range q.Options {
		live[opt.ID] = []string{}
	}
	if own, ok := out.Participants[viewerID].Responses[q.ID]; ok {
		live[own] = append(live[own], viewerID)
	}
	if out.Responses == nil {
		out.Responses = make(map[string]map[string][]string)
	}
	out.Responses[q.ID] = live
	return out
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = cloneQuestion(q)
	}
	out.Participants = make(map[string]Participant, len(s.Participants))
	for id, p := range s.Participants {
		out.Participants[id] = cloneParticipant(p)
	}
	if s.Responses != nil {
		out.Responses = make(map[string]map[string][]string, len(s.Responses))
		for qid, byOption := range s.Responses {
			m := make(map[string][]string, len(byOption))
			for oid, ids := range byOption {
				m[oid] = append([]string(nil), ids...)
			}
			out.Responses[qid] = m
		}
	}
	return out
}

func cloneQuestion(q Question) Question {
	q.Options = append([]Option(nil), q.Options...)
	if q.Media != nil {
		m := *q.Media
		q.Media = &m
	}
	return q
}

func cloneParticipant(p Participant) Participant {
	responses := make(map[string]string, len(p.Responses))
	for k, v := range p.Responses {
		responses[k] = v
	}
	scores := make(map[string]int, len(p.Scores))
	for k, v := range p.Scores {
		scores[k] = v
	}
	p.Responses = responses
	p.Scores = scores
	return p
}
