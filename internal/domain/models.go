package domain

import "time"

// PointType controls how many points a correct answer is worth.
type PointType string

const (
	PointStandard PointType = "standard"
	PointDouble   PointType = "double"
	PointNone     PointType = "none"
)

// Points returns the award for a correct answer.
func (p PointType) Points() int {
	switch p {
	case PointDouble:
		return 200
	case PointNone:
		return 0
	default:
		return 100
	}
}

// Valid reports whether p is a known point type. Empty counts as standard.
func (p PointType) Valid() bool {
	switch p {
	case "", PointStandard, PointDouble, PointNone:
		return true
	}
	return false
}

// MediaType is the kind of media attached to a question.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Media references an uploaded image or video by URL.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
	Color     string `json:"color,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// Question models a single-choice question with exactly one correct option.
type Question struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Options   []Option  `json:"options"`
	TimeLimit int       `json:"timeLimit"` // seconds
	PointType PointType `json:"pointType"`
	Media     *Media    `json:"media,omitempty"`
}

// Quiz is the authoring copy of a quiz, stored as quizData inside an event segment.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Participant is a player connected to a live session.
type Participant struct {
	Username   string            `json:"username"`
	Responses  map[string]string `json:"responses"` // question id -> option id
	Scores     map[string]int    `json:"scores"`    // question id -> points
	TotalScore int               `json:"totalScore"`
	JoinedAt   time.Time         `json:"joinedAt"`
	JoinOrder  int               `json:"joinOrder"`
}

// Session is the shared live document, keyed by SessionCode.
type Session struct {
	SessionCode          string                 `json:"sessionCode"`
	Title                string                 `json:"title"`
	Questions            []Question             `json:"questions"`
	CurrentQuestionIndex int                    `json:"currentQuestionIndex"`
	IsActive             bool                   `json:"isActive"`
	ShowResults          bool                   `json:"showResults"`
	IsComplete           bool                   `json:"isComplete"`
	Participants         map[string]Participant `json:"participants"`
	// Responses is derived from Participants on every write; see Tally.
	Responses map[string]map[string][]string `json:"responses"`
	CreatedAt time.Time                      `json:"createdAt"`
	Version   int64                          `json:"version"`
}

// Snapshot is one push from the live sync channel. A nil Session means the
// session is unknown (missing or the backend could not be reached).
type Snapshot struct {
	Session *Session
}

// AnswerSubmission is one participant's choice for a question. QuestionID and
// OptionID are resolved leniently; see the answer engine.
type AnswerSubmission struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	OptionID      string `json:"optionId"`
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
	TotalScore    int    `json:"totalScore"`
}

// Leaderboard is the final (or interim) standing of a session.
type Leaderboard struct {
	SessionCode string             `json:"sessionCode"`
	Podium      []LeaderboardEntry `json:"podium"`
	Rest        []LeaderboardEntry `json:"rest"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
