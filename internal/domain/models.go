package domain

import "regexp"

var partyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidPartyID reports whether id is safe to use as a party identifier.
func ValidPartyID(id string) bool {
	return partyIDPattern.MatchString(id)
}

// Member is a roster entry for a party.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Leader bool   `json:"leader"`
}

// UserRef identifies a user in progress broadcasts.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QuizOptions are the selection criteria a leader submits with start-quiz.
// Empty strings mean "unspecified".
type QuizOptions struct {
	Amount     int    `json:"amount"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Type       string `json:"type"`
	TimeLimit  int    `json:"time"` // seconds per question
}

// RawQuestion is a question as returned by a question source, before shuffling.
type RawQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Question is a RawQuestion bound to a quiz: numbered, with a fixed answer order.
type Question struct {
	RawQuestion
	Number       int      `json:"number"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"-"`
}

// Quiz is one run of questions for a party.
type Quiz struct {
	ID        string
	PartyID   string
	TimeLimit int
	Questions []Question
}

// QuestionView is the new-question payload; it never carries the correct answer.
type QuestionView struct {
	Question   string   `json:"question"`
	Answers    []string `json:"answers"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Number     int      `json:"number"`
	Total      int      `json:"total"`
}

// View returns what clients see of q.
func (q Question) View(total int) QuestionView {
	return QuestionView{
		Question:   q.Question,
		Answers:    q.Answers,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Number:     q.Number,
		Total:      total,
	}
}

// ScorecardEntry is a single scorecard row. AnsweredCorrectly is only set
// when the scorecard is built for a specific question.
type ScorecardEntry struct {
	Name              string `json:"name"`
	ID                string `json:"id"`
	Score             int    `json:"score"`
	AnsweredCorrectly *bool  `json:"answeredCorrectly,omitempty"`
}

// ScoreRow is a raw (user, score) pair in seeding order.
type ScoreRow struct {
	UserID string
	Score  int
}

// Category is a question-source category.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
