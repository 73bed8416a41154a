package app

import "fmt"

// Outbound event names.
const (
	EventUserID            = "user-id"
	EventPartyID           = "party-id"
	EventDisplayName       = "display-name"
	EventPartyMembers      = "party-members"
	EventPartyExists       = "party-exists"
	EventMemberLeft        = "party-member-left"
	EventKicked            = "kicked"
	EventReadyPrompt       = "ready-prompt"
	EventPercentReady      = "percent-users-ready"
	EventTheseUsersReady   = "these-users-ready"
	EventAllUsersReady     = "all-users-ready"
	EventQuizStarted       = "quiz-started"
	EventTotalQuestions    = "total-questions"
	EventNewQuestion       = "new-question"
	EventUserAnswered      = "user-answered"
	EventCorrectAnswer     = "correct-answer"
	EventBeginPostQuestion = "begin-post-question"
	EventQuizWillEnd       = "quiz-will-end"
	EventUpdatedScorecard  = "updated-scorecard"
	EventFinishQuestion    = "finish-question"
	EventQuizFinished      = "quiz-finished"
	EventError             = "error"
)

// TimerEvent is the per-question countdown event name.
func TimerEvent(quizID string, number int) string {
	return fmt.Sprintf("timer-update-%s-%d", quizID, number)
}

type newQuestionPayload struct {
	Question  any `json:"question"`
	TimeLimit int `json:"timeLimit"`
}

type timerPayload struct {
	SecondsLeft int `json:"secondsLeft"`
}

type userAnsweredPayload struct {
	User         any `json:"user"`
	TotalMembers int `json:"totalMembers"`
}

type correctAnswerPayload struct {
	AnswerIndex int `json:"answerIndex"`
}

type percentPayload struct {
	Percent int `json:"percent"`
}

type quizStartedPayload struct {
	QuizID string `json:"quizId"`
}

type totalPayload struct {
	Total int `json:"total"`
}

type partyIDPayload struct {
	PartyID string `json:"partyId"`
}

type displayNamePayload struct {
	Name string `json:"name"`
}

// ErrorPayload is the body of the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
