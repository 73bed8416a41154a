package app

import (
	"context"

	"trivia-party-service/internal/domain"
)

// PartyStore holds party membership, leadership and display names.
type PartyStore interface {
	// AddMember adds userID to the party and reports whether it became leader
	// because the member set was empty before the add.
	AddMember(ctx context.Context, partyID, userID string) (leader bool, err error)
	RemoveMember(ctx context.Context, partyID, userID string) error
	Members(ctx context.Context, partyID string) ([]string, error)
	MemberCount(ctx context.Context, partyID string) (int, error)
	IsMember(ctx context.Context, partyID, userID string) (bool, error)
	Leader(ctx context.Context, partyID string) (string, error)
	// SetDisplayNameIfAbsent stores name unless one exists and returns the stored name.
	SetDisplayNameIfAbsent(ctx context.Context, partyID, userID, name string) (string, error)
	SetDisplayName(ctx context.Context, partyID, userID, name string) error
	DeleteDisplayName(ctx context.Context, partyID, userID string) error
	DisplayNames(ctx context.Context, partyID string) (map[string]string, error)
	// Touch refreshes the inactivity TTL of every key belonging to the party.
	Touch(ctx context.Context, partyID string) error
}

// ReadyStore holds the transient ready set of a party's current barrier.
type ReadyStore interface {
	AddReady(ctx context.Context, partyID, userID string) (added bool, err error)
	ReadyUsers(ctx context.Context, partyID string) ([]string, error)
	ClearReady(ctx context.Context, partyID string) error
}

// RunStore tracks the single active quiz run of a party.
type RunStore interface {
	ClaimRun(ctx context.Context, partyID, quizID string) (bool, error)
	ActiveRun(ctx context.Context, partyID string) (string, error)
	ReleaseRun(ctx context.Context, partyID, quizID string) error
}

// ScoreStore holds per-quiz scores in seeding order.
type ScoreStore interface {
	SeedScores(ctx context.Context, partyID, quizID string, userIDs []string) error
	IncrScore(ctx context.Context, partyID, quizID, userID string, delta int) (int, error)
	Scores(ctx context.Context, partyID, quizID string) ([]domain.ScoreRow, error)
	DeleteScore(ctx context.Context, partyID, quizID, userID string) error
}

// AnswerStore holds per-question answer records.
type AnswerStore interface {
	// MarkAnswered records userID's counted answer; false means one was already counted.
	MarkAnswered(ctx context.Context, partyID, quizID string, number int, userID string) (bool, error)
	IncrAnswerCount(ctx context.Context, partyID, quizID string, number int) (int, error)
	AnswerCount(ctx context.Context, partyID, quizID string, number int) (int, error)
	AddCorrect(ctx context.Context, partyID, quizID string, number int, userID string) error
	CorrectUsers(ctx context.Context, partyID, quizID string, number int) ([]string, error)
}

// StateStore is the full ephemeral keyed store the core runs on.
type StateStore interface {
	PartyStore
	ReadyStore
	RunStore
	ScoreStore
	AnswerStore
}

// QuestionProvider fetches raw questions from an external bank.
type QuestionProvider interface {
	FetchQuestions(ctx context.Context, opts domain.QuizOptions) ([]domain.RawQuestion, error)
}

// Broadcaster delivers outbound events to a party room or a single user.
type Broadcaster interface {
	Broadcast(partyID, event string, payload any)
	SendTo(userID, event string, payload any)
	// JoinRoom and LeaveRoom control which users a party broadcast reaches.
	JoinRoom(partyID, userID string)
	LeaveRoom(partyID, userID string)
}
