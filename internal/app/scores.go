package app

import (
	"context"
	"fmt"
	"sort"

	"trivia-party-service/internal/domain"
)

// Ledger keeps per-quiz scores and assembles scorecards.
type Ledger struct {
	registry *Registry
	scores   ScoreStore
	answers  AnswerStore
	parties  PartyStore
}

func NewLedger(registry *Registry, store StateStore) *Ledger {
	return &Ledger{registry: registry, scores: store, answers: store, parties: store}
}

// Initialize seeds a zero score for every member present now, in roster order.
func (l *Ledger) Initialize(ctx context.Context, quizID, partyID string) error {
	members, err := l.registry.ListMembers(ctx, partyID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	if err := l.scores.SeedScores(ctx, partyID, quizID, ids); err != nil {
		return fmt.Errorf("seed scores: %w", err)
	}
	return l.registry.Touch(ctx, partyID)
}

// Increment atomically adds delta to the user's score. Non-positive deltas are ignored.
func (l *Ledger) Increment(ctx context.Context, partyID, quizID, userID string, delta int) (int, error) {
	if delta <= 0 {
		return 0, nil
	}
	score, err := l.scores.IncrScore(ctx, partyID, quizID, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}
	return score, nil
}

// Scorecard returns every scored user sorted by score descending, ties keeping
// seeding order. When number is non-nil each entry says whether that user
// answered that question correctly.
func (l *Ledger) Scorecard(ctx context.Context, partyID, quizID string, number *int) ([]domain.ScorecardEntry, error) {
	rows, err := l.scores.Scores(ctx, partyID, quizID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	names, err := l.parties.DisplayNames(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load display names: %w", err)
	}

	var correct map[string]bool
	if number != nil {
		ids, err := l.answers.CorrectUsers(ctx, partyID, quizID, *number)
		if err != nil {
			return nil, fmt.Errorf("load correct answers: %w", err)
		}
		correct = make(map[string]bool, len(ids))
		for _, id := range ids {
			correct[id] = true
		}
	}

	card := make([]domain.ScorecardEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.ScorecardEntry{Name: names[row.UserID], ID: row.UserID, Score: row.Score}
		if correct != nil {
			answered := correct[row.UserID]
			entry.AnsweredCorrectly = &answered
		}
		card = append(card, entry)
	}
	sort.SliceStable(card, func(i, j int) bool {
		return card[i].Score > card[j].Score
	})
	return card, nil
}
