package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-party-service/internal/domain"
)

func TestQuestionBankFilters(t *testing.T) {
	bank := NewQuestionBank(SampleQuestions())

	questions, err := bank.FetchQuestions(context.Background(), domain.QuizOptions{
		Amount:   2,
		Category: "science: computers",
		Type:     "boolean",
	})
	if err == nil {
		t.Fatalf("expected shortage error, got %d questions", len(questions))
	}
	if !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	questions, err = bank.FetchQuestions(context.Background(), domain.QuizOptions{
		Amount:     2,
		Category:   "General Knowledge",
		Difficulty: "easy",
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	for _, q := range questions {
		if q.Category != "General Knowledge" || q.Difficulty != "easy" {
			t.Fatalf("filter leaked question %+v", q)
		}
	}
}

func TestQuestionBankDoesNotMutateSource(t *testing.T) {
	source := SampleQuestions()
	first := source[0].Question
	bank := NewQuestionBank(source)

	for i := 0; i < 5; i++ {
		if _, err := bank.FetchQuestions(context.Background(), domain.QuizOptions{Amount: 3}); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if source[0].Question != first {
		t.Fatalf("source bank reordered")
	}
}

func TestQuestionBankCategories(t *testing.T) {
	bank := NewQuestionBank(SampleQuestions())
	cats, err := bank.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(cats))
	}
	if cats[0].ID != 1 || cats[0].Name != "General Knowledge" {
		t.Fatalf("unexpected first category %+v", cats[0])
	}
}
