package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"trivia-party-service/internal/domain"
)

// QuestionBank serves questions from an in-memory slice (useful for tests/demos and offline play).
type QuestionBank struct {
	questions []domain.RawQuestion

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(questions []domain.RawQuestion) *QuestionBank {
	return &QuestionBank{
		questions: questions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchQuestions returns opts.Amount random questions matching the filters.
// A bank with fewer matches than requested reports ErrNoQuestions.
func (b *QuestionBank) FetchQuestions(_ context.Context, opts domain.QuizOptions) ([]domain.RawQuestion, error) {
	matches := make([]domain.RawQuestion, 0, len(b.questions))
	for _, q := range b.questions {
		if opts.Category != "" && !strings.EqualFold(q.Category, opts.Category) {
			continue
		}
		if opts.Difficulty != "" && q.Difficulty != opts.Difficulty {
			continue
		}
		if opts.Type != "" && q.Type != opts.Type {
			continue
		}
		matches = append(matches, q)
	}
	if len(matches) == 0 || len(matches) < opts.Amount {
		return nil, fmt.Errorf("%w: %d matching, %d requested", domain.ErrNoQuestions, len(matches), opts.Amount)
	}

	b.mu.Lock()
	b.rnd.Shuffle(len(matches), func(i, j int) { matches[i], matches[j] = matches[j], matches[i] })
	b.mu.Unlock()
	return matches[:opts.Amount], nil
}

// Categories lists distinct category names with stable 1-based ids.
func (b *QuestionBank) Categories(context.Context) ([]domain.Category, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, q := range b.questions {
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		names = append(names, q.Category)
	}
	sort.Strings(names)

	out := make([]domain.Category, len(names))
	for i, name := range names {
		out[i] = domain.Category{ID: i + 1, Name: name}
	}
	return out, nil
}
