package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-party-service/internal/domain"
)

// QuestionBank draws random questions from the questions table.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

const selectQuestions = `
SELECT category, type, difficulty, question, correct_answer, incorrect_answers
FROM questions
WHERE ($1::text = '' OR lower(category) = lower($1::text))
  AND ($2::text = '' OR difficulty = $2::text)
  AND ($3::text = '' OR type = $3::text)
ORDER BY random()
LIMIT $4`

func (b *QuestionBank) FetchQuestions(ctx context.Context, opts domain.QuizOptions) ([]domain.RawQuestion, error) {
	rows, err := b.pool.Query(ctx, selectQuestions, opts.Category, opts.Difficulty, opts.Type, opts.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: query questions: %v", domain.ErrProviderUnavailable, err)
	}
	defer rows.Close()

	var out []domain.RawQuestion
	for rows.Next() {
		var q domain.RawQuestion
		if err := rows.Scan(&q.Category, &q.Type, &q.Difficulty, &q.Question, &q.CorrectAnswer, &q.IncorrectAnswers); err != nil {
			return nil, fmt.Errorf("%w: scan question: %v", domain.ErrProviderUnavailable, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read questions: %v", domain.ErrProviderUnavailable, err)
	}
	if len(out) == 0 || len(out) < opts.Amount {
		return nil, fmt.Errorf("%w: %d matching, %d requested", domain.ErrNoQuestions, len(out), opts.Amount)
	}
	return out, nil
}

// Categories lists distinct categories ordered by name with 1-based ids.
func (b *QuestionBank) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := b.pool.Query(ctx, `SELECT DISTINCT category FROM questions ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, domain.Category{ID: len(out) + 1, Name: name})
	}
	return out, rows.Err()
}
