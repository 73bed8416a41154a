package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trivia-party-service/internal/domain"
)

// Resolution says which branch of the round race won.
type Resolution string

const (
	ResolvedByTimer   Resolution = "timer"
	ResolvedByAnswers Resolution = "answers"
)

// RoundController drives a single question:
// Broadcasting -> CollectingAnswers -> Resolved -> Revealed.
type RoundController struct {
	registry *Registry
	ledger   *Ledger
	answers  AnswerStore
	bus      *Bus
	out      Broadcaster
	log      *slog.Logger

	// tick is the length of one countdown second; settle is the pause before finish-question.
	tick   time.Duration
	settle time.Duration
}

func NewRoundController(registry *Registry, ledger *Ledger, answers AnswerStore, bus *Bus, out Broadcaster, log *slog.Logger, tick, settle time.Duration) *RoundController {
	if tick <= 0 {
		tick = time.Second
	}
	return &RoundController{
		registry: registry,
		ledger:   ledger,
		answers:  answers,
		bus:      bus,
		out:      out,
		log:      log,
		tick:     tick,
		settle:   settle,
	}
}

// Run plays question q of quiz through to the reveal and returns how it resolved.
func (rc *RoundController) Run(ctx context.Context, quiz *domain.Quiz, q domain.Question) (Resolution, error) {
	scope, ok := rc.bus.Open(roundScopeKey(quiz.PartyID, quiz.ID, q.Number), quiz.PartyID)
	if !ok {
		return "", fmt.Errorf("round %d of quiz %s already running", q.Number, quiz.ID)
	}
	defer scope.Close()

	rc.out.Broadcast(quiz.PartyID, EventNewQuestion, newQuestionPayload{
		Question:  q.View(len(quiz.Questions)),
		TimeLimit: quiz.TimeLimit,
	})

	resolution, err := rc.race(ctx, quiz, q, scope)
	scope.Close()
	if err != nil {
		return "", err
	}
	rc.log.Debug("round resolved", "party", quiz.PartyID, "quiz", quiz.ID, "question", q.Number, "by", resolution)

	if err := rc.reveal(ctx, quiz, q); err != nil {
		return resolution, err
	}
	return resolution, nil
}

// race runs the countdown and the answer collector concurrently. The first
// to finish cancels the other, and both have exited when race returns.
func (rc *RoundController) race(ctx context.Context, quiz *domain.Quiz, q domain.Question, scope *Scope) (Resolution, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once   sync.Once
		winner Resolution
	)
	resolve := func(r Resolution) {
		once.Do(func() {
			winner = r
			cancel()
		})
	}

	g, gctx := errgroup.WithContext(raceCtx)
	g.Go(func() error {
		if rc.countdown(gctx, quiz, q) {
			resolve(ResolvedByTimer)
		}
		return nil
	})
	g.Go(func() error {
		full, err := rc.collect(gctx, context.WithoutCancel(ctx), quiz, q, scope)
		if err != nil {
			return err
		}
		if full {
			resolve(ResolvedByAnswers)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	if winner == "" {
		return "", ctx.Err()
	}
	return winner, nil
}

func (rc *RoundController) countdown(ctx context.Context, quiz *domain.Quiz, q domain.Question) bool {
	event := TimerEvent(quiz.ID, q.Number)
	ticker := time.NewTicker(rc.tick)
	defer ticker.Stop()

	for left := quiz.TimeLimit; left > 0; {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			left--
			rc.out.Broadcast(quiz.PartyID, event, timerPayload{SecondsLeft: left})
		}
	}
	return true
}

// collect consumes answers until every live member has answered or ctx ends.
// Store writes use opCtx so an answer that was picked up is never half-applied.
func (rc *RoundController) collect(ctx, opCtx context.Context, quiz *domain.Quiz, q domain.Question, scope *Scope) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case sig := <-scope.Signals():
			switch sig.Kind {
			case SignalAnswer:
				counted, err := rc.accept(opCtx, quiz, q, sig)
				if err != nil {
					return false, err
				}
				if !counted {
					continue
				}
			case SignalDeparture:
			default:
				continue
			}

			full, err := rc.allAnswered(opCtx, quiz, q)
			if err != nil {
				return false, err
			}
			if full {
				return true, nil
			}
		}
	}
}

func (rc *RoundController) accept(ctx context.Context, quiz *domain.Quiz, q domain.Question, sig Signal) (bool, error) {
	member, err := rc.registry.IsMember(ctx, quiz.PartyID, sig.UserID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return false, nil
	}
	first, err := rc.answers.MarkAnswered(ctx, quiz.PartyID, quiz.ID, q.Number, sig.UserID)
	if err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	if !first {
		return false, nil
	}

	if sig.Answer == q.CorrectAnswer {
		if _, err := rc.ledger.Increment(ctx, quiz.PartyID, quiz.ID, sig.UserID, 1); err != nil {
			return false, err
		}
		if err := rc.answers.AddCorrect(ctx, quiz.PartyID, quiz.ID, q.Number, sig.UserID); err != nil {
			return false, fmt.Errorf("record correct answer: %w", err)
		}
	}
	if _, err := rc.answers.IncrAnswerCount(ctx, quiz.PartyID, quiz.ID, q.Number); err != nil {
		return false, fmt.Errorf("count answer: %w", err)
	}
	if err := rc.registry.Touch(ctx, quiz.PartyID); err != nil {
		return false, err
	}

	total, err := rc.registry.LiveCount(ctx, quiz.PartyID)
	if err != nil {
		return false, err
	}
	name, err := rc.registry.DisplayName(ctx, quiz.PartyID, sig.UserID)
	if err != nil {
		return false, err
	}
	rc.out.Broadcast(quiz.PartyID, EventUserAnswered, userAnsweredPayload{
		User:         domain.UserRef{ID: sig.UserID, Name: name},
		TotalMembers: total,
	})
	return true, nil
}

func (rc *RoundController) allAnswered(ctx context.Context, quiz *domain.Quiz, q domain.Question) (bool, error) {
	live, err := rc.registry.LiveCount(ctx, quiz.PartyID)
	if err != nil {
		return false, err
	}
	if live == 0 {
		return false, nil
	}
	count, err := rc.answers.AnswerCount(ctx, quiz.PartyID, quiz.ID, q.Number)
	if err != nil {
		return false, fmt.Errorf("read answer count: %w", err)
	}
	return count >= live, nil
}

// reveal is the post-question procedure: correct index, scorecard, pause, finish.
func (rc *RoundController) reveal(ctx context.Context, quiz *domain.Quiz, q domain.Question) error {
	rc.out.Broadcast(quiz.PartyID, EventCorrectAnswer, correctAnswerPayload{AnswerIndex: q.CorrectIndex})
	rc.out.Broadcast(quiz.PartyID, EventBeginPostQuestion, nil)
	if q.Number == len(quiz.Questions) {
		rc.out.Broadcast(quiz.PartyID, EventQuizWillEnd, nil)
	}

	number := q.Number
	card, err := rc.ledger.Scorecard(ctx, quiz.PartyID, quiz.ID, &number)
	if err != nil {
		return err
	}
	rc.out.Broadcast(quiz.PartyID, EventUpdatedScorecard, card)

	if rc.settle > 0 {
		pause := time.NewTimer(rc.settle)
		select {
		case <-ctx.Done():
			pause.Stop()
			return ctx.Err()
		case <-pause.C:
		}
	}
	rc.out.Broadcast(quiz.PartyID, EventFinishQuestion, nil)
	return nil
}
