package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"trivia-party-service/internal/domain"
)

const (
	minAmount    = 1
	maxAmount    = 50
	minTimeLimit = 5
	maxTimeLimit = 120

	partyIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	partyIDLength   = 6
)

// Options tunes a Coordinator. Zero values fall back to defaults.
type Options struct {
	DefaultAmount    int
	DefaultTimeLimit int
	// Tick is the real duration of one countdown second.
	Tick        time.Duration
	SettleDelay time.Duration
	Names       NameGenerator
	Logger      *slog.Logger
	// Shuffle orders a question's answers; defaults to a uniform shuffle.
	Shuffle func([]string)
}

func (o Options) withDefaults() Options {
	if o.DefaultAmount <= 0 {
		o.DefaultAmount = 10
	}
	if o.DefaultTimeLimit <= 0 {
		o.DefaultTimeLimit = 15
	}
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.Names == nil {
		o.Names = RandomName
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Shuffle == nil {
		o.Shuffle = func(s []string) {
			mrand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		}
	}
	return o
}

// Outcome summarises a finished quiz run.
type Outcome struct {
	QuizID    string
	Questions int
	Scorecard []domain.ScorecardEntry
}

// Coordinator is the per-party session state machine and the entry point for
// every inbound participant event.
type Coordinator struct {
	store    StateStore
	registry *Registry
	barrier  *Barrier
	rounds   *RoundController
	ledger   *Ledger
	provider QuestionProvider
	out      Broadcaster
	bus      *Bus
	opts     Options
	log      *slog.Logger
}

func NewCoordinator(store StateStore, provider QuestionProvider, out Broadcaster, opts Options) *Coordinator {
	opts = opts.withDefaults()
	bus := NewBus()
	registry := NewRegistry(store, opts.Names)
	ledger := NewLedger(registry, store)
	return &Coordinator{
		store:    store,
		registry: registry,
		barrier:  NewBarrier(registry, store, bus, out, opts.Logger),
		rounds:   NewRoundController(registry, ledger, store, bus, out, opts.Logger, opts.Tick, opts.SettleDelay),
		ledger:   ledger,
		provider: provider,
		out:      out,
		bus:      bus,
		opts:     opts,
		log:      opts.Logger,
	}
}

// Registry exposes the party registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// RequestNewParty creates a party with a fresh id and joins userID as its leader.
func (c *Coordinator) RequestNewParty(ctx context.Context, userID string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		partyID, err := newPartyID()
		if err != nil {
			return "", err
		}
		exists, err := c.registry.Exists(ctx, partyID)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if _, err := c.JoinParty(ctx, partyID, userID); err != nil {
			return "", err
		}
		return partyID, nil
	}
	return "", errors.New("could not allocate a party id")
}

// JoinParty joins userID to partyID, replies with the party id and display
// name, and broadcasts the refreshed roster.
func (c *Coordinator) JoinParty(ctx context.Context, partyID, userID string) (string, error) {
	leader, name, err := c.registry.CreateOrJoin(ctx, partyID, userID)
	if err != nil {
		return "", err
	}
	c.log.Info("user joined party", "party", partyID, "user", userID, "leader", leader)
	c.out.JoinRoom(partyID, userID)
	c.out.SendTo(userID, EventPartyID, partyIDPayload{PartyID: partyID})
	c.out.SendTo(userID, EventDisplayName, displayNamePayload{Name: name})
	return name, c.BroadcastMembers(ctx, partyID)
}

// ChangeDisplayName renames userID and re-broadcasts the roster.
func (c *Coordinator) ChangeDisplayName(ctx context.Context, partyID, userID, name string) error {
	if err := c.registry.ChangeDisplayName(ctx, userID, name, partyID); err != nil {
		return err
	}
	current, err := c.registry.DisplayName(ctx, partyID, userID)
	if err != nil {
		return err
	}
	if current != "" {
		c.out.SendTo(userID, EventDisplayName, displayNamePayload{Name: current})
	}
	return c.BroadcastMembers(ctx, partyID)
}

// BroadcastMembers sends the current roster to the party.
func (c *Coordinator) BroadcastMembers(ctx context.Context, partyID string) error {
	members, err := c.registry.ListMembers(ctx, partyID)
	if err != nil {
		return err
	}
	c.out.Broadcast(partyID, EventPartyMembers, members)
	return nil
}

// Members returns the current roster.
func (c *Coordinator) Members(ctx context.Context, partyID string) ([]domain.Member, error) {
	return c.registry.ListMembers(ctx, partyID)
}

// PartyExists reports whether partyID has any members.
func (c *Coordinator) PartyExists(ctx context.Context, partyID string) (bool, error) {
	return c.registry.Exists(ctx, partyID)
}

// KickMember removes targetID from the party and tells them so. Only the
// party leader may kick.
func (c *Coordinator) KickMember(ctx context.Context, partyID, requesterID, targetID string) error {
	leader, err := c.store.Leader(ctx, partyID)
	if err != nil {
		return fmt.Errorf("load leader: %w", err)
	}
	if leader == "" || leader != requesterID {
		return domain.ErrNotLeader
	}
	removed, err := c.depart(ctx, partyID, targetID)
	if err != nil || !removed {
		return err
	}
	c.out.SendTo(targetID, EventKicked, partyIDPayload{PartyID: partyID})
	return nil
}

// Leave removes userID from the party, as on disconnect.
func (c *Coordinator) Leave(ctx context.Context, partyID, userID string) error {
	_, err := c.depart(ctx, partyID, userID)
	return err
}

func (c *Coordinator) depart(ctx context.Context, partyID, userID string) (bool, error) {
	member, err := c.registry.IsMember(ctx, partyID, userID)
	if err != nil || !member {
		return false, err
	}
	ref, err := c.registry.RemoveMember(ctx, userID, partyID)
	if err != nil {
		return false, err
	}
	c.log.Info("user left party", "party", partyID, "user", userID)
	c.out.LeaveRoom(partyID, userID)
	c.out.Broadcast(partyID, EventMemberLeft, ref)
	if err := c.BroadcastMembers(ctx, partyID); err != nil {
		return true, err
	}
	c.bus.PublishParty(partyID, Signal{Kind: SignalDeparture, UserID: userID})
	return true, nil
}

// MarkReady forwards a ready acknowledgement to the party's open barrier.
// It reports false when no barrier is listening.
func (c *Coordinator) MarkReady(partyID, userID string) bool {
	return c.bus.Publish(readyScopeKey(partyID), Signal{Kind: SignalReady, UserID: userID})
}

// SubmitAnswer forwards an answer to the round for (party, quiz, question).
// It reports false when that round is not collecting answers.
func (c *Coordinator) SubmitAnswer(partyID, quizID string, number int, userID, answer string) bool {
	return c.bus.Publish(roundScopeKey(partyID, quizID, number), Signal{
		Kind:   SignalAnswer,
		UserID: userID,
		Answer: answer,
	})
}

// RunQuiz runs a whole quiz for the party: ready barrier, question fetch,
// then every round in order. Failures are reported to requesterID through
// the error event; once the barrier has passed, quiz-finished is always sent.
func (c *Coordinator) RunQuiz(ctx context.Context, partyID, requesterID string, opts domain.QuizOptions) (Outcome, error) {
	opts = c.normalize(opts)
	quizID := uuid.NewString()
	outcome := Outcome{QuizID: quizID}

	if !domain.ValidPartyID(partyID) {
		return outcome, c.report(partyID, requesterID, domain.ErrInvalidPartyID)
	}
	if requesterID != "" {
		member, err := c.registry.IsMember(ctx, partyID, requesterID)
		if err != nil {
			return outcome, c.report(partyID, requesterID, err)
		}
		if !member {
			return outcome, c.report(partyID, requesterID, domain.ErrNotMember)
		}
	}

	claimed, err := c.store.ClaimRun(ctx, partyID, quizID)
	if err != nil {
		return outcome, c.report(partyID, requesterID, fmt.Errorf("claim quiz run: %w", err))
	}
	if !claimed {
		return outcome, c.report(partyID, requesterID, domain.ErrQuizInProgress)
	}
	defer func() {
		if err := c.store.ReleaseRun(context.WithoutCancel(ctx), partyID, quizID); err != nil {
			c.log.Warn("release quiz run", "party", partyID, "quiz", quizID, "err", err)
		}
	}()

	if err := c.barrier.AwaitAllReady(ctx, partyID); err != nil {
		return outcome, c.report(partyID, requesterID, fmt.Errorf("ready barrier: %w", err))
	}
	defer c.out.Broadcast(partyID, EventQuizFinished, nil)

	raw, err := c.provider.FetchQuestions(ctx, opts)
	if err == nil && len(raw) == 0 {
		err = domain.ErrNoQuestions
	}
	if err != nil {
		return outcome, c.report(partyID, requesterID, fmt.Errorf("fetch questions: %w", err))
	}

	quiz := c.buildQuiz(quizID, partyID, opts.TimeLimit, raw)
	outcome.Questions = len(quiz.Questions)
	c.log.Info("quiz started", "party", partyID, "quiz", quizID, "questions", len(quiz.Questions), "time_limit", quiz.TimeLimit)

	c.out.Broadcast(partyID, EventQuizStarted, quizStartedPayload{QuizID: quizID})
	if err := c.ledger.Initialize(ctx, quizID, partyID); err != nil {
		return outcome, c.report(partyID, requesterID, err)
	}
	c.out.Broadcast(partyID, EventTotalQuestions, totalPayload{Total: len(quiz.Questions)})

	for _, q := range quiz.Questions {
		card, err := c.ledger.Scorecard(ctx, partyID, quizID, nil)
		if err != nil {
			return outcome, c.report(partyID, requesterID, err)
		}
		c.out.Broadcast(partyID, EventUpdatedScorecard, card)

		if _, err := c.rounds.Run(ctx, quiz, q); err != nil {
			return outcome, c.report(partyID, requesterID, fmt.Errorf("question %d: %w", q.Number, err))
		}
	}

	outcome.Scorecard, err = c.ledger.Scorecard(ctx, partyID, quizID, nil)
	if err != nil {
		return outcome, c.report(partyID, requesterID, err)
	}
	c.log.Info("quiz finished", "party", partyID, "quiz", quizID)
	return outcome, nil
}

func (c *Coordinator) report(partyID, requesterID string, err error) error {
	c.log.Warn("quiz run failed", "party", partyID, "err", err)
	if requesterID != "" {
		c.out.SendTo(requesterID, EventError, ErrorPayload{Message: err.Error()})
	}
	return err
}

func (c *Coordinator) normalize(opts domain.QuizOptions) domain.QuizOptions {
	if opts.Amount <= 0 {
		opts.Amount = c.opts.DefaultAmount
	}
	opts.Amount = min(max(opts.Amount, minAmount), maxAmount)
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = c.opts.DefaultTimeLimit
	}
	opts.TimeLimit = min(max(opts.TimeLimit, minTimeLimit), maxTimeLimit)
	opts.Category = unspecified(opts.Category)
	opts.Difficulty = strings.ToLower(unspecified(opts.Difficulty))
	opts.Type = strings.ToLower(unspecified(opts.Type))
	return opts
}

func unspecified(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "any") {
		return ""
	}
	return v
}

// buildQuiz numbers the questions and fixes each one's answer order once.
func (c *Coordinator) buildQuiz(quizID, partyID string, timeLimit int, raw []domain.RawQuestion) *domain.Quiz {
	quiz := &domain.Quiz{
		ID:        quizID,
		PartyID:   partyID,
		TimeLimit: timeLimit,
		Questions: make([]domain.Question, 0, len(raw)),
	}
	for i, r := range raw {
		answers := append(slices.Clone(r.IncorrectAnswers), r.CorrectAnswer)
		c.opts.Shuffle(answers)
		quiz.Questions = append(quiz.Questions, domain.Question{
			RawQuestion:  r,
			Number:       i + 1,
			Answers:      answers,
			CorrectIndex: slices.Index(answers, r.CorrectAnswer),
		})
	}
	return quiz
}

func newPartyID() (string, error) {
	buf := make([]byte, partyIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate party id: %w", err)
	}
	for i, b := range buf {
		buf[i] = partyIDAlphabet[int(b)%len(partyIDAlphabet)]
	}
	return string(buf), nil
}
