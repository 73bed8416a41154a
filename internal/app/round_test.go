package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-party-service/internal/domain"
)

type roundHarness struct {
	store  StateStore
	reg    *Registry
	ledger *Ledger
	bus    *Bus
	out    *recorder
	rounds *RoundController
}

func newRoundHarness(t *testing.T, tick time.Duration, users ...string) *roundHarness {
	t.Helper()
	store := newTestStore(t)
	h := &roundHarness{store: store, bus: NewBus(), out: &recorder{}}
	h.reg = NewRegistry(store, sequentialNames())
	h.ledger = NewLedger(h.reg, store)
	h.rounds = NewRoundController(h.reg, h.ledger, store, h.bus, h.out, discardLogger, tick, 0)
	for _, u := range users {
		_, _, err := h.reg.CreateOrJoin(context.Background(), "P1", u)
		require.NoError(t, err)
	}
	return h
}

// quiz builds a quiz whose answer order is fixed: incorrect answers then the correct one.
func (h *roundHarness) quiz(t *testing.T, timeLimit, questions int) *domain.Quiz {
	t.Helper()
	quiz := &domain.Quiz{ID: "Q1", PartyID: "P1", TimeLimit: timeLimit}
	for i := 1; i <= questions; i++ {
		raw := mathQuestion()
		quiz.Questions = append(quiz.Questions, domain.Question{
			RawQuestion:  raw,
			Number:       i,
			Answers:      append(append([]string(nil), raw.IncorrectAnswers...), raw.CorrectAnswer),
			CorrectIndex: len(raw.IncorrectAnswers),
		})
	}
	require.NoError(t, h.ledger.Initialize(context.Background(), quiz.ID, quiz.PartyID))
	return quiz
}

type roundResult struct {
	resolution Resolution
	err        error
}

func (h *roundHarness) run(quiz *domain.Quiz, q domain.Question) <-chan roundResult {
	done := make(chan roundResult, 1)
	go func() {
		r, err := h.rounds.Run(context.Background(), quiz, q)
		done <- roundResult{r, err}
	}()
	return done
}

func (h *roundHarness) answer(quiz *domain.Quiz, number int, userID, answer string) bool {
	return h.bus.Publish(roundScopeKey(quiz.PartyID, quiz.ID, number), Signal{Kind: SignalAnswer, UserID: userID, Answer: answer})
}

func (h *roundHarness) score(t *testing.T, userID string) int {
	t.Helper()
	card, err := h.ledger.Scorecard(context.Background(), "P1", "Q1", nil)
	require.NoError(t, err)
	for _, e := range card {
		if e.ID == userID {
			return e.Score
		}
	}
	t.Fatalf("user %s not on scorecard", userID)
	return 0
}

func waitRound(t *testing.T, done <-chan roundResult) roundResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("round did not resolve")
		return roundResult{}
	}
}

func TestRoundResolvesByTimerWithoutAnswers(t *testing.T) {
	h := newRoundHarness(t, 5*time.Millisecond, "alice")
	quiz := h.quiz(t, 5, 1)

	res := waitRound(t, h.run(quiz, quiz.Questions[0]))
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByTimer, res.resolution)

	ticks := h.out.all(TimerEvent("Q1", 1))
	require.Len(t, ticks, 5)
	assert.Equal(t, timerPayload{SecondsLeft: 4}, ticks[0].Payload)
	assert.Equal(t, timerPayload{SecondsLeft: 0}, ticks[4].Payload)

	assert.Equal(t, []string{
		EventNewQuestion,
		EventCorrectAnswer,
		EventBeginPostQuestion,
		EventQuizWillEnd,
		EventUpdatedScorecard,
		EventFinishQuestion,
	}, h.out.broadcastNames(EventNewQuestion))

	reveal := h.out.all(EventCorrectAnswer)[0]
	assert.Equal(t, correctAnswerPayload{AnswerIndex: 3}, reveal.Payload)
}

func TestRoundWithNoMembersIsTimerOnly(t *testing.T) {
	h := newRoundHarness(t, 2*time.Millisecond)
	quiz := h.quiz(t, 5, 1)

	res := waitRound(t, h.run(quiz, quiz.Questions[0]))
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByTimer, res.resolution)
}

func TestRoundResolvesWhenEveryoneAnswered(t *testing.T) {
	h := newRoundHarness(t, time.Second, "alice", "bob")
	quiz := h.quiz(t, 60, 2)

	started := time.Now()
	done := h.run(quiz, quiz.Questions[0])
	h.out.waitFor(t, EventNewQuestion, 1)

	require.True(t, h.answer(quiz, 1, "alice", "4"))
	require.True(t, h.answer(quiz, 1, "alice", "4"))
	require.True(t, h.answer(quiz, 1, "bob", "3"))

	res := waitRound(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByAnswers, res.resolution)
	assert.Less(t, time.Since(started), 10*time.Second)

	assert.Equal(t, 1, h.score(t, "alice"), "duplicate answer must not double-score")
	assert.Equal(t, 0, h.score(t, "bob"))
	assert.Equal(t, 2, h.out.count(EventUserAnswered))
	assert.Zero(t, h.out.count(EventQuizWillEnd), "not the last question")

	progress := h.out.all(EventUserAnswered)[0]
	assert.Equal(t, userAnsweredPayload{User: domain.UserRef{ID: "alice", Name: "Player 1"}, TotalMembers: 2}, progress.Payload)

	card := h.out.all(EventUpdatedScorecard)[0].Payload.([]domain.ScorecardEntry)
	require.Len(t, card, 2)
	assert.Equal(t, "alice", card[0].ID)
	require.NotNil(t, card[0].AnsweredCorrectly)
	assert.True(t, *card[0].AnsweredCorrectly)
	assert.False(t, *card[1].AnsweredCorrectly)
}

func TestRoundTimerWinsWhenSomeoneStaysSilent(t *testing.T) {
	h := newRoundHarness(t, 40*time.Millisecond, "alice", "bob")
	quiz := h.quiz(t, 5, 1)

	done := h.run(quiz, quiz.Questions[0])
	h.out.waitFor(t, EventNewQuestion, 1)
	require.True(t, h.answer(quiz, 1, "alice", "4"))

	res := waitRound(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByTimer, res.resolution)
	assert.Len(t, h.out.all(TimerEvent("Q1", 1)), 5)
	assert.Equal(t, 1, h.score(t, "alice"))
	assert.Equal(t, 0, h.score(t, "bob"))
}

func TestRoundIgnoresLateAnswers(t *testing.T) {
	h := newRoundHarness(t, 2*time.Millisecond, "alice")
	quiz := h.quiz(t, 5, 1)

	res := waitRound(t, h.run(quiz, quiz.Questions[0]))
	require.NoError(t, res.err)

	assert.False(t, h.answer(quiz, 1, "alice", "4"), "round scope must be gone after resolution")
	assert.Equal(t, 0, h.score(t, "alice"))
}

func TestRoundIgnoresNonMembers(t *testing.T) {
	h := newRoundHarness(t, 20*time.Millisecond, "alice")
	quiz := h.quiz(t, 5, 1)

	done := h.run(quiz, quiz.Questions[0])
	h.out.waitFor(t, EventNewQuestion, 1)
	require.True(t, h.answer(quiz, 1, "mallory", "4"))

	res := waitRound(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByTimer, res.resolution)
	assert.Zero(t, h.out.count(EventUserAnswered))
}

func TestRoundDepartureCanCompleteAnswers(t *testing.T) {
	h := newRoundHarness(t, time.Second, "alice", "bob")
	quiz := h.quiz(t, 60, 1)

	done := h.run(quiz, quiz.Questions[0])
	h.out.waitFor(t, EventNewQuestion, 1)
	require.True(t, h.answer(quiz, 1, "alice", "4"))
	h.out.waitFor(t, EventUserAnswered, 1)

	_, err := h.reg.RemoveMember(context.Background(), "bob", "P1")
	require.NoError(t, err)
	h.bus.PublishParty("P1", Signal{Kind: SignalDeparture, UserID: "bob"})

	res := waitRound(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByAnswers, res.resolution)
}

func TestRoundsDoNotShareListeners(t *testing.T) {
	h := newRoundHarness(t, time.Second, "alice")
	quiz := h.quiz(t, 60, 2)

	done := h.run(quiz, quiz.Questions[0])
	h.out.waitFor(t, EventNewQuestion, 1)
	assert.False(t, h.answer(quiz, 2, "alice", "4"), "question 2 is not collecting yet")
	require.True(t, h.answer(quiz, 1, "alice", "4"))
	require.NoError(t, waitRound(t, done).err)

	done = h.run(quiz, quiz.Questions[1])
	h.out.waitFor(t, EventNewQuestion, 2)
	require.True(t, h.answer(quiz, 2, "alice", "3"))
	res := waitRound(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, ResolvedByAnswers, res.resolution)
	assert.Equal(t, 1, h.score(t, "alice"))
	assert.Equal(t, 1, h.out.count(EventQuizWillEnd))
}
