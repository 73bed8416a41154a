package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"trivia-party-service/internal/domain"
	redisstore "trivia-party-service/internal/infra/redis"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) StateStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.NewStore(client, time.Minute)
}

// sequentialNames yields "Player 1", "Player 2", ... so rosters sort by join order.
func sequentialNames() NameGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("Player %d", n)
	}
}

type recordedEvent struct {
	Party   string
	To      string
	Name    string
	Payload any
}

// recorder is a Broadcaster that keeps every outbound event in order.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(partyID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Party: partyID, Name: event, Payload: payload})
}

func (r *recorder) SendTo(userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{To: userID, Name: event, Payload: payload})
}

func (r *recorder) JoinRoom(string, string)  {}
func (r *recorder) LeaveRoom(string, string) {}

func (r *recorder) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func (r *recorder) all(name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.snapshot() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count(name string) int {
	return len(r.all(name))
}

func (r *recorder) sentTo(userID, name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range r.snapshot() {
		if e.To == userID && e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// waitFor blocks until the n-th event called name has been recorded and returns it.
func (r *recorder) waitFor(t *testing.T, name string, n int) recordedEvent {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(name) >= n }, 5*time.Second, 2*time.Millisecond,
		"waiting for %s #%d", name, n)
	return r.all(name)[n-1]
}

// broadcastNames lists party broadcasts from the first occurrence of from,
// dropping countdown ticks and answer progress.
func (r *recorder) broadcastNames(from string) []string {
	var out []string
	started := false
	for _, e := range r.snapshot() {
		if e.Party == "" {
			continue
		}
		if e.Name == from {
			started = true
		}
		if !started || strings.HasPrefix(e.Name, "timer-update-") || e.Name == EventUserAnswered {
			continue
		}
		out = append(out, e.Name)
	}
	return out
}

type fakeProvider struct {
	mu        sync.Mutex
	questions []domain.RawQuestion
	err       error
	lastOpts  domain.QuizOptions
}

func (p *fakeProvider) FetchQuestions(_ context.Context, opts domain.QuizOptions) ([]domain.RawQuestion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOpts = opts
	if p.err != nil {
		return nil, p.err
	}
	return p.questions, nil
}

func mathQuestion() domain.RawQuestion {
	return domain.RawQuestion{
		Category:         "Math",
		Type:             "multiple",
		Difficulty:       "easy",
		Question:         "What is 2 + 2?",
		CorrectAnswer:    "4",
		IncorrectAnswers: []string{"3", "5", "22"},
	}
}
