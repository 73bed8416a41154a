package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestAddMemberElectsFirstJoinerOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	leader, err := store.AddMember(ctx, "P1", "alice")
	if err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if !leader {
		t.Fatalf("expected first joiner to lead")
	}
	leader, err = store.AddMember(ctx, "P1", "bob")
	if err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if leader {
		t.Fatalf("expected second joiner not to lead")
	}
	// re-join is a no-op
	if leader, _ = store.AddMember(ctx, "P1", "alice"); leader {
		t.Fatalf("expected re-join not to re-elect")
	}

	got, err := store.Leader(ctx, "P1")
	if err != nil || got != "alice" {
		t.Fatalf("expected alice as leader, got %q (%v)", got, err)
	}

	// Leader departure does not reassign.
	if err := store.RemoveMember(ctx, "P1", "alice"); err != nil {
		t.Fatalf("remove alice: %v", err)
	}
	if got, _ = store.Leader(ctx, "P1"); got != "alice" {
		t.Fatalf("expected leader to persist, got %q", got)
	}
	if n, _ := store.MemberCount(ctx, "P1"); n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}
}

func TestAddMemberAfterPartyEmptiedElectsAgain(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	_, _ = store.AddMember(ctx, "P1", "alice")
	_ = store.RemoveMember(ctx, "P1", "alice")

	leader, err := store.AddMember(ctx, "P1", "carol")
	if err != nil {
		t.Fatalf("add carol: %v", err)
	}
	if !leader {
		t.Fatalf("expected carol to lead a re-created party")
	}
}

func TestDisplayNameIfAbsentKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	name, err := store.SetDisplayNameIfAbsent(ctx, "P1", "alice", "Quick Otter 1")
	if err != nil || name != "Quick Otter 1" {
		t.Fatalf("expected generated name, got %q (%v)", name, err)
	}
	name, _ = store.SetDisplayNameIfAbsent(ctx, "P1", "alice", "Other Name")
	if name != "Quick Otter 1" {
		t.Fatalf("expected existing name kept, got %q", name)
	}
	if err := store.SetDisplayName(ctx, "P1", "alice", "Alice"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	names, _ := store.DisplayNames(ctx, "P1")
	if names["alice"] != "Alice" {
		t.Fatalf("expected overwrite, got %q", names["alice"])
	}
}

func TestScoresKeepSeedingOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	if err := store.SeedScores(ctx, "P1", "q1", []string{"zed", "amy", "bob"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if v, err := store.IncrScore(ctx, "P1", "q1", "amy", 1); err != nil || v != 1 {
		t.Fatalf("incr amy: %d %v", v, err)
	}
	// late joiner gets appended, not reordered
	if _, err := store.IncrScore(ctx, "P1", "q1", "late", 1); err != nil {
		t.Fatalf("incr late: %v", err)
	}
	if err := store.DeleteScore(ctx, "P1", "q1", "bob"); err != nil {
		t.Fatalf("delete bob: %v", err)
	}

	rows, err := store.Scores(ctx, "P1", "q1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	want := []struct {
		id    string
		score int
	}{{"zed", 0}, {"amy", 1}, {"late", 1}}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), rows)
	}
	for i, w := range want {
		if rows[i].UserID != w.id || rows[i].Score != w.score {
			t.Fatalf("row %d: expected %s=%d, got %+v", i, w.id, w.score, rows[i])
		}
	}
}

func TestAnswerRecordsAreFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	first, err := store.MarkAnswered(ctx, "P1", "q1", 1, "alice")
	if err != nil || !first {
		t.Fatalf("expected first answer counted, got %v (%v)", first, err)
	}
	if first, _ = store.MarkAnswered(ctx, "P1", "q1", 1, "alice"); first {
		t.Fatalf("expected duplicate answer ignored")
	}
	if first, _ = store.MarkAnswered(ctx, "P1", "q1", 2, "alice"); !first {
		t.Fatalf("expected answer on next question counted")
	}

	if n, _ := store.AnswerCount(ctx, "P1", "q1", 1); n != 0 {
		t.Fatalf("expected empty counter, got %d", n)
	}
	_, _ = store.IncrAnswerCount(ctx, "P1", "q1", 1)
	if n, _ := store.IncrAnswerCount(ctx, "P1", "q1", 1); n != 2 {
		t.Fatalf("expected counter 2, got %d", n)
	}

	_ = store.AddCorrect(ctx, "P1", "q1", 1, "alice")
	users, _ := store.CorrectUsers(ctx, "P1", "q1", 1)
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("expected alice correct, got %v", users)
	}
}

func TestReadySetDeduplicates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	if added, _ := store.AddReady(ctx, "P1", "alice"); !added {
		t.Fatalf("expected first ready added")
	}
	if added, _ := store.AddReady(ctx, "P1", "alice"); added {
		t.Fatalf("expected duplicate ready ignored")
	}
	_, _ = store.AddReady(ctx, "P1", "bob")
	users, _ := store.ReadyUsers(ctx, "P1")
	sort.Strings(users)
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("unexpected ready users %v", users)
	}
	if err := store.ClearReady(ctx, "P1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if users, _ = store.ReadyUsers(ctx, "P1"); len(users) != 0 {
		t.Fatalf("expected cleared ready set, got %v", users)
	}
}

func TestClaimRunIsExclusive(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, time.Minute)

	if ok, _ := store.ClaimRun(ctx, "P1", "quiz-a"); !ok {
		t.Fatalf("expected first claim to succeed")
	}
	if ok, _ := store.ClaimRun(ctx, "P1", "quiz-b"); ok {
		t.Fatalf("expected second claim to fail")
	}
	// Releasing with the wrong id keeps the claim.
	_ = store.ReleaseRun(ctx, "P1", "quiz-b")
	if active, _ := store.ActiveRun(ctx, "P1"); active != "quiz-a" {
		t.Fatalf("expected quiz-a active, got %q", active)
	}
	_ = store.ReleaseRun(ctx, "P1", "quiz-a")
	if active, _ := store.ActiveRun(ctx, "P1"); active != "" {
		t.Fatalf("expected no active run, got %q", active)
	}
}

func TestTouchRefreshesWholePartyNamespace(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Minute)

	_, _ = store.AddMember(ctx, "P1", "alice")
	_, _ = store.SetDisplayNameIfAbsent(ctx, "P1", "alice", "Alice")
	_ = store.SeedScores(ctx, "P1", "q1", []string{"alice"})
	_, _ = store.AddMember(ctx, "P2", "bob")

	mr.FastForward(50 * time.Second)
	if err := store.Touch(ctx, "P1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	mr.FastForward(20 * time.Second)

	for _, key := range []string{"party:P1:members", "party:P1:leader", "party:P1:names", "party:P1:quiz:q1:scores"} {
		if !mr.Exists(key) {
			t.Fatalf("expected %s to survive after touch", key)
		}
	}
	if mr.Exists("party:P2:members") {
		t.Fatalf("expected untouched party to expire")
	}

	mr.FastForward(time.Minute)
	if mr.Exists("party:P1:members") {
		t.Fatalf("expected abandoned party to expire")
	}
}
