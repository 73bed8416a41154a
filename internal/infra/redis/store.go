package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-party-service/internal/domain"
)

// Store is the ephemeral state store for parties, scores and answers.
// Every key lives under "party:{partyID}:" so a whole party can be refreshed
// or left to expire as one group:
//
//	party:{p}:members                      SET  user ids
//	party:{p}:leader                       STR  user id of the first joiner
//	party:{p}:names                        HASH user id -> display name
//	party:{p}:ready                        SET  users ready for the current barrier
//	party:{p}:quiz                         STR  id of the active quiz run
//	party:{p}:quiz:{q}:scores              HASH user id -> score
//	party:{p}:quiz:{q}:order               LIST user ids in seeding order
//	party:{p}:quiz:{q}:q:{n}:answered      SET  users with a counted answer
//	party:{p}:quiz:{q}:q:{n}:count         STR  answers received
//	party:{p}:quiz:{q}:q:{n}:correct       LIST users who answered correctly
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// joinScript adds a member and, if the set was empty before, records them as leader.
var joinScript = redis.NewScript(`
local added = redis.call('SADD', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then redis.call('PEXPIRE', KEYS[1], ttl) end
if added == 1 and redis.call('SCARD', KEYS[1]) == 1 then
	redis.call('SET', KEYS[2], ARGV[1])
	if ttl > 0 then redis.call('PEXPIRE', KEYS[2], ttl) end
	return 1
end
return 0
`)

// incrScoreScript appends first-time scorers to the order list before incrementing.
var incrScoreScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], 0) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return v
`)

// releaseScript deletes the run key only if it still holds the given quiz id.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

func (s *Store) AddMember(ctx context.Context, partyID, userID string) (bool, error) {
	res, err := joinScript.Run(ctx, s.client,
		[]string{membersKey(partyID), leaderKey(partyID)},
		userID, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *Store) RemoveMember(ctx context.Context, partyID, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, membersKey(partyID), userID)
		pipe.SRem(ctx, readyKey(partyID), userID)
		return nil
	})
	return err
}

func (s *Store) Members(ctx context.Context, partyID string) ([]string, error) {
	return s.client.SMembers(ctx, membersKey(partyID)).Result()
}

func (s *Store) MemberCount(ctx context.Context, partyID string) (int, error) {
	n, err := s.client.SCard(ctx, membersKey(partyID)).Result()
	return int(n), err
}

func (s *Store) IsMember(ctx context.Context, partyID, userID string) (bool, error) {
	return s.client.SIsMember(ctx, membersKey(partyID), userID).Result()
}

func (s *Store) Leader(ctx context.Context, partyID string) (string, error) {
	return s.getString(ctx, leaderKey(partyID))
}

func (s *Store) SetDisplayNameIfAbsent(ctx context.Context, partyID, userID, name string) (string, error) {
	key := namesKey(partyID)
	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, userID, name)
		get = pipe.HGet(ctx, key, userID)
		s.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return "", err
	}
	return get.Val(), nil
}

func (s *Store) SetDisplayName(ctx context.Context, partyID, userID, name string) error {
	key := namesKey(partyID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, userID, name)
		s.expire(ctx, pipe, key)
		return nil
	})
	return err
}

func (s *Store) DeleteDisplayName(ctx context.Context, partyID, userID string) error {
	return s.client.HDel(ctx, namesKey(partyID), userID).Err()
}

func (s *Store) DisplayNames(ctx context.Context, partyID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, namesKey(partyID)).Result()
}

func (s *Store) AddReady(ctx context.Context, partyID, userID string) (bool, error) {
	key := readyKey(partyID)
	var add *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		add = pipe.SAdd(ctx, key, userID)
		s.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return add.Val() == 1, nil
}

func (s *Store) ReadyUsers(ctx context.Context, partyID string) ([]string, error) {
	return s.client.SMembers(ctx, readyKey(partyID)).Result()
}

func (s *Store) ClearReady(ctx context.Context, partyID string) error {
	return s.client.Del(ctx, readyKey(partyID)).Err()
}

func (s *Store) ClaimRun(ctx context.Context, partyID, quizID string) (bool, error) {
	return s.client.SetNX(ctx, runKey(partyID), quizID, s.ttl).Result()
}

func (s *Store) ActiveRun(ctx context.Context, partyID string) (string, error) {
	return s.getString(ctx, runKey(partyID))
}

func (s *Store) ReleaseRun(ctx context.Context, partyID, quizID string) error {
	return releaseScript.Run(ctx, s.client, []string{runKey(partyID)}, quizID).Err()
}

func (s *Store) SeedScores(ctx context.Context, partyID, quizID string, userIDs []string) error {
	scores, order := scoresKey(partyID, quizID), orderKey(partyID, quizID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, scores, order)
		if len(userIDs) == 0 {
			return nil
		}
		fields := make([]any, 0, len(userIDs)*2)
		ids := make([]any, 0, len(userIDs))
		for _, id := range userIDs {
			fields = append(fields, id, 0)
			ids = append(ids, id)
		}
		pipe.HSet(ctx, scores, fields...)
		pipe.RPush(ctx, order, ids...)
		s.expire(ctx, pipe, scores, order)
		return nil
	})
	return err
}

func (s *Store) IncrScore(ctx context.Context, partyID, quizID, userID string, delta int) (int, error) {
	v, err := incrScoreScript.Run(ctx, s.client,
		[]string{scoresKey(partyID, quizID), orderKey(partyID, quizID)},
		userID, delta, s.ttl.Milliseconds(),
	).Int()
	return v, err
}

// Scores returns scores in seeding order, skipping users whose score was deleted.
func (s *Store) Scores(ctx context.Context, partyID, quizID string) ([]domain.ScoreRow, error) {
	ids, err := s.client.LRange(ctx, orderKey(partyID, quizID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.ScoreRow{}, nil
	}
	vals, err := s.client.HMGet(ctx, scoresKey(partyID, quizID), ids...).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ScoreRow, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		raw, ok := vals[i].(string)
		if !ok || seen[id] {
			continue
		}
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse score for %s: %w", id, err)
		}
		seen[id] = true
		rows = append(rows, domain.ScoreRow{UserID: id, Score: score})
	}
	return rows, nil
}

func (s *Store) DeleteScore(ctx context.Context, partyID, quizID, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, scoresKey(partyID, quizID), userID)
		pipe.LRem(ctx, orderKey(partyID, quizID), 0, userID)
		return nil
	})
	return err
}

func (s *Store) MarkAnswered(ctx context.Context, partyID, quizID string, number int, userID string) (bool, error) {
	key := questionKey(partyID, quizID, number, "answered")
	var add *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		add = pipe.SAdd(ctx, key, userID)
		s.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return add.Val() == 1, nil
}

func (s *Store) IncrAnswerCount(ctx context.Context, partyID, quizID string, number int) (int, error) {
	key := questionKey(partyID, quizID, number, "count")
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		s.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *Store) AnswerCount(ctx context.Context, partyID, quizID string, number int) (int, error) {
	n, err := s.client.Get(ctx, questionKey(partyID, quizID, number, "count")).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *Store) AddCorrect(ctx context.Context, partyID, quizID string, number int, userID string) error {
	key := questionKey(partyID, quizID, number, "correct")
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, userID)
		s.expire(ctx, pipe, key)
		return nil
	})
	return err
}

func (s *Store) CorrectUsers(ctx context.Context, partyID, quizID string, number int) ([]string, error) {
	return s.client.LRange(ctx, questionKey(partyID, quizID, number, "correct"), 0, -1).Result()
}

// Touch refreshes the TTL of every key in the party's namespace.
func (s *Store) Touch(ctx context.Context, partyID string) error {
	if s.ttl <= 0 {
		return nil
	}
	iter := s.client.Scan(ctx, 0, partyPrefix(partyID)+"*", 100).Iterator()
	pipe := s.client.Pipeline()
	queued := 0
	for iter.Next(ctx) {
		pipe.PExpire(ctx, iter.Val(), s.ttl)
		queued++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan party keys: %w", err)
	}
	if queued == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if s.ttl <= 0 {
		return
	}
	for _, key := range keys {
		pipe.PExpire(ctx, key, s.ttl)
	}
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func partyPrefix(partyID string) string {
	return "party:" + partyID + ":"
}

func membersKey(partyID string) string { return partyPrefix(partyID) + "members" }
func leaderKey(partyID string) string  { return partyPrefix(partyID) + "leader" }
func namesKey(partyID string) string   { return partyPrefix(partyID) + "names" }
func readyKey(partyID string) string   { return partyPrefix(partyID) + "ready" }
func runKey(partyID string) string     { return partyPrefix(partyID) + "quiz" }

func scoresKey(partyID, quizID string) string {
	return partyPrefix(partyID) + "quiz:" + quizID + ":scores"
}

func orderKey(partyID, quizID string) string {
	return partyPrefix(partyID) + "quiz:" + quizID + ":order"
}

func questionKey(partyID, quizID string, number int, field string) string {
	return fmt.Sprintf("%squiz:%s:q:%d:%s", partyPrefix(partyID), quizID, number, field)
}
