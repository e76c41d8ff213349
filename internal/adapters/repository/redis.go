package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/pkg/metrics"
)

const backendRedis = "redis"

// RedisStore keeps one string key per participant score and a JSON list
// for history. Multi-identity updates use WATCH/MULTI on the score keys
// involved, so disjoint identities never conflict.
type RedisStore struct {
	client redis.UniversalClient
	opts   options
	owned  bool
}

var _ Store = (*RedisStore)(nil)

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping %s: %w", ErrStoreUnavailable, addr, err)
	}
	s := NewRedisStore(client, opts...)
	s.owned = true
	return s, nil
}

// NewRedisStore wraps an existing client. The caller keeps ownership of it.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, opts: o}
}

func (s *RedisStore) scoreKey(id model.ID) string {
	return s.opts.keyPrefix + ":score:" + id.String()
}

func (s *RedisStore) participantsKey() string { return s.opts.keyPrefix + ":participants" }

func (s *RedisStore) historyKey() string { return s.opts.keyPrefix + ":history" }

func (s *RedisStore) fail(op string, err error) error {
	metrics.RecordStoreError(backendRedis, op)
	return fmt.Errorf("%w: redis %s: %w", ErrStoreUnavailable, op, err)
}

// Get implements ScoreStore.
func (s *RedisStore) Get(ctx context.Context, id model.ID) (int, error) {
	defer observe(backendRedis, "get", time.Now())

	v, err := s.client.Get(ctx, s.scoreKey(id)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, s.fail("get", err)
	}
	return v, nil
}

// ApplyDelta implements ScoreStore.
func (s *RedisStore) ApplyDelta(ctx context.Context, id model.ID, delta int) (Change, error) {
	changes, err := s.Update(ctx, []model.ID{id}, func(cur []int) ([]int, error) {
		return []int{cur[0] + delta}, nil
	})
	if err != nil {
		return Change{}, err
	}
	return changes[0], nil
}

// Update implements ScoreStore. A transaction aborted by a concurrent
// writer is retried up to the configured limit.
func (s *RedisStore) Update(ctx context.Context, ids []model.ID, fn UpdateFunc) ([]Change, error) {
	defer observe(backendRedis, "update", time.Now())

	if _, err := sortedUnique(ids); err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.scoreKey(id)
	}

	var (
		changes []Change
		fnErr   error
	)
	txf := func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		current := make([]int, len(vals))
		stored := make([]bool, len(vals))
		for i, v := range vals {
			if current[i], err = parseScore(v); err != nil {
				return err
			}
			stored[i] = v != nil
		}
		changes, fnErr = apply(ids, current, stored, fn, s.opts.maxScore)
		if fnErr != nil {
			return fnErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range changes {
				pipe.Set(ctx, s.scoreKey(c.ID), c.New, 0)
				pipe.SAdd(ctx, s.participantsKey(), c.ID.String())
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.opts.txRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		switch {
		case err == nil:
			return changes, nil
		case fnErr != nil:
			return nil, fnErr
		case errors.Is(err, redis.TxFailedErr):
			metrics.RecordStoreTxConflict()
			continue
		default:
			return nil, s.fail("update", err)
		}
	}
	return nil, s.fail("update", fmt.Errorf("transaction conflicted %d times", s.opts.txRetries))
}

func parseScore(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("unexpected score value %T", v)
	}
}

// Scores implements ScoreStore.
func (s *RedisStore) Scores(ctx context.Context) (map[model.ID]int, error) {
	members, err := s.client.SMembers(ctx, s.participantsKey()).Result()
	if err != nil {
		return nil, s.fail("scores", err)
	}
	out := make(map[model.ID]int, len(members))
	if len(members) == 0 {
		return out, nil
	}
	ids := make([]model.ID, 0, len(members))
	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := model.ParseID(m)
		if err != nil {
			return nil, s.fail("scores", err)
		}
		ids = append(ids, id)
		keys = append(keys, s.scoreKey(id))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.fail("scores", err)
	}
	for i, v := range vals {
		score, err := parseScore(v)
		if err != nil {
			return nil, s.fail("scores", err)
		}
		out[ids[i]] = score
	}
	return out, nil
}

// Participants implements ScoreStore.
func (s *RedisStore) Participants(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.participantsKey()).Result()
	if err != nil {
		return 0, s.fail("participants", err)
	}
	return int(n), nil
}

// Count implements HistoryLog.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.historyKey()).Result()
	if err != nil {
		return 0, s.fail("count", err)
	}
	return int(n), nil
}

// Append implements HistoryLog.
func (s *RedisStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	defer observe(backendRedis, "append", time.Now())

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	if err := s.client.RPush(ctx, s.historyKey(), b).Err(); err != nil {
		return s.fail("append", err)
	}
	metrics.RecordHistoryAppend()
	return nil
}

// ReadAll implements HistoryLog.
func (s *RedisStore) ReadAll(ctx context.Context) ([]model.HistoryRecord, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, s.fail("read_all", err)
	}
	out := make([]model.HistoryRecord, 0, len(raw))
	for _, r := range raw {
		var rec model.HistoryRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			return nil, s.fail("read_all", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close implements Store. Clients passed to NewRedisStore are left open.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
