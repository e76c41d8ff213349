package repository

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/pkg/metrics"
)

const backendMemory = "memory"

// keyLock is a reference-counted mutex owned by exactly one identity.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// shard guards a slice of the identity space. Its mutex is held only for
// map access, never across a read-modify-write.
type shard struct {
	mu     sync.Mutex
	locks  map[model.ID]*keyLock
	scores map[model.ID]int
}

// MemoryStore is a process-local Store. Each identity has its own lock,
// so updates touching disjoint identities never wait for each other.
type MemoryStore struct {
	opts   options
	shards []*shard

	histMu  sync.Mutex
	history []model.HistoryRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemoryStore{opts: o, shards: make([]*shard, o.lockShards)}
	for i := range s.shards {
		s.shards[i] = &shard{
			locks:  make(map[model.ID]*keyLock),
			scores: make(map[model.ID]int),
		}
	}
	return s
}

func (s *MemoryStore) shardFor(id model.ID) *shard {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return s.shards[xxhash.Sum64(b[:])%uint64(len(s.shards))]
}

func (s *MemoryStore) lock(id model.ID) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	kl, ok := sh.locks[id]
	if !ok {
		kl = &keyLock{}
		sh.locks[id] = kl
	}
	kl.refs++
	sh.mu.Unlock()
	kl.mu.Lock()
}

func (s *MemoryStore) unlock(id model.ID) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	kl := sh.locks[id]
	kl.refs--
	if kl.refs == 0 {
		delete(sh.locks, id)
	}
	sh.mu.Unlock()
	kl.mu.Unlock()
}

func (s *MemoryStore) load(id model.ID) (int, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.scores[id]
	return v, ok
}

func (s *MemoryStore) store(id model.ID, v int) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	sh.scores[id] = v
	sh.mu.Unlock()
}

// Get implements ScoreStore.
func (s *MemoryStore) Get(ctx context.Context, id model.ID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	s.lock(id)
	defer s.unlock(id)
	v, _ := s.load(id)
	return v, nil
}

// ApplyDelta implements ScoreStore.
func (s *MemoryStore) ApplyDelta(ctx context.Context, id model.ID, delta int) (Change, error) {
	changes, err := s.Update(ctx, []model.ID{id}, func(cur []int) ([]int, error) {
		return []int{cur[0] + delta}, nil
	})
	if err != nil {
		return Change{}, err
	}
	return changes[0], nil
}

// Update implements ScoreStore. Locks are taken in ascending identity order.
func (s *MemoryStore) Update(ctx context.Context, ids []model.ID, fn UpdateFunc) ([]Change, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backendMemory, "update", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	ordered, err := sortedUnique(ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ordered {
		s.lock(id)
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			s.unlock(ordered[i])
		}
	}()

	current := make([]int, len(ids))
	stored := make([]bool, len(ids))
	for i, id := range ids {
		current[i], stored[i] = s.load(id)
	}
	changes, err := apply(ids, current, stored, fn, s.opts.maxScore)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		s.store(c.ID, c.New)
	}
	return changes, nil
}

// Scores implements ScoreStore.
func (s *MemoryStore) Scores(ctx context.Context) (map[model.ID]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	out := make(map[model.ID]int)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, v := range sh.scores {
			out[id] = v
		}
		sh.mu.Unlock()
	}
	return out, nil
}

// Participants implements ScoreStore.
func (s *MemoryStore) Participants(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.scores)
		sh.mu.Unlock()
	}
	return n, nil
}

// Append implements HistoryLog.
func (s *MemoryStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	if rec.Winner != nil {
		w := *rec.Winner
		rec.Winner = &w
	}
	s.histMu.Lock()
	s.history = append(s.history, rec)
	s.histMu.Unlock()
	metrics.RecordHistoryAppend()
	return nil
}

// ReadAll implements HistoryLog.
func (s *MemoryStore) ReadAll(ctx context.Context) ([]model.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]model.HistoryRecord, len(s.history))
	for i, rec := range s.history {
		if rec.Winner != nil {
			w := *rec.Winner
			rec.Winner = &w
		}
		out[i] = rec
	}
	return out, nil
}

// Count implements HistoryLog.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}
	s.histMu.Lock()
	defer s.histMu.Unlock()
	return len(s.history), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
