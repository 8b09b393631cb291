package repository

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/metrics"
)

// Default store configuration constants.
const defaultShardCount = 8

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// MemoryStore implements Store with sharded in-memory maps. Shard selection
// hashes the user id, so one user's writes only contend with users on the
// same shard.
type MemoryStore struct {
	shardCount int
	shards     []*shard
}

type shard struct {
	mu       sync.RWMutex
	profiles map[string]model.UserProfile
	records  map[string][]model.DailyRecord
}

// NewMemoryStore creates a sharded in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount: defaultShardCount,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{
			profiles: make(map[string]model.UserProfile),
			records:  make(map[string][]model.DailyRecord),
		}
	}
	return s
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(s.shardCount)]
}

// CreateProfile registers a new user.
func (s *MemoryStore) CreateProfile(_ context.Context, profile model.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	sh := s.shardFor(profile.UserID)
	sh.mu.Lock()
	if _, ok := sh.profiles[profile.UserID]; ok {
		sh.mu.Unlock()
		return ErrAlreadyExists
	}
	sh.profiles[profile.UserID] = profile
	sh.mu.Unlock()

	metrics.UpdateUserCount(s.count())
	return nil
}

// Profile returns the stored profile for a user.
func (s *MemoryStore) Profile(_ context.Context, userID string) (model.UserProfile, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	profile, ok := sh.profiles[userID]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	return profile, nil
}

// AppendRecord appends one record to a user's ordered history.
func (s *MemoryStore) AppendRecord(_ context.Context, userID string, record model.DailyRecord) (int, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.profiles[userID]; !ok {
		return 0, ErrNotFound
	}
	sh.records[userID] = append(sh.records[userID], record)
	return len(sh.records[userID]), nil
}

// Records returns a copy of the full ordered history.
func (s *MemoryStore) Records(_ context.Context, userID string) ([]model.DailyRecord, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if _, ok := sh.profiles[userID]; !ok {
		return nil, ErrNotFound
	}
	history := sh.records[userID]
	out := make([]model.DailyRecord, len(history))
	copy(out, history)
	return out, nil
}

// UserIDs lists all registered users across shards.
func (s *MemoryStore) UserIDs(_ context.Context) []string {
	var ids []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id := range sh.profiles {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}

// Count returns the number of registered users.
func (s *MemoryStore) Count(_ context.Context) int {
	return s.count()
}

func (s *MemoryStore) count() int {
	var n int
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.profiles)
		sh.mu.RUnlock()
	}
	return n
}
