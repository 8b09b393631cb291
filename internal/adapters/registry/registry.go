// Package registry caches one personal adapter per individual for the
// lifetime of the process. Creation on first access is atomic per key, so
// two concurrent requests for the same user share a single adapter; fits
// and inference on distinct users never block each other.
package registry

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/okian/aura/internal/domain/adapter"
	"github.com/okian/aura/internal/domain/encoder"
	"github.com/okian/aura/pkg/metrics"
)

// Default registry configuration constants.
const defaultShardCount = 16

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shardCount = n
		}
	}
}

// WithAdapterOptions forwards options to every adapter the registry creates.
func WithAdapterOptions(opts ...adapter.Option) Option {
	return func(r *Registry) { r.adapterOpts = opts }
}

// Loader resolves persisted adapter parameters for a user. A false return
// means no snapshot exists and a fresh adapter is used.
type Loader func(ctx context.Context, userID string) (adapter.State, bool)

// WithLoader restores persisted parameters into adapters on first access,
// so personalization survives process restarts.
func WithLoader(l Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// Registry is a sharded get-or-create cache of personal adapters keyed by
// user identity.
type Registry struct {
	base        *encoder.Encoder
	shardCount  int
	adapterOpts []adapter.Option
	loader      Loader
	shards      []*shard
	size        atomic.Int64
}

type shard struct {
	mu       sync.RWMutex
	adapters map[string]*adapter.Adapter
}

// New creates a registry backed by the given shared encoder.
func New(base *encoder.Encoder, opts ...Option) *Registry {
	r := &Registry{
		base:       base,
		shardCount: defaultShardCount,
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	r.shards = make([]*shard, r.shardCount)
	for i := range r.shards {
		r.shards[i] = &shard{adapters: make(map[string]*adapter.Adapter)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(r.shardCount)]
}

// GetOrCreate returns the adapter owned by userID, constructing it under
// the shard lock on first access. A configured loader gets a chance to
// restore persisted parameters before the fresh adapter is handed out.
func (r *Registry) GetOrCreate(ctx context.Context, userID string) *adapter.Adapter {
	sh := r.shardFor(userID)

	sh.mu.RLock()
	a, ok := sh.adapters[userID]
	sh.mu.RUnlock()
	if ok {
		return a
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if a, ok := sh.adapters[userID]; ok {
		return a
	}
	a = adapter.New(r.base, userID, r.adapterOpts...)
	if r.loader != nil {
		if state, ok := r.loader(ctx, userID); ok {
			// A snapshot that no longer matches the encoder is discarded;
			// the fresh adapter stands in.
			_ = a.Restore(state)
		}
	}
	sh.adapters[userID] = a
	metrics.UpdateAdapterCount(int(r.size.Add(1)))
	return a
}

// Size returns the number of cached adapters.
func (r *Registry) Size() int64 { return r.size.Load() }
