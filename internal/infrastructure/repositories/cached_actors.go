package repositories

import (
	"context"
	"sync"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/pkg/cache"
)

// CachedActorRepository keeps recently rendered owner summaries in memory.
// Updates through this repository drop the actor's entry; writes from other
// instances show up once the TTL passes.
type CachedActorRepository struct {
	ports.ActorRepository
	summaries *cache.Cache[domain.ActorID, domain.ActorSummary]

	// mu orders invalidations against fills; generation counts invalidations
	// so a load that overlapped one is not cached.
	mu         sync.Mutex
	generation uint64
}

func NewCachedActorRepository(base ports.ActorRepository, size int, ttl time.Duration) *CachedActorRepository {
	return &CachedActorRepository{
		ActorRepository: base,
		summaries:       cache.New[domain.ActorID, domain.ActorSummary](size, ttl),
	}
}

func (r *CachedActorRepository) Update(ctx context.Context, actor *domain.Actor) error {
	err := r.ActorRepository.Update(ctx, actor)
	r.mu.Lock()
	r.generation++
	r.summaries.Delete(actor.ID)
	r.mu.Unlock()
	return err
}

func (r *CachedActorRepository) GetSummaries(ctx context.Context, ids []domain.ActorID) (map[domain.ActorID]domain.ActorSummary, error) {
	hits, misses := r.summaries.GetMany(ids)
	if len(misses) == 0 {
		return hits, nil
	}

	r.mu.Lock()
	started := r.generation
	r.mu.Unlock()

	loaded, err := r.ActorRepository.GetSummaries(ctx, misses)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	fresh := r.generation == started
	for id, summary := range loaded {
		if fresh {
			r.summaries.Set(id, summary)
		}
		hits[id] = summary
	}
	r.mu.Unlock()
	return hits, nil
}
