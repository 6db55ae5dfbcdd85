package memory

import (
	"context"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type correlationRepository struct {
	mu   sync.RWMutex
	sets map[model.CorrelationKey]*model.CorrelationSet
}

func newCorrelationRepository() *correlationRepository {
	return &correlationRepository{
		sets: make(map[model.CorrelationKey]*model.CorrelationSet),
	}
}

// copyCorrelationSet creates a deep copy of a cached correlation run
func copyCorrelationSet(s *model.CorrelationSet) *model.CorrelationSet {
	copied := &model.CorrelationSet{
		Key:       s.Key,
		CreatedAt: s.CreatedAt,
	}

	if s.Edges != nil {
		copied.Edges = make([]model.CorrelationEdge, len(s.Edges))
		copy(copied.Edges, s.Edges)
	}
	if s.ChunkIDs != nil {
		copied.ChunkIDs = make([]model.ChunkID, len(s.ChunkIDs))
		copy(copied.ChunkIDs, s.ChunkIDs)
	}

	return copied
}

func (r *correlationRepository) GetSet(ctx context.Context, key model.CorrelationKey) (*model.CorrelationSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.sets[key]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "correlation set not found", goerr.V("key", key))
	}

	return copyCorrelationSet(set), nil
}

func (r *correlationRepository) PutSet(ctx context.Context, set *model.CorrelationSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyCorrelationSet(set)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.sets[stored.Key] = stored
	return nil
}

func (r *correlationRepository) InvalidateByChunks(ctx context.Context, ids []model.ChunkID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idSet := make(map[model.ChunkID]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var stale []model.CorrelationKey
	for key, set := range r.sets {
		for _, ref := range set.ChunkIDs {
			if idSet[ref] {
				stale = append(stale, key)
				break
			}
		}
	}
	for _, key := range stale {
		delete(r.sets, key)
	}

	return len(stale), nil
}
