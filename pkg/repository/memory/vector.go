package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// VectorIndex is an in-memory nearest-neighbor index. It scans every
// entry per search, which is fine for tests and single-node development.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[model.ChunkID]*model.VectorEntry
}

var _ interfaces.VectorIndex = &VectorIndex{}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		entries: make(map[model.ChunkID]*model.VectorEntry),
	}
}

func copyVectorEntry(e *model.VectorEntry) *model.VectorEntry {
	copied := &model.VectorEntry{
		ChunkID:   e.ChunkID,
		SessionID: e.SessionID,
		Track:     e.Track,
		CreatedAt: e.CreatedAt,
	}
	if e.Embedding != nil {
		copied.Embedding = make([]float32, len(e.Embedding))
		copy(copied.Embedding, e.Embedding)
	}
	return copied
}

func (x *VectorIndex) Upsert(ctx context.Context, entries []*model.VectorEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	now := time.Now().UTC()
	for _, e := range entries {
		stored := copyVectorEntry(e)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		x.entries[stored.ChunkID] = stored
	}

	return nil
}

func (x *VectorIndex) Search(ctx context.Context, vector []float32, limit int, filter *model.VectorFilter) ([]*model.VectorMatch, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		chunkID model.ChunkID
		score   float64
	}

	var candidates []scored
	for _, e := range x.entries {
		if len(e.Embedding) == 0 || !filter.Matches(e) {
			continue
		}
		s := model.CosineSimilarity(vector, e.Embedding)
		candidates = append(candidates, scored{chunkID: e.ChunkID, score: model.ClampSimilarity(s)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.VectorMatch, 0, limit)
	for i := 0; i < limit; i++ {
		result = append(result, &model.VectorMatch{
			ChunkID:    candidates[i].chunkID,
			Similarity: candidates[i].score,
		})
	}

	return result, nil
}

func (x *VectorIndex) Fetch(ctx context.Context, ids []model.ChunkID) ([]*model.VectorEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	result := make([]*model.VectorEntry, 0, len(ids))
	for _, id := range ids {
		if e, exists := x.entries[id]; exists {
			result = append(result, copyVectorEntry(e))
		}
	}

	return result, nil
}

func (x *VectorIndex) Delete(ctx context.Context, ids []model.ChunkID) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		delete(x.entries, id)
	}

	return nil
}

func (x *VectorIndex) Close() error {
	return nil
}
