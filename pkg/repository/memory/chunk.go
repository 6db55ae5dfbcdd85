package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type chunkRepository struct {
	mu     sync.RWMutex
	chunks map[model.ChunkID]*model.Chunk
}

func newChunkRepository() *chunkRepository {
	return &chunkRepository{
		chunks: make(map[model.ChunkID]*model.Chunk),
	}
}

// copyChunk creates a deep copy of a chunk record
func copyChunk(c *model.Chunk) *model.Chunk {
	copied := &model.Chunk{
		ID:                 c.ID,
		DocumentID:         c.DocumentID,
		Text:               c.Text,
		Position:           c.Position,
		TokenCount:         c.TokenCount,
		SessionID:          c.SessionID,
		PrivacyLevel:       c.PrivacyLevel,
		PartiallyShareable: c.PartiallyShareable,
		QualityScore:       c.QualityScore,
		CreatedAt:          c.CreatedAt,
	}

	if c.Embedding != nil {
		copied.Embedding = make([]float32, len(c.Embedding))
		copy(copied.Embedding, c.Embedding)
	}
	if c.Metadata != nil {
		copied.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			copied.Metadata[k] = v
		}
	}

	return copied
}

func (r *chunkRepository) PutBatch(ctx context.Context, chunks []*model.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, c := range chunks {
		// The row keeps its embedding so reconciliation can restore a
		// lost vector without calling the embedder again.
		stored := copyChunk(c)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		// Same content hash means the stored row is replaced and
		// ownership moves to the incoming document.
		r.chunks[stored.ID] = stored
	}

	return nil
}

func (r *chunkRepository) Get(ctx context.Context, id model.ChunkID) (*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chunk, exists := r.chunks[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "chunk not found", goerr.V("id", id))
	}

	return copyChunk(chunk), nil
}

func (r *chunkRepository) GetBatch(ctx context.Context, ids []model.ChunkID) ([]*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, exists := r.chunks[id]; exists {
			result = append(result, copyChunk(chunk))
		}
	}

	return result, nil
}

func (r *chunkRepository) ListByDocument(ctx context.Context, docID model.DocumentID) ([]*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Chunk
	for _, c := range r.chunks {
		if c.DocumentID == docID {
			result = append(result, copyChunk(c))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})

	return result, nil
}

func (r *chunkRepository) ListBySession(ctx context.Context, session model.SessionID, limit int) ([]*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Chunk
	for _, c := range r.chunks {
		if c.SessionID == session {
			result = append(result, copyChunk(c))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}

func (r *chunkRepository) DeleteByDocument(ctx context.Context, docID model.DocumentID) ([]model.ChunkID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []model.ChunkID
	for id, c := range r.chunks {
		if c.DocumentID == docID {
			deleted = append(deleted, id)
		}
	}
	for _, id := range deleted {
		delete(r.chunks, id)
	}

	return deleted, nil
}
