package interfaces

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// VectorIndex defines the interface for nearest-neighbor storage. It is
// an external service separate from the metadata Repository; per-document
// atomicity across the two is the ingest path's job.
type VectorIndex interface {
	// Upsert stores or replaces entries keyed by chunk ID
	Upsert(ctx context.Context, entries []*model.VectorEntry) error

	// Search returns up to limit entries nearest to the vector under the
	// filter, ordered by similarity descending. Similarity is normalized
	// to [0,1].
	Search(ctx context.Context, vector []float32, limit int, filter *model.VectorFilter) ([]*model.VectorMatch, error)

	// Fetch retrieves stored entries by chunk ID. IDs with no entry are
	// skipped. The correlation engine uses this to read embeddings back
	// for pairwise comparison.
	Fetch(ctx context.Context, ids []model.ChunkID) ([]*model.VectorEntry, error)

	// Delete removes entries by chunk ID. Missing IDs are not an error.
	Delete(ctx context.Context, ids []model.ChunkID) error

	Close() error
}
