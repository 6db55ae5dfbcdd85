package interfaces

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// CorrelationRepository defines the interface for the correlation edge cache
type CorrelationRepository interface {
	// GetSet retrieves a cached correlation run by key, ErrNotFound when
	// the pair has not been correlated or the cache was invalidated
	GetSet(ctx context.Context, key model.CorrelationKey) (*model.CorrelationSet, error)

	// PutSet stores a correlation run
	PutSet(ctx context.Context, set *model.CorrelationSet) error

	// InvalidateByChunks removes every cached run referencing any of the
	// given chunks and returns the number of runs dropped
	InvalidateByChunks(ctx context.Context, ids []model.ChunkID) (int, error)
}
