package interfaces

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// ChunkRepository defines the interface for Chunk metadata persistence.
// Embeddings live in the VectorIndex; the rows here carry text, position
// and the denormalized ranking fields.
type ChunkRepository interface {
	// PutBatch stores chunk metadata rows, replacing rows with the same
	// content-addressed ID (ownership transfers to the latest document)
	PutBatch(ctx context.Context, chunks []*model.Chunk) error

	// Get retrieves a chunk by ID
	Get(ctx context.Context, id model.ChunkID) (*model.Chunk, error)

	// GetBatch retrieves multiple chunks; IDs with no row are skipped so
	// callers can detect vector/metadata drift from the count
	GetBatch(ctx context.Context, ids []model.ChunkID) ([]*model.Chunk, error)

	// ListByDocument retrieves the chunks owned by a document in position order
	ListByDocument(ctx context.Context, docID model.DocumentID) ([]*model.Chunk, error)

	// ListBySession retrieves up to limit chunks of a session, newest first
	ListBySession(ctx context.Context, session model.SessionID, limit int) ([]*model.Chunk, error)

	// DeleteByDocument removes the chunks still owned by the document and
	// returns their IDs for vector deletion and cache invalidation
	DeleteByDocument(ctx context.Context, docID model.DocumentID) ([]model.ChunkID, error)
}
