package interfaces

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// AuditRepository defines the interface for privacy decision audit records
type AuditRepository interface {
	// Put stores one audit record
	Put(ctx context.Context, record *model.AuditRecord) error

	// ListByChunk retrieves up to limit records for a chunk, newest first
	ListByChunk(ctx context.Context, chunkID model.ChunkID, limit int) ([]*model.AuditRecord, error)
}
