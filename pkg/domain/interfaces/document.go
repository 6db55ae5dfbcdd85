package interfaces

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// DocumentRepository defines the interface for Document metadata persistence
type DocumentRepository interface {
	// Create stores a new document record
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id model.DocumentID) (*model.Document, error)

	// ListBySession retrieves all documents of a research session
	ListBySession(ctx context.Context, session model.SessionID) ([]*model.Document, error)

	// ListByStatus retrieves all documents in the given lifecycle state.
	// The reconciliation sweep uses this to find partially indexed and
	// stale ingesting documents.
	ListByStatus(ctx context.Context, status types.DocumentStatus) ([]*model.Document, error)

	// UpdateStatus moves a document through its lifecycle and records an
	// operator-readable detail for degraded states
	UpdateStatus(ctx context.Context, id model.DocumentID, status types.DocumentStatus, detail string) error

	// MarkIndexed sets the indexed status, chunk count and timestamp
	MarkIndexed(ctx context.Context, id model.DocumentID, chunkCount int) error

	// Delete removes a document record
	Delete(ctx context.Context, id model.DocumentID) error

	// ListSessions returns the distinct session IDs of all stored
	// documents, for cross-session retrieval scope resolution
	ListSessions(ctx context.Context) ([]model.SessionID, error)
}
